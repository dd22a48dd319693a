package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var supportedFetchStrategies = map[string]struct{}{
	FetchStrategyDirect:       {},
	FetchStrategySingleflight: {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.CacheTTL.DurationValue() <= 0 {
		return newFieldError("Global.CacheTTL", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if _, ok := supportedFetchStrategies[g.FetchStrategy]; !ok {
		return newFieldError("Global.FetchStrategy", "仅支持 direct|singleflight")
	}
	if err := validateTunnelPrefix(g.TunnelPrefix); err != nil {
		return fmt.Errorf("Global.TunnelPrefix: %w", err)
	}
	for i, host := range g.TunnelAllowHosts {
		if host == "" || strings.ContainsAny(host, "/:") {
			return newFieldError(indexedField("Global.TunnelAllowHosts", i, "Host"), "必须是主机名或 *.域名")
		}
	}

	if len(c.Mirrors) == 0 {
		return errors.New("至少需要配置一个 Mirror")
	}
	for i, m := range c.Mirrors {
		if !strings.HasPrefix(m.Prefix, "/") {
			return newFieldError(indexedField("Mirror", i, "Prefix"), "必须以 / 开头")
		}
		if err := validateOrigin(m.Origin); err != nil {
			return fmt.Errorf("%s: %w", indexedField("Mirror", i, "Origin"), err)
		}
	}

	for i, r := range c.Routes {
		if !strings.HasPrefix(r.Path, "/") {
			return newFieldError(indexedField("Route", i, "Path"), "必须以 / 开头")
		}
		if strings.TrimSpace(r.File) == "" {
			return newFieldError(indexedField("Route", i, "File"), "不能为空")
		}
	}

	for i, r := range c.Redirects {
		if !strings.HasPrefix(r.Path, "/") {
			return newFieldError(indexedField("Redirect", i, "Path"), "必须以 / 开头")
		}
		if err := validateOrigin(r.Target); err != nil {
			return fmt.Errorf("%s: %w", indexedField("Redirect", i, "Target"), err)
		}
	}

	return nil
}

func validateTunnelPrefix(prefix string) error {
	if prefix == "" {
		return errors.New("不能为空")
	}
	if !strings.HasPrefix(prefix, "/") || !strings.HasSuffix(prefix, "/") {
		return errors.New("必须以 / 开头并以 / 结尾")
	}
	if prefix == "/" {
		return errors.New("不能覆盖整站路径")
	}
	return nil
}

func validateOrigin(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
