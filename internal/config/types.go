package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"720h" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// 支持的回源策略。
const (
	FetchStrategyDirect       = "direct"
	FetchStrategySingleflight = "singleflight"
)

// GlobalConfig 描述全局运行时行为。
type GlobalConfig struct {
	ListenPort            int      `mapstructure:"ListenPort"`
	LogLevel              string   `mapstructure:"LogLevel"`
	LogFilePath           string   `mapstructure:"LogFilePath"`
	LogMaxSize            int      `mapstructure:"LogMaxSize"`
	LogMaxBackups         int      `mapstructure:"LogMaxBackups"`
	LogCompress           bool     `mapstructure:"LogCompress"`
	StaticDir             string   `mapstructure:"StaticDir"`
	NotFoundPage          string   `mapstructure:"NotFoundPage"`
	CacheTTL              Duration `mapstructure:"CacheTTL"`
	UpstreamTimeout       Duration `mapstructure:"UpstreamTimeout"`
	FetchStrategy         string   `mapstructure:"FetchStrategy"`
	OctetStreamExtensions []string `mapstructure:"OctetStreamExtensions"`
	TunnelPrefix          string   `mapstructure:"TunnelPrefix"`
	TunnelAllowHosts      []string `mapstructure:"TunnelAllowHosts"`
	AllowOrigins          []string `mapstructure:"AllowOrigins"`
}

// MirrorConfig 将一个路径前缀映射到上游 origin，声明顺序即匹配顺序。
type MirrorConfig struct {
	Prefix string `mapstructure:"Prefix"`
	Origin string `mapstructure:"Origin"`
}

// RouteConfig 声明一个直接返回 StaticDir 内文件的页面路由。
type RouteConfig struct {
	Path string `mapstructure:"Path"`
	File string `mapstructure:"File"`
}

// RedirectConfig 声明一个重定向路由，Target 中的 :param 会被路径参数替换。
type RedirectConfig struct {
	Path   string `mapstructure:"Path"`
	Target string `mapstructure:"Target"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global    GlobalConfig     `mapstructure:",squash"`
	Mirrors   []MirrorConfig   `mapstructure:"Mirror"`
	Routes    []RouteConfig    `mapstructure:"Route"`
	Redirects []RedirectConfig `mapstructure:"Redirect"`
}

// MirrorPrefixes 返回所有镜像前缀，供启动日志使用。
func MirrorPrefixes(mirrors []MirrorConfig) []string {
	if len(mirrors) == 0 {
		return nil
	}
	result := make([]string, len(mirrors))
	for i, m := range mirrors {
		result[i] = m.Prefix
	}
	return result
}

// NotFoundPagePath 返回 404 页面的绝对路径；未配置时返回空串。
func (g GlobalConfig) NotFoundPagePath() string {
	if g.StaticDir == "" || g.NotFoundPage == "" {
		return ""
	}
	return joinStatic(g.StaticDir, g.NotFoundPage)
}
