package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultListenPort = 8080
	defaultCacheTTL   = 30 * 24 * time.Hour
	defaultTimeout    = 30 * time.Second
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	// 兼容容器平台注入的 PORT 环境变量。
	if err := v.BindEnv("ListenPort", "PORT"); err != nil {
		return nil, fmt.Errorf("绑定环境变量失败: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Global.StaticDir != "" {
		absStatic, err := filepath.Abs(cfg.Global.StaticDir)
		if err != nil {
			return nil, fmt.Errorf("无法解析静态目录: %w", err)
		}
		cfg.Global.StaticDir = absStatic
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", defaultListenPort)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StaticDir", "./static")
	v.SetDefault("NotFoundPage", "404.html")
	v.SetDefault("CacheTTL", "720h")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("FetchStrategy", FetchStrategyDirect)
	v.SetDefault("OctetStreamExtensions", []string{".unityweb"})
	v.SetDefault("TunnelPrefix", "/ca/")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = defaultListenPort
	}
	if g.CacheTTL.DurationValue() == 0 {
		g.CacheTTL = Duration(defaultCacheTTL)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(defaultTimeout)
	}
	g.FetchStrategy = strings.ToLower(strings.TrimSpace(g.FetchStrategy))
	if g.FetchStrategy == "" {
		g.FetchStrategy = FetchStrategyDirect
	}
	for i, host := range g.TunnelAllowHosts {
		g.TunnelAllowHosts[i] = strings.ToLower(strings.TrimSpace(host))
	}
	for i, ext := range g.OctetStreamExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		g.OctetStreamExtensions[i] = ext
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

func joinStatic(dir, name string) string {
	return filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(name, "/")))
}
