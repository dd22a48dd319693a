package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// defaultMirrorBlock 是满足“至少一个 Mirror”校验的最小镜像表。
const defaultMirrorBlock = `
[[Mirror]]
Prefix = "/e/1/"
Origin = "https://raw.githubusercontent.com/qrs/x/fixy/"
`

func testConfigPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join("testdata", name)
}

// writeMirrorConfig 写入只包含全局键的临时配置，并追加默认镜像表。
func writeMirrorConfig(t *testing.T, globals string) string {
	t.Helper()
	content := strings.TrimSpace(globals) + "\n" + defaultMirrorBlock
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:      8080,
			CacheTTL:        Duration(time.Hour),
			UpstreamTimeout: Duration(time.Second),
			FetchStrategy:   FetchStrategyDirect,
			TunnelPrefix:    "/ca/",
		},
		Mirrors: []MirrorConfig{
			{Prefix: "/e/1/", Origin: "https://raw.githubusercontent.com/qrs/x/fixy/"},
		},
	}
}
