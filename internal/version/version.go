// Package version 保存构建时注入的版本信息。
package version

import "fmt"

// Version/Commit 通过 -ldflags "-X github.com/orbit-hub/orbit/internal/version.Version=..." 注入。
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// Full 返回 CLI --version 与隧道清单使用的完整版本串。
func Full() string {
	return fmt.Sprintf("orbit %s (%s)", Version, Commit)
}

// UserAgent 是镜像回源请求携带的 User-Agent。
func UserAgent() string {
	return "orbit/" + Version
}
