package proxy

import (
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/orbit-hub/orbit/internal/config"
)

// FetchStrategy 决定同一路径的并发未命中如何回源。
type FetchStrategy interface {
	Name() string
	Do(key string, fetch func() Result) Result
}

// NewFetchStrategy 根据配置名称构建策略。
func NewFetchStrategy(name string) (FetchStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", config.FetchStrategyDirect:
		return directStrategy{}, nil
	case config.FetchStrategySingleflight:
		return &singleflightStrategy{}, nil
	default:
		return nil, fmt.Errorf("unsupported fetch strategy: %s", name)
	}
}

// directStrategy 每个请求各自回源，后写入者覆盖先写入者。
type directStrategy struct{}

func (directStrategy) Name() string { return config.FetchStrategyDirect }

func (directStrategy) Do(_ string, fetch func() Result) Result {
	return fetch()
}

// singleflightStrategy 让同一路径的并发请求等待同一次回源并共享结果。
// 共享结果使用首个请求的 context，首个请求取消时其余等待者一并失败。
type singleflightStrategy struct {
	group singleflight.Group
}

func (s *singleflightStrategy) Name() string { return config.FetchStrategySingleflight }

func (s *singleflightStrategy) Do(key string, fetch func() Result) Result {
	value, _, shared := s.group.Do(key, func() (interface{}, error) {
		return fetch(), nil
	})
	result, _ := value.(Result)
	result.Shared = shared
	return result
}
