package mirror

import (
	"errors"
	"strings"

	"github.com/orbit-hub/orbit/internal/config"
)

// Mapping 将字面路径前缀映射到上游 origin 基地址。
type Mapping struct {
	Prefix string `json:"prefix"`
	Origin string `json:"origin"`
}

// Resolver 按声明顺序解析路径，启动后只读，可被并发调用。
type Resolver struct {
	mappings []Mapping
}

// NewResolver 复制 mappings，调用方之后的修改不会影响解析结果。
func NewResolver(mappings []Mapping) (*Resolver, error) {
	if len(mappings) == 0 {
		return nil, errors.New("at least one mapping required")
	}
	for _, m := range mappings {
		if m.Prefix == "" {
			return nil, errors.New("mapping prefix required")
		}
	}
	return &Resolver{mappings: append([]Mapping(nil), mappings...)}, nil
}

// NewResolverFromConfig 由 [[Mirror]] 配置构建 Resolver。
func NewResolverFromConfig(mirrors []config.MirrorConfig) (*Resolver, error) {
	mappings := make([]Mapping, len(mirrors))
	for i, m := range mirrors {
		mappings[i] = Mapping{Prefix: m.Prefix, Origin: m.Origin}
	}
	return NewResolver(mappings)
}

// Resolve 返回第一个匹配前缀对应的上游 URL：origin + 去掉前缀后的剩余路径。
func (r *Resolver) Resolve(path string) (string, bool) {
	if m, ok := r.match(path); ok {
		return m.Origin + path[len(m.Prefix):], true
	}
	return "", false
}

// Handles 报告 path 是否落在任一镜像前缀下。
func (r *Resolver) Handles(path string) bool {
	_, ok := r.match(path)
	return ok
}

// Mappings 返回映射表副本，供诊断接口输出。
func (r *Resolver) Mappings() []Mapping {
	return append([]Mapping(nil), r.mappings...)
}

func (r *Resolver) match(path string) (Mapping, bool) {
	if r == nil {
		return Mapping{}, false
	}
	for _, m := range r.mappings {
		if strings.HasPrefix(path, m.Prefix) {
			return m, true
		}
	}
	return Mapping{}, false
}
