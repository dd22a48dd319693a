package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/orbit-hub/orbit/internal/cache"
	"github.com/orbit-hub/orbit/internal/mirror"
	"github.com/orbit-hub/orbit/internal/version"
)

// Outcome 描述一次镜像请求的三种结果。
type Outcome int

const (
	// OutcomeNotHandled 表示路径未命中前缀或上游返回非 2xx，调用方应继续后续 handler。
	OutcomeNotHandled Outcome = iota
	// OutcomeServed 表示已获得正文（缓存命中或回源成功）。
	OutcomeServed
	// OutcomeFailed 表示回源请求本身失败，需要返回 500。
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeServed:
		return "served"
	case OutcomeFailed:
		return "failed"
	default:
		return "not_handled"
	}
}

// Result 汇总 Fetch 的输出；Body 与缓存共享底层数组，调用方不得修改。
type Result struct {
	Outcome        Outcome
	Body           []byte
	ContentType    string
	Status         int
	Upstream       string
	UpstreamStatus int
	CacheHit       bool
	Shared         bool
	Err            error
}

// MirrorOptions 是构建 Mirror 所需的依赖，全部由启动流程显式注入。
type MirrorOptions struct {
	// Name 是 metrics 中的 mirror 标签值，为空时生成随机值。
	Name                  string
	Resolver              *mirror.Resolver
	Store                 cache.Store
	Client                *http.Client
	TTL                   time.Duration
	Strategy              FetchStrategy
	OctetStreamExtensions []string
	Logger                *logrus.Logger
}

// Mirror 实现 "缓存命中 → 回源 → 写缓存" 的镜像流程。
type Mirror struct {
	resolver *mirror.Resolver
	store    cache.Store
	client   *http.Client
	ttl      time.Duration
	strategy FetchStrategy
	types    ContentTypes
	logger   *logrus.Logger
	now      func() time.Time
	name     string
	counters mirrorCounters
}

// Stats 是 Mirror 的运行计数，供 /-/mirrors 输出。
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Fetches   uint64 `json:"upstream_fetches"`
	Rejects   uint64 `json:"upstream_rejections"`
	Failures  uint64 `json:"transport_failures"`
	Evictions uint64 `json:"evictions"`
}

// NewMirror 校验依赖并构建 Mirror；Strategy 为空时使用 direct。
func NewMirror(opts MirrorOptions) (*Mirror, error) {
	if opts.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if opts.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if opts.Client == nil {
		return nil, errors.New("http client is required")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("invalid cache ttl: %s", opts.TTL)
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	strategy := opts.Strategy
	if strategy == nil {
		strategy = directStrategy{}
	}
	name := opts.Name
	if name == "" {
		name = uuid.NewString()
	}
	return &Mirror{
		resolver: opts.Resolver,
		store:    opts.Store,
		client:   opts.Client,
		ttl:      opts.TTL,
		strategy: strategy,
		types:    NewContentTypes(opts.OctetStreamExtensions),
		logger:   opts.Logger,
		now:      time.Now,
		name:     name,
		counters: newMirrorCounters(name),
	}, nil
}

// Handles 报告 path 是否落在镜像前缀下；缓存条目只会为这些路径产生。
func (m *Mirror) Handles(path string) bool {
	return m.resolver.Handles(path)
}

// Mappings 返回前缀映射表副本。
func (m *Mirror) Mappings() []mirror.Mapping {
	return m.resolver.Mappings()
}

// Resolve 暴露前缀解析结果，供诊断接口使用。
func (m *Mirror) Resolve(path string) (string, bool) {
	return m.resolver.Resolve(path)
}

// TTL 返回缓存有效期。
func (m *Mirror) TTL() time.Duration {
	return m.ttl
}

// StrategyName 返回当前回源策略名称。
func (m *Mirror) StrategyName() string {
	return m.strategy.Name()
}

// StoreStats 返回缓存规模。
func (m *Mirror) StoreStats() cache.StoreStats {
	return m.store.Stats()
}

// Name 返回该实例在 metrics 中的 mirror 标签值。
func (m *Mirror) Name() string {
	return m.name
}

// Stats 返回本实例计数器的快照。
func (m *Mirror) Stats() Stats {
	return m.counters.snapshot()
}

// Fetch 返回 path 对应的资源。TTL 内命中直接返回；过期条目在读取时惰性删除。
// 同一路径的并发未命中是否合并回源由 FetchStrategy 决定。
func (m *Mirror) Fetch(ctx context.Context, path string) Result {
	if entry, ok := m.lookup(path); ok {
		m.counters.hits.Add(1)
		return Result{
			Outcome:     OutcomeServed,
			Body:        entry.Payload,
			ContentType: entry.ContentType,
			Status:      fiber.StatusOK,
			CacheHit:    true,
		}
	}

	target, ok := m.resolver.Resolve(path)
	if !ok {
		return Result{Outcome: OutcomeNotHandled}
	}
	m.counters.misses.Add(1)

	if ctx == nil {
		ctx = context.Background()
	}
	return m.strategy.Do(path, func() Result {
		return m.fetchUpstream(ctx, path, target)
	})
}

func (m *Mirror) lookup(path string) (cache.Entry, bool) {
	entry, ok := m.store.Get(path)
	if !ok {
		return cache.Entry{}, false
	}
	now := m.now()
	if entry.FreshAt(now, m.ttl) {
		return entry, true
	}
	if m.store.Evict(path, entry.InsertedAt) {
		m.counters.evictions.Add(1)
		m.logger.WithFields(logrus.Fields{
			"action": "cache_evict",
			"path":   path,
			"age":    entry.Age(now).String(),
		}).Debug("cache_entry_expired")
	}
	return cache.Entry{}, false
}

func (m *Mirror) fetchUpstream(ctx context.Context, path, target string) Result {
	m.counters.fetches.Add(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return m.failed(target, 0, err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := m.client.Do(req)
	if err != nil {
		return m.failed(target, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		m.counters.rejects.Add(1)
		// 与前缀未命中保持一致，交由下游 handler 渲染 404。
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Result{
			Outcome:        OutcomeNotHandled,
			Upstream:       target,
			UpstreamStatus: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return m.failed(target, resp.StatusCode, fmt.Errorf("read upstream body: %w", err))
	}

	entry := cache.Entry{
		Key:         path,
		Payload:     body,
		ContentType: m.types.Detect(target),
		InsertedAt:  m.now(),
	}
	if err := m.store.Put(entry); err != nil {
		m.logger.WithError(err).WithField("path", path).Warn("cache_put_failed")
	}

	return Result{
		Outcome:        OutcomeServed,
		Body:           entry.Payload,
		ContentType:    entry.ContentType,
		Status:         fiber.StatusOK,
		Upstream:       target,
		UpstreamStatus: resp.StatusCode,
	}
}

func (m *Mirror) failed(target string, upstreamStatus int, err error) Result {
	m.counters.failures.Add(1)
	return Result{
		Outcome:        OutcomeFailed,
		Status:         fiber.StatusInternalServerError,
		Upstream:       target,
		UpstreamStatus: upstreamStatus,
		Err:            err,
	}
}
