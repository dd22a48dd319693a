package proxy

import (
	"github.com/pascaldekloe/metrics"
)

// 镜像计数按 mirror 标签区分实例，通过 /-/metrics 以 Prometheus 文本格式导出。
var (
	metricHits      = metrics.Must1LabelCounter("orbit_mirror_cache_hits_total", "mirror")
	metricMisses    = metrics.Must1LabelCounter("orbit_mirror_cache_misses_total", "mirror")
	metricFetches   = metrics.Must1LabelCounter("orbit_mirror_upstream_fetches_total", "mirror")
	metricRejects   = metrics.Must1LabelCounter("orbit_mirror_upstream_rejections_total", "mirror")
	metricFailures  = metrics.Must1LabelCounter("orbit_mirror_transport_failures_total", "mirror")
	metricEvictions = metrics.Must1LabelCounter("orbit_mirror_cache_evictions_total", "mirror")
)

func init() {
	metrics.MustHelp("orbit_mirror_cache_hits_total", "Number of mirror requests served from cache within TTL")
	metrics.MustHelp("orbit_mirror_cache_misses_total", "Number of resolved mirror requests without a fresh cache entry")
	metrics.MustHelp("orbit_mirror_upstream_fetches_total", "Number of upstream requests issued by the mirror")
	metrics.MustHelp("orbit_mirror_upstream_rejections_total", "Number of upstream responses outside 2xx")
	metrics.MustHelp("orbit_mirror_transport_failures_total", "Number of upstream fetches that failed to complete")
	metrics.MustHelp("orbit_mirror_cache_evictions_total", "Number of stale cache entries removed on read")
}

// mirrorCounters 是单个 Mirror 实例在全局 metrics 注册表中的计数器。
type mirrorCounters struct {
	hits      *metrics.Counter
	misses    *metrics.Counter
	fetches   *metrics.Counter
	rejects   *metrics.Counter
	failures  *metrics.Counter
	evictions *metrics.Counter
}

func newMirrorCounters(name string) mirrorCounters {
	return mirrorCounters{
		hits:      metricHits(name),
		misses:    metricMisses(name),
		fetches:   metricFetches(name),
		rejects:   metricRejects(name),
		failures:  metricFailures(name),
		evictions: metricEvictions(name),
	}
}

func (c mirrorCounters) snapshot() Stats {
	return Stats{
		Hits:      c.hits.Get(),
		Misses:    c.misses.Get(),
		Fetches:   c.fetches.Get(),
		Rejects:   c.rejects.Get(),
		Failures:  c.failures.Get(),
		Evictions: c.evictions.Get(),
	}
}
