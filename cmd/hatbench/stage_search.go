package main

import (
	"fmt"
	"time"

	"github.com/ic-timon/hat"
	"github.com/ic-timon/hat/cmd/hatbench/gen"
	"github.com/ic-timon/hat/cmd/hatbench/metrics"
)

const searchQueryCount = 1000

// runSearch builds an index of opts.n vectors, then issues
// searchQueryCount sequential queries and reports latency percentiles
// and QPS.
func runSearch(opts stageOpts) {
	vecs := gen.RandomVectors(opts.n+searchQueryCount, opts.dim, 7)
	queries := vecs[opts.n:]
	vecs = vecs[:opts.n]

	idx := hat.NewIndex(opts.dim, opts.metric, opts.cfg)
	for i, v := range vecs {
		if i%200 == 0 {
			idx.NewDocument()
		}
		if _, err := idx.Add(v); err != nil {
			panic(err)
		}
	}

	durations := make([]time.Duration, len(queries))
	t0 := time.Now()
	for i, q := range queries {
		t1 := time.Now()
		if _, err := idx.Search(q, opts.k); err != nil {
			panic(err)
		}
		durations[i] = time.Since(t1)
	}
	elapsed := time.Since(t0).Seconds()

	stats := metrics.FromDurations(durations)
	fmt.Printf("search: n=%d dim=%d beam=%d k=%d qps=%.0f p50=%.3fms p95=%.3fms p99=%.3fms\n",
		opts.n, opts.dim, opts.cfg.BeamWidth, opts.k,
		float64(len(queries))/elapsed, stats.P50Ms, stats.P95Ms, stats.P99Ms)
}
