package main

import (
	"fmt"
	"time"

	"github.com/ic-timon/hat"
	"github.com/ic-timon/hat/cmd/hatbench/gen"
	"github.com/ic-timon/hat/cmd/hatbench/metrics"
)

// runInsert measures Add throughput and steady-state heap size for a
// single index build, a new document every 200 vectors and a new session
// every 4000, to exercise realistic tree fan-out rather than one gigantic
// document.
func runInsert(opts stageOpts) {
	vecs := gen.RandomVectors(opts.n, opts.dim, 42)

	metrics.GC()
	before := metrics.Take()

	idx := hat.NewIndex(opts.dim, opts.metric, opts.cfg)
	t0 := time.Now()
	for i, v := range vecs {
		if i%200 == 0 {
			idx.NewDocument()
		}
		if i%4000 == 0 {
			idx.NewSession()
		}
		if _, err := idx.Add(v); err != nil {
			panic(err)
		}
	}
	buildDur := time.Since(t0)

	metrics.GC()
	after := metrics.Take()

	stats := idx.Stats()
	fmt.Printf("insert: n=%d dim=%d dur=%s throughput=%.0f vec/s heapAlloc=%.1fMB sessions=%d documents=%d chunks=%d\n",
		opts.n, opts.dim, buildDur, float64(opts.n)/buildDur.Seconds(),
		float64(after.HeapAlloc-before.HeapAlloc)/(1<<20),
		stats.Sessions, stats.Documents, stats.Chunks)
}
