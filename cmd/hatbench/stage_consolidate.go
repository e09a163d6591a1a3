package main

import (
	"fmt"
	"time"

	"github.com/ic-timon/hat"
	"github.com/ic-timon/hat/cmd/hatbench/gen"
)

// runConsolidate builds a deliberately fragmented tree (many small
// documents, so Medium's split/merge and Deep's prune sweep have real
// work to do), then drives each phase to completion, reporting the
// number of Consolidate calls and containers touched per phase.
func runConsolidate(opts stageOpts) {
	vecs := gen.RandomVectors(opts.n, opts.dim, 99)

	idx := hat.NewIndex(opts.dim, opts.metric, opts.cfg)
	for i, v := range vecs {
		if i%20 == 0 {
			idx.NewDocument()
		}
		if i%800 == 0 {
			idx.NewSession()
		}
		if _, err := idx.Add(v); err != nil {
			panic(err)
		}
	}

	for _, phase := range []hat.ConsolidationPhase{hat.PhaseLight, hat.PhaseMedium, hat.PhaseDeep, hat.PhaseFull} {
		t0 := time.Now()
		calls, touched := 0, 0
		for {
			report, err := idx.Consolidate(phase)
			if err != nil {
				panic(err)
			}
			calls++
			touched += report.Visited
			if report.Done {
				break
			}
		}
		fmt.Printf("consolidate: phase=%s calls=%d containersTouched=%d dur=%s\n", phase, calls, touched, time.Since(t0))
	}

	stats := idx.Stats()
	fmt.Printf("consolidate: final sessions=%d documents=%d chunks=%d totalPoints=%d\n",
		stats.Sessions, stats.Documents, stats.Chunks, stats.TotalPoints)
}
