// Command hatbench drives insert, search, consolidation, and
// save/reload benchmarks against the hat package without depending on a
// real embedding model. Grounded on github.com/ic-timon/da-hvri's
// bench/main.go flag-based stage dispatcher.
package main

import (
	"flag"
	"log"

	"github.com/ic-timon/hat"
)

func main() {
	stage := flag.String("stage", "", "benchmark stage: insert|search|consolidate|roundtrip")
	dim := flag.Int("dim", 256, "vector dimensionality")
	metricName := flag.String("metric", "cosine", "similarity metric: cosine|dot")
	n := flag.Int("n", 100_000, "number of vectors to insert")
	k := flag.Int("k", 10, "top-k results per search query")
	beam := flag.Int("beam", 8, "beam width")
	persist := flag.String("persist", "", "file path used by the roundtrip stage")
	compress := flag.Bool("compress", false, "zstd-compress the saved file in the roundtrip stage")
	flag.Parse()

	metric, err := parseMetric(*metricName)
	if err != nil {
		log.Fatal(err)
	}
	cfg := hat.DefaultConfig()
	cfg.BeamWidth = *beam

	opts := stageOpts{dim: *dim, metric: metric, n: *n, k: *k, cfg: cfg, persist: *persist, compress: *compress}

	switch *stage {
	case "insert":
		runInsert(opts)
	case "search":
		runSearch(opts)
	case "consolidate":
		runConsolidate(opts)
	case "roundtrip":
		if opts.persist == "" {
			log.Fatal("roundtrip stage requires -persist <path>")
		}
		runRoundtrip(opts)
	default:
		log.Fatal("specify -stage insert|search|consolidate|roundtrip")
	}
}

func parseMetric(name string) (hat.Metric, error) {
	switch name {
	case "cosine":
		return hat.Cosine, nil
	case "dot":
		return hat.Dot, nil
	default:
		return 0, errUnknownMetric(name)
	}
}

type errUnknownMetric string

func (e errUnknownMetric) Error() string { return "hatbench: unknown metric " + string(e) }

type stageOpts struct {
	dim      int
	metric   hat.Metric
	n        int
	k        int
	cfg      *hat.Config
	persist  string
	compress bool
}
