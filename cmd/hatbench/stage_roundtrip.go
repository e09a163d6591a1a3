package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/ic-timon/hat"
	"github.com/ic-timon/hat/cmd/hatbench/gen"
	"github.com/ic-timon/hat/store"
)

// runRoundtrip saves an index to opts.persist and reloads it, reporting
// save/load latency and file size. With -compress it wraps the stream in
// zstd; otherwise it reloads via a memory-mapped file, mirroring the
// teacher's mem-vs-mmap comparison in bench/run_stage_d.go.
func runRoundtrip(opts stageOpts) {
	vecs := gen.RandomVectors(opts.n, opts.dim, 1234)
	idx := hat.NewIndex(opts.dim, opts.metric, opts.cfg)
	for i, v := range vecs {
		if i%200 == 0 {
			idx.NewDocument()
		}
		if _, err := idx.Add(v); err != nil {
			panic(err)
		}
	}

	t0 := time.Now()
	if err := saveRoundtrip(idx, opts); err != nil {
		panic(err)
	}
	saveDur := time.Since(t0)

	info, err := os.Stat(opts.persist)
	if err != nil {
		panic(err)
	}

	t1 := time.Now()
	loaded, err := loadRoundtrip(opts)
	if err != nil {
		panic(err)
	}
	loadDur := time.Since(t1)

	if loaded.Len() != idx.Len() {
		panic(fmt.Sprintf("roundtrip point count mismatch: saved %d, loaded %d", idx.Len(), loaded.Len()))
	}

	fmt.Printf("roundtrip: n=%d dim=%d compress=%v fileBytes=%d saveDur=%s loadDur=%s\n",
		opts.n, opts.dim, opts.compress, info.Size(), saveDur, loadDur)
}

func saveRoundtrip(idx *hat.Index, opts stageOpts) error {
	f, err := os.Create(opts.persist)
	if err != nil {
		return err
	}
	defer f.Close()

	if !opts.compress {
		return idx.Save(f)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	if err := idx.Save(zw); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func loadRoundtrip(opts stageOpts) (*hat.Index, error) {
	if opts.compress {
		f, err := os.Open(opts.persist)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return hat.Load(zr, opts.cfg)
	}

	mm, err := store.OpenMmap(opts.persist)
	if err != nil {
		return nil, err
	}
	defer mm.Close()
	return hat.Load(bytes.NewReader(mm.Bytes()), opts.cfg)
}
