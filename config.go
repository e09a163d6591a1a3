package hat

import (
	"log/slog"
	"math/rand"
	"time"
)

// Config holds index parameters, all fixed at construction. Changing any
// of them requires building a new Index.
type Config struct {
	// BeamWidth is the number of candidates retained per level during
	// beam search. Default 8.
	BeamWidth int
	// MaxChunkPoints is the point count at which a new chunk is started
	// on the next insert. Default 10.
	MaxChunkPoints int
	// MaxDocChunks is the soft limit used by the consolidation split
	// policy. Default 8.
	MaxDocChunks int
	// CentroidDriftTau bounds sparse centroid propagation: an ancestor's
	// centroid update is skipped once the exact-update delta's norm
	// drops below this threshold. Default 0.01.
	CentroidDriftTau float64
	// ConsolidationPhaseBudget caps the number of containers touched per
	// incremental consolidate call. Default 64.
	ConsolidationPhaseBudget int
	// Logger receives structured diagnostics from consolidation and
	// persistence. Defaults to slog.Default().
	Logger *slog.Logger
	// RandSource seeds the k=2 split/merge clustering used by Medium
	// consolidation. Defaults to a source seeded from the wall clock at
	// construction time.
	RandSource *rand.Rand
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BeamWidth:                8,
		MaxChunkPoints:           10,
		MaxDocChunks:             8,
		CentroidDriftTau:         0.01,
		ConsolidationPhaseBudget: 64,
	}
}

// orDefault normalizes a possibly-nil or partially-zero Config, matching
// the teacher's Config.OrDefault pattern.
func (c *Config) orDefault() *Config {
	if c == nil {
		c = DefaultConfig()
	}
	if c.BeamWidth <= 0 {
		c.BeamWidth = 8
	}
	if c.MaxChunkPoints <= 0 {
		c.MaxChunkPoints = 10
	}
	if c.MaxDocChunks <= 0 {
		c.MaxDocChunks = 8
	}
	if c.CentroidDriftTau < 0 {
		c.CentroidDriftTau = 0.01
	}
	if c.ConsolidationPhaseBudget <= 0 {
		c.ConsolidationPhaseBudget = 64
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.RandSource == nil {
		c.RandSource = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c
}
