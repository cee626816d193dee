// Package hnsw implements a Hierarchical Navigable Small World graph: an
// approximate nearest-neighbor index over dense float32 vectors, supporting
// incremental insertion, top-k Euclidean search, and persistence.
package hnsw

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/arborvec/hnsw/structs"
)

// Index is a self-contained HNSW graph. The zero value is not usable; build
// one with New. Insert is the only mutator and must not be called
// concurrently with itself or with Search; Search is read-only and safe for
// concurrent use against a stable graph.
type Index struct {
	// Nodes holds every inserted node, indexed by ID.
	Nodes []*structs.Node

	// EntryPoint is the node at the top of the hierarchy. Nil for an
	// empty index.
	EntryPoint *structs.Node

	// M is the max neighbors per node on layers > 0.
	M int

	// Mmax0 is the max neighbors per node on layer 0 (2*M by default).
	Mmax0 int

	// mL is the level-sampling normalization factor, 1/ln(M).
	mL float64

	// EfConstruction is the beam width used during insertion layer
	// search.
	EfConstruction int

	// MaxLevel caps the sampled level so the layer stack can't grow
	// unboundedly on a pathological draw.
	MaxLevel int

	// DistanceFunc computes the distance between two vectors. Only
	// relative ordering is required to match true Euclidean distance.
	DistanceFunc func([]float32, []float32) float32

	// PruneExisting selects the degree-bookkeeping policy: false (default)
	// leaves an existing neighbor's adjacency list unpruned after a new
	// bidirectional edge is added, so it may exceed its budget and is
	// never trimmed back; true re-prunes it back down to budget via selectNeighbours
	// as soon as it overflows.
	PruneExisting bool

	randFunc func() float64

	dimension    int
	dimensionSet bool

	// layerCount[l] is the number of nodes present on layer l. Used to
	// detect "layer currently contains only the new node" during
	// insertion, so Insert can skip a layer-connect step that would have
	// nothing to connect to.
	layerCount []int

	snapshotID uuid.UUID
	revision   uint64

	heapPool     *structs.HeapPoolManager
	nodeHeapPool *structs.NodeHeapPool
	visitedPool  *structs.VisitedPool

	logger *zap.Logger

	mutex sync.RWMutex
}

// Config holds the configuration parameters for Index construction.
type Config struct {
	// M is the number of established connections per node on layers > 0.
	M int

	// Mmax0 is the max neighbors per node on layer 0 (conventionally 2*M).
	Mmax0 int

	// EfConstruction controls construction quality vs time trade-off.
	EfConstruction int

	// MaxLevel caps the sampled level for any node.
	MaxLevel int

	// DistanceFunc is the distance function to use.
	DistanceFunc func([]float32, []float32) float32

	// Seed, if non-nil, makes level sampling reproducible: the same
	// seed and insertion order always yield the same graph.
	Seed *uint64

	// PruneExisting selects the degree-bookkeeping policy; see
	// Index.PruneExisting.
	PruneExisting bool

	// Logger receives structured lifecycle events. Defaults to a no-op
	// logger when nil.
	Logger *zap.Logger
}

// DefaultConfig returns a Config with reasonable general-purpose
// defaults: M=24, Mmax0=48, EfConstruction=200, mL=1/ln(M).
func DefaultConfig() Config {
	return Config{
		M:              24,
		Mmax0:          48,
		EfConstruction: 200,
		MaxLevel:       16,
		DistanceFunc:   EuclideanDistance,
	}
}

// New creates a new Index with the given configuration. Returns
// ErrInvalidParameter (aggregating every violated constraint) if the
// configuration is invalid.
func New(cfg Config) (*Index, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	randFunc := rand.Float64
	if cfg.Seed != nil {
		rng := rand.New(rand.NewPCG(*cfg.Seed, *cfg.Seed))
		randFunc = rng.Float64
	}

	idx := &Index{
		M:              cfg.M,
		Mmax0:          cfg.Mmax0,
		mL:             1 / math.Log(float64(cfg.M)),
		EfConstruction: cfg.EfConstruction,
		MaxLevel:       cfg.MaxLevel,
		DistanceFunc:   cfg.DistanceFunc,
		PruneExisting:  cfg.PruneExisting,
		randFunc:       randFunc,
		snapshotID:     uuid.New(),
		heapPool:       structs.NewHeapPoolManager(),
		nodeHeapPool:   structs.NewNodeHeapPool(),
		visitedPool:    structs.NewVisitedPool(),
		logger:         logger,
	}

	logger.Debug("hnsw index constructed",
		zap.Int("m", idx.M),
		zap.Int("mmax0", idx.Mmax0),
		zap.Int("ef_construction", idx.EfConstruction),
		zap.String("snapshot_id", idx.snapshotID.String()),
	)

	return idx, nil
}

func validateConfig(cfg Config) error {
	var err error
	if cfg.M < 2 {
		err = multierr.Append(err, errInvalidParam("M must be >= 2"))
	}
	if cfg.Mmax0 <= 0 {
		err = multierr.Append(err, errInvalidParam("Mmax0 must be positive"))
	}
	if cfg.EfConstruction <= 0 {
		err = multierr.Append(err, errInvalidParam("EfConstruction must be positive"))
	}
	if cfg.MaxLevel <= 0 {
		err = multierr.Append(err, errInvalidParam("MaxLevel must be positive"))
	}
	if cfg.DistanceFunc == nil {
		err = multierr.Append(err, errInvalidParam("DistanceFunc must be provided"))
	}
	return err
}

// RandomLevel samples a level for a new node: l = floor(-ln(u) * mL) for
// u ~ Uniform(0,1), capped at MaxLevel. u=0 would make ln(u) diverge; when
// the source returns exactly 0 (or NaN) it is resampled, so
// the anomaly never surfaces to the caller.
func (idx *Index) RandomLevel() int {
	u := idx.randFunc()
	for u <= 0 || math.IsNaN(u) {
		u = idx.randFunc()
	}

	level := int(-math.Log(u) * idx.mL)
	if level > idx.MaxLevel {
		level = idx.MaxLevel
	}
	return level
}

func (idx *Index) distance(a, b []float32) float32 {
	return idx.DistanceFunc(a, b)
}
