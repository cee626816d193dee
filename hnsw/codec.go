package hnsw

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"math/rand/v2"
	"os"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/arborvec/hnsw/structs"
)

const (
	magicHeader   uint32 = 0x484e5357 // "HNSW"
	formatVersion uint32 = 1

	// absentNeighborCount marks a node as not present on a given layer,
	// distinguishing that from "present with zero neighbors".
	absentNeighborCount uint32 = 0xFFFFFFFF

	noEntryPoint int32 = -1
)

// Save writes the index to w as a single binary blob: header, config
// block, node table, then per-layer adjacency. The snapshot's revision
// counter is incremented first, so two successive saves of the same
// in-memory index are distinguishable.
func (idx *Index) Save(w io.Writer) error {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	idx.revision++

	buf := new(bytes.Buffer)

	if err := writeHeader(buf, idx); err != nil {
		return err
	}
	if err := writeConfigBlock(buf, idx); err != nil {
		return err
	}
	if err := writeNodes(buf, idx); err != nil {
		return err
	}
	if err := writeAdjacency(buf, idx); err != nil {
		return err
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return wrapErr(ErrCorruptFormat, "writing index: "+err.Error())
	}

	idx.logger.Debug("index saved",
		zap.String("snapshot_id", idx.snapshotID.String()),
		zap.Uint64("revision", idx.revision),
		zap.Int("nodes", len(idx.Nodes)),
	)

	return nil
}

// SaveFile writes the index to a file at path, truncating it if it
// already exists.
func (idx *Index) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return wrapErr(ErrCorruptFormat, "creating snapshot file: "+err.Error())
	}
	defer f.Close()

	if err := idx.Save(f); err != nil {
		return err
	}
	return f.Close()
}

func writeHeader(w io.Writer, idx *Index) error {
	if err := binary.Write(w, binary.BigEndian, magicHeader); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, formatVersion); err != nil {
		return err
	}
	idBytes, err := idx.snapshotID.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.Write(idBytes); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, idx.revision)
}

func writeConfigBlock(w io.Writer, idx *Index) error {
	fields := []int32{
		int32(idx.M),
		int32(0), // reserved (historical Mmax slot, unused: Mmax == M above layer 0)
		int32(idx.Mmax0),
		int32(idx.EfConstruction),
		int32(idx.MaxLevel),
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.BigEndian, f); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.BigEndian, idx.mL); err != nil {
		return err
	}
	prune := byte(0)
	if idx.PruneExisting {
		prune = 1
	}
	if _, err := w.Write([]byte{prune}); err != nil {
		return err
	}

	dimension := uint32(idx.dimension)
	if err := binary.Write(w, binary.BigEndian, dimension); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(idx.Nodes))); err != nil {
		return err
	}

	entryID := noEntryPoint
	entryLevel := int32(-1)
	if idx.EntryPoint != nil {
		entryID = int32(idx.EntryPoint.ID)
		entryLevel = int32(idx.EntryPoint.Level)
	}
	if err := binary.Write(w, binary.BigEndian, entryID); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, entryLevel)
}

func writeNodes(w io.Writer, idx *Index) error {
	for _, n := range idx.Nodes {
		if err := binary.Write(w, binary.BigEndian, uint32(n.ID)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint32(n.Level)); err != nil {
			return err
		}
		for _, c := range n.Vector {
			if err := binary.Write(w, binary.BigEndian, c); err != nil {
				return err
			}
		}

		metaBytes, err := msgpack.Marshal(n.Metadata)
		if err != nil {
			return wrapErr(ErrCorruptFormat, "encoding node metadata: "+err.Error())
		}
		if err := binary.Write(w, binary.BigEndian, uint32(len(metaBytes))); err != nil {
			return err
		}
		if _, err := w.Write(metaBytes); err != nil {
			return err
		}
	}
	return nil
}

func writeAdjacency(w io.Writer, idx *Index) error {
	for level := 0; level < len(idx.layerCount); level++ {
		for _, n := range idx.Nodes {
			if level > n.Level {
				if err := binary.Write(w, binary.BigEndian, absentNeighborCount); err != nil {
					return err
				}
				continue
			}

			neighbors := n.Neighbors[level]
			if err := binary.Write(w, binary.BigEndian, uint32(len(neighbors))); err != nil {
				return err
			}
			for _, nb := range neighbors {
				if err := binary.Write(w, binary.BigEndian, uint32(nb.ID)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Load reads an index previously written by Save from r. It validates the
// header, config block, and the tower-property invariant (a node's
// adjacency is absent on every layer above its own Level) before
// returning, rejecting a truncated or structurally invalid blob with
// ErrCorruptFormat rather than a partially built index.
func Load(r io.Reader) (*Index, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, wrapErr(ErrCorruptFormat, "reading magic: "+err.Error())
	}
	if magic != magicHeader {
		return nil, wrapErr(ErrCorruptFormat, "bad magic header")
	}
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, wrapErr(ErrCorruptFormat, "reading version: "+err.Error())
	}
	if version != formatVersion {
		return nil, wrapErr(ErrCorruptFormat, "unsupported format version")
	}

	idBytes := make([]byte, 16)
	if _, err := io.ReadFull(r, idBytes); err != nil {
		return nil, wrapErr(ErrCorruptFormat, "reading snapshot id: "+err.Error())
	}
	snapshotID, err := uuid.FromBytes(idBytes)
	if err != nil {
		return nil, wrapErr(ErrCorruptFormat, "invalid snapshot id: "+err.Error())
	}

	var revision uint64
	if err := binary.Read(r, binary.BigEndian, &revision); err != nil {
		return nil, wrapErr(ErrCorruptFormat, "reading revision: "+err.Error())
	}

	cfg, mL, pruneExisting, err := readConfigBlock(r)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, wrapErr(ErrCorruptFormat, "invalid config block: "+err.Error())
	}

	var dimension, nodeCount uint32
	if err := binary.Read(r, binary.BigEndian, &dimension); err != nil {
		return nil, wrapErr(ErrCorruptFormat, "reading dimension: "+err.Error())
	}
	if err := binary.Read(r, binary.BigEndian, &nodeCount); err != nil {
		return nil, wrapErr(ErrCorruptFormat, "reading node count: "+err.Error())
	}

	var entryID, entryLevel int32
	if err := binary.Read(r, binary.BigEndian, &entryID); err != nil {
		return nil, wrapErr(ErrCorruptFormat, "reading entry point: "+err.Error())
	}
	if err := binary.Read(r, binary.BigEndian, &entryLevel); err != nil {
		return nil, wrapErr(ErrCorruptFormat, "reading entry point level: "+err.Error())
	}

	nodes, err := readNodes(r, int(nodeCount), int(dimension))
	if err != nil {
		return nil, err
	}

	maxLevel := 0
	for _, n := range nodes {
		if n.Level > maxLevel {
			maxLevel = n.Level
		}
	}
	layerCount, err := readAdjacency(r, nodes, maxLevel)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		Nodes:          nodes,
		M:              cfg.M,
		Mmax0:          cfg.Mmax0,
		mL:             mL,
		EfConstruction: cfg.EfConstruction,
		MaxLevel:       cfg.MaxLevel,
		DistanceFunc:   EuclideanDistance,
		PruneExisting:  pruneExisting,
		randFunc:       rand.Float64,
		dimension:      int(dimension),
		dimensionSet:   dimension > 0 || nodeCount > 0,
		layerCount:     layerCount,
		snapshotID:     snapshotID,
		revision:       revision,
		heapPool:       structs.NewHeapPoolManager(),
		nodeHeapPool:   structs.NewNodeHeapPool(),
		visitedPool:    structs.NewVisitedPool(),
		logger:         zap.NewNop(),
	}

	if entryID != noEntryPoint {
		if int(entryID) < 0 || int(entryID) >= len(nodes) {
			return nil, wrapErr(ErrCorruptFormat, "entry point id out of range")
		}
		idx.EntryPoint = nodes[entryID]
		if idx.EntryPoint.Level != int(entryLevel) {
			return nil, wrapErr(ErrCorruptFormat, "entry point level mismatch")
		}
	}

	return idx, nil
}

// LoadFile reads an index previously written by SaveFile. The returned
// index logs to a no-op logger and uses a fresh, unseeded PRNG; callers
// that need a seeded or logged index after load should copy those fields
// in manually.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapErr(ErrCorruptFormat, "opening snapshot file: "+err.Error())
	}
	defer f.Close()

	return Load(f)
}

func readConfigBlock(r io.Reader) (Config, float64, bool, error) {
	var m, reserved, mmax0, efConstruction, maxLevel int32
	for _, f := range []*int32{&m, &reserved, &mmax0, &efConstruction, &maxLevel} {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return Config{}, 0, false, wrapErr(ErrCorruptFormat, "reading config field: "+err.Error())
		}
	}

	var mL float64
	if err := binary.Read(r, binary.BigEndian, &mL); err != nil {
		return Config{}, 0, false, wrapErr(ErrCorruptFormat, "reading mL: "+err.Error())
	}

	pruneByte := make([]byte, 1)
	if _, err := io.ReadFull(r, pruneByte); err != nil {
		return Config{}, 0, false, wrapErr(ErrCorruptFormat, "reading prune flag: "+err.Error())
	}

	cfg := Config{
		M:              int(m),
		Mmax0:          int(mmax0),
		EfConstruction: int(efConstruction),
		MaxLevel:       int(maxLevel),
		DistanceFunc:   EuclideanDistance,
	}
	return cfg, mL, pruneByte[0] != 0, nil
}

func readNodes(r io.Reader, nodeCount, dimension int) ([]*structs.Node, error) {
	nodes := make([]*structs.Node, nodeCount)

	for i := 0; i < nodeCount; i++ {
		var id, level uint32
		if err := binary.Read(r, binary.BigEndian, &id); err != nil {
			return nil, wrapErr(ErrCorruptFormat, "reading node id: "+err.Error())
		}
		if err := binary.Read(r, binary.BigEndian, &level); err != nil {
			return nil, wrapErr(ErrCorruptFormat, "reading node level: "+err.Error())
		}
		if int(id) != i {
			return nil, wrapErr(ErrCorruptFormat, "node id out of order")
		}

		vector := make([]float32, dimension)
		for d := 0; d < dimension; d++ {
			if err := binary.Read(r, binary.BigEndian, &vector[d]); err != nil {
				return nil, wrapErr(ErrCorruptFormat, "reading vector component: "+err.Error())
			}
			if math.IsNaN(float64(vector[d])) {
				return nil, wrapErr(ErrCorruptFormat, "vector component is NaN")
			}
		}

		var metaLen uint32
		if err := binary.Read(r, binary.BigEndian, &metaLen); err != nil {
			return nil, wrapErr(ErrCorruptFormat, "reading metadata length: "+err.Error())
		}
		metaBytes := make([]byte, metaLen)
		if _, err := io.ReadFull(r, metaBytes); err != nil {
			return nil, wrapErr(ErrCorruptFormat, "reading metadata: "+err.Error())
		}

		var metadata map[string]any
		if len(metaBytes) > 0 {
			if err := msgpack.Unmarshal(metaBytes, &metadata); err != nil {
				return nil, wrapErr(ErrCorruptFormat, "decoding metadata: "+err.Error())
			}
		}

		nodes[i] = &structs.Node{
			ID:        int(id),
			Vector:    vector,
			Metadata:  metadata,
			Level:     int(level),
			Neighbors: make([][]*structs.Node, level+1),
		}
	}

	return nodes, nil
}

func readAdjacency(r io.Reader, nodes []*structs.Node, maxLevel int) ([]int, error) {
	layerCount := make([]int, maxLevel+1)

	// neighbor lists reference other nodes by id; collect ids first and
	// resolve pointers once every node exists.
	layerIDs := make([][][]uint32, maxLevel+1)

	for level := 0; level <= maxLevel; level++ {
		layerIDs[level] = make([][]uint32, len(nodes))
		for _, n := range nodes {
			var count uint32
			if err := binary.Read(r, binary.BigEndian, &count); err != nil {
				return nil, wrapErr(ErrCorruptFormat, "reading neighbor count: "+err.Error())
			}

			if count == absentNeighborCount {
				if level <= n.Level {
					return nil, wrapErr(ErrCorruptFormat, "node marked absent on a layer within its level")
				}
				continue
			}
			if level > n.Level {
				return nil, wrapErr(ErrCorruptFormat, "node present above its own level")
			}

			layerCount[level]++
			ids := make([]uint32, count)
			for i := range ids {
				if err := binary.Read(r, binary.BigEndian, &ids[i]); err != nil {
					return nil, wrapErr(ErrCorruptFormat, "reading neighbor id: "+err.Error())
				}
				if int(ids[i]) >= len(nodes) {
					return nil, wrapErr(ErrCorruptFormat, "neighbor id out of range")
				}
			}
			layerIDs[level][n.ID] = ids
		}
	}

	for level := 0; level <= maxLevel; level++ {
		for _, n := range nodes {
			if level > n.Level {
				continue
			}
			ids := layerIDs[level][n.ID]
			list := make([]*structs.Node, len(ids))
			for i, id := range ids {
				list[i] = nodes[id]
			}
			n.Neighbors[level] = list
		}
	}

	return layerCount, nil
}
