package vectorindex

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/renameio"
	"github.com/viant/vec/search"

	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

const (
	GraphFileName   = "vectors.hnsw"
	MappingFileName = "id-mapping.json"

	DefaultMaxElements    = 100000
	DefaultM              = 16
	DefaultEfConstruction = 200
	DefaultEfSearch       = 50

	// graphSeed keeps level assignment reproducible across runs.
	graphSeed = 42
)

// Config is fixed for the lifetime of an Index.
type Config struct {
	Dimension      int
	MaxElements    int
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultConfig returns the default build parameters for dim-sized vectors.
func DefaultConfig(dim int) Config {
	return Config{
		Dimension:      dim,
		MaxElements:    DefaultMaxElements,
		M:              DefaultM,
		EfConstruction: DefaultEfConstruction,
		EfSearch:       DefaultEfSearch,
	}
}

func (c Config) validate() error {
	switch {
	case c.Dimension <= 0:
		return fmt.Errorf("%w: dimension must be positive", types.ErrInvalidInput)
	case c.MaxElements <= 0:
		return fmt.Errorf("%w: max elements must be positive", types.ErrInvalidInput)
	case c.M <= 0 || c.EfConstruction <= 0 || c.EfSearch <= 0:
		return fmt.Errorf("%w: M, efConstruction and efSearch must be positive", types.ErrInvalidInput)
	}
	return nil
}

// mapping is the sidecar file written next to the graph blob.
type mapping struct {
	IDToIndex    map[string]int `json:"idToIndex"`
	IndexToID    map[int]string `json:"indexToId"`
	CurrentIndex int            `json:"currentIndex"`
	Dimension    int            `json:"dimension"`
	M            int            `json:"m"`
	EfConstruct  int            `json:"efConstruction"`
}

// Match is a nearest-neighbour hit. Score is cosine similarity in [-1, 1].
type Match struct {
	ID    string
	Score float64
}

// Index is an HNSW graph keyed by slot number plus the bidirectional
// mapping between slots and document IDs.
//
// Slots are handed out monotonically and never reused. Removing a document
// drops its mapping only; the vector stays in the graph as a dead slot
// until Reset and re-insertion reclaim it.
type Index struct {
	mu       sync.RWMutex
	cfg      Config
	dir      string
	graph    *hnsw.Graph[int]
	idToSlot map[string]int
	slotToID map[int]string
	next     int
}

// New creates an empty index persisted under dir.
func New(dir string, cfg Config) (*Index, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	ix := &Index{cfg: cfg, dir: dir}
	ix.resetLocked()
	return ix, nil
}

func (ix *Index) newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = ix.cfg.M
	g.EfSearch = ix.cfg.EfSearch
	g.Distance = hnsw.CosineDistance
	g.Rng = rand.New(rand.NewSource(graphSeed))
	return g
}

func (ix *Index) resetLocked() {
	ix.graph = ix.newGraph()
	ix.idToSlot = make(map[string]int)
	ix.slotToID = make(map[int]string)
	ix.next = 0
}

// Config returns the build parameters.
func (ix *Index) Config() Config {
	return ix.cfg
}

// GraphPath returns the location of the binary graph blob.
func (ix *Index) GraphPath() string {
	return filepath.Join(ix.dir, GraphFileName)
}

// MappingPath returns the location of the slot mapping file.
func (ix *Index) MappingPath() string {
	return filepath.Join(ix.dir, MappingFileName)
}

// Reset discards every vector and mapping entry.
func (ix *Index) Reset() {
	ix.mu.Lock()
	ix.resetLocked()
	ix.mu.Unlock()
}

// Load restores the graph and mapping from disk. Missing files yield an
// empty index. On any error the index is left empty, and the error wraps
// ErrDimensionMismatch, ErrInconsistentIndex or ErrStorage so the caller
// can decide whether to rebuild.
func (ix *Index) Load() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.resetLocked()

	m, mapErr := readMapping(ix.MappingPath())
	graphData, graphErr := os.ReadFile(ix.GraphPath())

	mapMissing := errors.Is(mapErr, fs.ErrNotExist)
	graphMissing := errors.Is(graphErr, fs.ErrNotExist)
	switch {
	case mapMissing && graphMissing:
		return nil
	case mapMissing != graphMissing:
		return fmt.Errorf("%w: only one of %s and %s exists", types.ErrInconsistentIndex, GraphFileName, MappingFileName)
	case mapErr != nil:
		return mapErr
	case graphErr != nil:
		return fmt.Errorf("%w: read %s: %w", types.ErrStorage, ix.GraphPath(), graphErr)
	}

	if m.Dimension != 0 && m.Dimension != ix.cfg.Dimension {
		return fmt.Errorf("%w: persisted index has %d dimensions, configured %d",
			types.ErrDimensionMismatch, m.Dimension, ix.cfg.Dimension)
	}

	graph := ix.newGraph()
	if len(graphData) > 0 {
		if err := graph.Import(bytes.NewReader(graphData)); err != nil {
			return fmt.Errorf("%w: import graph: %w", types.ErrInconsistentIndex, err)
		}
		graph.EfSearch = ix.cfg.EfSearch
	}

	if graph.Len() > 0 && graph.Dims() != ix.cfg.Dimension {
		return fmt.Errorf("%w: persisted graph has %d dimensions, configured %d",
			types.ErrDimensionMismatch, graph.Dims(), ix.cfg.Dimension)
	}
	if err := checkMapping(m, graph.Len()); err != nil {
		return err
	}

	ix.graph = graph
	ix.idToSlot = m.IDToIndex
	ix.slotToID = m.IndexToID
	ix.next = m.CurrentIndex
	return nil
}

func readMapping(path string) (*mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read %s: %w", types.ErrStorage, path, err)
	}
	var m mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", types.ErrInconsistentIndex, path, err)
	}
	if m.IDToIndex == nil {
		m.IDToIndex = make(map[string]int)
	}
	if m.IndexToID == nil {
		m.IndexToID = make(map[int]string)
	}
	return &m, nil
}

// checkMapping verifies that every allocated slot is in the graph and the
// two mapping directions agree.
func checkMapping(m *mapping, graphLen int) error {
	if graphLen != m.CurrentIndex {
		return fmt.Errorf("%w: graph holds %d vectors but %d slots were allocated",
			types.ErrInconsistentIndex, graphLen, m.CurrentIndex)
	}
	if len(m.IDToIndex) != len(m.IndexToID) {
		return fmt.Errorf("%w: %d ids map to %d slots",
			types.ErrInconsistentIndex, len(m.IDToIndex), len(m.IndexToID))
	}
	for id, slot := range m.IDToIndex {
		if slot < 0 || slot >= m.CurrentIndex || m.IndexToID[slot] != id {
			return fmt.Errorf("%w: id %s and slot %d disagree", types.ErrInconsistentIndex, id, slot)
		}
	}
	return nil
}

// CheckConsistency verifies the in-memory mapping against the graph.
func (ix *Index) CheckConsistency() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return checkMapping(&mapping{
		IDToIndex:    ix.idToSlot,
		IndexToID:    ix.slotToID,
		CurrentIndex: ix.next,
	}, ix.graph.Len())
}

// Save writes the graph blob and then the mapping file. Each write is
// atomic on its own; a crash between them is caught by Load.
func (ix *Index) Save() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if err := os.MkdirAll(ix.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %w", types.ErrStorage, ix.dir, err)
	}

	pending, err := renameio.TempFile(ix.dir, ix.GraphPath())
	if err != nil {
		return fmt.Errorf("%w: create temp graph file: %w", types.ErrStorage, err)
	}
	defer func() { _ = pending.Cleanup() }()

	if ix.graph.Len() > 0 {
		if err := ix.graph.Export(pending); err != nil {
			return fmt.Errorf("%w: export graph: %w", types.ErrStorage, err)
		}
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("%w: write %s: %w", types.ErrStorage, ix.GraphPath(), err)
	}

	data, err := json.Marshal(mapping{
		IDToIndex:    ix.idToSlot,
		IndexToID:    ix.slotToID,
		CurrentIndex: ix.next,
		Dimension:    ix.cfg.Dimension,
		M:            ix.cfg.M,
		EfConstruct:  ix.cfg.EfConstruction,
	})
	if err != nil {
		return fmt.Errorf("%w: encode mapping: %w", types.ErrStorage, err)
	}
	if err := renameio.WriteFile(ix.MappingPath(), data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", types.ErrStorage, ix.MappingPath(), err)
	}
	return nil
}

// Insert adds vec for id under the next free slot and returns the slot.
// The mapping is only updated after the graph accepted the vector. If id
// already had a slot, the old slot becomes dead.
func (ix *Index) Insert(id string, vec []float32) (int, error) {
	if id == "" {
		return 0, fmt.Errorf("%w: empty id", types.ErrInvalidInput)
	}
	if len(vec) != ix.cfg.Dimension {
		return 0, fmt.Errorf("%w: vector has %d dimensions, index expects %d",
			types.ErrDimensionMismatch, len(vec), ix.cfg.Dimension)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.next >= ix.cfg.MaxElements {
		return 0, fmt.Errorf("%w: %d slots allocated", types.ErrIndexFull, ix.next)
	}

	slot := ix.next
	stored := make([]float32, len(vec))
	copy(stored, vec)
	if err := ix.addLocked(slot, stored); err != nil {
		return 0, err
	}

	if old, ok := ix.idToSlot[id]; ok {
		delete(ix.slotToID, old)
	}
	ix.next++
	ix.idToSlot[id] = slot
	ix.slotToID[slot] = id
	return slot, nil
}

func (ix *Index) addLocked(slot int, vec []float32) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hnsw insert slot %d: %v", slot, r)
		}
	}()

	// The graph searches with EfSearch while linking a new node.
	ix.graph.EfSearch = ix.cfg.EfConstruction
	defer func() { ix.graph.EfSearch = ix.cfg.EfSearch }()

	ix.graph.Add(hnsw.MakeNode(slot, vec))
	return nil
}

// Remove drops the mapping for id and reports whether it existed.
func (ix *Index) Remove(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	slot, ok := ix.idToSlot[id]
	if !ok {
		return false
	}
	delete(ix.idToSlot, id)
	delete(ix.slotToID, slot)
	return true
}

// Query returns up to k live documents closest to vec, best first. An
// empty index yields no matches and no error.
func (ix *Index) Query(vec []float32, k int) ([]Match, error) {
	if len(vec) != ix.cfg.Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			types.ErrDimensionMismatch, len(vec), ix.cfg.Dimension)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	total := ix.graph.Len()
	if total == 0 || k <= 0 || len(ix.slotToID) == 0 {
		return nil, nil
	}

	query := search.Float32s(vec)
	if query.Magnitude() == 0 {
		return nil, nil
	}

	// Dead slots can crowd out live ones, so ask for enough extra.
	dead := total - len(ix.slotToID)
	fetch := min(k+dead, total)

	nodes := ix.graph.Search(vec, fetch)
	matches := make([]Match, 0, min(k, len(nodes)))
	for _, node := range nodes {
		id, live := ix.slotToID[node.Key]
		if !live {
			continue
		}
		matches = append(matches, Match{ID: id, Score: similarity(query, node.Value)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// similarity is 1 - cosine distance. The query is known to be non-zero.
func similarity(query search.Float32s, v []float32) float64 {
	if search.Float32s(v).Magnitude() == 0 {
		return 0
	}
	return 1 - float64(query.CosineDistance(v))
}

// Vector returns a copy of the stored vector for a live id.
func (ix *Index) Vector(id string) ([]float32, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	slot, ok := ix.idToSlot[id]
	if !ok {
		return nil, false
	}
	v, ok := ix.graph.Lookup(slot)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Slot returns the slot mapped to id.
func (ix *Index) Slot(id string) (int, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	slot, ok := ix.idToSlot[id]
	return slot, ok
}

// ID returns the document mapped to slot. Dead slots report false.
func (ix *Index) ID(slot int) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	id, ok := ix.slotToID[slot]
	return id, ok
}

// Contains reports whether id has a live slot.
func (ix *Index) Contains(id string) bool {
	_, ok := ix.Slot(id)
	return ok
}

// Len returns the number of vectors in the graph, dead slots included.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.graph.Len()
}

// LiveCount returns the number of slots mapped to a document.
func (ix *Index) LiveCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.slotToID)
}

// DeadCount returns the number of slots awaiting compaction.
func (ix *Index) DeadCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.graph.Len() - len(ix.slotToID)
}

// NextSlot returns the slot the next insert will use.
func (ix *Index) NextSlot() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.next
}
