package lod

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/geoscape/internal/camera"
	"github.com/Faultbox/geoscape/internal/logger"
	"github.com/Faultbox/geoscape/pkg/quadtree"
)

// TileID addresses a tile for streaming and rendering.
type TileID struct {
	X, Y, Level int
}

func (id TileID) String() string {
	return fmt.Sprintf("L%d(%d,%d)", id.Level, id.X, id.Y)
}

// RevealListener receives the tile set after each walk.
type RevealListener interface {
	OnRevealTiles(ctx context.Context, tiles []TileID)
}

// Options configures a Selector.
type Options struct {
	MaxLevel       int
	SSEThreshold   float64
	SamplesPerTile float64
}

// DefaultOptions returns the standard selection parameters.
func DefaultOptions() Options {
	return Options{
		MaxLevel:       TableLevels - 1,
		SSEThreshold:   DefaultSSEThreshold,
		SamplesPerTile: DefaultSamplesPerTile,
	}
}

// Stats describes the most recent walk.
type Stats struct {
	Visited  int
	Pruned   int
	Accepted int
	Dropped  int
	MaxLevel int
}

// Selector walks a tile quadtree and keeps the last visual-reveal set.
type Selector struct {
	tree  *quadtree.Tree
	table *ErrorTable
	opts  Options
	log   *zap.Logger

	inFlight atomic.Bool

	mu          sync.RWMutex
	reveal      []TileID
	stats       Stats
	lastVersion uint64
	listeners   []RevealListener
}

// NewSelector creates a selector over a fresh tree for the schema.
func NewSelector(s *quadtree.Schema, opts Options) *Selector {
	return NewSelectorForTree(quadtree.NewTree(s), opts)
}

// NewSelectorForTree creates a selector over an existing tree.
func NewSelectorForTree(t *quadtree.Tree, opts Options) *Selector {
	def := DefaultOptions()
	if opts.MaxLevel <= 0 {
		opts.MaxLevel = def.MaxLevel
	}
	if opts.SSEThreshold <= 0 {
		opts.SSEThreshold = def.SSEThreshold
	}
	if opts.SamplesPerTile <= 0 {
		opts.SamplesPerTile = def.SamplesPerTile
	}
	return &Selector{
		tree:  t,
		table: NewErrorTable(t.Schema(), opts.SamplesPerTile),
		opts:  opts,
		log:   logger.Named("lod"),
	}
}

// Tree returns the walked quadtree.
func (s *Selector) Tree() *quadtree.Tree { return s.tree }

// GeometricError returns the geometric error of a tile at level.
func (s *Selector) GeometricError(level int) float64 {
	return s.table.GeometricError(level)
}

// MaxCameraHeight returns the camera height below which level needs refining.
func (s *Selector) MaxCameraHeight(level int, viewportHeight, sseDenominator float64) float64 {
	return s.table.MaxCameraHeight(level, viewportHeight, sseDenominator, s.opts.SSEThreshold)
}

// ScreenSpaceError returns the projected error in pixels of a tile at level.
func (s *Selector) ScreenSpaceError(level int, cameraHeight, viewportHeight, sseDenominator float64) float64 {
	return projectError(s.table.GeometricError(level), cameraHeight, viewportHeight, sseDenominator)
}

// AddListener registers a listener notified after camera-driven walks.
func (s *Selector) AddListener(l RevealListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// VisualRevealTiles returns the tile set of the last completed walk.
func (s *Selector) VisualRevealTiles() []TileID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TileID, len(s.reveal))
	copy(out, s.reveal)
	return out
}

// Stats returns statistics of the last completed walk.
func (s *Selector) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Update walks the tree for the camera state and stores the result. Only one
// walk may run at a time; a walk is not interrupted once started.
func (s *Selector) Update(ctx context.Context, st camera.GeoState) ([]TileID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrWalkInFlight
	}
	defer s.inFlight.Store(false)

	w := walker{sel: s, state: st}
	for _, root := range s.roots(st) {
		w.visit(root)
	}
	tiles := w.cut()

	s.mu.Lock()
	s.reveal = tiles
	s.stats = w.stats
	s.lastVersion = st.Version
	s.mu.Unlock()

	s.log.Debug("tile walk",
		zap.Uint64("version", st.Version),
		zap.Float64("height", st.Height),
		zap.Int("visited", w.stats.Visited),
		zap.Int("pruned", w.stats.Pruned),
		zap.Int("tiles", len(tiles)),
		zap.Int("dropped", w.stats.Dropped),
		zap.Int("max_level", w.stats.MaxLevel))

	out := make([]TileID, len(tiles))
	copy(out, tiles)
	return out, nil
}

// OnCameraChanged walks when the camera version differs from the last walk
// and notifies listeners. Unchanged cameras return the cached set.
func (s *Selector) OnCameraChanged(ctx context.Context, st camera.GeoState) ([]TileID, error) {
	s.mu.RLock()
	same := s.lastVersion != 0 && s.lastVersion == st.Version
	s.mu.RUnlock()
	if same {
		return s.VisualRevealTiles(), nil
	}

	tiles, err := s.Update(ctx, st)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	listeners := make([]RevealListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()
	for _, l := range listeners {
		l.OnRevealTiles(ctx, tiles)
	}
	return tiles, nil
}

// walkRetry is how long Run waits before retrying an event that found
// another walk in flight.
const walkRetry = 5 * time.Millisecond

// Run serializes camera events. Queued events are coalesced to the newest.
// An event that finds a walk already in flight is kept and retried, unless a
// newer event replaces it first. Run returns once events is closed and the
// last event has been walked.
func (s *Selector) Run(ctx context.Context, events <-chan camera.GeoState) error {
	var (
		pending camera.GeoState
		have    bool
		retry   <-chan time.Time
	)
	for events != nil || have {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			pending, have = st, true
		case <-retry:
		}

	drain:
		for events != nil {
			select {
			case next, ok := <-events:
				if !ok {
					events = nil
					break drain
				}
				pending = next
			default:
				break drain
			}
		}

		_, err := s.OnCameraChanged(ctx, pending)
		switch {
		case errors.Is(err, ErrWalkInFlight):
			retry = time.After(walkRetry)
		case err != nil:
			return err
		default:
			have, retry = false, nil
		}
	}
	return nil
}

func (s *Selector) roots(st camera.GeoState) []quadtree.Tile {
	all := s.tree.Roots()
	if s.tree.Schema().IsCanonicalWebMercator() {
		return all
	}
	var picked []quadtree.Tile
	for _, r := range all {
		if r.Boundary().Contains(st.Ground) {
			picked = append(picked, r)
		}
	}
	return picked
}

type walker struct {
	sel      *Selector
	state    camera.GeoState
	accepted []TileID
	stats    Stats
}

func (w *walker) visit(t quadtree.Tile) {
	w.stats.Visited++
	if !t.Boundary().Intersects(w.state.ViewRectangle) {
		w.stats.Pruned++
		return
	}

	level := t.Level()
	sse := w.sel.ScreenSpaceError(level, w.state.Height, w.state.ViewportHeight, w.state.SSEDenominator)
	if sse > w.sel.opts.SSEThreshold && level < w.sel.opts.MaxLevel {
		for _, c := range t.Children() {
			w.visit(c)
		}
		return
	}

	w.accepted = append(w.accepted, TileID{X: t.X(), Y: t.Y(), Level: level})
	if level > w.stats.MaxLevel {
		w.stats.MaxLevel = level
	}
}

// cut keeps only the leaves at the deepest level reached. Shallower leaves
// from pruned branches are dropped.
func (w *walker) cut() []TileID {
	out := make([]TileID, 0, len(w.accepted))
	for _, id := range w.accepted {
		if id.Level == w.stats.MaxLevel {
			out = append(out, id)
		}
	}
	w.stats.Accepted = len(out)
	w.stats.Dropped = len(w.accepted) - len(out)
	return out
}
