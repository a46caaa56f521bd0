// Package stream fetches tile payloads for the tiles chosen by LOD selection.
// Fetches complete asynchronously and never block or fail the walk.
package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Faultbox/geoscape/internal/config"
	"github.com/Faultbox/geoscape/internal/logger"
	"github.com/Faultbox/geoscape/internal/lod"
)

// Fetcher loads the payload for one tile.
type Fetcher interface {
	Fetch(ctx context.Context, id lod.TileID) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, id lod.TileID) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, id lod.TileID) ([]byte, error) {
	return f(ctx, id)
}

// Stats counts streamer activity.
type Stats struct {
	Requested int64
	Fetched   int64
	Failed    int64
	Stale     int64
	Reused    int64
}

// Streamer issues fetches for requested tile sets. Each Request starts a new
// generation; completions from older generations are kept but never replace
// a tile stamped by a newer one.
type Streamer struct {
	fetcher Fetcher
	cache   *Cache
	sem     *semaphore.Weighted
	timeout time.Duration
	log     *zap.Logger

	generation atomic.Uint64

	mu      sync.Mutex
	pending map[lod.TileID]uint64
	wg      sync.WaitGroup

	requested atomic.Int64
	fetched   atomic.Int64
	failed    atomic.Int64
	stale     atomic.Int64
	reused    atomic.Int64
}

// New creates a streamer over a fetcher.
func New(f Fetcher, cfg config.StreamConfig) *Streamer {
	inFlight := cfg.MaxInFlight
	if inFlight <= 0 {
		inFlight = 1
	}
	return &Streamer{
		fetcher: f,
		cache:   NewCache(),
		sem:     semaphore.NewWeighted(int64(inFlight)),
		timeout: cfg.FetchTimeout,
		log:     logger.Named("stream"),
		pending: make(map[lod.TileID]uint64),
	}
}

// Generation returns the current request generation.
func (s *Streamer) Generation() uint64 { return s.generation.Load() }

// Cache returns the residency cache.
func (s *Streamer) Cache() *Cache { return s.cache }

// OnRevealTiles requests the revealed tile set.
func (s *Streamer) OnRevealTiles(ctx context.Context, tiles []lod.TileID) {
	s.Request(ctx, tiles)
}

// Request starts a new generation and fetches the tiles that are neither
// resident nor already being fetched. It returns the new generation.
func (s *Streamer) Request(ctx context.Context, tiles []lod.TileID) uint64 {
	gen := s.generation.Add(1)

	var todo []lod.TileID
	s.mu.Lock()
	for _, id := range tiles {
		if s.cache.Touch(id, gen) {
			s.reused.Add(1)
			continue
		}
		if _, ok := s.pending[id]; ok {
			s.pending[id] = gen
			continue
		}
		s.pending[id] = gen
		todo = append(todo, id)
	}
	s.mu.Unlock()

	s.requested.Add(int64(len(todo)))
	s.log.Debug("stream request",
		zap.Uint64("generation", gen),
		zap.Int("tiles", len(tiles)),
		zap.Int("fetches", len(todo)))

	for _, id := range todo {
		s.wg.Add(1)
		go s.fetch(ctx, id)
	}
	return gen
}

func (s *Streamer) fetch(ctx context.Context, id lod.TileID) {
	defer s.wg.Done()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.finish(id, nil, fmt.Errorf("waiting for fetch slot: %w", err))
		return
	}
	defer s.sem.Release(1)

	fctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	data, err := s.fetcher.Fetch(fctx, id)
	s.finish(id, data, err)
}

func (s *Streamer) finish(id lod.TileID, data []byte, err error) {
	s.mu.Lock()
	gen := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()

	if err != nil {
		s.failed.Add(1)
		s.log.Warn("tile fetch failed",
			zap.Stringer("tile", id),
			zap.Uint64("generation", gen),
			zap.Error(err))
		return
	}
	if gen < s.generation.Load() {
		s.stale.Add(1)
	}
	if s.cache.Put(id, data, gen) {
		s.fetched.Add(1)
	}
}

// Resident returns the payload of a resident tile.
func (s *Streamer) Resident(id lod.TileID) ([]byte, bool) {
	return s.cache.Get(id)
}

// ResidentTiles lists resident tiles in level, row, column order.
func (s *Streamer) ResidentTiles() []lod.TileID {
	return s.cache.Keys()
}

// Evict drops resident tiles not touched by the last keep generations.
func (s *Streamer) Evict(keep uint64) int {
	cur := s.generation.Load()
	if cur <= keep {
		return 0
	}
	n := s.cache.EvictOlderThan(cur - keep + 1)
	if n > 0 {
		s.log.Debug("evicted tiles", zap.Int("count", n), zap.Uint64("generation", cur))
	}
	return n
}

// Wait blocks until every issued fetch has completed.
func (s *Streamer) Wait() {
	s.wg.Wait()
}

// Stats returns streamer counters.
func (s *Streamer) Stats() Stats {
	return Stats{
		Requested: s.requested.Load(),
		Fetched:   s.fetched.Load(),
		Failed:    s.failed.Load(),
		Stale:     s.stale.Load(),
		Reused:    s.reused.Load(),
	}
}
