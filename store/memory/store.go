// Package memory provides an in-memory store for tests and single-process
// deployments. Records are copied on the way in and out, so callers never
// share state with the store.
package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/registry"
	"github.com/xraph/streampay/store"
	"github.com/xraph/streampay/stream"
	"github.com/xraph/streampay/types"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Stream storage
	streams map[string]*stream.Stream

	// Registry storage
	config *registry.Config
	assets map[types.AssetType]*registry.Asset
}

func New() *Store {
	return &Store{
		streams: make(map[string]*stream.Stream),
		assets:  make(map[types.AssetType]*registry.Asset),
	}
}

// ──────────────────────────────────────────────────
// Stream Store implementation
// ──────────────────────────────────────────────────

func (s *Store) InsertStream(_ context.Context, st *stream.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.streams[st.ID.String()]; exists {
		return stream.ErrAlreadyExists
	}
	st.Version = 1
	s.streams[st.ID.String()] = st.Clone()
	return nil
}

func (s *Store) GetStream(_ context.Context, streamID id.StreamID) (*stream.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.streams[streamID.String()]; ok {
		return st.Clone(), nil
	}
	return nil, stream.ErrNotFound
}

func (s *Store) ListStreams(_ context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*stream.Stream, 0)
	for _, st := range s.streams {
		if opts.Matches(st) {
			result = append(result, st.Clone())
		}
	}

	// Oldest first; ID breaks ties.
	slices.SortFunc(result, func(a, b *stream.Stream) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	start := min(opts.Offset, len(result))
	end := len(result)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}

	return result[start:end], nil
}

func (s *Store) UpdateStream(_ context.Context, st *stream.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.streams[st.ID.String()]
	if !ok {
		return stream.ErrNotFound
	}
	if existing.Version != st.Version {
		return fmt.Errorf("%w: stored version %d, have %d", stream.ErrConcurrentUpdate, existing.Version, st.Version)
	}

	st.Version++
	s.streams[st.ID.String()] = st.Clone()
	return nil
}

// ──────────────────────────────────────────────────
// Registry Store implementation
// ──────────────────────────────────────────────────

func (s *Store) InitRegistry(_ context.Context, cfg *registry.Config, assets []types.AssetType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config != nil {
		return registry.ErrAlreadyInitialized
	}

	c := *cfg
	s.config = &c
	for _, a := range assets {
		if _, ok := s.assets[a]; !ok {
			s.assets[a] = &registry.Asset{Entity: cfg.Entity, Asset: a}
		}
	}
	return nil
}

func (s *Store) GetRegistry(_ context.Context) (*registry.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return nil, registry.ErrNotInitialized
	}
	c := *s.config
	return &c, nil
}

func (s *Store) SetFeeRate(_ context.Context, rateBps uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config == nil {
		return registry.ErrNotInitialized
	}
	s.config.FeeRateBps = rateBps
	s.config.Touch(time.Now())
	return nil
}

func (s *Store) AddAsset(_ context.Context, asset types.AssetType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[asset]; ok {
		return false, nil
	}
	s.assets[asset] = &registry.Asset{Entity: types.NewEntity(time.Now()), Asset: asset}
	return true, nil
}

func (s *Store) GetAsset(_ context.Context, asset types.AssetType) (*registry.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrAssetNotWhitelisted, asset)
	}
	c := *a
	return &c, nil
}

func (s *Store) ListAssets(_ context.Context) ([]*registry.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*registry.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		c := *a
		result = append(result, &c)
	}
	slices.SortFunc(result, func(a, b *registry.Asset) int {
		return strings.Compare(string(a.Asset), string(b.Asset))
	})
	return result, nil
}

func (s *Store) CreditFeeReserve(_ context.Context, asset types.AssetType, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[asset]
	if !ok {
		return fmt.Errorf("%w: %s", registry.ErrAssetNotWhitelisted, asset)
	}
	if amount > math.MaxUint64-a.FeeReserve {
		return types.ErrAmountOverflow
	}
	a.FeeReserve += amount
	a.Touch(time.Now())
	return nil
}

func (s *Store) DebitFeeReserve(_ context.Context, asset types.AssetType, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[asset]
	if !ok {
		return fmt.Errorf("%w: %s", registry.ErrAssetNotWhitelisted, asset)
	}
	if amount > a.FeeReserve {
		return fmt.Errorf("%w: reserve %d, debit %d", types.ErrInsufficientFunds, a.FeeReserve, amount)
	}
	a.FeeReserve -= amount
	a.Touch(time.Now())
	return nil
}

// ──────────────────────────────────────────────────
// Core methods
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }
