package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/registry"
	"github.com/xraph/streampay/store/memory"
	"github.com/xraph/streampay/stream"
	"github.com/xraph/streampay/types"
)

func newStream(t *testing.T, payer string, created time.Time) *stream.Stream {
	t.Helper()
	s, err := stream.New(types.NativeAsset, payer, 997, 3, time.Hour, created)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Activate(created, "bob", id.NewPayerTokenID(), id.NewPayeeTokenID()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStreamLifecycle(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	s := newStream(t, "alice", time.Now())

	if err := st.InsertStream(ctx, s); err != nil {
		t.Fatal(err)
	}
	if s.Version != 1 {
		t.Errorf("version after insert: got %d, want 1", s.Version)
	}
	if err := st.InsertStream(ctx, s); !errors.Is(err, stream.ErrAlreadyExists) {
		t.Errorf("duplicate insert: got %v, want ErrAlreadyExists", err)
	}

	got, err := st.GetStream(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	got.Balance = 1
	again, _ := st.GetStream(ctx, s.ID)
	if again.Balance != 997 {
		t.Error("mutating a fetched stream changed the stored copy")
	}

	got.Balance = 500
	if err := st.UpdateStream(ctx, got); err != nil {
		t.Fatal(err)
	}
	if got.Version != 2 {
		t.Errorf("version after update: got %d, want 2", got.Version)
	}

	// again still carries version 1.
	if err := st.UpdateStream(ctx, again); !errors.Is(err, stream.ErrConcurrentUpdate) {
		t.Errorf("stale update: got %v, want ErrConcurrentUpdate", err)
	}

	// A cancelled stream keeps its row, so its ID can never be inserted again.
	got.Status = stream.StatusCancelled
	if err := st.UpdateStream(ctx, got); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertStream(ctx, again); !errors.Is(err, stream.ErrAlreadyExists) {
		t.Errorf("reinsert after cancel: got %v, want ErrAlreadyExists", err)
	}
}

func TestListStreams(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	base := time.UnixMilli(1_700_000_000_000)

	for i, payer := range []string{"alice", "bob", "alice", "alice"} {
		if err := st.InsertStream(ctx, newStream(t, payer, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		opts stream.ListOpts
		want int
	}{
		{"All", stream.ListOpts{}, 4},
		{"By payer", stream.ListOpts{Payer: "alice"}, 3},
		{"Limit", stream.ListOpts{Payer: "alice", Limit: 2}, 2},
		{"Offset", stream.ListOpts{Payer: "alice", Offset: 2}, 1},
		{"Offset past end", stream.ListOpts{Offset: 10}, 0},
		{"Status filter", stream.ListOpts{Status: stream.StatusPaused}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.ListStreams(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d streams, want %d", len(got), tt.want)
			}
			for i := 1; i < len(got); i++ {
				if got[i].CreatedAt.Before(got[i-1].CreatedAt) {
					t.Error("streams not ordered oldest first")
				}
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	if _, err := st.GetRegistry(ctx); !errors.Is(err, registry.ErrNotInitialized) {
		t.Fatalf("got %v, want ErrNotInitialized", err)
	}

	cfg := &registry.Config{
		Entity:       types.NewEntity(time.Now()),
		FeeRateBps:   registry.DefaultFeeRateBps,
		AdminTokenID: id.NewAdminTokenID(),
	}
	if err := st.InitRegistry(ctx, cfg, []types.AssetType{types.NativeAsset}); err != nil {
		t.Fatal(err)
	}
	if err := st.InitRegistry(ctx, cfg, nil); !errors.Is(err, registry.ErrAlreadyInitialized) {
		t.Errorf("second init: got %v, want ErrAlreadyInitialized", err)
	}

	if err := st.SetFeeRate(ctx, 50); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetRegistry(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.FeeRateBps != 50 || !got.AdminTokenID.Equal(cfg.AdminTokenID) {
		t.Errorf("got rate=%d admin=%s", got.FeeRateBps, got.AdminTokenID)
	}

	added, err := st.AddAsset(ctx, "usdc")
	if err != nil || !added {
		t.Fatalf("AddAsset: added=%v err=%v", added, err)
	}
	added, err = st.AddAsset(ctx, "usdc")
	if err != nil || added {
		t.Errorf("AddAsset repeat: added=%v err=%v", added, err)
	}

	assets, err := st.ListAssets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 2 || assets[0].Asset != types.NativeAsset || assets[1].Asset != "usdc" {
		t.Errorf("unexpected assets: %+v", assets)
	}

	if _, err := st.GetAsset(ctx, "doge"); !errors.Is(err, registry.ErrAssetNotWhitelisted) {
		t.Errorf("got %v, want ErrAssetNotWhitelisted", err)
	}
}

func TestFeeReserve(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	if err := st.InitRegistry(ctx, &registry.Config{FeeRateBps: 30}, []types.AssetType{types.NativeAsset}); err != nil {
		t.Fatal(err)
	}

	for range 3 {
		if err := st.CreditFeeReserve(ctx, types.NativeAsset, 3); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.DebitFeeReserve(ctx, types.NativeAsset, 10); !errors.Is(err, types.ErrInsufficientFunds) {
		t.Errorf("overdraw: got %v, want ErrInsufficientFunds", err)
	}
	if err := st.DebitFeeReserve(ctx, types.NativeAsset, 9); err != nil {
		t.Fatal(err)
	}

	a, err := st.GetAsset(ctx, types.NativeAsset)
	if err != nil {
		t.Fatal(err)
	}
	if a.FeeReserve != 0 {
		t.Errorf("reserve: got %d, want 0", a.FeeReserve)
	}

	if err := st.CreditFeeReserve(ctx, "doge", 1); !errors.Is(err, registry.ErrAssetNotWhitelisted) {
		t.Errorf("credit unknown asset: got %v", err)
	}
}
