package types

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestAssetNormalization(t *testing.T) {
	tests := []struct {
		in   string
		want AssetType
	}{
		{"native", NativeAsset},
		{"  NATIVE ", NativeAsset},
		{"USDC", "usdc"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Asset(tt.in); got != tt.want {
				t.Errorf("Asset(%q): got %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if AssetType("").IsValid() {
		t.Error("empty asset must be invalid")
	}
}

func TestCoinSplit(t *testing.T) {
	tests := []struct {
		name    string
		coin    Coin
		amount  uint64
		kept    uint64
		taken   uint64
		wantErr error
	}{
		{"Partial", Native(1000), 3, 997, 3, nil},
		{"All", Native(1000), 1000, 0, 1000, nil},
		{"Nothing", Native(1000), 0, 1000, 0, nil},
		{"Too much", Native(10), 11, 10, 0, ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, taken, err := tt.coin.Split(tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err: got %v, want %v", err, tt.wantErr)
			}
			if kept.Amount != tt.kept {
				t.Errorf("kept: got %d, want %d", kept.Amount, tt.kept)
			}
			if taken.Amount != tt.taken {
				t.Errorf("taken: got %d, want %d", taken.Amount, tt.taken)
			}
			if kept.Asset != tt.coin.Asset || taken.Asset != tt.coin.Asset {
				t.Errorf("asset changed: kept %q taken %q", kept.Asset, taken.Asset)
			}
		})
	}
}

func TestCoinJoin(t *testing.T) {
	got, err := Native(40).Join(Native(2))
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !got.Equal(Native(42)) {
		t.Errorf("got %v, want %v", got, Native(42))
	}

	if _, err := Native(1).Join(NewCoin("usdc", 1)); !errors.Is(err, ErrAssetMismatch) {
		t.Errorf("expected ErrAssetMismatch, got %v", err)
	}

	if _, err := Native(math.MaxUint64).Join(Native(1)); !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("expected ErrAmountOverflow, got %v", err)
	}
}

func TestSum(t *testing.T) {
	total, err := Sum(Native(1), Native(2), Native(3))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if total.Amount != 6 {
		t.Errorf("got %d, want 6", total.Amount)
	}

	empty, err := Sum()
	if err != nil || !empty.IsZero() || empty.Asset != NativeAsset {
		t.Errorf("empty Sum: got %v, %v", empty, err)
	}
}

func TestCoinJSON(t *testing.T) {
	data, err := json.Marshal(NewCoin("USDC", 997))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out["display"] != "997 usdc" {
		t.Errorf("display: got %v, want %q", out["display"], "997 usdc")
	}
	if out["asset"] != "usdc" {
		t.Errorf("asset: got %v, want %q", out["asset"], "usdc")
	}
}
