package mongo

import (
	"fmt"
	"math"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/registry"
	"github.com/xraph/streampay/stream"
	"github.com/xraph/streampay/types"
)

const registryKey = "default"

// ==================== Stream models ====================

type streamModel struct {
	grove.BaseModel `grove:"table:streampay_streams"`

	ID                 string            `grove:"id,pk"                bson:"_id"`
	Asset              string            `grove:"asset"                bson:"asset"`
	Status             string            `grove:"status"               bson:"status"`
	Payer              string            `grove:"payer"                bson:"payer"`
	Recipient          string            `grove:"recipient"            bson:"recipient"`
	StartTime          *time.Time        `grove:"start_time"           bson:"start_time,omitempty"`
	DurationNs         int64             `grove:"duration_ns"          bson:"duration_ns"`
	AccumulatedPauseNs int64             `grove:"accumulated_pause_ns" bson:"accumulated_pause_ns"`
	PauseStart         *time.Time        `grove:"pause_start"          bson:"pause_start"`
	InitialAmount      int64             `grove:"initial_amount"       bson:"initial_amount"`
	Balance            int64             `grove:"balance"              bson:"balance"`
	FeePaid            int64             `grove:"fee_paid"             bson:"fee_paid"`
	PayeeWithdrawn     int64             `grove:"payee_withdrawn"      bson:"payee_withdrawn"`
	PayerTokenID       string            `grove:"payer_token_id"       bson:"payer_token_id"`
	PayeeTokenID       string            `grove:"payee_token_id"       bson:"payee_token_id"`
	Version            int64             `grove:"version"              bson:"version"`
	Metadata           map[string]string `grove:"metadata"             bson:"metadata,omitempty"`
	CreatedAt          time.Time         `grove:"created_at"           bson:"created_at"`
	UpdatedAt          time.Time         `grove:"updated_at"           bson:"updated_at"`
}

func toStreamModel(s *stream.Stream) (*streamModel, error) {
	for _, a := range []uint64{s.InitialAmount, s.Balance, s.FeePaid, s.PayeeWithdrawn} {
		if a > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d exceeds int64", types.ErrAmountOverflow, a)
		}
	}

	return &streamModel{
		ID:                 s.ID.String(),
		Asset:              string(s.Asset),
		Status:             string(s.Status),
		Payer:              s.Payer,
		Recipient:          s.Recipient,
		StartTime:          s.StartTime,
		DurationNs:         int64(s.Duration),
		AccumulatedPauseNs: int64(s.AccumulatedPause),
		PauseStart:         s.PauseStart,
		InitialAmount:      int64(s.InitialAmount),
		Balance:            int64(s.Balance),
		FeePaid:            int64(s.FeePaid),
		PayeeWithdrawn:     int64(s.PayeeWithdrawn),
		PayerTokenID:       s.PayerTokenID.String(),
		PayeeTokenID:       s.PayeeTokenID.String(),
		Version:            s.Version,
		Metadata:           s.Metadata,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}, nil
}

func fromStreamModel(m *streamModel) (*stream.Stream, error) {
	streamID, err := id.ParseStreamID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse stream ID %q: %w", m.ID, err)
	}
	payerToken, err := id.ParsePayerTokenID(m.PayerTokenID)
	if err != nil {
		return nil, fmt.Errorf("parse payer token ID %q: %w", m.PayerTokenID, err)
	}
	payeeToken, err := id.ParsePayeeTokenID(m.PayeeTokenID)
	if err != nil {
		return nil, fmt.Errorf("parse payee token ID %q: %w", m.PayeeTokenID, err)
	}

	return &stream.Stream{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               streamID,
		Asset:            types.AssetType(m.Asset),
		Status:           stream.Status(m.Status),
		Payer:            m.Payer,
		Recipient:        m.Recipient,
		StartTime:        m.StartTime,
		Duration:         time.Duration(m.DurationNs),
		AccumulatedPause: time.Duration(m.AccumulatedPauseNs),
		PauseStart:       m.PauseStart,
		InitialAmount:    uint64(m.InitialAmount),
		Balance:          uint64(m.Balance),
		FeePaid:          uint64(m.FeePaid),
		PayeeWithdrawn:   uint64(m.PayeeWithdrawn),
		PayerTokenID:     payerToken,
		PayeeTokenID:     payeeToken,
		Version:          m.Version,
		Metadata:         m.Metadata,
	}, nil
}

// ==================== Registry models ====================

type registryModel struct {
	grove.BaseModel `grove:"table:streampay_registry"`

	ID           string    `grove:"id,pk"          bson:"_id"`
	FeeRateBps   int64     `grove:"fee_rate_bps"   bson:"fee_rate_bps"`
	AdminTokenID string    `grove:"admin_token_id" bson:"admin_token_id"`
	CreatedAt    time.Time `grove:"created_at"     bson:"created_at"`
	UpdatedAt    time.Time `grove:"updated_at"     bson:"updated_at"`
}

func toRegistryModel(c *registry.Config) *registryModel {
	return &registryModel{
		ID:           registryKey,
		FeeRateBps:   int64(c.FeeRateBps),
		AdminTokenID: c.AdminTokenID.String(),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func fromRegistryModel(m *registryModel) (*registry.Config, error) {
	adminID, err := id.ParseAdminTokenID(m.AdminTokenID)
	if err != nil {
		return nil, fmt.Errorf("parse admin token ID %q: %w", m.AdminTokenID, err)
	}
	return &registry.Config{
		Entity:       types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		FeeRateBps:   uint64(m.FeeRateBps),
		AdminTokenID: adminID,
	}, nil
}

type assetModel struct {
	grove.BaseModel `grove:"table:streampay_assets"`

	Asset      string    `grove:"asset,pk"    bson:"_id"`
	FeeReserve int64     `grove:"fee_reserve" bson:"fee_reserve"`
	CreatedAt  time.Time `grove:"created_at"  bson:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"  bson:"updated_at"`
}

func fromAssetModel(m *assetModel) *registry.Asset {
	return &registry.Asset{
		Entity:     types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Asset:      types.AssetType(m.Asset),
		FeeReserve: uint64(m.FeeReserve),
	}
}
