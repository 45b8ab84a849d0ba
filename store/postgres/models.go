package postgres

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

// registryKey is the primary key of the singleton registry row.
const registryKey = "default"

// ==================== Stream models ====================

type streamModel struct {
	grove.BaseModel `grove:"table:streampay_streams"`

	ID                 string            `grove:"id,pk"`
	Asset              string            `grove:"asset"`
	Status             string            `grove:"status"`
	Payer              string            `grove:"payer"`
	Recipient          string            `grove:"recipient"`
	StartTime          *time.Time        `grove:"start_time"`
	DurationNs         int64             `grove:"duration_ns"`
	AccumulatedPauseNs int64             `grove:"accumulated_pause_ns"`
	PauseStart         *time.Time        `grove:"pause_start"`
	InitialAmount      int64             `grove:"initial_amount"`
	Balance            int64             `grove:"balance"`
	FeePaid            int64             `grove:"fee_paid"`
	PayeeWithdrawn     int64             `grove:"payee_withdrawn"`
	PayerTokenID       string            `grove:"payer_token_id"`
	PayeeTokenID       string            `grove:"payee_token_id"`
	Version            int64             `grove:"version"`
	Metadata           map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt          time.Time         `grove:"created_at"`
	UpdatedAt          time.Time         `grove:"updated_at"`
}

func toStreamModel(s *stream.Stream) (*streamModel, error) {
	amounts := []uint64{s.InitialAmount, s.Balance, s.FeePaid, s.PayeeWithdrawn}
	for _, a := range amounts {
		if a > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d exceeds BIGINT", types.ErrAmountOverflow, a)
		}
	}

	metadata := s.Metadata
	if metadata == nil {
		metadata = map[string]string{}
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
		Metadata:           metadata,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}, nil
}

func fromStreamModel(m *streamModel) (*stream.Stream, error) {
	streamID, err := id.ParseStreamID(m.ID)
	if err != nil {
		return nil, err
	}
	payerToken, err := id.ParsePayerTokenID(m.PayerTokenID)
	if err != nil {
		return nil, err
	}
	payeeToken, err := id.ParsePayeeTokenID(m.PayeeTokenID)
	if err != nil {
		return nil, err
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

	ID           string    `grove:"id,pk"`
	FeeRateBps   int64     `grove:"fee_rate_bps"`
	AdminTokenID string    `grove:"admin_token_id"`
	CreatedAt    time.Time `grove:"created_at"`
	UpdatedAt    time.Time `grove:"updated_at"`
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
		return nil, err
	}
	return &registry.Config{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		FeeRateBps:   uint64(m.FeeRateBps),
		AdminTokenID: adminID,
	}, nil
}

type assetModel struct {
	grove.BaseModel `grove:"table:streampay_assets"`

	Asset      string    `grove:"asset,pk"`
	FeeReserve int64     `grove:"fee_reserve"`
	CreatedAt  time.Time `grove:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"`
}

func fromAssetModel(m *assetModel) *registry.Asset {
	return &registry.Asset{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Asset:      types.AssetType(m.Asset),
		FeeReserve: uint64(m.FeeReserve),
	}
}
