// Package stream defines the payment stream entity and its lifecycle state
// machine.
//
// A Stream is created funded but unattached (StatusCreated), activated into
// the registry (StatusActive), may toggle between StatusActive and
// StatusPaused, and is finally cancelled (StatusCancelled). All accrual
// figures derive from accrual.ElapsedActiveTime and accrual.VestedAmount so
// the payer and payee settlement paths always agree.
package stream

import (
	"maps"
	"time"

	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/types"
)

// Status is the lifecycle state of a stream.
type Status string

const (
	StatusCreated   Status = "created"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

// Stream is a funded, time-metered payment from a payer to a recipient.
type Stream struct {
	types.Entity
	ID        id.StreamID     `json:"id"`
	Asset     types.AssetType `json:"asset"`
	Status    Status          `json:"status"`
	Payer     string          `json:"payer"`
	Recipient string          `json:"recipient,omitempty"`

	StartTime        *time.Time    `json:"start_time,omitempty"`
	Duration         time.Duration `json:"duration"`
	AccumulatedPause time.Duration `json:"accumulated_pause"`
	PauseStart       *time.Time    `json:"pause_start,omitempty"`

	// InitialAmount is the post-fee principal; it never changes.
	InitialAmount uint64 `json:"initial_amount"`
	// Balance is what is still escrowed. It only ever decreases.
	Balance uint64 `json:"balance"`
	// FeePaid is the ingress fee skimmed from the gross deposit.
	FeePaid uint64 `json:"fee_paid"`
	// PayeeWithdrawn is the authoritative cumulative payee withdrawal; the
	// payee token caches a copy.
	PayeeWithdrawn uint64 `json:"payee_withdrawn"`

	PayerTokenID id.PayerTokenID `json:"payer_token_id,omitempty"`
	PayeeTokenID id.PayeeTokenID `json:"payee_token_id,omitempty"`

	// Version is bumped by the store on every successful write and guards
	// against overlapping writers.
	Version  int64             `json:"version"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of s.
func (s *Stream) Clone() *Stream {
	c := *s
	if s.StartTime != nil {
		t := *s.StartTime
		c.StartTime = &t
	}
	if s.PauseStart != nil {
		t := *s.PauseStart
		c.PauseStart = &t
	}
	c.Metadata = maps.Clone(s.Metadata)
	return &c
}

// ListOpts filters stream listings. Zero-valued fields match everything.
type ListOpts struct {
	Payer     string
	Recipient string
	Asset     types.AssetType
	Status    Status
	Limit     int
	Offset    int
}

// Matches reports whether s satisfies the filter fields of o.
func (o ListOpts) Matches(s *Stream) bool {
	return (o.Payer == "" || s.Payer == o.Payer) &&
		(o.Recipient == "" || s.Recipient == o.Recipient) &&
		(o.Asset == "" || s.Asset == o.Asset) &&
		(o.Status == "" || s.Status == o.Status)
}
