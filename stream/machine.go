package stream

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/streampay/accrual"
	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/types"
)

// State and validation errors raised by the state machine.
var (
	ErrInvalidDuration  = errors.New("streampay: invalid duration")
	ErrInvalidAmount    = errors.New("streampay: invalid amount")
	ErrNotActive        = errors.New("streampay: stream is not active")
	ErrNotPaused        = errors.New("streampay: stream is not paused")
	ErrAlreadyCancelled = errors.New("streampay: stream already cancelled")
	ErrAlreadyStarted   = errors.New("streampay: stream already started")
	ErrNotStarted       = errors.New("streampay: stream not started")
	ErrStreamDrained    = errors.New("streampay: stream balance is zero")
	ErrBalanceExceeded  = errors.New("streampay: payout exceeds stream balance")
)

// New builds an unattached stream in StatusCreated holding principal, the
// post-fee remainder of a deposit of the given asset.
func New(asset types.AssetType, payer string, principal, fee uint64, duration time.Duration, now time.Time) (*Stream, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDuration, duration)
	}

	return &Stream{
		Entity:        types.NewEntity(now),
		ID:            id.NewStreamID(),
		Asset:         asset,
		Status:        StatusCreated,
		Payer:         payer,
		Duration:      duration,
		InitialAmount: principal,
		Balance:       principal,
		FeePaid:       fee,
	}, nil
}

// Activate moves a created stream to StatusActive, starts the clock and
// binds the capability tokens minted for it.
func (s *Stream) Activate(now time.Time, recipient string, payerToken id.PayerTokenID, payeeToken id.PayeeTokenID) error {
	switch s.Status {
	case StatusCreated:
	case StatusCancelled:
		return ErrAlreadyCancelled
	default:
		return ErrAlreadyStarted
	}
	if s.Duration <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, s.Duration)
	}

	start := now
	s.Status = StatusActive
	s.StartTime = &start
	s.Recipient = recipient
	s.PayerTokenID = payerToken
	s.PayeeTokenID = payeeToken
	s.Touch(now)
	return nil
}

// Pause stops accrual. Only an active stream can be paused.
func (s *Stream) Pause(now time.Time) error {
	if s.Status != StatusActive {
		return fmt.Errorf("%w: status %s", ErrNotActive, s.Status)
	}

	start := now
	s.Status = StatusPaused
	s.PauseStart = &start
	s.Touch(now)
	return nil
}

// Resume restarts accrual, folding the pause interval into
// AccumulatedPause. Only a paused stream can be resumed.
func (s *Stream) Resume(now time.Time) error {
	if s.Status != StatusPaused {
		return fmt.Errorf("%w: status %s", ErrNotPaused, s.Status)
	}

	s.foldPause(now)
	s.Status = StatusActive
	s.Touch(now)
	return nil
}

// cancel marks the stream cancelled. An open pause is folded first so the
// cancellation does not count paused time as active. Cancelled is terminal.
// Only Close calls it, so a cancelled stream's Balance is always the
// payee's settled share.
func (s *Stream) cancel(now time.Time) error {
	switch s.Status {
	case StatusActive:
	case StatusPaused:
		s.foldPause(now)
	case StatusCancelled:
		return ErrAlreadyCancelled
	default:
		return ErrNotStarted
	}

	s.Status = StatusCancelled
	s.Touch(now)
	return nil
}

func (s *Stream) foldPause(now time.Time) {
	if s.PauseStart != nil {
		if d := now.Sub(*s.PauseStart); d > 0 {
			s.AccumulatedPause += d
		}
	}
	s.PauseStart = nil
}

// Elapsed returns active time at now. An open pause is excluded without
// being persisted.
func (s *Stream) Elapsed(now time.Time) time.Duration {
	if s.StartTime == nil {
		return 0
	}
	return accrual.ElapsedActiveTime(now, *s.StartTime, s.AccumulatedPause, s.PauseStart)
}

// Vested returns the principal earned by the payee at now. It is frozen at
// cancellation.
func (s *Stream) Vested(now time.Time) uint64 {
	if s.Status == StatusCancelled {
		return s.PayeeWithdrawn + s.Balance
	}
	return s.accrued(now)
}

func (s *Stream) accrued(now time.Time) uint64 {
	return accrual.VestedAmount(s.Elapsed(now), s.Duration, s.InitialAmount)
}

// Withdrawable returns what the payee could withdraw at now.
func (s *Stream) Withdrawable(now time.Time) uint64 {
	if s.Status == StatusCancelled {
		return s.Balance
	}
	return accrual.Available(s.Vested(now), s.PayeeWithdrawn)
}

// Withdraw releases everything vested but not yet withdrawn to the payee.
// It is legal while active or paused, and on a cancelled stream until the
// payee's share left by Close is claimed. A zero amount is not an error.
func (s *Stream) Withdraw(now time.Time) (uint64, error) {
	switch s.Status {
	case StatusActive, StatusPaused, StatusCancelled:
	default:
		return 0, ErrNotStarted
	}

	amount := s.Withdrawable(now)
	if amount > s.Balance {
		return 0, fmt.Errorf("%w: %d > %d", ErrBalanceExceeded, amount, s.Balance)
	}
	if amount == 0 {
		return 0, nil
	}

	s.Balance -= amount
	s.PayeeWithdrawn += amount
	s.Touch(now)
	return amount, nil
}

// Settlement is the outcome of closing a stream.
type Settlement struct {
	// Refund goes back to the payer.
	Refund uint64
	// Owed is accrued to the payee but not yet withdrawn.
	Owed uint64
}

// Close cancels the stream and splits the remaining balance between payer
// and payee. Refund is balance minus the payee's accrued-but-unwithdrawn
// amount, so both parties are settled from the same vesting figure. The
// refund leaves the stream; the payee's share stays in Balance until the
// payee withdraws it. Nothing is mutated on failure.
func (s *Stream) Close(now time.Time) (Settlement, error) {
	if err := s.requireAttached(); err != nil {
		return Settlement{}, err
	}
	if s.Balance == 0 {
		return Settlement{}, ErrStreamDrained
	}

	vested := s.accrued(now)
	owed := min(accrual.Available(vested, s.PayeeWithdrawn), s.Balance)
	settled := Settlement{
		Refund: accrual.Refund(s.Balance, vested, s.PayeeWithdrawn),
		Owed:   owed,
	}

	if err := s.cancel(now); err != nil {
		return Settlement{}, err
	}
	s.Balance = owed
	return settled, nil
}

func (s *Stream) requireAttached() error {
	switch s.Status {
	case StatusActive, StatusPaused:
		return nil
	case StatusCancelled:
		return ErrAlreadyCancelled
	default:
		return ErrNotStarted
	}
}
