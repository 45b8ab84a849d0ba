package streampay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/streampay/accrual"
	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/store"
	"github.com/xraph/streampay/stream"
	"github.com/xraph/streampay/token"
	"github.com/xraph/streampay/types"
)

// CancelResult is the settlement of a cancelled stream.
type CancelResult struct {
	StreamID  id.StreamID `json:"stream_id"`
	Payer     string      `json:"payer"`
	Recipient string      `json:"recipient"`
	// Refund is returned to the payer.
	Refund types.Coin `json:"refund"`
	// PayeeOwed is accrued to the recipient but was not yet withdrawn. It is
	// left in the stream for the payee token to withdraw.
	PayeeOwed types.Coin `json:"payee_owed"`
}

// TokenDelivery hands a freshly minted payee token to its recipient.
type TokenDelivery interface {
	DeliverPayeeToken(ctx context.Context, recipient string, tok *token.PayeeToken) error
}

// TokenDeliveryFunc adapts a function to TokenDelivery.
type TokenDeliveryFunc func(ctx context.Context, recipient string, tok *token.PayeeToken) error

// DeliverPayeeToken implements TokenDelivery.
func (f TokenDeliveryFunc) DeliverPayeeToken(ctx context.Context, recipient string, tok *token.PayeeToken) error {
	return f(ctx, recipient, tok)
}

// ──────────────────────────────────────────────────
// Stream creation
// ──────────────────────────────────────────────────

// CreatePayment accepts a deposit, skims the ingress fee into the asset's
// fee reserve, and returns an unattached stream holding the remainder. The
// stream is not persisted until StartPayment; nothing moves when validation
// fails.
func (s *Service) CreatePayment(ctx context.Context, deposit types.Coin, duration time.Duration, payer string) (*stream.Stream, error) {
	asset := types.Asset(string(deposit.Asset))
	if !asset.IsValid() {
		return nil, ValidationError{Field: "asset", Message: "must not be empty"}
	}
	if payer == "" {
		return nil, ValidationError{Field: "payer", Message: "must not be empty"}
	}
	if deposit.Amount == 0 {
		return nil, fmt.Errorf("%w: deposit must be positive", ErrInvalidAmount)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDuration, duration)
	}
	if l, ok := s.store.(store.AmountLimiter); ok && deposit.Amount > l.MaxAmount() {
		return nil, fmt.Errorf("%w: deposit %d exceeds store limit %d", ErrAmountOverflow, deposit.Amount, l.MaxAmount())
	}

	cfg, err := s.store.GetRegistry(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetAsset(ctx, asset); err != nil {
		return nil, err
	}

	fee, err := accrual.Fee(deposit.Amount, cfg.FeeRateBps)
	if err != nil {
		return nil, err
	}
	principal, feeCoin, err := types.NewCoin(asset, deposit.Amount).Split(fee)
	if err != nil {
		return nil, err
	}

	st, err := stream.New(asset, payer, principal.Amount, feeCoin.Amount, duration, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if !feeCoin.IsZero() {
		if err := s.store.CreditFeeReserve(ctx, asset, feeCoin.Amount); err != nil {
			return nil, err
		}
	}

	s.plugins.EmitStreamCreated(ctx, st)
	s.logger.Info("stream created",
		"stream_id", st.ID.String(),
		"asset", asset,
		"principal", principal.Amount,
		"fee", feeCoin.Amount,
		"duration", duration,
	)

	return st, nil
}

// StartPayment attaches st, starts accrual, and mints its capability tokens.
// The payer token stays with the caller; the payee token is for recipient
// and is passed to the configured TokenDelivery. A delivery failure is
// logged and does not undo the start; the token is still returned.
// On success st reflects the activated state.
func (s *Service) StartPayment(ctx context.Context, st *stream.Stream, recipient string) (*token.PayerToken, *token.PayeeToken, error) {
	if st == nil {
		return nil, nil, ValidationError{Field: "stream", Message: "must not be nil"}
	}
	if recipient == "" {
		return nil, nil, ValidationError{Field: "recipient", Message: "must not be empty"}
	}

	unlock := s.streamLocks.Lock(st.ID.String())
	defer unlock()

	next := st.Clone()
	payerToken, payeeToken := token.MintPair(next.ID)
	if err := next.Activate(s.clock.Now(), recipient, payerToken.ID, payeeToken.ID); err != nil {
		return nil, nil, err
	}

	if err := s.store.InsertStream(ctx, next); err != nil {
		if errors.Is(err, stream.ErrAlreadyExists) {
			return nil, nil, fmt.Errorf("%w: %w", ErrAlreadyStarted, err)
		}
		return nil, nil, err
	}
	*st = *next.Clone()

	if s.delivery != nil {
		if err := s.delivery.DeliverPayeeToken(ctx, recipient, payeeToken); err != nil {
			s.logger.Warn("payee token delivery failed",
				"stream_id", next.ID.String(),
				"recipient", recipient,
				"error", err,
			)
		}
	}

	s.plugins.EmitStreamActivated(ctx, next)
	s.logger.Info("stream activated",
		"stream_id", next.ID.String(),
		"recipient", recipient,
		"start_time", next.StartTime,
	)

	return payerToken, payeeToken, nil
}

// ──────────────────────────────────────────────────
// Payer operations
// ──────────────────────────────────────────────────

// PausePayment stops accrual on the stream controlled by payer.
func (s *Service) PausePayment(ctx context.Context, payer *token.PayerToken) error {
	if payer == nil {
		return ErrUnauthorized
	}

	unlock := s.streamLocks.Lock(payer.StreamID.String())
	defer unlock()

	st, err := s.loadForPayer(ctx, payer)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if err := st.Pause(now); err != nil {
		return err
	}
	if err := s.store.UpdateStream(ctx, st); err != nil {
		return err
	}

	s.plugins.EmitStreamPaused(ctx, st.ID, now)
	s.logger.Info("stream paused", "stream_id", st.ID.String(), "at", now)
	return nil
}

// ResumePayment restarts accrual on the stream controlled by payer.
func (s *Service) ResumePayment(ctx context.Context, payer *token.PayerToken) error {
	if payer == nil {
		return ErrUnauthorized
	}

	unlock := s.streamLocks.Lock(payer.StreamID.String())
	defer unlock()

	st, err := s.loadForPayer(ctx, payer)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if err := st.Resume(now); err != nil {
		return err
	}
	if err := s.store.UpdateStream(ctx, st); err != nil {
		return err
	}

	s.plugins.EmitStreamResumed(ctx, st.ID, now)
	s.logger.Info("stream resumed",
		"stream_id", st.ID.String(),
		"at", now,
		"accumulated_pause", st.AccumulatedPause,
	)
	return nil
}

// CancelPayment settles the stream controlled by payer. The payer is refunded
// the balance minus what has accrued to the payee; the payee's
// accrued-but-unwithdrawn share is reported as PayeeOwed and stays in the
// stream until the payee token claims it through WithdrawPayment. Both
// figures come from the same vesting reading, so they sum to the balance.
// The cancelled stream is kept as its settlement record, so neither it nor
// a saved copy of it can be started again.
func (s *Service) CancelPayment(ctx context.Context, payer *token.PayerToken) (*CancelResult, error) {
	if payer == nil {
		return nil, ErrUnauthorized
	}

	unlock := s.streamLocks.Lock(payer.StreamID.String())
	defer unlock()

	st, err := s.loadForPayer(ctx, payer)
	if err != nil {
		return nil, err
	}

	settled, err := st.Close(s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateStream(ctx, st); err != nil {
		return nil, err
	}

	result := &CancelResult{
		StreamID:  st.ID,
		Payer:     st.Payer,
		Recipient: st.Recipient,
		Refund:    types.NewCoin(st.Asset, settled.Refund),
		PayeeOwed: types.NewCoin(st.Asset, settled.Owed),
	}

	s.plugins.EmitStreamCancelled(ctx, st.ID, result.Refund, result.PayeeOwed)
	s.logger.Info("stream cancelled",
		"stream_id", st.ID.String(),
		"refund", settled.Refund,
		"payee_owed", settled.Owed,
	)

	return result, nil
}

// ──────────────────────────────────────────────────
// Payee operations
// ──────────────────────────────────────────────────

// WithdrawPayment releases everything vested and not yet withdrawn to the
// payee. On a cancelled stream it releases the share left by CancelPayment.
// Withdrawing with nothing available returns a zero coin and no
// error. The token's WithdrawnAmount is refreshed on success.
func (s *Service) WithdrawPayment(ctx context.Context, payee *token.PayeeToken) (types.Coin, error) {
	if payee == nil {
		return types.Coin{}, ErrUnauthorized
	}

	unlock := s.streamLocks.Lock(payee.StreamID.String())
	defer unlock()

	st, err := s.loadForPayee(ctx, payee)
	if err != nil {
		return types.Coin{}, err
	}

	amount, err := st.Withdraw(s.clock.Now())
	if err != nil {
		return types.Coin{}, err
	}
	if amount == 0 {
		payee.WithdrawnAmount = st.PayeeWithdrawn
		return types.Zero(st.Asset), nil
	}
	if err := s.store.UpdateStream(ctx, st); err != nil {
		return types.Coin{}, err
	}
	payee.WithdrawnAmount = st.PayeeWithdrawn

	out := types.NewCoin(st.Asset, amount)
	s.plugins.EmitWithdrawn(ctx, st.ID, out)
	s.logger.Info("payee withdrew",
		"stream_id", st.ID.String(),
		"amount", amount,
		"balance", st.Balance,
	)

	return out, nil
}

// Withdrawable reports what WithdrawPayment would release right now.
func (s *Service) Withdrawable(ctx context.Context, payee *token.PayeeToken) (types.Coin, error) {
	if payee == nil {
		return types.Coin{}, ErrUnauthorized
	}
	st, err := s.loadForPayee(ctx, payee)
	if err != nil {
		return types.Coin{}, err
	}
	return types.NewCoin(st.Asset, st.Withdrawable(s.clock.Now())), nil
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// GetStream returns a started stream by ID, including cancelled ones.
func (s *Service) GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error) {
	return s.store.GetStream(ctx, streamID)
}

// ListStreams returns started streams matching opts, oldest first.
func (s *Service) ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	return s.store.ListStreams(ctx, opts)
}

// Vested returns the amount accrued to the payee of a stream so far,
// withdrawn or not.
func (s *Service) Vested(ctx context.Context, streamID id.StreamID) (types.Coin, error) {
	st, err := s.store.GetStream(ctx, streamID)
	if err != nil {
		return types.Coin{}, err
	}
	return types.NewCoin(st.Asset, st.Vested(s.clock.Now())), nil
}

func (s *Service) loadForPayer(ctx context.Context, payer *token.PayerToken) (*stream.Stream, error) {
	st, err := s.store.GetStream(ctx, payer.StreamID)
	if err != nil {
		return nil, err
	}
	if err := payer.Authorize(st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) loadForPayee(ctx context.Context, payee *token.PayeeToken) (*stream.Stream, error) {
	st, err := s.store.GetStream(ctx, payee.StreamID)
	if err != nil {
		return nil, err
	}
	if err := payee.Authorize(st); err != nil {
		return nil, err
	}
	return st, nil
}
