package streampay_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/streampay"
	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/store/memory"
	"github.com/xraph/streampay/stream"
	"github.com/xraph/streampay/token"
	"github.com/xraph/streampay/types"
)

const duration = 3600 * time.Millisecond

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *manualClock {
	return &manualClock{now: time.UnixMilli(1_700_000_000_000).UTC()}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ctx   context.Context
	svc   *streampay.Service
	clock *manualClock
	admin *token.AdminToken
}

func setup(t *testing.T, opts ...streampay.Option) *fixture {
	t.Helper()

	clock := newClock()
	opts = append([]streampay.Option{
		streampay.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		streampay.WithClock(clock),
	}, opts...)
	svc := streampay.New(memory.New(), opts...)

	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = svc.Stop() })

	admin, err := svc.InitRegistry(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{ctx: ctx, svc: svc, clock: clock, admin: admin}
}

func (f *fixture) start(t *testing.T, amount uint64) (*stream.Stream, *token.PayerToken, *token.PayeeToken) {
	t.Helper()
	st, err := f.svc.CreatePayment(f.ctx, types.Native(amount), duration, "alice")
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	payer, payee, err := f.svc.StartPayment(f.ctx, st, "bob")
	if err != nil {
		t.Fatalf("StartPayment: %v", err)
	}
	return st, payer, payee
}

func TestReferenceScenario(t *testing.T) {
	f := setup(t)

	st, err := f.svc.CreatePayment(f.ctx, types.Native(1000), duration, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if st.FeePaid != 3 || st.InitialAmount != 997 || st.Balance != 997 {
		t.Fatalf("got fee=%d initial=%d balance=%d, want 3/997/997", st.FeePaid, st.InitialAmount, st.Balance)
	}
	if st.Status != streampay.StatusCreated {
		t.Errorf("status: got %s, want created", st.Status)
	}
	reserve, err := f.svc.FeeReserve(f.ctx, types.NativeAsset)
	if err != nil {
		t.Fatal(err)
	}
	if reserve.Amount != 3 {
		t.Errorf("fee reserve: got %d, want 3", reserve.Amount)
	}

	payer, payee, err := f.svc.StartPayment(f.ctx, st, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != streampay.StatusActive || st.StartTime == nil {
		t.Errorf("caller's stream not activated: %+v", st)
	}

	f.clock.Advance(1800 * time.Millisecond)

	got, err := f.svc.WithdrawPayment(f.ctx, payee)
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount != 498 {
		t.Errorf("withdraw: got %d, want 498", got.Amount)
	}
	if payee.WithdrawnAmount != 498 {
		t.Errorf("token withdrawn amount: got %d, want 498", payee.WithdrawnAmount)
	}

	stored, err := f.svc.GetStream(f.ctx, st.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Balance != 499 {
		t.Errorf("balance: got %d, want 499", stored.Balance)
	}

	res, err := f.svc.CancelPayment(f.ctx, payer)
	if err != nil {
		t.Fatal(err)
	}
	if res.Refund.Amount != 499 || res.PayeeOwed.Amount != 0 {
		t.Errorf("cancel: got refund=%d owed=%d, want 499/0", res.Refund.Amount, res.PayeeOwed.Amount)
	}
	if res.Recipient != "bob" || res.Payer != "alice" {
		t.Errorf("cancel parties: got %s -> %s", res.Payer, res.Recipient)
	}

	settled, err := f.svc.GetStream(f.ctx, st.ID)
	if err != nil {
		t.Fatal(err)
	}
	if settled.Status != streampay.StatusCancelled || settled.Balance != 0 {
		t.Errorf("stream after cancel: got status=%s balance=%d, want cancelled/0", settled.Status, settled.Balance)
	}
}

func TestCancelWithoutWithdraw(t *testing.T) {
	f := setup(t)
	_, payer, _ := f.start(t, 1000)

	f.clock.Advance(1800 * time.Millisecond)

	res, err := f.svc.CancelPayment(f.ctx, payer)
	if err != nil {
		t.Fatal(err)
	}
	if res.Refund.Amount != 499 || res.PayeeOwed.Amount != 498 {
		t.Errorf("got refund=%d owed=%d, want 499/498", res.Refund.Amount, res.PayeeOwed.Amount)
	}
}

func TestCancelTwice(t *testing.T) {
	f := setup(t)
	_, payer, _ := f.start(t, 1000)

	if _, err := f.svc.CancelPayment(f.ctx, payer); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CancelPayment(f.ctx, payer); !errors.Is(err, streampay.ErrAlreadyCancelled) {
		t.Errorf("got %v, want ErrAlreadyCancelled", err)
	}
}

func TestCancelDrained(t *testing.T) {
	f := setup(t)
	_, payer, payee := f.start(t, 1000)

	f.clock.Advance(2 * duration)
	got, err := f.svc.WithdrawPayment(f.ctx, payee)
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount != 997 {
		t.Fatalf("full withdraw: got %d, want 997", got.Amount)
	}

	if _, err := f.svc.CancelPayment(f.ctx, payer); !errors.Is(err, streampay.ErrStreamDrained) {
		t.Errorf("got %v, want ErrStreamDrained", err)
	}
	if !streampay.IsStateError(streampay.ErrStreamDrained) {
		t.Error("ErrStreamDrained should be a state error")
	}
}

func TestWithdrawNothingAvailable(t *testing.T) {
	f := setup(t)
	_, _, payee := f.start(t, 1000)

	f.clock.Advance(1800 * time.Millisecond)
	if _, err := f.svc.WithdrawPayment(f.ctx, payee); err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.WithdrawPayment(f.ctx, payee)
	if err != nil {
		t.Fatalf("second withdraw: %v", err)
	}
	if !got.IsZero() || got.Asset != types.NativeAsset {
		t.Errorf("got %v, want 0 native", got)
	}
}

func TestPauseResume(t *testing.T) {
	f := setup(t)
	st, payer, payee := f.start(t, 1000)

	f.clock.Advance(1000 * time.Millisecond)
	if err := f.svc.PausePayment(f.ctx, payer); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.PausePayment(f.ctx, payer); !errors.Is(err, streampay.ErrNotActive) {
		t.Errorf("double pause: got %v, want ErrNotActive", err)
	}

	f.clock.Advance(2000 * time.Millisecond)
	avail, err := f.svc.Withdrawable(f.ctx, payee)
	if err != nil {
		t.Fatal(err)
	}
	if avail.Amount != 276 { // 1000ms of 3600ms of 997
		t.Errorf("withdrawable while paused: got %d, want 276", avail.Amount)
	}

	if err := f.svc.ResumePayment(f.ctx, payer); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.ResumePayment(f.ctx, payer); !errors.Is(err, streampay.ErrNotPaused) {
		t.Errorf("double resume: got %v, want ErrNotPaused", err)
	}

	f.clock.Advance(800 * time.Millisecond)
	vested, err := f.svc.Vested(f.ctx, st.ID)
	if err != nil {
		t.Fatal(err)
	}
	if vested.Amount != 498 {
		t.Errorf("vested after resume: got %d, want 498", vested.Amount)
	}

	stored, err := f.svc.GetStream(f.ctx, st.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.AccumulatedPause != 2*time.Second || stored.PauseStart != nil {
		t.Errorf("pause bookkeeping: accumulated=%v pause_start=%v", stored.AccumulatedPause, stored.PauseStart)
	}
}

func TestCancelWhilePaused(t *testing.T) {
	f := setup(t)
	_, payer, _ := f.start(t, 1000)

	f.clock.Advance(1800 * time.Millisecond)
	if err := f.svc.PausePayment(f.ctx, payer); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(time.Hour)

	res, err := f.svc.CancelPayment(f.ctx, payer)
	if err != nil {
		t.Fatal(err)
	}
	if res.Refund.Amount != 499 || res.PayeeOwed.Amount != 498 {
		t.Errorf("got refund=%d owed=%d, want 499/498", res.Refund.Amount, res.PayeeOwed.Amount)
	}
}

func TestStartTwice(t *testing.T) {
	f := setup(t)
	st, _, _ := f.start(t, 1000)

	if _, _, err := f.svc.StartPayment(f.ctx, st, "carol"); !errors.Is(err, streampay.ErrAlreadyStarted) {
		t.Errorf("got %v, want ErrAlreadyStarted", err)
	}
}

func TestStartCopyOfStartedStream(t *testing.T) {
	f := setup(t)
	st, err := f.svc.CreatePayment(f.ctx, types.Native(1000), duration, "alice")
	if err != nil {
		t.Fatal(err)
	}
	stale := st.Clone()

	if _, _, err := f.svc.StartPayment(f.ctx, st, "bob"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.svc.StartPayment(f.ctx, stale, "mallory"); !errors.Is(err, streampay.ErrAlreadyStarted) {
		t.Errorf("got %v, want ErrAlreadyStarted", err)
	}
}

func TestRestartAfterCancel(t *testing.T) {
	f := setup(t)
	st, err := f.svc.CreatePayment(f.ctx, types.Native(1000), duration, "alice")
	if err != nil {
		t.Fatal(err)
	}
	saved := st.Clone()

	payer, _, err := f.svc.StartPayment(f.ctx, st, "bob")
	if err != nil {
		t.Fatal(err)
	}
	res, err := f.svc.CancelPayment(f.ctx, payer)
	if err != nil {
		t.Fatal(err)
	}
	if res.Refund.Amount != 997 {
		t.Fatalf("refund: got %d, want 997", res.Refund.Amount)
	}

	if _, _, err := f.svc.StartPayment(f.ctx, saved, "mallory"); !errors.Is(err, streampay.ErrAlreadyStarted) {
		t.Fatalf("restart after cancel: got %v, want ErrAlreadyStarted", err)
	}

	stored, err := f.svc.GetStream(f.ctx, st.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != streampay.StatusCancelled || stored.Recipient != "bob" || stored.Balance != 0 {
		t.Errorf("settlement record changed: status=%s recipient=%s balance=%d",
			stored.Status, stored.Recipient, stored.Balance)
	}
}

func TestPayeeClaimsAfterCancel(t *testing.T) {
	f := setup(t)
	st, payer, payee := f.start(t, 1000)
	f.clock.Advance(1800 * time.Millisecond)

	res, err := f.svc.CancelPayment(f.ctx, payer)
	if err != nil {
		t.Fatal(err)
	}
	if res.Refund.Amount != 499 || res.PayeeOwed.Amount != 498 {
		t.Fatalf("cancel: got refund=%d owed=%d, want 499/498", res.Refund.Amount, res.PayeeOwed.Amount)
	}

	// Time after cancellation accrues nothing more.
	f.clock.Advance(time.Hour)
	avail, err := f.svc.Withdrawable(f.ctx, payee)
	if err != nil {
		t.Fatal(err)
	}
	if avail.Amount != 498 {
		t.Errorf("withdrawable after cancel: got %d, want 498", avail.Amount)
	}

	got, err := f.svc.WithdrawPayment(f.ctx, payee)
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount != 498 || payee.WithdrawnAmount != 498 {
		t.Errorf("claim: got %d withdrawn=%d, want 498/498", got.Amount, payee.WithdrawnAmount)
	}
	if total := got.Amount + res.Refund.Amount; total != 997 {
		t.Errorf("conservation: claim %d + refund %d = %d, want 997", got.Amount, res.Refund.Amount, total)
	}

	again, err := f.svc.WithdrawPayment(f.ctx, payee)
	if err != nil {
		t.Fatal(err)
	}
	if !again.IsZero() {
		t.Errorf("second claim: got %d, want 0", again.Amount)
	}

	stored, err := f.svc.GetStream(f.ctx, st.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != streampay.StatusCancelled || stored.Balance != 0 || stored.PayeeWithdrawn != 498 {
		t.Errorf("got status=%s balance=%d withdrawn=%d", stored.Status, stored.Balance, stored.PayeeWithdrawn)
	}
	vested, err := f.svc.Vested(f.ctx, st.ID)
	if err != nil {
		t.Fatal(err)
	}
	if vested.Amount != 498 {
		t.Errorf("vested after claim: got %d, want 498", vested.Amount)
	}
}

type limitedStore struct {
	*memory.Store
	max uint64
}

func (s limitedStore) MaxAmount() uint64 { return s.max }

func TestCreatePaymentStoreLimit(t *testing.T) {
	svc := streampay.New(limitedStore{Store: memory.New(), max: 5000},
		streampay.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ctx := context.Background()
	if _, err := svc.InitRegistry(ctx); err != nil {
		t.Fatal(err)
	}

	_, err := svc.CreatePayment(ctx, types.Native(5001), duration, "alice")
	if !errors.Is(err, streampay.ErrAmountOverflow) {
		t.Fatalf("got %v, want ErrAmountOverflow", err)
	}
	if !streampay.IsArithmeticError(err) {
		t.Errorf("%v should be an arithmetic error", err)
	}
	reserve, err := svc.FeeReserve(ctx, types.NativeAsset)
	if err != nil {
		t.Fatal(err)
	}
	if !reserve.IsZero() {
		t.Errorf("rejected deposit credited fee: reserve %d", reserve.Amount)
	}

	if _, err := svc.CreatePayment(ctx, types.Native(5000), duration, "alice"); err != nil {
		t.Errorf("deposit at limit: %v", err)
	}
}

func TestCreatePaymentValidation(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name     string
		deposit  types.Coin
		duration time.Duration
		payer    string
		wantErr  error
	}{
		{"Unsupported asset", types.NewCoin("usdc", 1000), duration, "alice", streampay.ErrAssetNotWhitelisted},
		{"Zero duration", types.Native(1000), 0, "alice", streampay.ErrInvalidDuration},
		{"Negative duration", types.Native(1000), -time.Second, "alice", streampay.ErrInvalidDuration},
		{"Zero amount", types.Native(0), duration, "alice", streampay.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreatePayment(f.ctx, tt.deposit, tt.duration, tt.payer)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
			if !streampay.IsValidationError(err) {
				t.Errorf("%v should be a validation error", err)
			}
		})
	}

	if _, err := f.svc.CreatePayment(f.ctx, types.Native(1000), duration, ""); !streampay.IsValidationError(err) {
		t.Errorf("empty payer: got %v, want validation error", err)
	}

	reserve, err := f.svc.FeeReserve(f.ctx, types.NativeAsset)
	if err != nil {
		t.Fatal(err)
	}
	if !reserve.IsZero() {
		t.Errorf("rejected deposits moved funds: reserve %d", reserve.Amount)
	}
}

func TestCreatePaymentWithoutRegistry(t *testing.T) {
	svc := streampay.New(memory.New(), streampay.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err := svc.CreatePayment(context.Background(), types.Native(1000), duration, "alice")
	if !errors.Is(err, streampay.ErrRegistryNotInitialized) {
		t.Errorf("got %v, want ErrRegistryNotInitialized", err)
	}
}

func TestInitRegistryTwice(t *testing.T) {
	f := setup(t)
	if _, err := f.svc.InitRegistry(f.ctx); !errors.Is(err, streampay.ErrRegistryAlreadyInitialized) {
		t.Errorf("got %v, want ErrRegistryAlreadyInitialized", err)
	}
}

func TestTokenAuthorization(t *testing.T) {
	f := setup(t)
	stA, payerA, payeeA := f.start(t, 1000)
	stB, _, _ := f.start(t, 1000)

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{"Payer token retargeted", func() error {
			return f.svc.PausePayment(f.ctx, &token.PayerToken{ID: payerA.ID, StreamID: stB.ID})
		}, streampay.ErrUnauthorized},
		{"Forged payer token", func() error {
			return f.svc.PausePayment(f.ctx, &token.PayerToken{ID: id.NewPayerTokenID(), StreamID: stA.ID})
		}, streampay.ErrUnauthorized},
		{"Payee ID in payer token", func() error {
			_, err := f.svc.CancelPayment(f.ctx, &token.PayerToken{ID: payeeA.ID, StreamID: stA.ID})
			return err
		}, streampay.ErrUnauthorized},
		{"Payee token retargeted", func() error {
			_, err := f.svc.WithdrawPayment(f.ctx, &token.PayeeToken{ID: payeeA.ID, StreamID: stB.ID})
			return err
		}, streampay.ErrUnauthorized},
		{"Nil payer token", func() error { return f.svc.ResumePayment(f.ctx, nil) }, streampay.ErrUnauthorized},
		{"Nil payee token", func() error { _, err := f.svc.WithdrawPayment(f.ctx, nil); return err }, streampay.ErrUnauthorized},
		{"Forged admin token", func() error {
			return f.svc.SetFeeRate(f.ctx, token.MintAdmin(), 50)
		}, streampay.ErrUnauthorized},
		{"Nil admin token", func() error { return f.svc.AddAsset(f.ctx, nil, "usdc") }, streampay.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
			if !streampay.IsAuthorizationError(err) {
				t.Errorf("%v should be an authorization error", err)
			}
		})
	}

	stored, err := f.svc.GetStream(f.ctx, stB.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != streampay.StatusActive {
		t.Errorf("unauthorized call changed stream B to %s", stored.Status)
	}
}

func TestAdministration(t *testing.T) {
	f := setup(t)

	for _, rate := range []uint64{0, 10_001} {
		if err := f.svc.SetFeeRate(f.ctx, f.admin, rate); !errors.Is(err, streampay.ErrFeeRateInvalid) {
			t.Errorf("rate %d: got %v, want ErrFeeRateInvalid", rate, err)
		}
	}

	f.start(t, 1000) // fee 3 at 30 bps

	if err := f.svc.SetFeeRate(f.ctx, f.admin, 50); err != nil {
		t.Fatal(err)
	}
	rate, err := f.svc.FeeRate(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rate != 50 {
		t.Errorf("fee rate: got %d, want 50", rate)
	}

	st, _, _ := f.start(t, 1000) // ceil(50000 / 10050) = 5
	if st.FeePaid != 5 || st.InitialAmount != 995 {
		t.Errorf("got fee=%d initial=%d, want 5/995", st.FeePaid, st.InitialAmount)
	}

	fees, err := f.svc.CollectFees(f.ctx, f.admin, types.NativeAsset)
	if err != nil {
		t.Fatal(err)
	}
	if fees.Amount != 8 {
		t.Errorf("collected: got %d, want 8", fees.Amount)
	}
	again, err := f.svc.CollectFees(f.ctx, f.admin, types.NativeAsset)
	if err != nil {
		t.Fatal(err)
	}
	if !again.IsZero() {
		t.Errorf("second collect: got %d, want 0", again.Amount)
	}
}

func TestAddAsset(t *testing.T) {
	f := setup(t)

	ok, err := f.svc.IsWhitelisted(f.ctx, "USDC")
	if err != nil || ok {
		t.Fatalf("before add: ok=%v err=%v", ok, err)
	}

	for range 2 {
		if err := f.svc.AddAsset(f.ctx, f.admin, " USDC "); err != nil {
			t.Fatal(err)
		}
	}
	ok, err = f.svc.IsWhitelisted(f.ctx, "usdc")
	if err != nil || !ok {
		t.Fatalf("after add: ok=%v err=%v", ok, err)
	}

	st, err := f.svc.CreatePayment(f.ctx, types.NewCoin("usdc", 1000), duration, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if st.Asset != "usdc" {
		t.Errorf("asset: got %s, want usdc", st.Asset)
	}

	assets, err := f.svc.ListAssets(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 2 {
		t.Errorf("got %d assets, want 2", len(assets))
	}

	if err := f.svc.AddAsset(f.ctx, f.admin, "  "); !streampay.IsValidationError(err) {
		t.Errorf("empty asset: got %v, want validation error", err)
	}
}

func TestInitialAssetsOption(t *testing.T) {
	f := setup(t, streampay.WithInitialAssets("USDC", "native"), streampay.WithDefaultFeeRate(100))

	ok, err := f.svc.IsWhitelisted(f.ctx, "usdc")
	if err != nil || !ok {
		t.Errorf("usdc: ok=%v err=%v", ok, err)
	}
	rate, err := f.svc.FeeRate(f.ctx)
	if err != nil || rate != 100 {
		t.Errorf("rate: got %d err=%v, want 100", rate, err)
	}
}

func TestConservation(t *testing.T) {
	f := setup(t)
	_, payer, payee := f.start(t, 1000)

	var withdrawn uint64
	var last uint64
	steps := []struct {
		advance time.Duration
		action  string
	}{
		{250 * time.Millisecond, "withdraw"},
		{300 * time.Millisecond, "pause"},
		{900 * time.Millisecond, "withdraw"},
		{100 * time.Millisecond, "resume"},
		{700 * time.Millisecond, "withdraw"},
		{10 * time.Millisecond, "pause"},
		{20 * time.Millisecond, "resume"},
		{1234 * time.Millisecond, "withdraw"},
	}

	for _, step := range steps {
		f.clock.Advance(step.advance)
		switch step.action {
		case "withdraw":
			got, err := f.svc.WithdrawPayment(f.ctx, payee)
			if err != nil {
				t.Fatal(err)
			}
			withdrawn += got.Amount
			if payee.WithdrawnAmount < last {
				t.Fatalf("cumulative withdrawal decreased: %d < %d", payee.WithdrawnAmount, last)
			}
			last = payee.WithdrawnAmount
		case "pause":
			if err := f.svc.PausePayment(f.ctx, payer); err != nil {
				t.Fatal(err)
			}
		case "resume":
			if err := f.svc.ResumePayment(f.ctx, payer); err != nil {
				t.Fatal(err)
			}
		}
	}

	res, err := f.svc.CancelPayment(f.ctx, payer)
	if err != nil {
		t.Fatal(err)
	}
	if total := withdrawn + res.PayeeOwed.Amount + res.Refund.Amount; total != 997 {
		t.Errorf("conservation: withdrawn %d + owed %d + refund %d = %d, want 997",
			withdrawn, res.PayeeOwed.Amount, res.Refund.Amount, total)
	}
}

func TestConcurrentWithdrawals(t *testing.T) {
	f := setup(t)
	_, _, payee := f.start(t, 1000)
	f.clock.Advance(1800 * time.Millisecond)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total uint64
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := *payee
			got, err := f.svc.WithdrawPayment(f.ctx, &tok)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			total += got.Amount
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 498 {
		t.Errorf("concurrent withdrawals paid %d, want 498", total)
	}
}

func TestConcurrentCancelAndWithdraw(t *testing.T) {
	f := setup(t)
	_, payer, payee := f.start(t, 1000)
	f.clock.Advance(1800 * time.Millisecond)

	var (
		wg        sync.WaitGroup
		withdrawn types.Coin
		res       *streampay.CancelResult
		cancelErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		withdrawn, _ = f.svc.WithdrawPayment(f.ctx, payee) //nolint:errcheck // may lose the race to cancel
	}()
	go func() {
		defer wg.Done()
		res, cancelErr = f.svc.CancelPayment(f.ctx, payer)
	}()
	wg.Wait()

	if cancelErr != nil {
		t.Fatal(cancelErr)
	}
	// Whichever ran first, a final claim leaves the payee with its full share.
	rest, err := f.svc.WithdrawPayment(f.ctx, payee)
	if err != nil {
		t.Fatal(err)
	}
	paid := withdrawn.Amount + rest.Amount
	if paid != 498 {
		t.Errorf("payee received %d, want 498", paid)
	}
	if total := paid + res.Refund.Amount; total != 997 {
		t.Errorf("conservation under race: got %d, want 997", total)
	}
	if res.Refund.Amount != 499 {
		t.Errorf("refund: got %d, want 499", res.Refund.Amount)
	}
}

func TestListStreams(t *testing.T) {
	f := setup(t)
	f.start(t, 1000)
	f.start(t, 2000)

	all, err := f.svc.ListStreams(f.ctx, streampay.ListOpts{Payer: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("got %d streams, want 2", len(all))
	}

	none, err := f.svc.ListStreams(f.ctx, streampay.ListOpts{Recipient: "carol"})
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("got %d streams for carol, want 0", len(none))
	}
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"Validation struct", streampay.ValidationError{Field: "x", Message: "y"}, streampay.IsValidationError},
		{"Not found", streampay.ErrStreamNotFound, streampay.IsNotFound},
		{"Registry missing", streampay.ErrRegistryNotInitialized, streampay.IsNotFound},
		{"Retryable", streampay.ErrConcurrentUpdate, streampay.IsRetryable},
		{"Arithmetic", streampay.ErrOverflow, streampay.IsArithmeticError},
		{"State", streampay.ErrNotStarted, streampay.IsStateError},
		{"Wrong stream", streampay.ErrWrongStream, streampay.IsAuthorizationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.pred(tt.err) {
				t.Errorf("predicate rejected %v", tt.err)
			}
		})
	}

	if streampay.IsRetryable(streampay.ErrUnauthorized) {
		t.Error("unauthorized must not be retryable")
	}
}

func TestTokenDelivery(t *testing.T) {
	var (
		gotRecipient string
		gotToken     *token.PayeeToken
	)
	f := setup(t, streampay.WithTokenDelivery(streampay.TokenDeliveryFunc(
		func(_ context.Context, recipient string, tok *token.PayeeToken) error {
			gotRecipient, gotToken = recipient, tok
			return nil
		},
	)))

	st, _, payee := f.start(t, 1000)

	if gotRecipient != "bob" {
		t.Errorf("recipient: got %q, want bob", gotRecipient)
	}
	if gotToken == nil || !gotToken.ID.Equal(payee.ID) || !gotToken.StreamID.Equal(st.ID) {
		t.Errorf("delivered token %+v does not match %+v", gotToken, payee)
	}
}

func TestTokenDeliveryFailureKeepsStream(t *testing.T) {
	f := setup(t, streampay.WithTokenDelivery(streampay.TokenDeliveryFunc(
		func(context.Context, string, *token.PayeeToken) error { return errors.New("mailbox full") },
	)))

	st, _, payee := f.start(t, 1000)
	if payee == nil {
		t.Fatal("payee token not returned")
	}
	if _, err := f.svc.GetStream(f.ctx, st.ID); err != nil {
		t.Errorf("stream not attached: %v", err)
	}
}
