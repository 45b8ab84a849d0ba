// Package streampay provides time-metered payment streams for Go applications.
//
// A payer deposits a fixed amount of an asset; the amount vests linearly to a
// recipient over a fixed active duration. The payer can pause, resume or
// cancel the stream, and the recipient can withdraw whatever has vested at
// any time. It provides:
//
//   - Gross-up ingress fees skimmed into per-asset fee reserves
//   - A CREATED → ACTIVE ↔ PAUSED → CANCELLED state machine per stream
//   - Capability tokens instead of identity checks for every operation
//   - Exact integer accrual with 128-bit intermediates, never floats
//   - Pluggable persistence (memory, PostgreSQL, SQLite, MongoDB via Grove)
//   - Lifecycle hooks for audit trails and metrics
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/streampay"
//	    "github.com/xraph/streampay/store/memory"
//	)
//
//	svc := streampay.New(memory.New())
//	if err := svc.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Stop()
//
//	admin, err := svc.InitRegistry(ctx)
//
// # Streams
//
// Create a stream from a deposit, then attach it to start accrual:
//
//	st, err := svc.CreatePayment(ctx, streampay.Native(1000), time.Hour, "alice")
//	payer, payee, err := svc.StartPayment(ctx, st, "bob")
//
// With the default 30 bps rate a 1000 deposit pays a fee of 3 and streams 997.
// Half way through, the payee withdraws 498:
//
//	got, err := svc.WithdrawPayment(ctx, payee)
//
// The payer can cancel at any point. The refund is the remaining balance
// minus what has accrued to the payee:
//
//	res, err := svc.CancelPayment(ctx, payer)
//
// What had accrued but was not yet withdrawn stays in the cancelled stream
// as res.PayeeOwed, and the payee token can still withdraw it. A cancelled
// stream is kept as its settlement record and can never be started again.
//
// # Tokens
//
// PayerToken, PayeeToken and AdminToken are capabilities. Whoever holds a
// token may perform the operations it grants; there is no separate sender
// check. A token only acts on the record it was minted for.
//
// # Time
//
// All accrual is measured in milliseconds of active (unpaused) time read from
// the service Clock. Supply a fixed clock with WithClock for deterministic
// settlement in tests.
package streampay
