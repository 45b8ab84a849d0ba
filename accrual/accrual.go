// Package accrual holds the fixed-point arithmetic shared by every settlement
// path: the ingress fee, elapsed active (unpaused) time, and linear vesting.
//
// All functions are pure. Products are computed at 128-bit width before any
// division, so no intermediate result is truncated.
package accrual

import (
	"errors"
	"math/bits"
	"time"
)

// FeeBase is the denominator for fee rates expressed in basis points.
const FeeBase uint64 = 10_000

// Arithmetic and validation errors.
var (
	ErrFeeRateInvalid = errors.New("streampay: fee rate invalid")
	ErrOverflow       = errors.New("streampay: arithmetic overflow")
)

// Fee returns the gross-up fee deducted from a gross deposit, so that
// fee / (gross - fee) approximates rateBps / FeeBase:
//
//	fee = ceil(gross * rateBps / (FeeBase + rateBps))
//
// A rate above FeeBase fails with ErrFeeRateInvalid.
func Fee(gross, rateBps uint64) (uint64, error) {
	if rateBps > FeeBase {
		return 0, ErrFeeRateInvalid
	}
	if gross == 0 || rateBps == 0 {
		return 0, nil
	}

	denom := FeeBase + rateBps
	hi, lo := bits.Mul64(gross, rateBps)
	if hi >= denom {
		return 0, ErrOverflow
	}

	q, r := bits.Div64(hi, lo, denom)
	if r != 0 {
		q++
	}
	return q, nil
}

// ElapsedActiveTime returns the time the stream has spent active:
// now - start - accumulatedPause, minus the open pause interval when
// pauseStart is set. The result never goes below zero.
func ElapsedActiveTime(now, start time.Time, accumulatedPause time.Duration, pauseStart *time.Time) time.Duration {
	elapsed := now.Sub(start) - accumulatedPause
	if pauseStart != nil {
		elapsed -= now.Sub(*pauseStart)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// VestedAmount returns min(initial, floor(elapsed * initial / duration)).
// A non-positive duration vests everything as soon as any time has elapsed.
func VestedAmount(elapsed, duration time.Duration, initial uint64) uint64 {
	if elapsed <= 0 || initial == 0 {
		return 0
	}
	if duration <= 0 || elapsed >= duration {
		return initial
	}

	// elapsed < duration, so hi < duration and Div64 cannot overflow.
	hi, lo := bits.Mul64(uint64(elapsed), initial)
	q, _ := bits.Div64(hi, lo, uint64(duration))
	return min(q, initial)
}

// Available returns the vested amount the payee has not yet withdrawn.
func Available(vested, withdrawn uint64) uint64 {
	if vested <= withdrawn {
		return 0
	}
	return vested - withdrawn
}

// Refund returns what the payer recovers on cancellation: the remaining
// balance minus whatever has accrued to the payee but not been withdrawn.
func Refund(balance, vested, withdrawn uint64) uint64 {
	owed := Available(vested, withdrawn)
	if owed >= balance {
		return 0
	}
	return balance - owed
}
