// Package token defines the capability handles that authorize stream and
// registry operations. Holding a token is the authorization: a PayerToken
// controls pause, resume and cancel; a PayeeToken controls withdrawals; the
// single AdminToken controls the registry.
//
// A token is only honored while its ID matches the one bound to the target
// record, so a token for one stream can never act on another.
package token

import (
	"errors"
	"fmt"

	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/registry"
	"github.com/xraph/streampay/stream"
)

// Authorization errors.
var (
	ErrUnauthorized = errors.New("streampay: unauthorized")
	ErrWrongStream  = errors.New("streampay: token references a different stream")
)

// PayerToken authorizes the payer side of one stream.
type PayerToken struct {
	ID       id.PayerTokenID `json:"id"`
	StreamID id.StreamID     `json:"stream_id"`
}

// PayeeToken authorizes withdrawals from one stream.
type PayeeToken struct {
	ID       id.PayeeTokenID `json:"id"`
	StreamID id.StreamID     `json:"stream_id"`
	// WithdrawnAmount mirrors the stream's cumulative payee withdrawal as of
	// the last withdrawal made with this token.
	WithdrawnAmount uint64 `json:"withdrawn_amount"`
}

// AdminToken authorizes registry administration.
type AdminToken struct {
	ID id.AdminTokenID `json:"id"`
}

// MintPair creates the payer and payee tokens for a stream.
func MintPair(streamID id.StreamID) (*PayerToken, *PayeeToken) {
	return &PayerToken{ID: id.NewPayerTokenID(), StreamID: streamID},
		&PayeeToken{ID: id.NewPayeeTokenID(), StreamID: streamID}
}

// MintAdmin creates a new admin token.
func MintAdmin() *AdminToken {
	return &AdminToken{ID: id.NewAdminTokenID()}
}

// Authorize checks that t is the payer token bound to s.
func (t *PayerToken) Authorize(s *stream.Stream) error {
	if t == nil || t.ID.Prefix() != id.PrefixPayerToken {
		return ErrUnauthorized
	}
	return check(t.StreamID, s, t.ID.Equal(s.PayerTokenID))
}

// Authorize checks that t is the payee token bound to s.
func (t *PayeeToken) Authorize(s *stream.Stream) error {
	if t == nil || t.ID.Prefix() != id.PrefixPayeeToken {
		return ErrUnauthorized
	}
	return check(t.StreamID, s, t.ID.Equal(s.PayeeTokenID))
}

// Authorize checks that t is the registry's admin token.
func (t *AdminToken) Authorize(cfg *registry.Config) error {
	if t == nil || t.ID.Prefix() != id.PrefixAdminToken || !t.ID.Equal(cfg.AdminTokenID) {
		return ErrUnauthorized
	}
	return nil
}

func check(streamID id.StreamID, s *stream.Stream, bound bool) error {
	if !streamID.Equal(s.ID) {
		return fmt.Errorf("%w: token for %s, stream %s", ErrWrongStream, streamID, s.ID)
	}
	if !bound {
		return ErrUnauthorized
	}
	return nil
}
