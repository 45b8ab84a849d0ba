package token_test

import (
	"errors"
	"testing"

	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/registry"
	"github.com/xraph/streampay/stream"
	"github.com/xraph/streampay/token"
)

func boundStream(t *testing.T) (*stream.Stream, *token.PayerToken, *token.PayeeToken) {
	t.Helper()
	st := &stream.Stream{ID: id.NewStreamID(), Status: stream.StatusActive}
	payer, payee := token.MintPair(st.ID)
	st.PayerTokenID = payer.ID
	st.PayeeTokenID = payee.ID
	return st, payer, payee
}

func TestPayerAuthorize(t *testing.T) {
	st, payer, payee := boundStream(t)
	other, _, _ := boundStream(t)

	tests := []struct {
		name    string
		tok     *token.PayerToken
		target  *stream.Stream
		wantErr error
	}{
		{"Bound", payer, st, nil},
		{"Nil", nil, st, token.ErrUnauthorized},
		{"Other stream", payer, other, token.ErrWrongStream},
		{"Retargeted", &token.PayerToken{ID: payer.ID, StreamID: other.ID}, other, token.ErrUnauthorized},
		{"Payee ID", &token.PayerToken{ID: payee.ID, StreamID: st.ID}, st, token.ErrUnauthorized},
		{"Fresh ID", &token.PayerToken{ID: id.NewPayerTokenID(), StreamID: st.ID}, st, token.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tok.Authorize(tt.target)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPayeeAuthorize(t *testing.T) {
	st, payer, payee := boundStream(t)

	if err := payee.Authorize(st); err != nil {
		t.Errorf("bound payee token rejected: %v", err)
	}
	forged := &token.PayeeToken{ID: payer.ID, StreamID: st.ID}
	if err := forged.Authorize(st); !errors.Is(err, token.ErrUnauthorized) {
		t.Errorf("payer ID as payee: got %v, want ErrUnauthorized", err)
	}
}

func TestAdminAuthorize(t *testing.T) {
	admin := token.MintAdmin()
	cfg := &registry.Config{FeeRateBps: 30, AdminTokenID: admin.ID}

	if err := admin.Authorize(cfg); err != nil {
		t.Errorf("admin token rejected: %v", err)
	}
	if err := token.MintAdmin().Authorize(cfg); !errors.Is(err, token.ErrUnauthorized) {
		t.Errorf("foreign admin token: got %v, want ErrUnauthorized", err)
	}
	var nilTok *token.AdminToken
	if err := nilTok.Authorize(cfg); !errors.Is(err, token.ErrUnauthorized) {
		t.Errorf("nil admin token: got %v, want ErrUnauthorized", err)
	}
}

func TestMintPair(t *testing.T) {
	sid := id.NewStreamID()
	payer, payee := token.MintPair(sid)

	if payer.ID.Prefix() != id.PrefixPayerToken || payee.ID.Prefix() != id.PrefixPayeeToken {
		t.Errorf("prefixes: got %s, %s", payer.ID.Prefix(), payee.ID.Prefix())
	}
	if !payer.StreamID.Equal(sid) || !payee.StreamID.Equal(sid) {
		t.Error("tokens not bound to stream")
	}
	if payee.WithdrawnAmount != 0 {
		t.Errorf("fresh payee token withdrawn: %d", payee.WithdrawnAmount)
	}
}
