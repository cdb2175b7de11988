package ingest

import (
	"context"
	"strings"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/cryptoutil"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/repository"
)

// beaconPrefix is the only content of a beacon datagram (§6): a bare
// "hlxn_..." token with no trailing log text.
const beaconPrefix = "hlxn_"

// ServerDirectory is the read side of the server table the
// authenticator consults; satisfied by internal/repository.Repository.
type ServerDirectory interface {
	FindServerByAddress(ctx context.Context, address string, port int) (repository.ServerRow, bool, error)
	FindServerByTokenHash(ctx context.Context, tokenHash string) (repository.ServerRow, bool, error)
}

// Authenticator resolves an inbound datagram's source to a server id
// under the two coexisting modes described in §6: address-pair and
// beacon token.
type Authenticator struct {
	dir ServerDirectory
}

// NewAuthenticator builds an Authenticator backed by dir.
func NewAuthenticator(dir ServerDirectory) *Authenticator {
	return &Authenticator{dir: dir}
}

// IsBeacon reports whether payload is a bare beacon token datagram
// rather than a log line.
func IsBeacon(payload string) bool {
	trimmed := strings.TrimSpace(payload)
	if !strings.HasPrefix(trimmed, beaconPrefix) {
		return false
	}
	_, err := cryptoutil.Prefix(trimmed)
	return err == nil
}

// AuthenticateToken resolves a beacon datagram to its server id.
func (a *Authenticator) AuthenticateToken(ctx context.Context, payload string) (model.ServerID, bool, error) {
	token := strings.TrimSpace(payload)
	if _, err := cryptoutil.Prefix(token); err != nil {
		return 0, false, nil
	}
	row, ok, err := a.dir.FindServerByTokenHash(ctx, cryptoutil.HashToken(token))
	if err != nil || !ok {
		return 0, false, err
	}
	return row.ID, true, nil
}

// AuthenticateAddress resolves a log line's source address to its
// server id under address-pair mode. Unknown pairs are not
// auto-registered here: the wire format carries no game code for the
// orchestrator to register a new row with, so an unrecognized address
// is simply unauthenticated until an operator provisions it (or a
// beacon from that same server establishes it under token mode).
func (a *Authenticator) AuthenticateAddress(ctx context.Context, address string, port int) (model.ServerID, bool, error) {
	row, ok, err := a.dir.FindServerByAddress(ctx, address, port)
	if err != nil || !ok {
		return 0, false, err
	}
	return row.ID, true, nil
}
