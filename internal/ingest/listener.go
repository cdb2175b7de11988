// Package ingest implements the single-socket UDP log listener (§4.5):
// authenticate the source, resolve it to a server id, hand the line to
// the parser, and submit the resulting event to the pipeline.
//
// Grounded on the teacher's internal/connectors/logwatcher (a
// goroutine streaming parsed events into the rest of the system) and
// internal/rcon_manager's background-loop conventions, generalized
// from a remote log-watcher client to the daemon owning the UDP
// socket directly, as the spec requires.
package ingest

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/parser"
)

// maxDatagramSize comfortably fits any single HL-family log line; the
// protocol never fragments ingress datagrams (only RCON responses do).
const maxDatagramSize = 4096

// Submitter hands a parsed event to the next stage; satisfied by
// internal/pipeline.Pipeline.
type Submitter interface {
	Submit(ctx context.Context, evt model.Event) error
}

// KnownServer is a pre-declared address-pair expected to connect under
// address-pair auth mode (§6); the first line from it triggers
// find_or_create_server with this GameCode. Servers reached only via
// beacon token do not need an entry here: a token is issued after the
// server row already exists.
type KnownServer struct {
	Address  string
	Port     int
	GameCode string
}

// Listener owns the UDP socket and runs the ingress loop.
type Listener struct {
	conn         *net.UDPConn
	auth         *Authenticator
	orchestrator *Orchestrator
	parser       *parser.Parser
	sink         Submitter
	known        map[string]string // "address:port" -> game code
	log          zerolog.Logger

	unauthenticatedDrops int64
	unsupportedLines     int64
	unmatchedLines       int64
}

// Listen binds addr (e.g. ":27500") and returns a ready Listener.
func Listen(addr string, auth *Authenticator, orchestrator *Orchestrator, known []KnownServer, log zerolog.Logger) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("ingest: resolving %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("ingest: listening on %q: %w", addr, err)
	}

	knownMap := make(map[string]string, len(known))
	for _, k := range known {
		knownMap[fmt.Sprintf("%s:%d", k.Address, k.Port)] = k.GameCode
	}

	return &Listener{
		conn:         conn,
		auth:         auth,
		orchestrator: orchestrator,
		parser:       parser.New(),
		known:        knownMap,
		log:          log.With().Str("component", "ingest").Logger(),
	}, nil
}

// SetSink attaches the pipeline stage lines hand off to; kept separate
// from Listen so tests can construct a Listener before the pipeline
// exists.
func (l *Listener) SetSink(sink Submitter) { l.sink = sink }

// Close releases the UDP socket.
func (l *Listener) Close() error { return l.conn.Close() }

// Snapshot returns the current cumulative drop/error counters, for a
// caller (e.g. a Prometheus bridge) to sample periodically. Safe to
// call concurrently with Run only because every counter is mutated
// exclusively from the single read loop goroutine handle runs on.
func (l *Listener) Snapshot() (unauthenticatedDrops, unsupportedLines, unmatchedLines int64) {
	return l.unauthenticatedDrops, l.unsupportedLines, l.unmatchedLines
}

// Run reads datagrams until ctx is cancelled or the socket errors.
func (l *Listener) Run(ctx context.Context) error {
	buf := make([]byte, maxDatagramSize)
	go func() {
		<-ctx.Done()
		_ = l.conn.Close()
	}()

	for {
		n, srcAddr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ingest: reading datagram: %w", err)
		}
		line := decodeLine(buf[:n])
		l.handle(ctx, srcAddr, line)
	}
}

func (l *Listener) handle(ctx context.Context, srcAddr *net.UDPAddr, payload string) {
	if IsBeacon(payload) {
		serverID, ok, err := l.auth.AuthenticateToken(ctx, payload)
		if err != nil {
			l.log.Warn().Err(err).Str("addr", srcAddr.String()).Msg("beacon authentication lookup failed")
			return
		}
		if !ok {
			l.unauthenticatedDrops++
			l.log.Debug().Str("addr", srcAddr.String()).Msg("dropping beacon with unknown token")
			return
		}
		l.log.Debug().Int64("server_id", int64(serverID)).Msg("beacon accepted")
		return
	}

	serverID, ok, err := l.resolveServer(ctx, srcAddr)
	if err != nil {
		l.log.Warn().Err(err).Str("addr", srcAddr.String()).Msg("server resolution failed")
		return
	}
	if !ok {
		l.unauthenticatedDrops++
		l.log.Debug().Str("addr", srcAddr.String()).Msg("dropping line from unauthenticated source")
		return
	}

	if !l.parser.CanParse(payload) {
		l.unmatchedLines++
		return
	}

	evt, err := l.parser.ParseLine(payload, serverID, time.Now())
	if err != nil {
		l.unsupportedLines++
		l.log.Debug().Err(err).Str("addr", srcAddr.String()).Msg("unsupported log line")
		return
	}

	if l.sink == nil {
		return
	}
	if err := l.sink.Submit(ctx, evt); err != nil {
		l.log.Warn().Err(err).Str("event_id", evt.ID.String()).Msg("submitting event to pipeline failed")
	}
}

func (l *Listener) resolveServer(ctx context.Context, srcAddr *net.UDPAddr) (model.ServerID, bool, error) {
	serverID, ok, err := l.auth.AuthenticateAddress(ctx, srcAddr.IP.String(), srcAddr.Port)
	if err != nil {
		return 0, false, err
	}
	if ok {
		return serverID, true, nil
	}

	gameCode, declared := l.known[fmt.Sprintf("%s:%d", srcAddr.IP.String(), srcAddr.Port)]
	if !declared {
		return 0, false, nil
	}
	row, err := l.orchestrator.FindOrCreateServer(ctx, srcAddr.IP.String(), srcAddr.Port, gameCode)
	if err != nil {
		return 0, false, err
	}
	return row.ID, true, nil
}
