// Package rcon implements a single RCON session over either the GoldSrc
// or Source wire codec (internal/wire/goldsrc, internal/wire/source),
// exposing the engine-agnostic state machine described in §4.2: Closed,
// Connecting, Authenticating, Ready/Busy, with connect/execute/disconnect
// operations and a uniform failure taxonomy.
//
// Grounded on the teacher's internal/rcon/rcon.go: a net.Conn held by the
// session, an iamalone98/eventEmitter firing connection lifecycle events,
// and a per-connection lock serialising one request/response pair at a
// time, generalised here to cover both engines and the full state
// machine the teacher's Squad-only client doesn't need.
package rcon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iamalone98/eventEmitter"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/wire/goldsrc"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/wire/source"
)

// State is the connection state machine position (§4.2).
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateBusy
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// FailureKind is the uniform failure taxonomy reported upward (§4.2).
type FailureKind int

const (
	FailNone FailureKind = iota
	FailConnectionFailed
	FailAuthFailed
	FailTimeout
	FailInvalidResponse
	FailNotConnected
	FailCommandFailed
	FailInvalidCredentials
)

// Error wraps a FailureKind with context, satisfying the error interface.
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rcon: %v", e.Err)
	}
	return fmt.Sprintf("rcon: %v", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind FailureKind, err error) *Error { return &Error{Kind: kind, Err: err} }

const (
	defaultConnectTimeout = 5 * time.Second
	defaultCommandTimeout = 5 * time.Second
	defaultFragTimeout    = 2 * time.Second
	maxDatagram           = 4096
)

// Config configures a single RCON session.
type Config struct {
	Address        string
	Port           int
	Password       string
	Engine         model.EngineKind
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	FragTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = defaultCommandTimeout
	}
	if c.FragTimeout == 0 {
		c.FragTimeout = defaultFragTimeout
	}
	return c
}

// Connection is a single RCON session to one game server, either GoldSrc
// (UDP challenge/response) or Source (TCP framed). Ready is the only
// state that accepts Execute; Busy serialises one command at a time.
type Connection struct {
	cfg     Config
	Emitter eventEmitter.EventEmitter

	mu    sync.Mutex
	state State

	// execSlot holds one token while the connection is free to accept a
	// command; Execute takes it before touching state and returns it when
	// done, so a second caller blocks instead of racing the first one's
	// Busy window (§9: per-connection serialisation).
	execSlot chan struct{}

	udpConn   net.PacketConn
	udpAddr   net.Addr
	tcpConn   net.Conn
	challenge string
	nextID    int32
	assembler *goldsrc.FragmentAssembler
}

// New builds an unconnected session for the given config.
func New(cfg Config) *Connection {
	slot := make(chan struct{}, 1)
	slot <- struct{}{}
	return &Connection{
		cfg:      cfg.withDefaults(),
		Emitter:  eventEmitter.NewEventEmitter(),
		state:    StateClosed,
		execSlot: slot,
	}
}

// State reports the current state machine position.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the session is Ready or Busy.
func (c *Connection) IsConnected() bool {
	s := c.State()
	return s == StateReady || s == StateBusy
}

// EngineKind reports which wire protocol this session speaks.
func (c *Connection) EngineKind() model.EngineKind { return c.cfg.Engine }

// Connect opens the socket and, for GoldSrc, performs the challenge
// round-trip, then (both engines) authenticates. On any failure the
// session tears itself down and returns a classified *Error.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.Address == "" || c.cfg.Port <= 0 {
		return newErr(FailInvalidCredentials, errors.New("invalid address or port"))
	}

	c.state = StateConnecting
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	var err error
	switch c.cfg.Engine {
	case model.EngineGoldSrc:
		err = c.connectGoldSrc(ctx)
	default:
		err = c.connectSource(ctx)
	}
	if err != nil {
		c.teardownLocked()
		c.Emitter.Emit("error", err)
		return err
	}

	c.state = StateAuthenticating
	if err := c.authenticateLocked(ctx); err != nil {
		c.teardownLocked()
		c.Emitter.Emit("error", err)
		return err
	}

	c.state = StateReady
	c.Emitter.Emit("connected", true)
	return nil
}

func (c *Connection) connectGoldSrc(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.cfg.Address, c.cfg.Port)
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return newErr(FailConnectionFailed, err)
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return newErr(FailConnectionFailed, err)
	}
	c.udpConn = conn
	c.udpAddr = raddr
	c.assembler = goldsrc.NewFragmentAssembler()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.WriteTo(goldsrc.EncodeChallengeRequest(), raddr); err != nil {
		return newErr(FailConnectionFailed, err)
	}
	buf := make([]byte, maxDatagram)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		return newErr(FailTimeout, err)
	}
	frame := goldsrc.DecodeFrame(buf[:n])
	if frame.Kind != goldsrc.KindComplete {
		return newErr(FailInvalidResponse, errors.New("malformed challenge response"))
	}
	c.challenge = extractChallenge(frame.Body)
	if c.challenge == "" {
		return newErr(FailInvalidResponse, errors.New("challenge response missing token"))
	}
	return nil
}

func (c *Connection) connectSource(ctx context.Context) error {
	d := net.Dialer{}
	addr := fmt.Sprintf("%s:%d", c.cfg.Address, c.cfg.Port)
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return newErr(FailTimeout, err)
		}
		return newErr(FailConnectionFailed, err)
	}
	c.tcpConn = conn
	return nil
}

func (c *Connection) authenticateLocked(ctx context.Context) error {
	switch c.cfg.Engine {
	case model.EngineGoldSrc:
		return c.authGoldSrcLocked(ctx)
	default:
		return c.authSourceLocked(ctx)
	}
}

func (c *Connection) authGoldSrcLocked(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.udpConn.SetDeadline(deadline)
	}
	req := goldsrc.EncodeCommand(c.challenge, c.cfg.Password, "status")
	if _, err := c.udpConn.WriteTo(req, c.udpAddr); err != nil {
		return newErr(FailConnectionFailed, err)
	}
	frame, err := c.readGoldSrcFrameLocked(ctx)
	if err != nil {
		return err
	}
	if frame.Kind == goldsrc.KindError && (frame.Err == goldsrc.ErrAuthFailed || frame.Err == goldsrc.ErrBadChallenge) {
		c.challenge = ""
		return newErr(FailAuthFailed, errors.New(frame.Msg))
	}
	return nil
}

func (c *Connection) authSourceLocked(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.tcpConn.SetDeadline(deadline)
	}
	id := c.nextPacketIDLocked()
	if _, err := c.tcpConn.Write(source.EncodeAuth(id, c.cfg.Password)); err != nil {
		return newErr(FailConnectionFailed, err)
	}
	// Source sends an empty SERVERDATA_RESPONSE_VALUE before AUTH_RESPONSE; skip it.
	pkt, err := source.ReadPacket(c.tcpConn)
	if err != nil {
		return newErr(FailConnectionFailed, err)
	}
	if pkt.Type == source.TypeResponseValue {
		pkt, err = source.ReadPacket(c.tcpConn)
		if err != nil {
			return newErr(FailConnectionFailed, err)
		}
	}
	if source.IsAuthFailure(pkt) {
		return newErr(FailAuthFailed, errors.New("source rcon authentication rejected"))
	}
	if !source.AuthSucceeded(pkt, id) {
		return newErr(FailInvalidResponse, errors.New("unexpected auth response"))
	}
	return nil
}

func (c *Connection) nextPacketIDLocked() int32 {
	return int32(atomic.AddInt32(&c.nextID, 1))
}

func extractChallenge(body string) string {
	// GoldSrc challenge responses read "challenge rcon\n<token>".
	const marker = "challenge rcon"
	idx := indexAfter(body, marker)
	if idx < 0 {
		return ""
	}
	out := make([]byte, 0, 16)
	for i := idx; i < len(body); i++ {
		ch := body[i]
		if ch >= '0' && ch <= '9' || ch == '-' {
			out = append(out, ch)
			continue
		}
		if len(out) > 0 {
			break
		}
	}
	return string(out)
}

func indexAfter(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i + len(sub)
		}
	}
	return -1
}

// Execute runs one command and returns its response body. A command
// already in flight on this connection holds execSlot, so a concurrent
// caller blocks here until it finishes rather than racing the Busy
// state; ctx cancellation while waiting returns ctx.Err() directly.
// Fails with NotConnected if no session is established; empty command
// is CommandFailed. On AuthFailed the session tears down so the next
// Execute reconnects.
func (c *Connection) Execute(ctx context.Context, command string) (string, error) {
	if command == "" {
		return "", newErr(FailCommandFailed, errors.New("empty command"))
	}

	select {
	case <-c.execSlot:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { c.execSlot <- struct{}{} }()

	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return "", newErr(FailNotConnected, errors.New("connection not ready"))
	}
	c.state = StateBusy
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CommandTimeout)
	defer cancel()

	var (
		body string
		err  error
	)
	if c.cfg.Engine == model.EngineGoldSrc {
		body, err = c.executeGoldSrc(ctx, command)
	} else {
		body, err = c.executeSource(ctx, command)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		var rerr *Error
		if errors.As(err, &rerr) && rerr.Kind == FailAuthFailed {
			c.challenge = ""
			c.teardownLocked()
			c.Emitter.Emit("error", err)
			return "", err
		}
		c.state = StateReady
		return "", err
	}
	c.state = StateReady
	return body, nil
}

func (c *Connection) executeGoldSrc(ctx context.Context, command string) (string, error) {
	req := goldsrc.EncodeCommand(c.challenge, c.cfg.Password, command)
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.udpConn.SetDeadline(deadline)
	}
	if _, err := c.udpConn.WriteTo(req, c.udpAddr); err != nil {
		return "", newErr(FailConnectionFailed, err)
	}
	frame, err := c.readGoldSrcFrameLocked(ctx)
	if err != nil {
		return "", err
	}
	switch frame.Err {
	case goldsrc.ErrAuthFailed, goldsrc.ErrBadChallenge:
		return "", newErr(FailAuthFailed, errors.New(frame.Msg))
	case goldsrc.ErrCommandFailed:
		return "", newErr(FailCommandFailed, errors.New(frame.Msg))
	}
	if frame.Kind != goldsrc.KindComplete {
		return "", newErr(FailInvalidResponse, errors.New("incomplete goldsrc response"))
	}
	return frame.Body, nil
}

func (c *Connection) readGoldSrcFrameLocked(ctx context.Context) (goldsrc.Frame, error) {
	deadline := time.Now().Add(defaultFragTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	buf := make([]byte, maxDatagram)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return goldsrc.Frame{}, newErr(FailTimeout, errors.New("goldsrc response timeout"))
		}
		_ = c.udpConn.SetReadDeadline(time.Now().Add(remaining))
		n, _, err := c.udpConn.ReadFrom(buf)
		if err != nil {
			return goldsrc.Frame{}, newErr(FailTimeout, err)
		}
		if packetID, total, index, payload, ok := goldsrc.IsFragment(buf[:n]); ok {
			frame, done := c.assembler.Feed(packetID, total, index, payload)
			if !done {
				continue
			}
			return frame, nil
		}
		frame := goldsrc.DecodeFrame(buf[:n])
		if frame.Kind == goldsrc.KindNeedMore {
			continue
		}
		return frame, nil
	}
}

func (c *Connection) executeSource(ctx context.Context, command string) (string, error) {
	id := c.nextPacketIDLocked()
	terminatorID := c.nextPacketIDLocked()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.tcpConn.SetDeadline(deadline)
	}
	if _, err := c.tcpConn.Write(source.EncodeCommand(id, command)); err != nil {
		return "", newErr(FailConnectionFailed, err)
	}
	if _, err := c.tcpConn.Write(source.EncodeCommand(terminatorID, "")); err != nil {
		return "", newErr(FailConnectionFailed, err)
	}
	body, err := source.CoalesceMultiPacket(c.tcpConn, id, terminatorID)
	if err != nil {
		return "", newErr(FailTimeout, err)
	}
	return body, nil
}

// Disconnect closes the session and transitions to Closed.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

func (c *Connection) teardownLocked() {
	if c.udpConn != nil {
		_ = c.udpConn.Close()
		c.udpConn = nil
	}
	if c.tcpConn != nil {
		_ = c.tcpConn.Close()
		c.tcpConn = nil
	}
	wasOpen := c.state != StateClosed
	c.state = StateClosed
	if wasOpen {
		c.Emitter.Emit("close", true)
	}
}
