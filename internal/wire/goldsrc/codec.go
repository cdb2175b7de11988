// Package goldsrc implements the GoldSrc-engine RCON wire codec: UDP
// challenge/response framing plus fragment reassembly for responses
// too large for one datagram (§4.1 of the stats-daemon spec).
//
// Grounded on the teacher's internal/rcon/rcon.go byte-parser state
// machine (a single persistent buffer, packet boundaries detected by
// scanning for a fixed header), generalized from Source's TCP framing
// to GoldSrc's UDP challenge/response framing.
package goldsrc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// header is the four 0xFF bytes that prefix every non-fragmented GoldSrc
// RCON request and response.
var header = []byte{0xFF, 0xFF, 0xFF, 0xFF}

// fragmentHeader prefixes a fragmented response packet.
var fragmentHeader = []byte{0xFE, 0xFF, 0xFF, 0xFF}

// FrameKind classifies a decoded response frame.
type FrameKind int

const (
	KindComplete FrameKind = iota
	KindNeedMore
	KindError
)

// ErrorKind classifies an assembled-body error string (§4.1).
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrAuthFailed
	ErrBadChallenge
	ErrCommandFailed
)

// Frame is the result of decoding one response datagram.
type Frame struct {
	Kind FrameKind
	Body string
	Err  ErrorKind
	Msg  string
}

// EncodeChallengeRequest builds the "challenge rcon" request datagram.
func EncodeChallengeRequest() []byte {
	var buf bytes.Buffer
	buf.Write(header)
	buf.WriteString("challenge rcon\n")
	return buf.Bytes()
}

// EncodeCommand builds an authenticated rcon command datagram:
// "rcon <challenge> <password> <command>\n".
func EncodeCommand(challenge, password, command string) []byte {
	var buf bytes.Buffer
	buf.Write(header)
	fmt.Fprintf(&buf, "rcon %s %s %s\n", challenge, password, command)
	return buf.Bytes()
}

// DecodeFrame inspects one received UDP datagram. Fragmented packets
// are the caller's responsibility to hand to a FragmentAssembler; this
// function only recognizes whether the datagram is fragmented, and if
// not, decodes the body directly.
func DecodeFrame(buf []byte) Frame {
	if len(buf) < 5 {
		return Frame{Kind: KindNeedMore}
	}
	if bytes.HasPrefix(buf, fragmentHeader) {
		// Caller must route this to fragment reassembly; signal NeedMore
		// so a codec-only caller doesn't misinterpret a fragment as a
		// complete body.
		return Frame{Kind: KindNeedMore}
	}
	if !bytes.HasPrefix(buf, header) {
		return Frame{Kind: KindError, Err: ErrCommandFailed, Msg: "invalid response header"}
	}

	t := buf[4]
	var bodyStart int
	switch t {
	case 'l', 'n':
		bodyStart = 5
	default:
		bodyStart = 4
	}
	if bodyStart > len(buf) {
		return Frame{Kind: KindNeedMore}
	}
	body := strings.TrimSpace(string(buf[bodyStart:]))
	return classifyBody(body)
}

// classifyBody applies the §4.1 error-string detection rules to an
// assembled response body.
func classifyBody(body string) Frame {
	switch {
	case strings.Contains(body, "Bad rcon_password"):
		return Frame{Kind: KindError, Err: ErrAuthFailed, Body: body, Msg: "Bad rcon_password"}
	case strings.Contains(body, "Bad challenge"):
		return Frame{Kind: KindError, Err: ErrBadChallenge, Body: body, Msg: "Bad challenge"}
	case strings.Contains(body, "Unknown command"):
		return Frame{Kind: KindError, Err: ErrCommandFailed, Body: body, Msg: "Unknown command"}
	default:
		return Frame{Kind: KindComplete, Body: body}
	}
}

// IsFragment reports whether a datagram is a GoldSrc fragment packet
// and, if so, decodes its header.
func IsFragment(buf []byte) (packetID int32, total, index int, payload []byte, ok bool) {
	if len(buf) < 9 || !bytes.HasPrefix(buf, fragmentHeader) {
		return 0, 0, 0, nil, false
	}
	packetID = int32(binary.LittleEndian.Uint32(buf[4:8]))
	fragByte := buf[8]
	// Nibble layout is empirical and compatibility-critical (§4.1, §9):
	// low nibble = total fragment count, high nibble = this fragment's
	// zero-based index.
	total = int(fragByte & 0x0F)
	index = int(fragByte >> 4)
	payload = buf[9:]
	return packetID, total, index, payload, true
}

// AssembleBody turns a fully-collected set of fragment payloads
// (already sorted by index) into a classified Frame.
func AssembleBody(payloads [][]byte) Frame {
	var buf bytes.Buffer
	for _, p := range payloads {
		buf.Write(p)
	}
	body := strings.TrimSpace(buf.String())
	return classifyBody(body)
}
