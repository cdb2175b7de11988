// Package source implements the Source-engine RCON wire codec: TCP
// framed packets with an id/type/body layout and multi-packet response
// coalescing via a terminator-command echo (§4.1).
//
// Grounded on the teacher's internal/rcon/rcon.go encode/decode helpers
// (internal/rcon/internal/utils), adapted from Squad's fixed packet
// IDs to the general Source protocol's id-echo authentication scheme.
package source

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	TypeResponseValue = 0 // SERVERDATA_RESPONSE_VALUE
	TypeExecCommand   = 2 // SERVERDATA_EXECCOMMAND / SERVERDATA_AUTH_RESPONSE (same wire value)
	TypeAuth          = 3 // SERVERDATA_AUTH

	authFailedID = -1

	// headerSize is the eight bytes preceding the variable body: id and
	// type, each int32 LE (the size field itself is not counted).
	headerSize = 8
)

var ErrPacketTooShort = errors.New("source: packet shorter than header")

// Packet is one decoded Source RCON packet.
type Packet struct {
	ID   int32
	Type int32
	Body string
}

// Encode builds a full wire packet: size-prefixed id/type/body, with the
// two mandatory trailing null bytes (body terminator + packet terminator).
func Encode(id, packetType int32, body string) []byte {
	payload := make([]byte, 0, headerSize+len(body)+2)
	idBuf := make([]byte, 4)
	typeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(idBuf, uint32(id))
	binary.LittleEndian.PutUint32(typeBuf, uint32(packetType))

	payload = append(payload, idBuf...)
	payload = append(payload, typeBuf...)
	payload = append(payload, []byte(body)...)
	payload = append(payload, 0x00, 0x00)

	size := int32(len(payload))
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, uint32(size))

	out := make([]byte, 0, 4+len(payload))
	out = append(out, sizeBuf...)
	out = append(out, payload...)
	return out
}

// EncodeAuth builds a SERVERDATA_AUTH packet carrying the password.
func EncodeAuth(id int32, password string) []byte {
	return Encode(id, TypeAuth, password)
}

// EncodeCommand builds a SERVERDATA_EXECCOMMAND packet.
func EncodeCommand(id int32, command string) []byte {
	return Encode(id, TypeExecCommand, command)
}

// Decode parses one complete size-prefixed packet (the size prefix is
// not included in buf; callers read exactly `size` bytes after reading
// the int32 size field first, per the Valve wire format).
func Decode(buf []byte) (Packet, error) {
	if len(buf) < headerSize {
		return Packet{}, ErrPacketTooShort
	}
	id := int32(binary.LittleEndian.Uint32(buf[0:4]))
	typ := int32(binary.LittleEndian.Uint32(buf[4:8]))
	body := buf[8:]
	body = bytes.TrimRight(body, "\x00")
	return Packet{ID: id, Type: typ, Body: string(body)}, nil
}

// AuthSucceeded reports whether an AUTH_RESPONSE packet indicates
// successful authentication: its id must echo the id that was sent,
// and must not be -1.
func AuthSucceeded(resp Packet, sentID int32) bool {
	return resp.Type == TypeExecCommand && resp.ID == sentID && resp.ID != authFailedID
}

// IsAuthFailure reports the Valve -1 id sentinel.
func IsAuthFailure(resp Packet) bool {
	return resp.ID == authFailedID
}
