package source

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxPacketSize guards against a corrupt or hostile size field causing
// an unbounded allocation.
const maxPacketSize = 4096 * 8

// ReadPacket reads one complete size-prefixed packet from r. It blocks
// until the full packet arrives or r returns an error (the caller is
// expected to have already applied a deadline to r via SetReadDeadline
// on the underlying net.Conn).
func ReadPacket(r io.Reader) (Packet, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return Packet{}, fmt.Errorf("source: reading size prefix: %w", err)
	}
	size := int32(binary.LittleEndian.Uint32(sizeBuf[:]))
	if size < headerSize || int(size) > maxPacketSize {
		return Packet{}, fmt.Errorf("source: invalid packet size %d", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Packet{}, fmt.Errorf("source: reading packet body: %w", err)
	}
	return Decode(body)
}

// CoalesceMultiPacket reads RESPONSE_VALUE packets sharing id until it
// observes the echoed terminatorID packet (a SERVERDATA_RESPONSE_VALUE
// with an empty body sent in reply to a bogus EXECCOMMAND used purely
// as a terminator), per §4.1 "multi-packet responses are coalesced by
// sending a terminator command and stopping on its echo".
func CoalesceMultiPacket(r io.Reader, id, terminatorID int32) (string, error) {
	var body []byte
	for {
		pkt, err := ReadPacket(r)
		if err != nil {
			return "", err
		}
		if pkt.ID == terminatorID {
			return string(body), nil
		}
		if pkt.ID == id && pkt.Type == TypeResponseValue {
			body = append(body, pkt.Body...)
		}
	}
}
