package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ParseError reports a structural problem in a received datagram, with
// the byte offset of the offending field.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("e131: offset %d: %s", e.Offset, e.Message)
}

func parseErr(offset int, format string, args ...any) *ParseError {
	return &ParseError{Offset: offset, Message: fmt.Sprintf(format, args...)}
}

// Parse decodes and structurally validates an E1.31 data datagram.
//
// Validation covers the fixed root/framing/DMP fields: preamble sizes,
// the ACN packet identifier, the three layer vectors, the DMP address
// encoding, the property value count bounds, and the priority range.
// Packets for other universes, preview packets, and stale sequence
// numbers are NOT rejected here - those are session decisions made by
// internal/universe.
func Parse(buf []byte) (*Packet, error) {
	if len(buf) < headerSize-1 {
		return nil, parseErr(0, "datagram too short: %d bytes, need at least %d", len(buf), headerSize-1)
	}

	// Root layer.
	if v := binary.BigEndian.Uint16(buf[0:2]); v != 0x0010 {
		return nil, parseErr(0, "bad RLP preamble size 0x%04x", v)
	}
	if v := binary.BigEndian.Uint16(buf[2:4]); v != 0x0000 {
		return nil, parseErr(2, "bad RLP postamble size 0x%04x", v)
	}
	if !bytes.Equal(buf[4:16], packetIdentifier[:]) {
		return nil, parseErr(4, "bad ACN packet identifier")
	}
	if err := checkPDU(buf, 16); err != nil {
		return nil, err
	}
	if v := binary.BigEndian.Uint32(buf[18:22]); v != RootDataVector {
		return nil, parseErr(18, "root vector 0x%08x is not E1.31 data", v)
	}

	// Framing layer.
	if err := checkPDU(buf, 38); err != nil {
		return nil, err
	}
	if v := binary.BigEndian.Uint32(buf[40:44]); v != FramingDataVector {
		return nil, parseErr(40, "framing vector 0x%08x is not DMP data", v)
	}
	priority := buf[108]
	if priority > MaxPriority {
		return nil, parseErr(108, "priority %d exceeds maximum %d", priority, MaxPriority)
	}

	// DMP layer.
	if err := checkPDU(buf, 115); err != nil {
		return nil, err
	}
	if buf[117] != DMPSetPropertyVector {
		return nil, parseErr(117, "DMP vector 0x%02x is not set-property", buf[117])
	}
	if buf[118] != 0xa1 {
		return nil, parseErr(118, "DMP address/data type 0x%02x is not 0xa1", buf[118])
	}
	if v := binary.BigEndian.Uint16(buf[119:121]); v != 0x0000 {
		return nil, parseErr(119, "first property address 0x%04x is not zero", v)
	}
	if v := binary.BigEndian.Uint16(buf[121:123]); v != 0x0001 {
		return nil, parseErr(121, "address increment 0x%04x is not one", v)
	}
	count := int(binary.BigEndian.Uint16(buf[123:125]))
	if count > MaxChannels+1 {
		return nil, parseErr(123, "property value count %d exceeds %d", count, MaxChannels+1)
	}
	if len(buf) < headerSize-1+count {
		return nil, parseErr(125, "datagram truncated: %d property values declared, %d bytes present",
			count, len(buf)-(headerSize-1))
	}

	p := &Packet{
		Priority:    priority,
		SyncAddress: binary.BigEndian.Uint16(buf[109:111]),
		Sequence:    buf[111],
		Options:     buf[112],
		Universe:    binary.BigEndian.Uint16(buf[113:115]),
	}
	copy(p.CID[:], buf[22:38])
	p.SourceName = sourceName(buf[44:108])
	p.PropertyValues = append([]byte(nil), buf[headerSize-1:headerSize-1+count]...)
	return p, nil
}

// Marshal encodes the packet into a fresh datagram. Used by tests and by
// tooling that replays captured sessions; receivers never transmit.
func (p *Packet) Marshal() []byte {
	count := len(p.PropertyValues)
	buf := make([]byte, headerSize-1+count)

	binary.BigEndian.PutUint16(buf[0:2], 0x0010)
	copy(buf[4:16], packetIdentifier[:])
	binary.BigEndian.PutUint16(buf[16:18], flagsLength(len(buf)-16))
	binary.BigEndian.PutUint32(buf[18:22], RootDataVector)
	copy(buf[22:38], p.CID[:])

	binary.BigEndian.PutUint16(buf[38:40], flagsLength(len(buf)-38))
	binary.BigEndian.PutUint32(buf[40:44], FramingDataVector)
	copy(buf[44:108], []byte(p.SourceName))
	buf[108] = p.Priority
	binary.BigEndian.PutUint16(buf[109:111], p.SyncAddress)
	buf[111] = p.Sequence
	buf[112] = p.Options
	binary.BigEndian.PutUint16(buf[113:115], p.Universe)

	binary.BigEndian.PutUint16(buf[115:117], flagsLength(len(buf)-115))
	buf[117] = DMPSetPropertyVector
	buf[118] = 0xa1
	binary.BigEndian.PutUint16(buf[121:123], 0x0001)
	binary.BigEndian.PutUint16(buf[123:125], uint16(count))
	copy(buf[headerSize-1:], p.PropertyValues)
	return buf
}

// flagsLength packs the ACN flags nibble (0x7) with a 12-bit PDU length.
func flagsLength(length int) uint16 {
	return 0x7000 | uint16(length)&0x0fff
}

// checkPDU validates one flags+length field: the flags nibble must be
// 0x7 and the 12-bit PDU length must run exactly to the end of the
// datagram (every PDU in an E1.31 data packet is the last of its layer).
func checkPDU(buf []byte, offset int) error {
	v := binary.BigEndian.Uint16(buf[offset : offset+2])
	if v>>12 != 0x7 {
		return parseErr(offset, "bad PDU flags 0x%x", v>>12)
	}
	if got, want := int(v&0x0fff), len(buf)-offset; got != want {
		return parseErr(offset, "PDU length %d does not reach the datagram end (%d bytes remain)", got, want)
	}
	return nil
}

// sourceName extracts the NUL-terminated UTF-8 source name field.
func sourceName(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}
