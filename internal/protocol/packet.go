package protocol

import (
	"net"
	"time"

	"github.com/google/uuid"
)

// Wire constants for E1.31 data transport.
const (
	// Port is the registered UDP port for E1.31.
	Port = 5568

	// MaxChannels is the number of channel slots in a universe.
	MaxChannels = 512

	// RootDataVector identifies an E1.31 data payload at the ACN root layer.
	RootDataVector = 0x00000004

	// FramingDataVector identifies a DMP payload at the framing layer.
	FramingDataVector = 0x00000002

	// DMPSetPropertyVector is the only DMP message type E1.31 uses.
	DMPSetPropertyVector = 0x02

	// DefaultPriority is the priority assigned by sources that do not
	// specify one.
	DefaultPriority = 100

	// MaxPriority is the highest priority a source may claim.
	MaxPriority = 200

	// DataLossTimeout is the E1.31 network data loss timeout: a source
	// that stays silent this long is considered gone.
	DataLossTimeout = 2500 * time.Millisecond
)

// headerSize is the fixed byte count before the property values.
const headerSize = 126

// packetIdentifier is the ACN packet identifier magic ("ASC-E1.17").
var packetIdentifier = [12]byte{0x41, 0x53, 0x43, 0x2d, 0x45, 0x31, 0x2e, 0x31, 0x37, 0x00, 0x00, 0x00}

// Framing-layer option bits.
const (
	optPreview    = 1 << 7
	optTerminated = 1 << 6
)

// Packet is a decoded E1.31 data packet.
//
// PropertyValues holds the raw DMP property values: slot 0 is the start
// code, slots 1..512 are channel values. A packet whose start code is
// non-zero (or that carries no property values at all) does not contain
// channel data and must never touch an output buffer.
type Packet struct {
	CID            uuid.UUID // source identity, unique per transmitter
	SourceName     string
	Priority       uint8 // 0-200
	SyncAddress    uint16
	Sequence       uint8
	Options        uint8
	Universe       uint16
	PropertyValues []byte
}

// Preview reports whether the preview-data option bit is set.
func (p *Packet) Preview() bool {
	return p.Options&optPreview != 0
}

// Terminated reports whether the stream-terminated option bit is set.
func (p *Packet) Terminated() bool {
	return p.Options&optTerminated != 0
}

// HasChannelData reports whether the packet carries renderable channel
// values: at least the start code slot is present and the start code is
// zero. Alternate start codes address non-dimmer gear and are ignored.
func (p *Packet) HasChannelData() bool {
	return len(p.PropertyValues) > 0 && p.PropertyValues[0] == 0x00
}

// ChannelData returns the channel values behind the start code, or nil
// when the packet carries none.
func (p *Packet) ChannelData() []byte {
	if !p.HasChannelData() {
		return nil
	}
	return p.PropertyValues[1:]
}

// MulticastGroup returns the IPv4 multicast group sources transmit a
// universe on: 239.255.<universe high byte>.<universe low byte>.
func MulticastGroup(universe uint16) net.IP {
	return net.IPv4(239, 255, byte(universe>>8), byte(universe))
}
