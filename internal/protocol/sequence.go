package protocol

// Stale reports whether a packet with sequence number seq is a replay or
// reorder relative to the last accepted sequence number from the same
// source.
//
// E1.31 sequence numbers wrap at 256. A packet is discarded when it is
// equal to, or up to 19 behind, the last accepted one; anything further
// back is treated as a restarted stream and accepted. Duplicate delivery
// (seq == last) is always stale.
func Stale(last, seq uint8) bool {
	d := int8(seq - last)
	return d <= 0 && d > -20
}
