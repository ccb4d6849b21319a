// Package protocol implements the E1.31 (streaming ACN) wire codec.
//
// Only the data-packet framing needed by a receiver is modeled: the ACN
// root layer, the E1.31 framing layer, and the DMP layer carrying up to
// 512 channel slots behind a start code. Extended packet types (universe
// discovery lists, synchronization frames beyond their sequence field)
// are not parsed.
//
// This package contains no session state. Replay/reorder classification
// (Stale) is a pure function over sequence numbers; which packets a
// receiver actually accepts is decided by internal/universe.
package protocol
