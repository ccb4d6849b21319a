// Package output renders the arbitrated channel buffer onto a sink.
//
// The universe engine produces a 512-slot buffer and an update counter;
// sinks decide what a "commit" means. APA102 drives a real LED string
// over a SPI device file, Log is the dry-run stand-in.
package output

// Sink consumes channel buffer snapshots. Render is called once per
// ChannelDataUpdated event with the full 512-slot buffer; version is
// the universe's monotonically increasing update counter.
type Sink interface {
	Render(channels []byte, version uint64) error
	Close() error
}
