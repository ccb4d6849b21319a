package output

import "log/slog"

// Log is a sink that reports buffer updates to the structured log
// instead of hardware. Used by dry runs and by configurations without
// an output device.
type Log struct {
	leds   int
	offset int
}

// NewLog creates a log sink describing the same LED window an APA102
// sink would render.
func NewLog(leds, channelOffset int) *Log {
	return &Log{leds: leds, offset: channelOffset}
}

// Render logs the update at debug level.
func (l *Log) Render(channels []byte, version uint64) error {
	end := l.offset + 3*l.leds
	if end > len(channels) {
		end = len(channels)
	}
	var window []byte
	if l.offset < end {
		window = channels[l.offset:end]
	}
	slog.Debug("channel data updated", "version", version, "window", window)
	return nil
}

// Close is a no-op.
func (l *Log) Close() error {
	return nil
}
