package output

import (
	"fmt"
	"io"
)

// APA102 renders channel triples onto a string of APA102 LEDs.
//
// LED i takes its red, green, and blue values from channel slots
// offset+3i, offset+3i+1, and offset+3i+2. The wire frame is the usual
// APA102 shape: a 4-byte zero start frame, one 4-byte LED frame
// (0xE0|brightness, blue, green, red) per LED, then enough zero bytes
// to clock the update through the whole string.
//
// Render is change-detecting: the frame is written to the device only
// when at least one LED frame differs from the last committed state, so
// a source repeating identical data does not thrash the SPI bus.
type APA102 struct {
	w          io.Writer
	leds       int
	brightness uint8
	offset     int

	frame  []byte // start frame + LED frames + end bytes
	pixels []byte // LED frame region of frame
}

const ledFrameSize = 4

// NewAPA102 creates a renderer for a string of leds LEDs writing wire
// frames to w (typically an opened SPI device file). brightness is the
// APA102 global brightness (0-31). channelOffset is the first channel
// slot mapped onto LED zero.
func NewAPA102(w io.Writer, leds int, brightness uint8, channelOffset int) *APA102 {
	a := &APA102{
		w:          w,
		leds:       leds,
		brightness: brightness & 0x1f,
		offset:     channelOffset,
		frame:      make([]byte, 4+leds*ledFrameSize+endBytes(leds)),
	}
	a.pixels = a.frame[4 : 4+leds*ledFrameSize]
	// All LEDs dark, but with a valid frame header, until first render.
	for i := 0; i < leds; i++ {
		a.pixels[i*ledFrameSize] = 0xe0
	}
	return a
}

// Render maps the channel buffer onto the LED frames and commits the
// wire frame when anything changed.
func (a *APA102) Render(channels []byte, version uint64) error {
	changed := false
	hdr := 0xe0 | a.brightness
	for i := 0; i < a.leds; i++ {
		var r, g, b byte
		base := a.offset + i*3
		if base+2 < len(channels) {
			r, g, b = channels[base], channels[base+1], channels[base+2]
		}
		px := a.pixels[i*ledFrameSize : (i+1)*ledFrameSize]
		if px[0] != hdr || px[1] != b || px[2] != g || px[3] != r {
			px[0], px[1], px[2], px[3] = hdr, b, g, r
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if _, err := a.w.Write(a.frame); err != nil {
		return fmt.Errorf("write LED frame: %w", err)
	}
	return nil
}

// Close closes the underlying device when it is closable.
func (a *APA102) Close() error {
	if c, ok := a.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// endBytes returns the number of trailing zero bytes needed to clock an
// update through a string of n LEDs (one extra clock edge per LED past
// the first, 16 edges per byte).
func endBytes(n int) int {
	edges := 0
	if n > 0 {
		edges = n - 1
	}
	if edges%16 != 0 {
		return edges/16 + 1
	}
	return edges / 16
}
