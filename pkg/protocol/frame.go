// Package protocol implements the base-station command protocol: frames of
// the form "$CMD*", "$CMD?*" and "$CMD=args*" carried in datagrams, and
// newline-terminated text replies.
package protocol

const (
	StartMarker = '$'
	EndMarker   = '*'
)

// Buffer accumulates received bytes until a complete frame is present.
type Buffer struct {
	buf []byte
}

func (b *Buffer) Feed(data []byte) {
	b.buf = append(b.buf, data...)
}

func (b *Buffer) Len() int {
	return len(b.buf)
}

// Extract returns the leftmost "$...*" substring containing no other marker.
// When a frame is found the whole buffer is discarded, including any bytes
// before and after the frame.
func (b *Buffer) Extract() (string, bool) {
	start := -1
	for i, c := range b.buf {
		switch c {
		case StartMarker:
			start = i
		case EndMarker:
			if start >= 0 {
				frame := string(b.buf[start : i+1])
				b.buf = b.buf[:0]
				return frame, true
			}
		}
	}
	return "", false
}
