// Package fits encodes raw sensor buffers as single-HDU FITS files.
//
// The output is a primary header of 80-character records padded to a
// 2880-byte block, followed by the pixel bytes exactly as downloaded,
// padded again to a block boundary. Encoding is pure; callers persist the
// returned bytes.
package fits

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

const (
	// BlockSize is the FITS logical record size.
	BlockSize = 2880

	// RecordSize is the length of one header card.
	RecordSize = 80

	// valueEnd is the column where fixed-format values end.
	valueEnd = 30
)

// ErrEncoding is returned for inputs that cannot form a valid image.
var ErrEncoding = errors.New("fits: invalid image")

// Depth is the number of bits per pixel.
type Depth int

// Supported pixel depths.
const (
	Depth8  Depth = 8
	Depth16 Depth = 16
)

// BytesPerPixel returns the pixel size of d.
func (d Depth) BytesPerPixel() int {
	return int(d) / 8
}

func (d Depth) valid() bool {
	return d == Depth8 || d == Depth16
}

// Encode serializes buf as a 2-axis image of width x height pixels.
//
// buf must hold exactly width*height*depth/8 bytes.
func Encode(buf []byte, width, height int, depth Depth) ([]byte, error) {
	if !depth.valid() {
		return nil, fmt.Errorf("%w: unsupported depth %d", ErrEncoding, depth)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrEncoding, width, height)
	}
	if want := width * height * depth.BytesPerPixel(); len(buf) != want {
		return nil, fmt.Errorf("%w: buffer is %d bytes, want %d", ErrEncoding, len(buf), want)
	}

	header := Header(width, height, depth)
	out := make([]byte, 0, len(header)+padded(len(buf)))
	out = append(out, header...)
	out = append(out, buf...)
	return pad(out), nil
}

// Header returns the padded primary header block(s) for an image.
func Header(width, height int, depth Depth) []byte {
	var b bytes.Buffer
	b.Grow(BlockSize)

	b.WriteString(record("SIMPLE", "T", "file conforms to FITS standard"))
	b.WriteString(record("BITPIX", bitpix(depth), "number of bits per data pixel"))
	b.WriteString(record("NAXIS", "2", "number of axis"))
	b.WriteString(record("NAXIS1", strconv.Itoa(width), "length of data axis 1"))
	b.WriteString(record("NAXIS2", strconv.Itoa(height), "length of data axis 2"))
	b.WriteString(card("END"))

	return pad(b.Bytes())
}

// HeaderSize returns the byte length of the header block for any image.
func HeaderSize() int {
	return padded(6 * RecordSize)
}

// bitpix renders the depth as a two-character field: "16" or " 8".
func bitpix(d Depth) string {
	return fmt.Sprintf("%2d", int(d))
}

// record formats a fixed-format keyword card with the value right-justified
// to column 30.
func record(key, value, comment string) string {
	s := fmt.Sprintf("%-8s= %*s / %s", key, valueEnd-10, value, comment)
	return card(s)
}

// card pads or truncates s to one header record.
func card(s string) string {
	if len(s) > RecordSize {
		return s[:RecordSize]
	}
	return fmt.Sprintf("%-*s", RecordSize, s)
}

func padded(n int) int {
	if rem := n % BlockSize; rem != 0 {
		return n + BlockSize - rem
	}
	return n
}

// pad extends b with ASCII spaces to the next block boundary.
func pad(b []byte) []byte {
	for n := padded(len(b)) - len(b); n > 0; n-- {
		b = append(b, ' ')
	}
	return b
}
