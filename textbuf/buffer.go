package textbuf

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var ErrLineOutOfRange = errors.New("line out of range")

const (
	LF   = "\n"
	CRLF = "\r\n"
	CR   = "\r"
)

// EOLCounts is the number of lines ending in each terminator
type EOLCounts struct {
	LF   int
	CRLF int
	CR   int
}

// Buffer is an immutable line indexed text. Safe for concurrent reads.
// Lines are numbered from 0 and there is always at least one line; content
// ending in a terminator has an empty last line.
type Buffer struct {
	pieces      []string
	pieceStarts []int
	lineStarts  []int
	length      int
	counts      EOLCounts
}

func newBuffer(pieces []string, lineStarts []int, length int, counts EOLCounts) *Buffer {
	starts := make([]int, len(pieces))
	off := 0
	for i, p := range pieces {
		starts[i] = off
		off += len(p)
	}
	return &Buffer{
		pieces:      pieces,
		pieceStarts: starts,
		lineStarts:  lineStarts,
		length:      length,
		counts:      counts,
	}
}

// FromString builds a buffer from s in one chunk
func FromString(s string) *Buffer {
	b := NewBuilder()
	b.AcceptChunk(s)
	return b.Build()
}

func (b *Buffer) LineCount() int {
	return len(b.lineStarts)
}

// Len returns the content length in bytes
func (b *Buffer) Len() int {
	return b.length
}

func (b *Buffer) EOLCounts() EOLCounts {
	return b.counts
}

// EOL returns the most common terminator, "\n" when there is none.
// Ties prefer "\n", then "\r\n".
func (b *Buffer) EOL() string {
	c := b.counts
	switch {
	case c.CRLF > c.LF && c.CRLF >= c.CR:
		return CRLF
	case c.CR > c.LF && c.CR > c.CRLF:
		return CR
	default:
		return LF
	}
}

// IsMixedEOL reports whether more than one kind of terminator is present
func (b *Buffer) IsMixedEOL() bool {
	kinds := 0
	for _, n := range []int{b.counts.LF, b.counts.CRLF, b.counts.CR} {
		if n > 0 {
			kinds++
		}
	}
	return kinds > 1
}

func (b *Buffer) lineRange(n int) (start, end int, err error) {
	if n < 0 || n >= len(b.lineStarts) {
		return 0, 0, fmt.Errorf("line %d of %d: %w", n, len(b.lineStarts), ErrLineOutOfRange)
	}
	start = b.lineStarts[n]
	end = b.length
	if n+1 < len(b.lineStarts) {
		end = b.lineStarts[n+1]
	}
	return start, end, nil
}

// eolLen returns the terminator length of the line [start, end)
func (b *Buffer) eolLen(n, start, end int) int {
	if n == len(b.lineStarts)-1 || end == start {
		return 0
	}
	if end-start >= 2 && b.byteAt(end-2) == '\r' && b.byteAt(end-1) == '\n' {
		return 2
	}
	return 1
}

// LineContentWithEOL returns line n including its terminator. Joining every
// line reproduces the original content.
func (b *Buffer) LineContentWithEOL(n int) (string, error) {
	start, end, err := b.lineRange(n)
	if err != nil {
		return "", err
	}
	return b.slice(start, end), nil
}

// LineContent returns line n without its terminator
func (b *Buffer) LineContent(n int) (string, error) {
	start, end, err := b.lineRange(n)
	if err != nil {
		return "", err
	}
	return b.slice(start, end-b.eolLen(n, start, end)), nil
}

// LineEOL returns the terminator of line n; "" for the last line
func (b *Buffer) LineEOL(n int) (string, error) {
	start, end, err := b.lineRange(n)
	if err != nil {
		return "", err
	}
	k := b.eolLen(n, start, end)
	return b.slice(end-k, end), nil
}

// Lines returns every line without terminators
func (b *Buffer) Lines() []string {
	out := make([]string, len(b.lineStarts))
	for i := range out {
		out[i], _ = b.LineContent(i)
	}
	return out
}

// String returns the whole content
func (b *Buffer) String() string {
	return strings.Join(b.pieces, "")
}

// WriteTo implements io.WriterTo
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, p := range b.pieces {
		n, err := io.WriteString(w, p)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// NewReader returns a reader over the content
func (b *Buffer) NewReader() io.Reader {
	readers := make([]io.Reader, len(b.pieces))
	for i, p := range b.pieces {
		readers[i] = strings.NewReader(p)
	}
	return io.MultiReader(readers...)
}

// Fingerprint returns the xxhash64 of the content
func (b *Buffer) Fingerprint() uint64 {
	d := xxhash.New()
	for _, p := range b.pieces {
		_, _ = d.WriteString(p)
	}
	return d.Sum64()
}

// pieceAt returns the index of the piece holding offset off
func (b *Buffer) pieceAt(off int) int {
	return sort.Search(len(b.pieceStarts), func(i int) bool {
		return b.pieceStarts[i] > off
	}) - 1
}

func (b *Buffer) byteAt(off int) byte {
	i := b.pieceAt(off)
	return b.pieces[i][off-b.pieceStarts[i]]
}

// slice returns content[start:end], joining pieces when the range spans them
func (b *Buffer) slice(start, end int) string {
	if start >= end {
		return ""
	}
	i := b.pieceAt(start)
	local := start - b.pieceStarts[i]
	if end-b.pieceStarts[i] <= len(b.pieces[i]) {
		return b.pieces[i][local : end-b.pieceStarts[i]]
	}

	var sb strings.Builder
	sb.Grow(end - start)
	for off := start; off < end; i++ {
		p := b.pieces[i]
		from := off - b.pieceStarts[i]
		to := min(len(p), end-b.pieceStarts[i])
		sb.WriteString(p[from:to])
		off = b.pieceStarts[i] + to
	}
	return sb.String()
}
