// Package textbuf builds a line indexed text buffer from a stream of chunks.
// Chunk boundaries need not match line boundaries; every line keeps the
// terminator it had in the source ("\n", "\r\n" or "\r").
package textbuf

import (
	"errors"
	"io"
	"strings"
)

const (
	// pieces smaller than this are merged with the next chunk
	minPieceSize = 1024
	// read size used by [Builder.ReadFrom]
	readChunkSize = 64 * 1024
)

// Builder accumulates chunks for a [Buffer]. It is meant for a single
// producer and is not safe for concurrent use.
type Builder struct {
	pieces     []string
	pending    strings.Builder
	lineStarts []int
	length     int
	counts     EOLCounts
	heldCR     bool // chunk ended in '\r'; may be the first half of "\r\n"
}

func NewBuilder() *Builder {
	return &Builder{lineStarts: []int{0}}
}

// AcceptChunk appends chunk. A trailing '\r' is held back until the next
// chunk so that a "\r\n" split across two chunks counts as one terminator.
func (b *Builder) AcceptChunk(chunk string) {
	if len(chunk) == 0 {
		return
	}
	if b.lineStarts == nil {
		b.lineStarts = []int{0}
	}
	if b.heldCR {
		b.heldCR = false
		chunk = "\r" + chunk
	}
	if chunk[len(chunk)-1] == '\r' {
		b.heldCR = true
		chunk = chunk[:len(chunk)-1]
		if len(chunk) == 0 {
			return
		}
	}
	b.append(chunk)
}

// append indexes the terminators in s and stores it. s never ends in a '\r'
// that could pair with a following '\n'.
func (b *Builder) append(s string) {
	base := b.length
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				b.counts.CRLF++
				i++
			} else {
				b.counts.CR++
			}
			b.lineStarts = append(b.lineStarts, base+i+1)
		case '\n':
			b.counts.LF++
			b.lineStarts = append(b.lineStarts, base+i+1)
		}
	}
	b.length += len(s)

	if b.pending.Len() == 0 && len(s) >= minPieceSize {
		b.pieces = append(b.pieces, s)
		return
	}
	b.pending.WriteString(s)
	if b.pending.Len() >= minPieceSize {
		b.flush()
	}
}

func (b *Builder) flush() {
	if b.pending.Len() == 0 {
		return
	}
	b.pieces = append(b.pieces, b.pending.String())
	b.pending.Reset()
}

// Write implements io.Writer
func (b *Builder) Write(p []byte) (int, error) {
	b.AcceptChunk(string(p))
	return len(p), nil
}

// WriteString implements io.StringWriter
func (b *Builder) WriteString(s string) (int, error) {
	b.AcceptChunk(s)
	return len(s), nil
}

// ReadFrom implements io.ReaderFrom, accepting r in 64 KiB chunks until EOF
func (b *Builder) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, readChunkSize)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			b.AcceptChunk(string(buf[:n]))
			total += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Len returns the number of bytes accepted so far
func (b *Builder) Len() int {
	if b.heldCR {
		return b.length + 1
	}
	return b.length
}

// Build finalizes the accumulated chunks into a [Buffer] and resets the
// builder. A builder that received nothing builds an empty buffer with one
// empty line.
func (b *Builder) Build() *Buffer {
	if b.heldCR {
		b.heldCR = false
		b.append("\r")
	}
	b.flush()

	lineStarts := b.lineStarts
	if lineStarts == nil {
		lineStarts = []int{0}
	}
	buf := newBuffer(b.pieces, lineStarts, b.length, b.counts)

	*b = Builder{lineStarts: []int{0}}
	return buf
}
