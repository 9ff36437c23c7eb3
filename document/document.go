// Package document moves text between a storage provider and a
// [textbuf.Buffer]: decoding, chunked reads, line ending normalisation and
// encoding on the way back.
package document

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/brettbedarf/codetree"
	"github.com/brettbedarf/codetree/config"
	"github.com/brettbedarf/codetree/internal/metrics"
	"github.com/brettbedarf/codetree/internal/util"
	"github.com/brettbedarf/codetree/textbuf"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/transform"
)

// LineEnding selects the terminator written by [Write]
type LineEnding string

const (
	LineEndingKeep LineEnding = ""
	LineEndingLF   LineEnding = "lf"
	LineEndingCRLF LineEnding = "crlf"
	LineEndingCR   LineEnding = "cr"
)

// ParseLineEnding accepts "lf", "crlf", "cr" and "keep" (or "")
func ParseLineEnding(s string) (LineEnding, error) {
	switch le := LineEnding(strings.ToLower(strings.TrimSpace(s))); le {
	case LineEndingLF, LineEndingCRLF, LineEndingCR, LineEndingKeep:
		return le, nil
	case "keep":
		return LineEndingKeep, nil
	default:
		return "", fmt.Errorf("unknown line ending %q", s)
	}
}

// Terminator returns the line terminator or "" for [LineEndingKeep]
func (le LineEnding) Terminator() string {
	switch le {
	case LineEndingLF:
		return textbuf.LF
	case LineEndingCRLF:
		return textbuf.CRLF
	case LineEndingCR:
		return textbuf.CR
	default:
		return ""
	}
}

type Options struct {
	Encoding   string     // WHATWG label; "" is UTF-8
	ChunkSize  int        // decoded bytes handed to the builder per chunk
	BufferSize int        // write buffer size
	LineEnding LineEnding // Write only
	BOM        bool       // Write only; emit a UTF-8 byte order mark
}

// OptionsFromConfig returns the read/write options set by cfg
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Encoding:   cfg.Encoding,
		ChunkSize:  cfg.ReadChunkSize,
		BufferSize: cfg.WriteBufferSize,
	}
}

func (o Options) chunkSize() int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return config.DefaultReadChunkSize
}

func (o Options) bufferSize() int {
	if o.BufferSize > 0 {
		return o.BufferSize
	}
	return config.DefaultWriteBufferSize
}

// Info describes a document as it was last read or written
type Info struct {
	Path        string
	Encoding    string
	BOM         bool
	Bytes       int64 // encoded size in storage, including any BOM
	Lines       int
	EOL         string
	MixedEOL    bool
	Fingerprint uint64 // xxhash64 of the decoded text
}

// IsModified reports whether buf differs from the text described by info
func IsModified(buf *textbuf.Buffer, info Info) bool {
	return buf.Fingerprint() != info.Fingerprint
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Read decodes the document at p into a buffer. The text is fed to the
// builder in chunks of opts.ChunkSize and ctx is checked between chunks.
// On any error, including malformed input, no buffer is returned.
func Read(ctx context.Context, provider codetree.StorageProvider, p string, opts Options) (*textbuf.Buffer, Info, error) {
	logger := util.GetLogger("Document.Read")
	p = codetree.CleanPath(p)

	start := time.Now()
	buf, info, err := read(ctx, provider, p, opts)
	metrics.RecordDocumentRead(info.Bytes, time.Since(start), err == nil)
	if err != nil {
		logger.Debug().Err(err).Str("path", p).Msg("Failed to read document")
		return nil, Info{}, err
	}

	logger.Debug().Str("path", p).Str("encoding", info.Encoding).Int("lines", info.Lines).
		Int64("bytes", info.Bytes).Dur("elapsed", time.Since(start)).Msg("Read document")
	return buf, info, nil
}

func read(ctx context.Context, provider codetree.StorageProvider, p string, opts Options) (*textbuf.Buffer, Info, error) {
	enc, encName, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return nil, Info{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, Info{}, err
	}

	rc, err := provider.Open(ctx, p)
	if err != nil {
		return nil, Info{}, err
	}
	defer rc.Close()

	size := opts.chunkSize()
	counter := &countingReader{r: rc}
	br := bufio.NewReaderSize(counter, size)

	bom := false
	if enc == nil {
		if head, _ := br.Peek(len(bomUTF8)); bytes.Equal(head, bomUTF8) {
			_, _ = br.Discard(len(bomUTF8))
			bom = true
		}
	}

	r := transform.NewReader(br, decoder(enc))

	builder := textbuf.NewBuilder()
	chunk := make([]byte, size)
	for {
		if err := ctx.Err(); err != nil {
			return nil, Info{Bytes: counter.n}, err
		}
		n, err := io.ReadFull(r, chunk)
		if n > 0 {
			builder.AcceptChunk(string(chunk[:n]))
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, Info{Bytes: counter.n}, fmt.Errorf("decode %s as %s: %w", p, encName, err)
		}
	}

	buf := builder.Build()
	return buf, Info{
		Path:        p,
		Encoding:    encName,
		BOM:         bom,
		Bytes:       counter.n,
		Lines:       buf.LineCount(),
		EOL:         buf.EOL(),
		MixedEOL:    buf.IsMixedEOL(),
		Fingerprint: buf.Fingerprint(),
	}, nil
}

// Write encodes buf to the document at p. With a LineEnding set every line
// is written with that terminator, otherwise each line keeps its own. The
// last line never gets a terminator it did not have.
func Write(ctx context.Context, provider codetree.StorageProvider, p string, buf *textbuf.Buffer, opts Options) (Info, error) {
	logger := util.GetLogger("Document.Write")
	p = codetree.CleanPath(p)

	start := time.Now()
	info, err := write(ctx, provider, p, buf, opts)
	metrics.RecordDocumentWrite(info.Bytes, time.Since(start), err == nil)
	if err != nil {
		logger.Debug().Err(err).Str("path", p).Msg("Failed to write document")
		return Info{}, err
	}

	logger.Debug().Str("path", p).Str("encoding", info.Encoding).Int64("bytes", info.Bytes).Msg("Wrote document")
	return info, nil
}

func write(ctx context.Context, provider codetree.StorageProvider, p string, buf *textbuf.Buffer, opts Options) (Info, error) {
	enc, encName, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return Info{}, err
	}
	if opts.BOM && enc != nil {
		return Info{}, fmt.Errorf("byte order mark is only supported for %s, not %s", utf8Name, encName)
	}

	wc, err := provider.Create(ctx, p)
	if err != nil {
		return Info{}, err
	}
	closed := false
	defer func() {
		if !closed {
			_ = wc.Close()
		}
	}()

	counter := &countingWriter{w: wc}
	bw := bufio.NewWriterSize(counter, opts.bufferSize())
	if opts.BOM {
		if _, err := bw.Write(bomUTF8); err != nil {
			return Info{}, err
		}
	}

	var out io.Writer = bw
	var tw *transform.Writer
	if enc != nil {
		tw = transform.NewWriter(bw, enc.NewEncoder())
		out = tw
	}

	digest := xxhash.New()
	w := io.MultiWriter(out, digest)
	eol := opts.LineEnding.Terminator()
	last := buf.LineCount() - 1

	for i := 0; i <= last; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return Info{}, err
			}
		}

		var line string
		if eol == "" {
			line, err = buf.LineContentWithEOL(i)
		} else {
			line, err = buf.LineContent(i)
			if i < last {
				line += eol
			}
		}
		if err != nil {
			return Info{}, err
		}
		if _, err := io.WriteString(w, line); err != nil {
			return Info{}, fmt.Errorf("encode %s as %s: %w", p, encName, err)
		}
	}

	if tw != nil {
		if err := tw.Close(); err != nil {
			return Info{}, fmt.Errorf("encode %s as %s: %w", p, encName, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return Info{}, err
	}
	closed = true
	if err := wc.Close(); err != nil {
		return Info{}, err
	}

	resultEOL, mixed := buf.EOL(), buf.IsMixedEOL()
	if eol != "" {
		resultEOL, mixed = eol, false
	}
	return Info{
		Path:        p,
		Encoding:    encName,
		BOM:         opts.BOM,
		Bytes:       counter.n,
		Lines:       buf.LineCount(),
		EOL:         resultEOL,
		MixedEOL:    mixed,
		Fingerprint: digest.Sum64(),
	}, nil
}

// Normalize returns a copy of buf with every terminator replaced by le
func Normalize(buf *textbuf.Buffer, le LineEnding) *textbuf.Buffer {
	eol := le.Terminator()
	if eol == "" {
		return buf
	}
	b := textbuf.NewBuilder()
	last := buf.LineCount() - 1
	for i := 0; i <= last; i++ {
		line, _ := buf.LineContent(i)
		b.AcceptChunk(line)
		if i < last {
			b.AcceptChunk(eol)
		}
	}
	return b.Build()
}
