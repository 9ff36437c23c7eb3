package document

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

const utf8Name = "utf-8"

var (
	ErrMalformedInput  = errors.New("malformed input for encoding")
	ErrUnknownEncoding = errors.New("unknown encoding")

	bomUTF8 = []byte{0xEF, 0xBB, 0xBF}
)

// lookupEncoding resolves a WHATWG encoding label ("latin1", "UTF8",
// "windows-1252") to its canonical name. The returned encoding is nil for
// UTF-8, which is validated but not transcoded.
func lookupEncoding(label string) (encoding.Encoding, string, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" || label == utf8Name || label == "utf8" {
		return nil, utf8Name, nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownEncoding, label)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownEncoding, label)
	}
	if name == utf8Name {
		return nil, utf8Name, nil
	}
	return enc, name, nil
}

// CanonicalEncoding returns the canonical name for label or an error wrapping
// [ErrUnknownEncoding]
func CanonicalEncoding(label string) (string, error) {
	_, name, err := lookupEncoding(label)
	return name, err
}

// utf8Validator passes UTF-8 through unchanged and fails on the first
// invalid sequence. An incomplete sequence at the end of src is only an error
// at EOF. With rejectReplacement set U+FFFD is also an error; decoders emit it
// for bytes they cannot map.
type utf8Validator struct {
	transform.NopResetter
	rejectReplacement bool
}

func (v utf8Validator) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	n := 0
	for n < len(src) {
		if src[n] < utf8.RuneSelf {
			n++
			continue
		}
		r, size := utf8.DecodeRune(src[n:])
		if r == utf8.RuneError && size <= 1 {
			if !atEOF && !utf8.FullRune(src[n:]) {
				err = transform.ErrShortSrc
			} else {
				err = ErrMalformedInput
			}
			break
		}
		if r == utf8.RuneError && v.rejectReplacement {
			err = ErrMalformedInput
			break
		}
		n += size
	}

	nDst = copy(dst, src[:n])
	if nDst < n {
		return nDst, nDst, transform.ErrShortDst
	}
	return nDst, n, err
}

// decoder returns the strict decoding transformer for enc, nil meaning UTF-8
func decoder(enc encoding.Encoding) transform.Transformer {
	if enc == nil {
		return utf8Validator{}
	}
	return transform.Chain(enc.NewDecoder(), utf8Validator{rejectReplacement: true})
}
