// Package content implements the pull-based payload generators create_file
// draws from, per spec.md §4.7.9: an enumerated kind plus a single
// Next(n) []byte method, not an inheritance hierarchy (spec.md §9's
// "Content generators" design note).
package content

import "io"

// Kind enumerates the five content sources spec.md §4.7.9 names.
type Kind int

const (
	KindAlpha Kind = iota
	KindNum
	KindHex
	KindStdin
	KindTemp
)

// Generator produces exactly n bytes of payload per call, continuing from
// wherever the previous call left off for cyclic generators.
type Generator interface {
	Next(n int) []byte
}

// cyclic repeats alphabet indefinitely across calls, picking up where the
// last call stopped.
type cyclic struct {
	alphabet string
	pos      int
}

func (c *cyclic) Next(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = c.alphabet[c.pos]
		c.pos = (c.pos + 1) % len(c.alphabet)
	}
	return out
}

// NewAlpha returns a Generator cycling A..Z.
func NewAlpha() Generator { return &cyclic{alphabet: "ABCDEFGHIJKLMNOPQRSTUVWXYZ"} }

// NewNum returns a Generator cycling 0..9.
func NewNum() Generator { return &cyclic{alphabet: "0123456789"} }

// NewHex returns a Generator cycling 0..F.
func NewHex() Generator { return &cyclic{alphabet: "0123456789ABCDEF"} }

// reader pulls from an injected io.Reader -- the well-known stdin/scratch
// input spec.md §4.7.9 describes, supplied at Config construction time
// rather than read from a global, per spec.md §9's "Global singletons"
// guidance. Short reads are zero-padded; Generator has no way to signal
// EOF back to create_file, which always wants exactly n bytes.
type reader struct {
	src io.Reader
}

func (r *reader) Next(n int) []byte {
	out := make([]byte, n)
	read, _ := io.ReadFull(r.src, out)
	for i := read; i < n; i++ {
		out[i] = 0
	}
	return out
}

// NewStdin returns a Generator reading from src, standing in for the
// "well-known input file" spec.md §4.7.9 describes.
func NewStdin(src io.Reader) Generator { return &reader{src: src} }

// NewTemp returns a Generator reading from src, the caller-supplied scratch
// input behind KindTemp. Defragmentation does not go through it: it copies
// each file's chain bytes directly into the fresh image.
func NewTemp(src io.Reader) Generator { return &reader{src: src} }

// ForKind constructs the Generator for kind, wiring Stdin/Temp to the
// caller-supplied readers. stdin/temp may be nil for kinds that don't need
// them.
func ForKind(kind Kind, stdin, temp io.Reader) Generator {
	switch kind {
	case KindAlpha:
		return NewAlpha()
	case KindNum:
		return NewNum()
	case KindHex:
		return NewHex()
	case KindStdin:
		return NewStdin(stdin)
	case KindTemp:
		return NewTemp(temp)
	default:
		return NewAlpha()
	}
}
