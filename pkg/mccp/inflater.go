// Package mccp implements the decompression side of MCCPv2 (telnet option
// 86). After the server sends IAC SB COMPRESS2 IAC SE, every byte it writes
// is part of a single deflate stream; the inflated bytes must be handed back
// to the telnet parser in order.
package mccp

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// chunkSize is the inflate output granularity.
const chunkSize = 1024

// ErrStreamEnd is returned by Feed when the server terminated the deflate
// stream (MCCPv2 servers do this to turn compression off).
var ErrStreamEnd = errors.New("compressed stream ended")

// Inflater incrementally decompresses a deflate substream. Feed consumes a
// slice of compressed input and returns every byte of output that input
// produced. A non-nil error ends the stream; the inflater is unusable
// afterwards. Close releases resources and is safe to call at any point.
type Inflater interface {
	Feed(p []byte) ([]byte, error)
	Close() error
}

type readResult struct {
	data []byte
	err  error
}

// chunkSource adapts push-style Feed calls to the pull-style io.Reader the
// zlib decoder wants. Read signals on need before blocking for input, which
// lets Feed detect that the decoder has consumed everything it was given.
type chunkSource struct {
	need chan struct{}
	in   chan []byte
	cur  []byte
}

func (s *chunkSource) Read(p []byte) (int, error) {
	for len(s.cur) == 0 {
		s.need <- struct{}{}
		chunk, ok := <-s.in
		if !ok {
			return 0, io.EOF
		}
		s.cur = chunk
	}
	n := copy(p, s.cur)
	s.cur = s.cur[n:]
	return n, nil
}

type zlibInflater struct {
	src     *chunkSource
	results chan readResult
	waiting bool // decoder is parked on <-src.in
	done    bool
}

// NewInflater returns an Inflater backed by a streaming zlib decoder.
func NewInflater() Inflater {
	z := &zlibInflater{
		src: &chunkSource{
			need: make(chan struct{}),
			in:   make(chan []byte),
		},
		results: make(chan readResult),
	}
	go z.run()
	return z
}

// run owns the zlib reader. It forwards each decoded chunk over results and
// exits on the first error. All sends happen from this goroutine, so a
// received need signal implies every earlier chunk was already delivered.
func (z *zlibInflater) run() {
	zr, err := zlib.NewReader(z.src)
	if err != nil {
		z.results <- readResult{err: err}
		return
	}
	defer zr.Close()

	buf := make([]byte, chunkSize)
	for {
		n, err := zr.Read(buf)
		if n > 0 {
			out := make([]byte, n)
			copy(out, buf[:n])
			z.results <- readResult{data: out}
		}
		if err != nil {
			z.results <- readResult{err: err}
			return
		}
	}
}

func (z *zlibInflater) Feed(p []byte) ([]byte, error) {
	if z.done {
		return nil, errors.New("inflater is closed")
	}

	var out []byte
	delivered := false
	if z.waiting {
		z.src.in <- p
		z.waiting = false
		delivered = true
	}
	for {
		select {
		case r := <-z.results:
			out = append(out, r.data...)
			if r.err != nil {
				z.done = true
				if r.err == io.EOF {
					return out, ErrStreamEnd
				}
				return out, fmt.Errorf("inflate: %w", r.err)
			}
		case <-z.src.need:
			if delivered {
				// The decoder consumed the whole chunk and wants more.
				z.waiting = true
				return out, nil
			}
			z.src.in <- p
			delivered = true
		}
	}
}

func (z *zlibInflater) Close() error {
	if z.done {
		return nil
	}
	z.done = true
	close(z.src.in)
	for {
		select {
		case <-z.src.need:
		case r := <-z.results:
			if r.err != nil {
				return nil
			}
		}
	}
}
