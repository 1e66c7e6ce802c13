// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package ustar

import (
	"bufio"
	"io"
	"os"
)

// ByteSource is the abstract sequential byte source the archive state
// machine consumes, per spec.md §4.1. Read may return fewer bytes than
// len(p) (short reads are legal); a zero-length, nil-error result means
// end of stream. Skip advances without materializing bytes; skipping past
// the logical end is an error.
type ByteSource interface {
	Read(p []byte) (n int, err error)
	Skip(n int64) error
	AtEnd() bool
}

// RandomAccessSource is the refinement spec.md §4.1 describes: a
// ByteSource that additionally guarantees O(1) Seek/Position and exposes a
// known Size when obtainable. The archive state machine never requires
// this; it only benefits the Entry/Index random-access paths.
type RandomAccessSource interface {
	ByteSource
	Seek(absolute int64) error
	Position() (int64, error)
	Size() (int64, bool)
}

// fileSource is the buffered-file backing, grounded on
// original_source/src/stream.cpp's file_stream: plain buffered sequential
// I/O; Skip discards bytes through the buffer rather than seeking.
type fileSource struct {
	f    *os.File
	r    *bufio.Reader
	pos  int64
	size int64
	known bool
}

// newFileSource wraps an already-open file, per spec.md §4.1's "buffered
// file backing uses standard sequential I/O".
func newFileSource(f *os.File) (*fileSource, error) {
	var size int64
	known := false
	if fi, err := f.Stat(); err == nil {
		size, known = fi.Size(), true
	}
	return &fileSource{f: f, r: bufio.NewReaderSize(f, 64*1024), size: size, known: known}, nil
}

func (s *fileSource) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.pos += int64(n)
	if err == io.EOF {
		return n, nil
	}
	if err != nil {
		return n, wrapIO(err, "read")
	}
	return n, nil
}

func (s *fileSource) Skip(n int64) error {
	if n == 0 {
		return nil
	}
	discarded, err := s.r.Discard(int(n))
	s.pos += int64(discarded)
	if err != nil {
		return wrapIO(err, "skip")
	}
	return nil
}

func (s *fileSource) AtEnd() bool {
	if s.known {
		return s.pos >= s.size
	}
	_, err := s.r.Peek(1)
	return err != nil
}

func (s *fileSource) Seek(absolute int64) error {
	s.r.Reset(s.f)
	if _, err := s.f.Seek(absolute, io.SeekStart); err != nil {
		return wrapIO(err, "seek")
	}
	s.pos = absolute
	return nil
}

func (s *fileSource) Position() (int64, error) { return s.pos, nil }

func (s *fileSource) Size() (int64, bool) { return s.size, s.known }

func (s *fileSource) Close() error { return s.f.Close() }
