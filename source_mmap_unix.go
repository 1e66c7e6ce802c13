// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build unix

package ustar

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapSource is the memory-mapped backing, grounded on
// original_source/src/stream.cpp's mmap_stream: a private read-only
// mapping treated as a flat byte span, with MADV_SEQUENTIAL advice since
// the state machine only ever walks forward.
type mmapSource struct {
	data []byte
	pos  int64
}

func newMmapSource(f *os.File) (*mmapSource, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, wrapIO(err, "stat")
	}
	size := fi.Size()
	if size == 0 {
		// Empty files are legal; mmap of zero length is not, so back
		// this with an empty, non-nil slice instead, per spec.md §4.1.
		return &mmapSource{data: []byte{}}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, wrapIO(err, "mmap")
	}
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
	return &mmapSource{data: data}, nil
}

func (s *mmapSource) Read(p []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, nil
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *mmapSource) Skip(n int64) error {
	if s.pos+n > int64(len(s.data)) {
		return errf(KindIO, "skip past end of mapped region")
	}
	s.pos += n
	return nil
}

func (s *mmapSource) AtEnd() bool { return s.pos >= int64(len(s.data)) }

func (s *mmapSource) Seek(absolute int64) error {
	if absolute < 0 || absolute > int64(len(s.data)) {
		return errf(KindIO, "seek out of range")
	}
	s.pos = absolute
	return nil
}

func (s *mmapSource) Position() (int64, error) { return s.pos, nil }

func (s *mmapSource) Size() (int64, bool) { return int64(len(s.data)), true }

// Slice returns a zero-copy view of the mapped region; used by Entry's
// span data-source variant for random-access reads.
func (s *mmapSource) Slice(off, n int64) []byte {
	if off < 0 {
		off = 0
	}
	if off > int64(len(s.data)) {
		return nil
	}
	end := off + n
	if end > int64(len(s.data)) {
		end = int64(len(s.data))
	}
	if end < off {
		end = off
	}
	return s.data[off:end]
}

func (s *mmapSource) Close() error {
	if len(s.data) == 0 {
		return nil
	}
	return unix.Munmap(s.data)
}
