// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build !unix

package ustar

import (
	"io"
	"os"
)

// mmapSource falls back to an in-memory read of the whole file on
// platforms without a POSIX mmap (spec.md §4.1 only requires the mapped
// backing to behave like a flat span; it does not mandate the kernel
// mechanism).
type mmapSource struct {
	data []byte
	pos  int64
}

func newMmapSource(f *os.File) (*mmapSource, error) {
	data, err := readAllFile(f)
	if err != nil {
		return nil, wrapIO(err, "read")
	}
	return &mmapSource{data: data}, nil
}

func readAllFile(f *os.File) ([]byte, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
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

func (s *mmapSource) Close() error { return nil }
