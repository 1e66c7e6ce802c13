// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package ustar

import "fmt"

// headerFields is a convenience builder for a raw ustar header block, used
// throughout this package's tests to construct byte-exact scenarios
// without hand-indexing field offsets.
type headerFields struct {
	name, linkname string
	size, mode     int64
	uid, gid       int
	mtime          int64
	typeflag       byte
	uname, gname   string
	devmajor       int64
	devminor       int64
	prefix         string
	gnuMagic       bool // "ustar " rather than POSIX "ustar\x00"
}

// putOctalField writes v as a NUL-terminated, zero-padded octal number
// into a field of the given width, the standard ustar numeric encoding.
func putOctalField(dst []byte, v int64, width int) {
	s := fmt.Sprintf("%0*o", width-1, v)
	copy(dst, []byte(s))
	dst[width-1] = 0
}

func putString(dst []byte, s string) {
	copy(dst, []byte(s))
}

// buildHeaderBlock assembles one 512-byte header block with a correct
// checksum, per spec.md §3's field layout.
func buildHeaderBlock(f headerFields) block {
	var b block

	putString(b.field(offName, szName), f.name)
	putOctalField(b.field(offMode, szMode), f.mode, szMode)
	putOctalField(b.field(offUID, szUID), int64(f.uid), szUID)
	putOctalField(b.field(offGID, szGID), int64(f.gid), szGID)
	putOctalField(b.field(offSize, szSize), f.size, szSize)
	putOctalField(b.field(offMtime, szMtime), f.mtime, szMtime)
	for i := 0; i < szChksum; i++ {
		b[offChksum+i] = ' '
	}
	typeflag := f.typeflag
	if typeflag == 0 {
		typeflag = TypeReg
	}
	b[offTypeflag] = typeflag
	putString(b.field(offLinkname, szLinkname), f.linkname)
	if f.gnuMagic {
		putString(b.field(offMagic, szMagic), "ustar ")
		b[offVersion] = ' '
		b[offVersion+1] = ' '
	} else {
		putString(b.field(offMagic, szMagic), "ustar\x00")
		putString(b.field(offVersion, szVersion), "00")
	}
	putString(b.field(offUname, szUname), f.uname)
	putString(b.field(offGname, szGname), f.gname)
	putOctalField(b.field(offDevmajor, szDevmajor), f.devmajor, szDevmajor)
	putOctalField(b.field(offDevminor, szDevminor), f.devminor, szDevminor)
	putString(b.field(offPrefix, szPrefix), f.prefix)

	sum := computeChecksum(&b)
	putOctalField(b.field(offChksum, szChksum), int64(sum), szChksum)

	return b
}

// paxRecord formats one PAX "LEN SP KEY=VALUE LF" record, computing the
// self-referential length the real format requires (the length digit
// count itself contributes to the length), per spec.md §4.3.
func paxRecord(key, value string) string {
	body := key + "=" + value + "\n"
	length := len(body) + 2 // +2 is a first guess at "N " digit count
	for {
		candidate := fmt.Sprintf("%d %s", length, body)
		if len(candidate) == length {
			return candidate
		}
		length = len(candidate)
	}
}

// blockPad returns a copy of data padded with NUL bytes to the next
// 512-byte block boundary.
func blockPad(data []byte) []byte {
	pad := blockPadding(int64(len(data)))
	return append(append([]byte{}, data...), make([]byte, pad)...)
}

// memByteSource is a minimal in-memory ByteSource, used to exercise the
// state machine (reader.go) against hand-built byte streams without
// touching a real file.
type memByteSource struct {
	data []byte
	pos  int64
}

func (m *memByteSource) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		return 0, nil
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memByteSource) Skip(n int64) error {
	if m.pos+n > int64(len(m.data)) {
		return errf(KindIO, "skip past end")
	}
	m.pos += n
	return nil
}

func (m *memByteSource) AtEnd() bool { return m.pos >= int64(len(m.data)) }

func twoZeroBlocks() []byte {
	return make([]byte, 2*blockSize)
}
