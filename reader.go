// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package ustar

import (
	"io"
	"os"
)

// Reader is the stateful archive-stream decoder: spec.md §4.5's "Archive
// state machine". It owns its byte source for the reader's lifetime and
// is not safe for concurrent use (spec.md §5).
type Reader struct {
	src ByteSource
	mm  *mmapSource // non-nil only when backed by a memory-mapped source
	raw *os.File    // owned file handle, if any, closed by Close

	gen int // bumped on every Next call made before iteration has ended; invalidates outstanding Entrys

	finished bool
	err      error // sticky error once iteration has been aborted

	pending pendingBundle
	globals map[string]string // most recent PAX 'g' record set, if any

	// Per-entry physical accounting, valid between one Next call and the
	// next.
	hadDataRegion bool
	dataRemaining int64 // stored bytes not yet consumed from the stream
	dataPadding   int64 // trailing NUL padding still owed after data

	scratch [blockSize]byte // per-reader scratch; never shared across Readers
}

// Open opens a file-backed reader using buffered sequential I/O, per
// spec.md §6's `open_archive(path)`.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapIO(err, "open")
	}
	fs, err := newFileSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Reader{src: fs, raw: f}, nil
}

// OpenMapped opens a file-backed reader using a memory-mapped, read-only
// region as its byte source, enabling zero-copy random-access reads of
// entry data, sparse or not (spec.md §4.1's mapped backing).
func OpenMapped(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapIO(err, "open")
	}
	mm, err := newMmapSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Reader{src: mm, mm: mm, raw: f}, nil
}

// OpenStream wraps a caller-supplied byte source, per spec.md §6's
// `open_archive_stream`. A nil source is rejected with
// KindInvalidOperation.
func OpenStream(src ByteSource) (*Reader, error) {
	if src == nil {
		return nil, errf(KindInvalidOperation, "nil byte source")
	}
	return &Reader{src: src}, nil
}

// Close releases the underlying file handle or mapping, if this Reader
// owns one, per spec.md §5.
func (r *Reader) Close() error {
	var err error
	if c, ok := r.src.(interface{ Close() error }); ok {
		err = c.Close()
	}
	if r.raw != nil {
		if cerr := r.raw.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Err reports the error that aborted iteration, if any. It returns nil
// after a clean end of archive. Per spec.md §7, callers use this to
// distinguish clean end from truncation after Next returns io.EOF.
func (r *Reader) Err() error {
	if r.err == io.EOF {
		return nil
	}
	return r.err
}

// readRawBlock reads exactly one 512-byte block directly off the byte
// source, with no entry-accounting side effects. Used for header blocks,
// prefix-record payload framing, and sparse extension blocks.
func (r *Reader) readRawBlock(b *block) error {
	n, err := io.ReadFull(&byteSourceReader{r.src}, b[:])
	if err == io.ErrUnexpectedEOF || (err == nil && n < blockSize) {
		return errf(KindCorruptArchive, "incomplete block read")
	}
	if err == io.EOF {
		return errEndOfArchive{}
	}
	if err != nil {
		return err
	}
	return nil
}

// byteSourceReader adapts ByteSource.Read's "short reads legal, 0 means
// EOF" contract to io.Reader, so io.ReadFull can loop it correctly.
type byteSourceReader struct{ src ByteSource }

func (b *byteSourceReader) Read(p []byte) (int, error) {
	n, err := b.src.Read(p)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

func (r *Reader) readBlock(b *block) error { return r.readRawBlock(b) }

// readPayload reads exactly size bytes (typically an L/K/x prefix
// record's payload) then skips its trailing padding to the next block
// boundary.
func (r *Reader) readPayload(size int64) ([]byte, error) {
	buf := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(&byteSourceReader{r.src}, buf); err != nil {
			return nil, errf(KindCorruptArchive, "truncated prefix-record payload: %v", err)
		}
	}
	if err := r.skipPadding(size); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *Reader) skipPadding(size int64) error {
	pad := blockPadding(size)
	if pad == 0 {
		return nil
	}
	if err := r.src.Skip(pad); err != nil {
		return wrapIO(err, "skip padding")
	}
	return nil
}

func blockPadding(size int64) int64 {
	return (blockSize - size%blockSize) % blockSize
}

// flushCurrentEntry skips any unread data and trailing padding left over
// from the previous entry, per spec.md §4.5 step 2.
func (r *Reader) flushCurrentEntry() error {
	if r.dataRemaining > 0 {
		if err := r.src.Skip(r.dataRemaining); err != nil {
			return wrapIO(err, "skip entry remainder")
		}
		r.dataRemaining = 0
	}
	if r.hadDataRegion && r.dataPadding > 0 {
		if err := r.src.Skip(r.dataPadding); err != nil {
			return wrapIO(err, "skip entry padding")
		}
	}
	r.hadDataRegion = false
	r.dataPadding = 0
	return nil
}

// readEntryBytes pulls up to len(p) bytes directly off the shared byte
// source on behalf of the current entry's sequential data accessor,
// decrementing the reader's own bookkeeping. It does not skip; the
// caller (seqSource) is responsible for requesting skips first.
func (r *Reader) readEntryBytes(p []byte) (int, error) {
	if int64(len(p)) > r.dataRemaining {
		p = p[:r.dataRemaining]
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := r.src.Read(p)
	r.dataRemaining -= int64(n)
	if err != nil {
		return n, wrapIO(err, "read entry data")
	}
	if n == 0 {
		return 0, errf(KindCorruptArchive, "unexpected end of stream inside entry data")
	}
	return n, nil
}

// skipEntryBytes advances the shared byte source by n bytes on behalf of
// the current entry, used when a random (but forward) offset read skips
// a gap.
func (r *Reader) skipEntryBytes(n int64) error {
	if n > r.dataRemaining {
		return errf(KindInvalidOperation, "skip past end of entry data")
	}
	if err := r.src.Skip(n); err != nil {
		return wrapIO(err, "skip entry data")
	}
	r.dataRemaining -= n
	return nil
}

// Next advances to the next logical entry, per spec.md §4.5's "Advance
// algorithm". It returns io.EOF at a clean end of archive; use Err to
// distinguish that from an aborted, truncated iteration.
func (r *Reader) Next() (*Entry, error) {
	if r.err != nil {
		return nil, r.err
	}

	if err := r.flushCurrentEntry(); err != nil {
		r.err = err
		return nil, err
	}
	r.gen++

	for {
		var hdrBlock block
		if err := r.readRawBlock(&hdrBlock); err != nil {
			if _, ok := err.(errEndOfArchive); ok {
				r.err = io.EOF
				return nil, io.EOF
			}
			r.err = err
			return nil, err
		}

		if hdrBlock.isZero() {
			var second block
			err := r.readRawBlock(&second)
			if _, ok := err.(errEndOfArchive); ok {
				// A single trailing zero block is also an error per
				// spec.md §3's invariants, but if the stream simply
				// ends right there treat the truncation itself as the
				// corrupt-archive condition below.
			} else if err != nil {
				r.err = err
				return nil, err
			} else if second.isZero() {
				r.err = io.EOF
				return nil, io.EOF
			}
			corrupt := errf(KindCorruptArchive, "lone zero block is not a valid end-of-archive marker")
			r.err = corrupt
			return nil, corrupt
		}

		hdr, err := parseHeader(&hdrBlock)
		if err != nil {
			r.err = err
			return nil, err
		}

		switch hdr.Typeflag {
		case TypeGNULongName:
			payload, err := r.readPayload(hdr.Size)
			if err != nil {
				r.err = err
				return nil, err
			}
			r.pending.longName = trimTrailingNUL(payload)
			continue

		case TypeGNULongLink:
			payload, err := r.readPayload(hdr.Size)
			if err != nil {
				r.err = err
				return nil, err
			}
			r.pending.hasLongLink = true
			r.pending.longLink = trimTrailingNUL(payload)
			continue

		case TypeXHeader:
			payload, err := r.readPayload(hdr.Size)
			if err != nil {
				r.err = err
				return nil, err
			}
			records, err := parsePAXRecords(payload)
			if err != nil {
				r.err = err
				return nil, err
			}
			if r.pending.paxLocal == nil {
				r.pending.paxLocal = records
			} else {
				for k, v := range records {
					r.pending.paxLocal[k] = v
				}
			}
			continue

		case TypeXGlobalHeader:
			payload, err := r.readPayload(hdr.Size)
			if err != nil {
				r.err = err
				return nil, err
			}
			records, err := parsePAXRecords(payload)
			if err != nil {
				r.err = err
				return nil, err
			}
			r.globals = records
			continue

		case TypeGNUVolume, TypeGNUMultiVol:
			if err := r.src.Skip(hdr.Size); err != nil {
				werr := wrapIO(err, "skip volume record")
				r.err = werr
				return nil, werr
			}
			if err := r.skipPadding(hdr.Size); err != nil {
				r.err = err
				return nil, err
			}
			continue
		}

		// Real entry (possibly GNU old-style sparse, already detected
		// during header parsing).
		if hdr.Sparse != nil && gnuSparseIsExtended(&hdrBlock) {
			ext, err := readSparseExtensions(readerBlockAdapter{r})
			if err != nil {
				if _, ok := err.(errEndOfArchive); ok {
					err = errf(KindCorruptArchive, "truncated GNU sparse extension block")
				}
				r.err = err
				return nil, err
			}
			mergeSparseExtensions(hdr.Sparse, ext)
		}

		entry, err := r.buildEntry(hdr)
		if err != nil {
			r.err = err
			return nil, err
		}
		return entry, nil
	}
}

// readerBlockAdapter lets Reader satisfy the minimal blockReader
// interface sparse.go's readSparseExtensions needs.
type readerBlockAdapter struct{ r *Reader }

func (a readerBlockAdapter) readBlock(dst *block) error { return a.r.readRawBlock(dst) }

func trimTrailingNUL(b []byte) string {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

// buildEntry applies the pending bundle (spec.md §4.5 step 6), handles
// the sparse-1.0 data-block map (step 7), computes the per-entry byte
// counts (step 8), and assembles the Entry and its data accessor.
func (r *Reader) buildEntry(hdr *Header) (*Entry, error) {
	declaredSize := hdr.Size // the real ustar header's own size field, pre any PAX/sparse override

	pending := r.pending
	r.pending.reset()

	if err := pending.applyTo(hdr, r.globals); err != nil {
		return nil, err
	}
	if hdr.Sparse == nil {
		// For a non-sparse entry a PAX size record also governs how many
		// data bytes the entry occupies in the stream.
		declaredSize = hdr.Size
	}

	if isHeaderOnlyType(hdr.Typeflag) {
		hdr.Size = 0
		declaredSize = 0
	}

	entry := &Entry{hdr: hdr, r: r, gen: r.gen}

	if pending.sparse10Pending {
		// Per spec.md §9 (resolved): the declared stored size already
		// accounts for the map block. Read it, validate the map, and
		// reject the entry unless the map block plus the stored segments
		// add up to exactly the declared size.
		var mapBlock block
		if err := r.readRawBlock(&mapBlock); err != nil {
			if _, ok := err.(errEndOfArchive); ok {
				return nil, errf(KindCorruptArchive, "truncated GNU sparse 1.0 map block")
			}
			return nil, err
		}
		entries, err := parseSparse10DataMap(&mapBlock)
		if err != nil {
			return nil, err
		}
		hdr.Sparse.Entries = entries
		if err := validateSparseMap(hdr.Sparse); err != nil {
			return nil, err
		}
		stored := hdr.Sparse.StoredSize()
		if blockSize+stored != declaredSize {
			return nil, errf(KindCorruptArchive,
				"GNU sparse 1.0 map block plus stored segments (%d) does not match declared entry size (%d)",
				blockSize+stored, declaredSize)
		}
		r.hadDataRegion = true
		r.dataRemaining = stored
		r.dataPadding = blockPadding(declaredSize)
	} else if hdr.Sparse != nil {
		// The GNU old-style in-header/extension map never went through
		// applyTo's PAX validation (that only covers the 0.1 and 1.0
		// records), so validate it here before trusting it for the
		// non-overlapping, ordered walk readSparse performs.
		if err := validateSparseMap(hdr.Sparse); err != nil {
			return nil, err
		}
		stored := hdr.Sparse.StoredSize()
		r.hadDataRegion = declaredSize > 0
		r.dataRemaining = stored
		r.dataPadding = blockPadding(declaredSize)
	} else {
		r.hadDataRegion = declaredSize > 0
		r.dataRemaining = declaredSize
		r.dataPadding = blockPadding(declaredSize)
	}

	if hdr.Sparse != nil {
		entry.sparse = hdr.Sparse
		entry.logicalLen = hdr.Sparse.RealSize
		hdr.Size = hdr.Sparse.RealSize // step 8: reported size is real_size
	} else {
		entry.logicalLen = hdr.Size
	}

	if r.mm != nil {
		pos, _ := r.mm.Position()
		entry.src = &spanSource{mm: r.mm, base: pos, storedLen: r.dataRemaining}
	} else {
		entry.src = &seqSource{r: r, storedLen: r.dataRemaining}
	}

	return entry, nil
}
