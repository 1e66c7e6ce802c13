// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package ustar

import "testing"

func TestParseOldGNUSparseHeader(t *testing.T) {
	var b block
	putOctalField(b[gnuSparseOff:gnuSparseOff+12], 0, 12)
	putOctalField(b[gnuSparseOff+12:gnuSparseOff+24], 100, 12)
	putOctalField(b[gnuSparseOff+24:gnuSparseOff+36], 200, 12)
	putOctalField(b[gnuSparseOff+36:gnuSparseOff+48], 100, 12)
	putOctalField(b[gnuRealSizeOff:gnuRealSizeOff+gnuRealSizeSz], 1024, gnuRealSizeSz)

	m, err := parseOldGNUSparseHeader(&b)
	if err != nil {
		t.Fatalf("parseOldGNUSparseHeader: %v", err)
	}
	if m.RealSize != 1024 {
		t.Errorf("RealSize = %d, want 1024", m.RealSize)
	}
	if len(m.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(m.Entries))
	}
	if m.Entries[0] != (SparseEntry{Offset: 0, Size: 100}) {
		t.Errorf("entry 0 = %+v", m.Entries[0])
	}
	if m.Entries[1] != (SparseEntry{Offset: 200, Size: 100}) {
		t.Errorf("entry 1 = %+v", m.Entries[1])
	}
	if err := validateSparseMap(m); err != nil {
		t.Errorf("validateSparseMap: %v", err)
	}
}

type fakeBlockReader struct {
	blocks []block
	i      int
}

func (f *fakeBlockReader) readBlock(dst *block) error {
	if f.i >= len(f.blocks) {
		return errEndOfArchive{}
	}
	*dst = f.blocks[f.i]
	f.i++
	return nil
}

func TestReadSparseExtensionsChain(t *testing.T) {
	var first, second block
	putOctalField(first[0:12], 0, 12)
	putOctalField(first[12:24], 10, 12)
	first[gnuSparseExtMaxEntries*gnuSparseExtEntrySize] = '1' // more follows

	putOctalField(second[0:12], 50, 12)
	putOctalField(second[12:24], 20, 12)
	second[gnuSparseExtMaxEntries*gnuSparseExtEntrySize] = 0 // terminates

	fr := &fakeBlockReader{blocks: []block{first, second}}
	entries, err := readSparseExtensions(fr)
	if err != nil {
		t.Fatalf("readSparseExtensions: %v", err)
	}
	want := []SparseEntry{{Offset: 0, Size: 10}, {Offset: 50, Size: 20}}
	if len(entries) != len(want) || entries[0] != want[0] || entries[1] != want[1] {
		t.Fatalf("entries = %+v, want %+v", entries, want)
	}
}

func TestParseGNUSparseMap01(t *testing.T) {
	entries, err := parseGNUSparseMap01("0,100,200,100")
	if err != nil {
		t.Fatalf("parseGNUSparseMap01: %v", err)
	}
	want := []SparseEntry{{Offset: 0, Size: 100}, {Offset: 200, Size: 100}}
	if len(entries) != 2 || entries[0] != want[0] || entries[1] != want[1] {
		t.Fatalf("entries = %+v, want %+v", entries, want)
	}

	if _, err := parseGNUSparseMap01("0,100,200"); err == nil {
		t.Error("expected error for odd field count")
	}
}

func TestParseSparse10DataMap(t *testing.T) {
	var b block
	copy(b[:], "2\n0\n100\n200\n100\n")

	entries, err := parseSparse10DataMap(&b)
	if err != nil {
		t.Fatalf("parseSparse10DataMap: %v", err)
	}
	want := []SparseEntry{{Offset: 0, Size: 100}, {Offset: 200, Size: 100}}
	if len(entries) != 2 || entries[0] != want[0] || entries[1] != want[1] {
		t.Fatalf("entries = %+v, want %+v", entries, want)
	}
}

func TestParseSparse10DataMapTolerantOfTrailingFields(t *testing.T) {
	var b block
	// Spec.md §8 scenario 5's literal map has trailing noise fields
	// after the entries the declared count calls for.
	copy(b[:], "2\n0\n100\n200\n100\n1000\n0\n")

	entries, err := parseSparse10DataMap(&b)
	if err != nil {
		t.Fatalf("parseSparse10DataMap: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}

func TestValidateSparseMapRejectsOverlap(t *testing.T) {
	m := &SparseMap{
		Entries:  []SparseEntry{{Offset: 0, Size: 100}, {Offset: 50, Size: 100}},
		RealSize: 1000,
	}
	if err := validateSparseMap(m); err == nil {
		t.Error("expected overlap to be rejected")
	}
}

func TestValidateSparseMapRejectsPastRealSize(t *testing.T) {
	m := &SparseMap{
		Entries:  []SparseEntry{{Offset: 0, Size: 2000}},
		RealSize: 1000,
	}
	if err := validateSparseMap(m); err == nil {
		t.Error("expected past-real-size entry to be rejected")
	}
}
