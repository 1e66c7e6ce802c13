// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package extract is the thin filesystem-writing adapter spec.md's §1
// scope boundary calls for: the core library exposes entries and a data
// accessor, never a filesystem. Grounded on
// original_source/src/archive_entry.cpp's extract_to_path (create parent
// directories, switch on entry type, write data, set permissions best
// effort, ignore permission errors) and the teacher's fskeleton.Create*
// call shape for the "implicit parent directories" convention.
package extract

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/posixtar/ustar"
)

// Overwrite controls what ToDir does when a destination path already
// exists.
type Overwrite int

const (
	// OverwriteNever fails the whole extraction if any destination path
	// already exists.
	OverwriteNever Overwrite = iota
	// OverwriteReplace removes an existing file, directory, or symlink
	// before writing the new entry in its place.
	OverwriteReplace
	// OverwriteSkip leaves any already-existing destination untouched
	// and continues with the remaining entries.
	OverwriteSkip
)

// Options are the policy decisions spec.md §9 says "do not belong in the
// format core": ownership is deliberately never preserved (a documented
// non-goal), and everything else here is a knob a caller sets
// explicitly rather than a hidden default.
type Options struct {
	Overwrite Overwrite

	// Umask is subtracted from each entry's stored permission bits
	// before they're applied, the same as a shell's umask. Zero means
	// no masking.
	Umask fs.FileMode

	// SkipUnsupported, when true, silently skips entry types ToDir
	// doesn't know how to materialize (devices, FIFOs) instead of
	// failing the extraction.
	SkipUnsupported bool
}

// ToDir extracts every entry of idx into destDir, refusing any entry
// whose name or symlink target would resolve outside destDir (a
// zip-slip/tar-slip guard the original C++ extractor does not perform,
// since it extracts one entry to an explicit path at a time; a
// directory-wide adapter must).
func ToDir(idx *ustar.Index, destDir string, opts Options) error {
	destDir, err := filepath.Abs(destDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	for _, hdr := range idx.Headers() {
		if err := extractOne(idx, destDir, hdr, opts); err != nil {
			return err
		}
	}
	return nil
}

func extractOne(idx *ustar.Index, destDir string, hdr *ustar.Header, opts Options) error {
	dest, err := resolveSafe(destDir, hdr.Name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	if exists(dest) {
		switch opts.Overwrite {
		case OverwriteSkip:
			return nil
		case OverwriteReplace:
			if err := os.RemoveAll(dest); err != nil {
				return err
			}
		default:
			return errors.New("extract: destination already exists: " + dest)
		}
	}

	mode := fs.FileMode(hdr.Mode) &^ opts.Umask & 0o7777

	switch {
	case hdr.IsDir():
		return os.MkdirAll(dest, mode|0o700)

	case hdr.Typeflag == ustar.TypeSymlink:
		if err := validateSymlinkTarget(destDir, dest, hdr.Linkname); err != nil {
			return err
		}
		return os.Symlink(hdr.Linkname, dest)

	case hdr.Typeflag == ustar.TypeLink:
		target, err := resolveSafe(destDir, hdr.Linkname)
		if err != nil {
			return err
		}
		return os.Link(target, dest)

	case hdr.IsRegular():
		return extractRegular(idx, dest, hdr, mode)

	default:
		if opts.SkipUnsupported {
			return nil
		}
		return errors.New("extract: unsupported entry type for " + hdr.Name)
	}
}

func extractRegular(idx *ustar.Index, dest string, hdr *ustar.Header, mode fs.FileMode) error {
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode|0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	e, err := idx.Open(hdr.Name)
	if err != nil {
		return err
	}
	if _, err := e.WriteTo(f); err != nil && err != io.EOF {
		return err
	}

	// Permissions are set after writing, best effort, matching
	// archive_entry.cpp's extract_to_path (permission failures are not
	// fatal: extracting under a restrictive umask or as a non-owner is
	// common and should not abort the whole tree).
	_ = f.Chmod(mode)
	return nil
}

// resolveSafe joins name onto destDir and refuses to escape it, the
// tar-slip guard spec.md §9 flags as a caller concern.
func resolveSafe(destDir, name string) (string, error) {
	clean := filepath.Join(destDir, filepath.FromSlash(name))
	if !withinDir(destDir, clean) {
		return "", errors.New("extract: entry path escapes destination: " + name)
	}
	return clean, nil
}

// validateSymlinkTarget refuses to create a symlink whose target, once
// resolved relative to its own location, would point outside destDir.
func validateSymlinkTarget(destDir, linkPath, target string) error {
	if filepath.IsAbs(target) {
		if !withinDir(destDir, target) {
			return errors.New("extract: symlink target escapes destination: " + target)
		}
		return nil
	}
	resolved := filepath.Join(filepath.Dir(linkPath), target)
	if !withinDir(destDir, resolved) {
		return errors.New("extract: symlink target escapes destination: " + target)
	}
	return nil
}

func withinDir(destDir, path string) bool {
	rel, err := filepath.Rel(destDir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
