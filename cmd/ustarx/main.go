// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Command ustarx extracts a ustar archive to a directory, with optional
// glob filtering. It is a thin consumer of the library and does not
// form part of the format contract (spec.md §6).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/posixtar/ustar"
	"github.com/posixtar/ustar/extract"
)

func main() {
	include := flag.String("include", "", "only extract entries matching this doublestar glob")
	exclude := flag.String("exclude", "", "skip entries matching this doublestar glob")
	force := flag.Bool("f", false, "overwrite existing files")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: ustarx [-f] [-include glob] [-exclude glob] archive.tar destdir")
		os.Exit(2)
	}

	idx, err := ustar.OpenIndex(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "ustarx:", err)
		os.Exit(1)
	}
	defer idx.Close()

	filtered := filterIndex(idx, *include, *exclude)

	opts := extract.Options{SkipUnsupported: true}
	if *force {
		opts.Overwrite = extract.OverwriteReplace
	}

	if err := extract.ToDir(filtered, flag.Arg(1), opts); err != nil {
		fmt.Fprintln(os.Stderr, "ustarx:", err)
		os.Exit(1)
	}
}

// filterIndex applies -include/-exclude globs, returning the same Index
// unfiltered when no glob was given (extract.ToDir otherwise requires no
// special plumbing for filtering: it simply iterates idx.Headers()).
func filterIndex(idx *ustar.Index, include, exclude string) *ustar.Index {
	if include == "" && exclude == "" {
		return idx
	}
	return ustar.FilterIndex(idx, func(name string) bool {
		if include != "" {
			if ok, _ := doublestar.Match(include, name); !ok {
				return false
			}
		}
		if exclude != "" {
			if ok, _ := doublestar.Match(exclude, name); ok {
				return false
			}
		}
		return true
	})
}
