// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Command ustarls lists the members of a ustar archive, with optional
// glob filtering. It is a thin consumer of the library and does not
// form part of the format contract (spec.md §6).
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/posixtar/ustar"
)

func main() {
	include := flag.String("include", "", "only list entries matching this doublestar glob")
	exclude := flag.String("exclude", "", "exclude entries matching this doublestar glob")
	long := flag.Bool("l", false, "long listing: mode, size, mtime")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ustarls [-l] [-include glob] [-exclude glob] archive.tar")
		os.Exit(2)
	}

	idx, err := ustar.OpenIndex(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "ustarls:", err)
		os.Exit(1)
	}
	defer idx.Close()

	for _, hdr := range idx.Headers() {
		if *include != "" {
			if ok, _ := doublestar.Match(*include, hdr.Name); !ok {
				continue
			}
		}
		if *exclude != "" {
			if ok, _ := doublestar.Match(*exclude, hdr.Name); ok {
				continue
			}
		}
		if *long {
			fmt.Printf("%s %10d %s %s\n", modeString(hdr), hdr.Size, hdr.ModTime.Format(time.RFC3339), hdr.Name)
		} else {
			fmt.Println(hdr.Name)
		}
	}
}

func modeString(hdr *ustar.Header) string {
	var b [10]byte
	for i := range b {
		b[i] = '-'
	}
	switch hdr.Typeflag {
	case ustar.TypeDir:
		b[0] = 'd'
	case ustar.TypeSymlink:
		b[0] = 'l'
	case ustar.TypeFifo:
		b[0] = 'p'
	case ustar.TypeChar:
		b[0] = 'c'
	case ustar.TypeBlock:
		b[0] = 'b'
	}
	bits := [9]byte{'r', 'w', 'x', 'r', 'w', 'x', 'r', 'w', 'x'}
	for i, c := range bits {
		if hdr.Mode&(1<<uint(8-i)) != 0 {
			b[i+1] = c
		}
	}
	return string(b[:])
}
