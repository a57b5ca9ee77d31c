// Command block-dump prints the container structure of audio files: FLAC
// metadata blocks, Ogg pages, RIFF chunks or ID3v2 frames. Useful to
// confirm what the extractors are able to read.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/simonhull/metastream/internal/dump"
	"github.com/simonhull/metastream/internal/types"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: block-dump <file> [file...]")
		os.Exit(1)
	}

	failed := false
	for _, path := range os.Args[1:] {
		if err := dumpFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func dumpFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return err
	}
	return dump.Write(context.Background(), os.Stdout, types.Source{R: f, Size: stat.Size(), Name: path})
}
