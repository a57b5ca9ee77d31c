package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/simonhull/metastream/internal/catalog"
	"github.com/simonhull/metastream/internal/scanner"
	"github.com/simonhull/metastream/internal/watch"
)

func (a *app) scan(ctx context.Context, args []string, keepWatching bool) error {
	name := "scan"
	if keepWatching {
		name = "watch"
	}
	fs := newFlagSet(name, a.stderr, "dir...")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	cat, err := catalog.Open(ctx, a.cfg.Catalog)
	if err != nil {
		return err
	}
	defer cat.Close()

	sc := scanner.New(cat, a.logger, a.cfg.Jobs, a.extractOptions()...)
	start := time.Now()
	stats, err := sc.Scan(ctx, fs.Args()...)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s files seen, %s extracted, %s unchanged, %s failed in %s\n",
		humanize.Comma(stats.Seen), humanize.Comma(stats.Extracted),
		humanize.Comma(stats.Skipped), humanize.Comma(stats.Failed),
		time.Since(start).Round(time.Millisecond))

	if !keepWatching {
		return nil
	}
	w, err := watch.New(sc, cat, a.logger, a.cfg.Watch.SettleDelay)
	if err != nil {
		return err
	}
	for _, root := range fs.Args() {
		if err := w.Add(root); err != nil {
			return err
		}
	}
	a.logger.Info("watching", "roots", fs.Args(), "settle", a.cfg.Watch.SettleDelay)
	return w.Run(ctx)
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := newFlagSet("list", a.stderr, "[-json]")
	asJSON := fs.Bool("json", false, "print JSON, one object per line")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cat, err := catalog.Open(ctx, a.cfg.Catalog)
	if err != nil {
		return err
	}
	defer cat.Close()

	entries, err := cat.List(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.stdout)
	for _, e := range entries {
		if *asJSON {
			if err := enc.Encode(e); err != nil {
				return err
			}
			continue
		}
		length := time.Duration(e.LengthMS) * time.Millisecond
		fmt.Fprintf(a.stdout, "%s - %s [%s] %s  %s, scanned %s\n",
			e.Artist, e.Title, e.Album, length.Round(time.Second),
			e.Path, humanize.Time(e.ScannedAt))
	}
	return nil
}
