// Command metastream reads audio metadata, indexes libraries into a SQLite
// catalog and keeps the catalog current while files change.
//
// Usage:
//
//	metastream [global flags] <command> [flags] [args]
//
// Commands:
//
//	show   print the metadata of files
//	scan   index directories into the catalog
//	watch  scan, then keep the catalog current
//	list   print the catalog
//	dump   print container structure
//	version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/simonhull/metastream"
	"github.com/simonhull/metastream/internal/config"
	"github.com/simonhull/metastream/internal/logging"
)

// errUsage is returned after usage has already been printed.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "metastream: %v\n", err)
		}
		os.Exit(1)
	}
}

// app is the state shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("metastream", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "config file (TOML)")
	logLevel := global.String("log-level", "", "log level: debug, info, warn, error")
	logFormat := global.String("log-format", "", "log format: text or json")
	jobs := global.Int("jobs", -1, "concurrent extractions (0 = one per CPU)")
	catalogPath := global.String("catalog", "", "catalog database path")
	global.Usage = func() {
		fmt.Fprintln(stderr, "Usage: metastream [global flags] <show|scan|watch|list|dump|version> [args]")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	// flags override the config file
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *jobs >= 0 {
		cfg.Jobs = *jobs
	}
	if *catalogPath != "" {
		cfg.Catalog = *catalogPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a := &app{
		cfg: cfg,
		logger: logging.New(logging.Config{
			Writer: stderr,
			Format: cfg.Log.Format,
			Level:  logging.ParseLevel(cfg.Log.Level),
		}),
		stdout: stdout,
		stderr: stderr,
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "show":
		return a.show(ctx, rest)
	case "scan":
		return a.scan(ctx, rest, false)
	case "watch":
		return a.scan(ctx, rest, true)
	case "list":
		return a.list(ctx, rest)
	case "dump":
		return a.dump(ctx, rest)
	case "version":
		info := metastream.GetVersionInfo()
		fmt.Fprintf(stdout, "metastream %s (commit %s, built %s, %s)\n",
			info.Version, info.GitCommit, info.BuildTime, info.GoVersion)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		global.Usage()
		return errUsage
	}
}

// extractOptions maps the configuration onto library options.
func (a *app) extractOptions() []metastream.Option {
	return []metastream.Option{
		metastream.WithLogger(a.logger),
		metastream.WithAlbumArt(a.cfg.AlbumArt),
		metastream.WithBufferSize(a.cfg.BufferSize),
		metastream.WithDurationScan(a.cfg.DurationScan),
		metastream.WithConcurrency(a.cfg.Jobs),
	}
}

func newFlagSet(name string, stderr io.Writer, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: metastream %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}
