// Command fdev inspects and copies files through the drives of a mount table.
//
// Usage:
//
//	fdev [-config FILE] [-v] COMMAND [ARGS]
//
// Commands:
//
//	drives                  list the mounted drives
//	cat PATH                write a file to stdout
//	stat PATH               print the size of a file
//	load [-align N] PATH    bulk-load a file and report the buffer layout
//	cp SRC DST              copy a file between drives
//	pack -o FILE DIR        build an archive image from a local directory
//	ls-pack PATH            list the entries of an archive image
//
// Paths take the form drive:path; paths without a drive use the default drive.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	fderrors "github.com/input-output-hk/catalyst-forge-libs/filedevice/errors"
)

// Exit codes.
const (
	exitOK = iota
	exitFailure
	exitUsage
	exitNotFound
	exitForbidden
	exitConfig
)

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("fdev", flag.ContinueOnError)
	fset.SetOutput(stderr)
	configPath := fset.String("config", "", "mount table (default $FILEDEVICE_CONFIG or $XDG_CONFIG_HOME/filedevice/mounts.cue)")
	verbose := fset.Bool("v", false, "log debug output")
	fset.Usage = func() {
		fmt.Fprintln(stderr, "usage: fdev [-config FILE] [-v] drives|cat|stat|load|cp|pack|ls-pack [ARGS]")
		fset.PrintDefaults()
	}
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}
	if fset.NArg() == 0 {
		fset.Usage()
		return exitUsage
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	app := &app{
		ctx:        ctx,
		configPath: *configPath,
		logger:     logger,
		stdout:     stdout,
		stderr:     stderr,
	}
	defer app.close()

	err := app.dispatch(fset.Arg(0), fset.Args()[1:])
	if err == nil {
		return exitOK
	}
	if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
		return exitUsage
	}
	fmt.Fprintf(stderr, "fdev: %v\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	switch fderrors.CodeOf(err) {
	case fderrors.CodeNotFound:
		return exitNotFound
	case fderrors.CodeForbidden:
		return exitForbidden
	case fderrors.CodeInvalidConfig, fderrors.CodeCUELoadFailed, fderrors.CodeCUEDecodeFailed:
		return exitConfig
	default:
		return exitFailure
	}
}
