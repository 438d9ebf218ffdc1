package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/archive"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/config"
)

type app struct {
	ctx        context.Context
	configPath string
	logger     *slog.Logger
	stdout     io.Writer
	stderr     io.Writer

	table *config.Table
	reg   *filedevice.Registry
}

func (a *app) dispatch(cmd string, args []string) error {
	switch cmd {
	case "drives":
		return a.drives(args)
	case "cat":
		return a.cat(args)
	case "stat":
		return a.stat(args)
	case "load":
		return a.load(args)
	case "cp":
		return a.cp(args)
	case "pack":
		return a.pack(args)
	case "ls-pack":
		return a.lsPack(args)
	default:
		fmt.Fprintf(a.stderr, "fdev: unknown command %q\n", cmd)
		return errUsage
	}
}

// registry builds the registry from the mount table on first use.
func (a *app) registry() (*filedevice.Registry, error) {
	if a.reg != nil {
		return a.reg, nil
	}

	path := a.configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	table, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	reg, err := config.Build(a.ctx, table, a.logger)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("loaded mount table", "path", path, "drives", table.Drives())
	a.table, a.reg = table, reg
	return reg, nil
}

func (a *app) close() {
	if a.reg == nil {
		return
	}
	if err := config.Teardown(a.reg); err != nil {
		a.logger.Warn("failed to tear down drives", "error", err)
	}
}

func (a *app) args(args []string, n int, usage string) error {
	if len(args) != n {
		fmt.Fprintf(a.stderr, "usage: fdev %s\n", usage)
		return errUsage
	}
	return nil
}

func (a *app) drives(args []string) error {
	if err := a.args(args, 0, "drives"); err != nil {
		return err
	}
	reg, err := a.registry()
	if err != nil {
		return err
	}

	def := reg.Default()
	for _, name := range reg.Drives() {
		dev, err := reg.Lookup(name)
		if err != nil {
			return err
		}
		marker := " "
		if dev == def {
			marker = "*"
		}
		fmt.Fprintf(a.stdout, "%s %-12s %T\n", marker, name, dev.Backend())
	}
	return nil
}

func (a *app) cat(args []string) error {
	if err := a.args(args, 1, "cat PATH"); err != nil {
		return err
	}
	reg, err := a.registry()
	if err != nil {
		return err
	}

	dev, rest, err := reg.Resolve(args[0])
	if err != nil {
		return err
	}
	return dev.WithFile(rest, filedevice.OpenRead, func(h *filedevice.Handle) error {
		_, err := io.Copy(a.stdout, h.Stream())
		return err
	})
}

func (a *app) stat(args []string) error {
	if err := a.args(args, 1, "stat PATH"); err != nil {
		return err
	}
	reg, err := a.registry()
	if err != nil {
		return err
	}

	size, err := reg.FileSize(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s\t%d\n", args[0], size)
	return nil
}

func (a *app) load(args []string) error {
	fset := flag.NewFlagSet("load", flag.ContinueOnError)
	fset.SetOutput(a.stderr)
	align := fset.Int("align", 0, "buffer alignment (default from the mount table)")
	if err := fset.Parse(args); err != nil {
		return errUsage
	}
	if err := a.args(fset.Args(), 1, "load [-align N] PATH"); err != nil {
		return err
	}
	reg, err := a.registry()
	if err != nil {
		return err
	}

	alignment := *align
	if alignment == 0 {
		alignment = a.table.LoadAlignment()
	}

	arg := &filedevice.LoadArg{Path: fset.Arg(0), Alignment: alignment}
	buf, err := reg.Load(arg)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "path:         %s\n", arg.Path)
	fmt.Fprintf(a.stdout, "read size:    %d\n", arg.ReadSize)
	fmt.Fprintf(a.stdout, "roundup size: %d\n", arg.RoundupSize)
	fmt.Fprintf(a.stdout, "need unload:  %t\n", arg.NeedUnload)

	if arg.NeedUnload {
		return reg.Unload(arg.Path, buf)
	}
	return nil
}

func (a *app) cp(args []string) error {
	if err := a.args(args, 2, "cp SRC DST"); err != nil {
		return err
	}
	reg, err := a.registry()
	if err != nil {
		return err
	}

	var src filedevice.Handle
	if _, err := reg.Open(&src, args[0], filedevice.OpenRead); err != nil {
		return err
	}
	defer src.Release()

	dstDev, dstPath, err := reg.Resolve(args[1])
	if err != nil {
		return err
	}
	var n int64
	err = dstDev.WithFile(dstPath, filedevice.OpenWrite, func(dst *filedevice.Handle) error {
		var err error
		n, err = io.Copy(dst.Stream(), src.Stream())
		return err
	})
	if err != nil {
		return err
	}

	a.logger.Debug("copied file", "from", args[0], "to", args[1], "bytes", n)
	return nil
}

func (a *app) pack(args []string) error {
	fset := flag.NewFlagSet("pack", flag.ContinueOnError)
	fset.SetOutput(a.stderr)
	out := fset.String("o", "", "output image file")
	align := fset.Int("align", archive.DefaultAlignment, "data alignment")
	if err := fset.Parse(args); err != nil {
		return errUsage
	}
	if *out == "" {
		fmt.Fprintln(a.stderr, "usage: fdev pack -o FILE [-align N] DIR")
		return errUsage
	}
	if err := a.args(fset.Args(), 1, "pack -o FILE [-align N] DIR"); err != nil {
		return err
	}

	b := archive.NewBuilder(archive.WithAlignment(*align))
	if err := b.AddFS(osfs.New(fset.Arg(0)), ""); err != nil {
		return err
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	n, err := b.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "packed %d files into %s (%d bytes)\n", b.Len(), *out, n)
	return nil
}

func (a *app) lsPack(args []string) error {
	if err := a.args(args, 1, "ls-pack PATH"); err != nil {
		return err
	}
	reg, err := a.registry()
	if err != nil {
		return err
	}

	arg := &filedevice.LoadArg{Path: args[0], Alignment: archive.DefaultAlignment}
	image, err := reg.Load(arg)
	if err != nil {
		return err
	}
	defer func() {
		if arg.NeedUnload {
			if err := reg.Unload(arg.Path, image); err != nil {
				a.logger.Warn("failed to unload image", "path", arg.Path, "error", err)
			}
		}
	}()

	arc, err := archive.Parse(image[:arg.ReadSize])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%d entries, alignment %d\n", arc.Len(), arc.Alignment())
	for _, name := range arc.Names() {
		data, _ := arc.Lookup(name)
		fmt.Fprintf(a.stdout, "%10d  %s\n", len(data), name)
	}
	return nil
}
