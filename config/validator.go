package config

import (
	"fmt"
	"math/bits"
	"slices"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
	fderrors "github.com/input-output-hk/catalyst-forge-libs/filedevice/errors"
)

var kinds = []string{
	KindNative, KindMemory, KindMmap, KindArchive,
	KindRedirect, KindOverlay, KindMinio, KindS3, KindGit,
}

// Validate checks the rules the schema cannot express: drive names are unique,
// each kind has its required fields and mounts only refer to drives declared
// before them.
func (t *Table) Validate() error {
	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(t.Mounts) == 0 {
		report("no mounts declared")
	}
	switch t.Allocator {
	case "", AllocatorPool, AllocatorAligned:
	default:
		report("unknown allocator %q", t.Allocator)
	}
	if t.Alignment < 0 || (t.Alignment != 0 && bits.OnesCount(uint(t.Alignment)) != 1) {
		report("alignment %d is not a power of two", t.Alignment)
	}

	declared := make(map[string]bool, len(t.Mounts))
	for i := range t.Mounts {
		m := &t.Mounts[i]
		for _, problem := range validateMount(m, declared) {
			report("mount %d (%q): %s", i, m.Drive, problem)
		}
		if m.Drive != "" {
			declared[m.Drive] = true
		}
	}

	if t.Default != "" && !declared[t.Default] {
		report("default drive %q is not declared", t.Default)
	}

	if len(problems) > 0 {
		return fderrors.New(
			fderrors.CodeInvalidConfig,
			fmt.Sprintf("mount table validation failed: %s", strings.Join(problems, "; ")),
		)
	}
	return nil
}

// validateMount returns the problems of m given the drives declared before it.
func validateMount(m *Mount, declared map[string]bool) []string {
	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	refer := func(field, drive string) {
		if !declared[drive] {
			report("%s refers to undeclared drive %q", field, drive)
		}
	}
	require := func(field, value string) {
		if value == "" {
			report("%s is required for kind %q", field, m.Kind)
		}
	}

	switch {
	case m.Drive == "":
		report("drive name is empty")
	case strings.ContainsAny(m.Drive, ":/"):
		report("drive name cannot contain ':' or '/'")
	case declared[m.Drive]:
		report("drive is declared twice")
	}

	if !slices.Contains(kinds, m.Kind) {
		report("unknown kind %q", m.Kind)
		return problems
	}

	switch m.Kind {
	case KindNative, KindMmap, KindGit:
		require("root", m.Root)
	case KindArchive:
		require("source", m.Source)
		if m.Source != "" {
			drive, rest, ok := filedevice.SplitDrive(m.Source)
			switch {
			case !ok || rest == "":
				report("source %q must be of the form drive:path", m.Source)
			default:
				refer("source", drive)
			}
		}
	case KindRedirect:
		require("target", m.Target)
		if m.Target != "" {
			refer("target", m.Target)
		}
	case KindOverlay:
		if len(m.Layers) == 0 {
			report("layers is required for kind %q", m.Kind)
		}
		for _, layer := range m.Layers {
			refer("layers", layer)
		}
	case KindMinio:
		require("endpoint", m.Endpoint)
		require("bucket", m.Bucket)
	case KindS3:
		require("bucket", m.Bucket)
	}

	if _, err := m.timeout(); err != nil {
		report("%v", err)
	}
	return problems
}
