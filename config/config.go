// Package config loads mount tables and builds device registries from them.
//
// A mount table is a CUE document (JSON works too, being valid CUE) listing the
// drives to mount in order. Later mounts may refer to earlier ones, so an
// archive can be mounted from a file on a native drive and an overlay can stack
// drives declared above it:
//
//	default:   "game"
//	allocator: "pool"
//	mounts: [
//	    {drive: "data", kind: "native", root: "./data"},
//	    {drive: "pak", kind: "archive", source: "data:base.fpak"},
//	    {drive: "saves", kind: "memory"},
//	    {drive: "game", kind: "overlay", layers: ["saves", "pak"]},
//	]
//
// # Basic Usage
//
//	path, err := config.DefaultPath()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	table, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reg, err := config.Build(ctx, table, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer config.Teardown(reg)
package config

import (
	"fmt"
	"time"
)

// Mount kinds.
const (
	KindNative   = "native"
	KindMemory   = "memory"
	KindMmap     = "mmap"
	KindArchive  = "archive"
	KindRedirect = "redirect"
	KindOverlay  = "overlay"
	KindMinio    = "minio"
	KindS3       = "s3"
	KindGit      = "git"
)

// Allocator names.
const (
	AllocatorPool    = "pool"
	AllocatorAligned = "aligned"
)

// Table is a decoded mount table.
type Table struct {
	// Default names the drive used for paths without a drive prefix. When empty
	// the first mount is the default.
	Default string `json:"default,omitempty"`

	// Allocator selects the buffer allocator shared by every device: "pool"
	// (the default) or "aligned".
	Allocator string `json:"allocator,omitempty"`

	// Alignment is the load alignment used when a caller asks for none.
	Alignment int `json:"alignment,omitempty"`

	// Mounts lists the drives in declaration order.
	Mounts []Mount `json:"mounts"`
}

// Mount declares one drive. Which fields apply depends on Kind.
type Mount struct {
	Drive string `json:"drive"`
	Kind  string `json:"kind"`

	// Root is the directory served by native and mmap drives, or the worktree
	// of a git drive.
	Root string `json:"root,omitempty"`

	// Revision is the commit a git drive serves. Defaults to HEAD.
	Revision string `json:"revision,omitempty"`

	// Source is the "drive:path" of the image an archive drive is mounted from.
	Source string `json:"source,omitempty"`

	// Target is the drive a redirect forwards to.
	Target string `json:"target,omitempty"`

	// Prefix is the directory on the target (redirect) or the key prefix
	// (minio, s3).
	Prefix string `json:"prefix,omitempty"`

	// Layers lists the drives of an overlay, topmost first.
	Layers []string `json:"layers,omitempty"`

	// Object store settings.
	Endpoint  string `json:"endpoint,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	Region    string `json:"region,omitempty"`
	AccessKey string `json:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
	Secure    bool   `json:"secure,omitempty"`

	// Timeout bounds each object store call, e.g. "30s".
	Timeout string `json:"timeout,omitempty"`
}

// DefaultDrive returns the drive used for paths without a drive prefix.
func (t *Table) DefaultDrive() string {
	if t.Default != "" || len(t.Mounts) == 0 {
		return t.Default
	}
	return t.Mounts[0].Drive
}

// LoadAlignment returns the configured load alignment, or zero for the device
// minimum.
func (t *Table) LoadAlignment() int {
	return t.Alignment
}

// Drives returns the drive names in declaration order.
func (t *Table) Drives() []string {
	names := make([]string, 0, len(t.Mounts))
	for _, m := range t.Mounts {
		names = append(names, m.Drive)
	}
	return names
}

// timeout parses Timeout. An empty value yields zero, which keeps the backend
// default.
func (m *Mount) timeout() (time.Duration, error) {
	if m.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(m.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", m.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout %q is negative", m.Timeout)
	}
	return d, nil
}
