// Package git serves file devices from one revision of a git repository. The
// device is read-only: files are the blobs of the revision's tree, read
// straight from the object store without a checkout.
package git

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
	fderrors "github.com/input-output-hk/catalyst-forge-libs/filedevice/errors"
)

const (
	// DefaultRevision is the revision served when none is configured.
	DefaultRevision = "HEAD"

	// DefaultStorerCacheSize is the default size of the LRU object cache, in
	// megabytes.
	DefaultStorerCacheSize = 64
)

// ErrRevisionNotFound is returned when the configured revision does not
// resolve to a commit.
var ErrRevisionNotFound error = fderrors.New(fderrors.CodeNotFound, "cannot resolve revision")

var (
	_ filedevice.Backend = (*Backend)(nil)
	_ filedevice.Loader  = (*Backend)(nil)
)

// Backend implements filedevice.Backend over the tree of a commit.
type Backend struct {
	repo     *gogit.Repository
	revision string
	commit   plumbing.Hash
	tree     *object.Tree
}

type options struct {
	revision  string
	bare      bool
	cacheSize int
}

// Option is a functional option for configuring a Backend.
type Option func(*options)

// WithRevision selects the revision to serve: a branch, tag, hash or any
// expression go-git resolves, such as "HEAD~1".
func WithRevision(rev string) Option {
	return func(o *options) {
		o.revision = rev
	}
}

// WithBare treats the filesystem root as the git directory of a bare
// repository instead of a worktree holding .git.
func WithBare() Option {
	return func(o *options) {
		o.bare = true
	}
}

// WithStorerCacheSize sets the size of the object cache in megabytes.
func WithStorerCacheSize(megabytes int) Option {
	return func(o *options) {
		o.cacheSize = megabytes
	}
}

// Open opens the repository stored in fsys and resolves the revision to serve.
func Open(fsys billy.Filesystem, opts ...Option) (*Backend, error) {
	o := &options{revision: DefaultRevision, cacheSize: DefaultStorerCacheSize}
	for _, opt := range opts {
		opt(o)
	}

	dotGit := fsys
	if !o.bare {
		var err error
		if dotGit, err = fsys.Chroot(gogit.GitDirName); err != nil {
			return nil, fmt.Errorf("git: access %s directory: %w", gogit.GitDirName, err)
		}
	}

	repo, err := gogit.Open(newStorage(dotGit, o.cacheSize), nil)
	if err != nil {
		return nil, fmt.Errorf("git: open repository: %w", translateError(err))
	}
	return FromRepository(repo, o.revision)
}

// PlainOpen opens the repository whose worktree (or, with WithBare, git
// directory) is the directory at path.
func PlainOpen(path string, opts ...Option) (*Backend, error) {
	return Open(osfs.New(path), opts...)
}

// FromRepository serves rev of an already opened repository.
func FromRepository(repo *gogit.Repository, rev string) (*Backend, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("git: revision %q: %w: %w", rev, ErrRevisionNotFound, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("git: commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("git: tree of %s: %w", hash, err)
	}

	return &Backend{
		repo:     repo,
		revision: rev,
		commit:   *hash,
		tree:     tree,
	}, nil
}

// NewDevice creates a device named drive serving b.
func NewDevice(drive string, b *Backend, opts ...filedevice.Option) *filedevice.Device {
	return filedevice.New(drive, b, opts...)
}

// Revision returns the revision the backend was opened with.
func (b *Backend) Revision() string {
	return b.revision
}

// Commit returns the hash of the commit being served.
func (b *Backend) Commit() string {
	return b.commit.String()
}

// Repository returns the underlying repository.
func (b *Backend) Repository() *gogit.Repository {
	return b.repo
}

// blobFile is the native state of a handle: the whole blob, read on open.
type blobFile struct {
	name string
	data []byte
}

// Open implements filedevice.Backend. Writable flags fail with
// filedevice.ErrReadOnly.
func (b *Backend) Open(inner *filedevice.HandleInner, name string, flag filedevice.OpenFlag) (*filedevice.Device, error) {
	if flag.Writable() {
		return nil, fmt.Errorf("git: open %q: %w", name, filedevice.ErrReadOnly)
	}

	f, err := b.file(name)
	if err != nil {
		return nil, err
	}
	data, err := readBlob(f, make([]byte, f.Size))
	if err != nil {
		return nil, fmt.Errorf("git: read %q: %w", f.Name, err)
	}

	inner.Native = &blobFile{name: f.Name, data: data}
	return nil, nil
}

// Close implements filedevice.Backend.
func (b *Backend) Close(inner *filedevice.HandleInner) error {
	inner.Native = nil
	return nil
}

// Read implements filedevice.Backend.
func (b *Backend) Read(inner *filedevice.HandleInner, p []byte) (int, error) {
	f := native(inner)
	if inner.Position >= int64(len(f.data)) {
		return 0, nil
	}
	n := copy(p, f.data[inner.Position:])
	inner.Position += int64(n)
	return n, nil
}

// Write implements filedevice.Backend.
func (b *Backend) Write(inner *filedevice.HandleInner, _ []byte) (int, error) {
	return 0, fmt.Errorf("git: write %q: %w", native(inner).name, filedevice.ErrReadOnly)
}

// Seek implements filedevice.Backend.
func (b *Backend) Seek(inner *filedevice.HandleInner, offset int64, origin filedevice.SeekOrigin) error {
	target, err := inner.SeekTarget(offset, origin, int64(len(native(inner).data)))
	if err != nil {
		return err
	}
	inner.Position = target
	return nil
}

// Position implements filedevice.Backend.
func (b *Backend) Position(inner *filedevice.HandleInner) (int64, error) {
	return inner.Position, nil
}

// SizeOf implements filedevice.Backend.
func (b *Backend) SizeOf(name string) (int64, error) {
	f, err := b.file(name)
	if err != nil {
		return 0, err
	}
	return f.Size, nil
}

// Size implements filedevice.Backend.
func (b *Backend) Size(inner *filedevice.HandleInner) (int64, error) {
	return int64(len(native(inner).data)), nil
}

// Load implements filedevice.Loader. It decodes the blob straight into the
// load buffer instead of going through a handle.
func (b *Backend) Load(dev *filedevice.Device, arg *filedevice.LoadArg) ([]byte, error) {
	f, err := b.file(arg.Path)
	if err != nil {
		return nil, err
	}

	buf, err := dev.LoadBuffer(arg, f.Size)
	if err != nil {
		return nil, err
	}
	if _, err := readBlob(f, buf[:f.Size]); err != nil {
		dev.ReleaseLoadBuffer(arg, buf)
		return nil, fmt.Errorf("git: read %q: %w", f.Name, err)
	}

	arg.ReadSize = f.Size
	return buf, nil
}

// file looks name up in the served tree.
func (b *Backend) file(name string) (*object.File, error) {
	clean := filedevice.CleanPath(name)
	if clean == "" {
		return nil, fmt.Errorf("git: %q: %w", name, filedevice.ErrIsDir)
	}

	f, err := b.tree.File(clean)
	switch {
	case err == nil:
		return f, nil
	case errors.Is(err, object.ErrFileNotFound) || errors.Is(err, object.ErrEntryNotFound):
		if _, derr := b.tree.Tree(clean); derr == nil {
			return nil, fmt.Errorf("git: %q: %w", clean, filedevice.ErrIsDir)
		}
		return nil, fmt.Errorf("git: %q at %s: %w", clean, b.revision, fs.ErrNotExist)
	default:
		return nil, fmt.Errorf("git: %q: %w", clean, translateError(err))
	}
}

// readBlob reads the blob of f into p, which must be exactly f.Size long.
func readBlob(f *object.File, p []byte) ([]byte, error) {
	r, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = r.Close()
	}()

	if _, err := io.ReadFull(r, p); err != nil {
		return nil, err
	}
	return p, nil
}

// translateError maps go-git sentinels onto io/fs ones, keeping the original
// error in the chain.
func translateError(err error) error {
	switch {
	case errors.Is(err, gogit.ErrRepositoryNotExists):
		return fmt.Errorf("%w: %w", fs.ErrNotExist, err)
	case errors.Is(err, plumbing.ErrObjectNotFound):
		return fmt.Errorf("%w: %w", fs.ErrNotExist, err)
	default:
		return err
	}
}

func native(inner *filedevice.HandleInner) *blobFile {
	return inner.Native.(*blobFile)
}
