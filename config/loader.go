package config

import (
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/adrg/xdg"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	fderrors "github.com/input-output-hk/catalyst-forge-libs/filedevice/errors"
)

// EnvConfig names the environment variable that overrides the mount table
// location.
const EnvConfig = "FILEDEVICE_CONFIG"

// configRelPath is the mount table location relative to the XDG config
// directories.
const configRelPath = "filedevice/mounts.cue"

// schema constrains mount tables before they are decoded. Cross-mount rules
// that CUE cannot express are checked by Table.Validate.
const schema = `
#Mount: {
	drive:      =~"^[^:/]+$"
	kind:       "native" | "memory" | "mmap" | "archive" | "redirect" | "overlay" | "minio" | "s3" | "git"
	root?:      string
	revision?:  string
	source?:    string
	target?:    string
	prefix?:    string
	layers?:    [...string]
	endpoint?:  string
	bucket?:    string
	region?:    string
	accessKey?: string
	secretKey?: string
	secure?:    bool
	timeout?:   string
}

#Table: {
	default?:  string
	allocator: *"pool" | "aligned"
	alignment: *0 | int & >=0
	mounts: [...#Mount]
}
`

// DefaultPath returns the mount table location: $FILEDEVICE_CONFIG when set,
// otherwise the first filedevice/mounts.cue found in the XDG config
// directories.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return p, nil
	}
	p, err := xdg.SearchConfigFile(configRelPath)
	if err != nil {
		return "", fderrors.Wrap(err, fderrors.CodeNotFound, "no mount table found")
	}
	return p, nil
}

// Load reads and validates the mount table at path.
func Load(path string) (*Table, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fderrors.WrapWithContext(err, fderrors.CodeInvalidInput,
			"failed to resolve mount table path", map[string]interface{}{"path": path})
	}
	return LoadFS(osfs.New(filepath.Dir(abs)), filepath.Base(abs))
}

// LoadFS reads and validates the mount table at path on fsys.
func LoadFS(fsys billy.Basic, path string) (*Table, error) {
	data, err := util.ReadFile(fsys, path)
	if err != nil {
		return nil, fderrors.WrapWithContext(err, fderrors.CodeCUELoadFailed,
			"failed to read mount table", map[string]interface{}{"path": path})
	}
	return Parse(data, path)
}

// Parse compiles data as a mount table, checks it against the schema, decodes
// it and validates it. filename is only used in error positions.
func Parse(data []byte, filename string) (*Table, error) {
	ctx := cuecontext.New()
	errCtx := map[string]interface{}{"path": filename}

	def := ctx.CompileString(schema, cue.Filename("mounts-schema.cue")).
		LookupPath(cue.ParsePath("#Table"))
	if err := def.Err(); err != nil {
		return nil, fderrors.Wrap(err, fderrors.CodeInternal, "failed to compile mount table schema")
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fderrors.WrapWithContext(cueError(err), fderrors.CodeCUELoadFailed,
			"failed to compile mount table", errCtx)
	}

	v = def.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fderrors.WrapWithContext(cueError(err), fderrors.CodeInvalidConfig,
			"mount table does not match schema", errCtx)
	}

	var t Table
	if err := v.Decode(&t); err != nil {
		return nil, fderrors.WrapWithContext(err, fderrors.CodeCUEDecodeFailed,
			"failed to decode mount table", errCtx)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// cueError flattens a CUE error list into one error whose message carries every
// position.
func cueError(err error) error {
	return &detailedError{msg: strings.TrimSpace(cueerrors.Details(err, nil)), err: err}
}

type detailedError struct {
	msg string
	err error
}

func (e *detailedError) Error() string { return e.msg }
func (e *detailedError) Unwrap() error { return e.err }
