package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	root   string
	config string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	data := filepath.Join(root, "data")
	src := filepath.Join(root, "src")
	for name, content := range map[string]string{
		filepath.Join(data, "hello.txt"):          "hello, fdev\n",
		filepath.Join(src, "intro.txt"):           "welcome",
		filepath.Join(src, "levels", "one.map"): "level one",
	} {
		require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
	}

	config := filepath.Join(root, "mounts.cue")
	doc := fmt.Sprintf(`
default: "data"
mounts: [
	{drive: "data", kind: "native", root: %q},
	{drive: "ro", kind: "mmap", root: %q},
	{drive: "tmp", kind: "memory"},
]
`, data, data)
	require.NoError(t, os.WriteFile(config, []byte(doc), 0o644))
	return &fixture{root: root, config: config}
}

func (f *fixture) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"-config", f.config}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestDrives(t *testing.T) {
	f := newFixture(t)

	code, out, _ := f.run(t, "drives")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "* data")
	assert.Contains(t, out, "  ro")
	assert.Contains(t, out, "*mmap.Backend")
	assert.Contains(t, out, "  tmp")
}

func TestCatAndStat(t *testing.T) {
	f := newFixture(t)

	code, out, _ := f.run(t, "cat", "hello.txt")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "hello, fdev\n", out)

	code, out, _ = f.run(t, "cat", "ro:hello.txt")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "hello, fdev\n", out)

	code, out, _ = f.run(t, "stat", "data:hello.txt")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "data:hello.txt\t12\n", out)

	code, _, errOut := f.run(t, "cat", "data:missing.txt")
	assert.Equal(t, exitNotFound, code)
	assert.Contains(t, errOut, "fdev: ")
}

func TestLoad(t *testing.T) {
	f := newFixture(t)

	code, out, _ := f.run(t, "load", "-align", "4096", "ro:hello.txt")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "read size:    12\n")
	assert.Contains(t, out, "roundup size: 4096\n")
	assert.Contains(t, out, "need unload:  true\n")

	code, _, _ = f.run(t, "load", "-align", "48", "hello.txt")
	assert.Equal(t, exitFailure, code)
}

func TestCopy(t *testing.T) {
	f := newFixture(t)

	code, _, _ := f.run(t, "cp", "ro:hello.txt", "data:copy.txt")
	require.Equal(t, exitOK, code)

	got, err := os.ReadFile(filepath.Join(f.root, "data", "copy.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello, fdev\n", string(got))

	code, _, _ = f.run(t, "cp", "hello.txt", "ro:copy.txt")
	assert.Equal(t, exitForbidden, code)
}

func TestPackAndList(t *testing.T) {
	f := newFixture(t)
	image := filepath.Join(f.root, "data", "game.fpak")

	code, out, _ := f.run(t, "pack", "-o", image, "-align", "128", filepath.Join(f.root, "src"))
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "packed 2 files")

	code, out, _ = f.run(t, "ls-pack", "data:game.fpak")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "2 entries, alignment 128\n")
	assert.Contains(t, out, "         7  intro.txt\n")
	assert.Contains(t, out, "         9  levels/one.map\n")

	code, _, _ = f.run(t, "ls-pack", "hello.txt")
	assert.Equal(t, exitFailure, code)
}

func TestUsage(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"rm", "a"}},
		{"cat without path", []string{"cat"}},
		{"cp with one path", []string{"cp", "a"}},
		{"pack without output", []string{"pack", "dir"}},
		{"bad flag", []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := f.run(t, tt.args...)
			assert.Equal(t, exitUsage, code)
		})
	}
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.cue")
	require.NoError(t, os.WriteFile(bad, []byte(`mounts: [{drive: "a", kind: "ftp"}]`), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", bad, "drives"}, &stdout, &stderr)
	assert.Equal(t, exitConfig, code)

	code = run(context.Background(), []string{"-config", filepath.Join(dir, "missing.cue"), "drives"}, &stdout, &stderr)
	assert.Equal(t, exitConfig, code)
}
