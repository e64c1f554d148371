package ca

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "fakersa")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestGenerateSuccess(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `echo "$@" > args.txt`)

	g := &EasyRSA{Command: script, Dir: dir, ExtraArgs: []string{"nopass"}}
	require.NoError(t, g.Generate(context.Background(), "client7"))

	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	require.NoError(t, err)
	assert.Equal(t, "build-client-full client7 nopass\n", string(args))
}

func TestGenerateToolFailure(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `echo "Easy-RSA error: name already in use" >&2; exit 1`)

	g := &EasyRSA{Command: script, Dir: dir}
	err := g.Generate(context.Background(), "client7")
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Contains(t, toolErr.Stderr, "name already in use")
	assert.Contains(t, err.Error(), "name already in use")
}

func TestGenerateContextCancelled(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `sleep 10`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	g := &EasyRSA{Command: script, Dir: dir}
	err := g.Generate(ctx, "client7")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
