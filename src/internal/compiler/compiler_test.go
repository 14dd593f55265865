package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCashcDefaults(t *testing.T) {
	c := NewCashc("", 0)
	assert.Equal(t, "cashc", c.name)
	assert.Equal(t, defaultCompileTimeout, c.timeout)

	negative := NewCashc("", -3*time.Second)
	assert.Equal(t, defaultCompileTimeout, negative.timeout)
}

func TestNewCashcKeepsConfiguredValues(t *testing.T) {
	c := NewCashc("/opt/tools/cashc", 30*time.Second)
	assert.Equal(t, "/opt/tools/cashc", c.name)
	assert.Equal(t, 30*time.Second, c.timeout)
}

func TestResolveBinaryConfiguredPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cashc")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))

	c := NewCashc(path, time.Second)
	resolved, err := c.resolveBinary()
	require.NoError(t, err)
	assert.Equal(t, path, resolved)

	// Cached on second resolution.
	again, err := c.resolveBinary()
	require.NoError(t, err)
	assert.Equal(t, resolved, again)
}

func TestCompileMissingBinaryNamesConfiguredCompiler(t *testing.T) {
	c := NewCashc("definitely-not-a-real-compiler", time.Second)
	res := c.Compile(context.Background(), "contract C() { function f() { require(true); } }")
	require.NotNil(t, res.Err)
	assert.Equal(t, CompilerNotFoundError, res.Err.Type)
	assert.Contains(t, res.Err.Raw, "definitely-not-a-real-compiler")
}
