// Package testutil provides testing utilities for tabula
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/tugtool/tugtool-sub001/pkg/logger"
)

// TestLogger creates a test logger that writes to the test output and
// installs it as the global logger, so Debug output of the code under test
// shows up with -v. The previous global logger is restored on cleanup.
func TestLogger(t *testing.T) *zap.Logger {
	prev := logger.Get()
	l := zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel))
	logger.SetLogger(l)
	t.Cleanup(func() { logger.SetLogger(prev) })
	return l
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// WriteFile writes content to name inside a per-test temporary directory
// and returns the full path.
func WriteFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}
