package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skyfare/flightsearch/internal/config"
)

// TestBuildArchiverDisabledProviders verifies every provider value that
// Validate accepts as "no archiving" yields a nil archiver without error.
func TestBuildArchiverDisabledProviders(t *testing.T) {
	t.Parallel()

	for _, provider := range []string{"", "none", "noop"} {
		var cfg config.Config
		cfg.Archive.Provider = provider

		archiver, cleanup, err := buildArchiver(context.Background(), cfg, zap.NewNop())
		require.NoError(t, err, "provider %q", provider)
		require.Nil(t, archiver, "provider %q", provider)
		cleanup()
	}
}

// TestBuildArchiverUnknownProvider verifies an unrecognized provider is
// reported instead of silently disabling archiving.
func TestBuildArchiverUnknownProvider(t *testing.T) {
	t.Parallel()

	var cfg config.Config
	cfg.Archive.Provider = "tape"

	archiver, cleanup, err := buildArchiver(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Nil(t, archiver)
	cleanup()
}
