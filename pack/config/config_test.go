package config

import (
	"testing"

	gitconfig "github.com/go-git/go-git/v5/plumbing/format/config"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsOnNotFound(t *testing.T) {
	cfg := gitconfig.New()
	opts, err := Load(cfg, nil)
	require.NoError(t, err)
	require.EqualValues(t, defaultDeltaCacheSize, opts.DeltaCacheSize)
	require.EqualValues(t, defaultDeltaCacheLimit, opts.DeltaCacheLimit)
	require.EqualValues(t, defaultBigFileThreshold, opts.BigFileThreshold)
	require.EqualValues(t, defaultWindowMemory, opts.WindowMemory)
}

func TestLoadDeltaCacheSizeFeedsTwoFields(t *testing.T) {
	cfg := gitconfig.New()
	cfg.Section("pack").SetOption("deltaCacheSize", "1048576")

	opts, err := Load(cfg, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1048576, opts.DeltaCacheSize)
	require.EqualValues(t, 1048576, opts.BigFileThreshold)
}

func TestLoadRejectsMalformedInteger(t *testing.T) {
	cfg := gitconfig.New()
	cfg.Section("pack").SetOption("windowMemory", "not-a-number")

	_, err := Load(cfg, nil)
	require.Error(t, err)
}

func TestLoadMergesOverride(t *testing.T) {
	cfg := gitconfig.New()
	override := &Options{WindowMemory: 4096}

	opts, err := Load(cfg, override)
	require.NoError(t, err)
	require.EqualValues(t, 4096, opts.WindowMemory)
	// Untouched fields keep their config/default values.
	require.EqualValues(t, defaultDeltaCacheLimit, opts.DeltaCacheLimit)
}
