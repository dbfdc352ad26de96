package dirs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXDGOverrides(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG variables only apply on Linux")
	}
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "cfg"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, "cache"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(root, "state"))

	tests := []struct {
		name    string
		resolve func() (string, error)
		want    string
	}{
		{"config", ConfigDir, filepath.Join(root, "cfg", "forensicwatch")},
		{"data", DataDir, filepath.Join(root, "data", "forensicwatch")},
		{"cache", CacheDir, filepath.Join(root, "cache", "forensicwatch")},
		{"state", StateDir, filepath.Join(root, "state", "forensicwatch")},
		{"history", HistoryFile, filepath.Join(root, "data", "forensicwatch", "history.jsonl")},
		{"log", LogFile, filepath.Join(root, "state", "forensicwatch", "forensicwatch.log")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.resolve()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLinuxHomeFallback(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("home layout checked on Linux only")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_STATE_HOME", "")

	got, err := StateDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local", "state", "forensicwatch"), got)
}

func TestEnsureAll(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG variables only apply on Linux")
	}
	root := t.TempDir()
	for _, env := range []string{"XDG_CONFIG_HOME", "XDG_DATA_HOME", "XDG_CACHE_HOME", "XDG_STATE_HOME"} {
		t.Setenv(env, filepath.Join(root, env))
	}
	require.NoError(t, EnsureAll())

	for _, resolve := range []func() (string, error){ConfigDir, DataDir, CacheDir, StateDir} {
		p, err := resolve()
		require.NoError(t, err)
		fi, err := os.Stat(p)
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	}
}

func TestEnsureRejectsEmpty(t *testing.T) {
	assert.Error(t, Ensure(""))
}
