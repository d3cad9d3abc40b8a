package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "campaign", "campaign"},
		{"spaces", "night raid", "night_raid"},
		{"hyphens", "night-raid", "night_raid"},
		{"mixed case", "Night Raid", "night_raid"},
		{"special characters", "raid! (v2)", "raid_v2"},
		{"consecutive separators", "a  -  b", "a_b"},
		{"leading and trailing", " _raid_ ", "raid"},
		{"empty", "", "default"},
		{"only special characters", "!!!", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeName(tt.input))
		})
	}
}

func TestGenerateCollectionName(t *testing.T) {
	assert.Equal(t, "session_night_raid", GenerateCollectionName("Night Raid"))
	assert.Equal(t, "session_default", GenerateCollectionName(""))
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5*time.Minute, cfg.Session.TurnTimeLimit)
	assert.Equal(t, 8, cfg.Session.MaxParticipants)
	assert.Equal(t, "keyword", cfg.Classifier.Provider)
	assert.Equal(t, "openai", cfg.Embedder.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
}

func TestLoad(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		_, err := Load(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session init")
	})

	t.Run("round trip", func(t *testing.T) {
		base := t.TempDir()

		cfg := Default()
		cfg.Session.MaxParticipants = 4
		cfg.Qdrant.Collection = "session_raid"
		require.NoError(t, Write(base, cfg))

		loaded, err := Load(base)
		require.NoError(t, err)
		assert.Equal(t, 4, loaded.Session.MaxParticipants)
		assert.Equal(t, "session_raid", loaded.Qdrant.Collection)
		// Fields absent from the file keep their defaults.
		assert.Equal(t, 5*time.Minute, loaded.Session.TurnTimeLimit)
	})

	t.Run("default file parses", func(t *testing.T) {
		base := t.TempDir()
		require.NoError(t, WriteDefault(base))

		loaded, err := Load(base)
		require.NoError(t, err)
		assert.Equal(t, "keyword", loaded.Classifier.Provider)
		assert.Equal(t, "session_entities", loaded.Qdrant.Collection)
	})

	t.Run("env overrides fill empty keys only", func(t *testing.T) {
		base := t.TempDir()

		cfg := Default()
		cfg.Classifier.APIKey = "from-file"
		require.NoError(t, Write(base, cfg))

		t.Setenv("OPENAI_API_KEY", "from-env")
		loaded, err := Load(base)
		require.NoError(t, err)
		assert.Equal(t, "from-file", loaded.Classifier.APIKey)
		assert.Equal(t, "from-env", loaded.Embedder.APIKey)
	})
}

func TestWriteDefault(t *testing.T) {
	base := t.TempDir()

	require.False(t, Exists(base))
	require.NoError(t, WriteDefault(base))
	assert.True(t, Exists(base))

	// A second init must not clobber an existing config.
	err := WriteDefault(base)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestPaths(t *testing.T) {
	base := string(os.PathSeparator) + "tmp"
	assert.Equal(t, filepath.Join(base, ".session"), ConfigDir(base))
	assert.Equal(t, filepath.Join(base, ".session", "config.yaml"), ConfigFilePath(base))
	assert.Equal(t, filepath.Join(base, ".session", "archive.db"), SQLitePath(base))
}
