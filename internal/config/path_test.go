package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("NEEDLEDROP_TEST_DIR", "/tmp/needledrop")

	tests := []struct {
		name string
		path string
		want string
	}{
		{"empty", "", ""},
		{"absolute unchanged", "/var/lib/needledrop.db", "/var/lib/needledrop.db"},
		{"tilde alone", "~", home},
		{"tilde prefix", "~/music.db", filepath.Join(home, "music.db")},
		{"env var", "$NEEDLEDROP_TEST_DIR/music.db", "/tmp/needledrop/music.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.path))
		})
	}
}

func TestDefaults(t *testing.T) {
	assert.True(t, strings.HasSuffix(DefaultDatabasePath(), "needledrop.db"))
	assert.True(t, strings.HasSuffix(DefaultLogPath(), "needledrop.log"))
	assert.Contains(t, DefaultDatabasePath(), DefaultConfigDir())
}
