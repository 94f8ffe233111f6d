// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  map[string]string
	}{
		{
			name: "trims values",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, MarketplaceToken, "  tok_abc123  \n")
				writeFile(t, dir, "sandbox-admin", "owner")
				return dir
			},
			want: map[string]string{MarketplaceToken: "tok_abc123", "sandbox-admin": "owner"},
		},
		{
			name: "missing directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files, dotfiles and directories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, MarketplaceToken, "tok")
				writeFile(t, dir, "blank", " \n\t")
				writeFile(t, dir, ".gitkeep", "")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
				return dir
			},
			want: map[string]string{MarketplaceToken: "tok"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFileIsLogged(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced")
	}
	dir := t.TempDir()
	writeFile(t, dir, "locked", "x")
	require.NoError(t, os.Chmod(filepath.Join(dir, "locked"), 0o000))

	logger, hook := logtest.NewNullLogger()
	got, err := Load(dir, logger)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "locked", hook.LastEntry().Data["secret"])
}

func TestToken(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, MarketplaceToken, "from-file")

	got, err := Token("", dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)

	got, err = Token("from-flag", dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", got)

	got, err = Token("", filepath.Join(dir, "missing"), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
