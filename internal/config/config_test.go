package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
database: /var/lib/remora/mirror.db
datasets: /etc/remora/datasets
remote:
  base_url: https://api.vendor.example
  timeout: 90s
pause: 5s
systems:
  - id: sys-1
    label: Alpha Corp
    token: tok-1
  - id: sys-2
    token: tok-2
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remora.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/remora/mirror.db", cfg.Database)
	assert.Equal(t, "/etc/remora/datasets", cfg.Datasets)
	assert.Equal(t, "https://api.vendor.example", cfg.Remote.BaseURL)
	assert.Equal(t, Duration(90*time.Second), cfg.Remote.Timeout)
	assert.Equal(t, Duration(5*time.Second), cfg.Pause)
	require.Len(t, cfg.Systems, 2)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{"missing database", `
datasets: /d
remote: {base_url: "https://x"}
systems: [{id: a, token: t}]
`, "database is required"},
		{"missing datasets", `
database: /db
remote: {base_url: "https://x"}
systems: [{id: a, token: t}]
`, "datasets directory is required"},
		{"missing base_url", `
database: /db
datasets: /d
systems: [{id: a, token: t}]
`, "remote.base_url is required"},
		{"no systems", `
database: /db
datasets: /d
remote: {base_url: "https://x"}
`, "at least one system"},
		{"missing token", `
database: /db
datasets: /d
remote: {base_url: "https://x"}
systems: [{id: a}]
`, "token is required"},
		{"duplicate system", `
database: /db
datasets: /d
remote: {base_url: "https://x"}
systems: [{id: a, token: t}, {id: a, token: u}]
`, "declared twice"},
		{"bad duration", `
database: /db
datasets: /d
remote: {base_url: "https://x"}
pause: not-a-duration
systems: [{id: a, token: t}]
`, "invalid duration"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestDirectory_LabelFallsBackToID(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	dir := cfg.Directory()
	require.Len(t, dir, 2)
	assert.Equal(t, "Alpha Corp", dir[0].Label)
	assert.Equal(t, "sys-2", dir[1].Label, "label defaults to the system id")
}

func TestTokens(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	tokens := cfg.Tokens()
	assert.Equal(t, "tok-1", tokens["sys-1"])
	assert.Equal(t, "tok-2", tokens["sys-2"])
}
