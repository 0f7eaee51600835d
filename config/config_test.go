package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, text string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "irgraph.toml")

	err := os.WriteFile(path, []byte(text), 0o600)
	require.NoError(t, err)

	return path
}

func TestLoad(t *testing.T) {
	path := write(t, `
simplify = true
jobs = 4
labels = "short"
entry = "main"
exit_live = ["r0"]

[symbols]
puts = 0x2000
main = 0x1000
exit = 0x2000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Simplify)
	assert.Equal(t, 4, cfg.Jobs)
	assert.Equal(t, ColorAuto, cfg.Color, "default kept")
	assert.Equal(t, LabelsShort, cfg.Labels)
	assert.Equal(t, "main", cfg.Entry)
	assert.Equal(t, []string{"r0"}, cfg.ExitLive)

	syms, err := cfg.SymbolList()
	require.NoError(t, err)

	assert.Equal(t, []Symbol{
		{Name: "main", Addr: 0x1000},
		{Name: "exit", Addr: 0x2000},
		{Name: "puts", Addr: 0x2000},
	}, syms)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(write(t, ""))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	for _, text := range []string{
		`color = "sometimes"`,
		`labels = "medium"`,
		`jobs = -1`,
		`bogus = 1`,
		"[symbols]\nneg = -16",
		`simplify = "yes"`,
	} {
		_, err := Load(write(t, text))
		assert.Error(t, err, "%s", text)
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
