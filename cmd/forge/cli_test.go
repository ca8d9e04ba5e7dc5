package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`
categories:
  - name: Tailor
    subcategories:
      - name: Cloth
        items:
          - name: Robe
            requirements:
              - resource: Thread
                amount: 4
`), 0o600))

	cfgPath := filepath.Join(dir, "forge.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"storage:\n  path: "+filepath.Join(dir, "forge.db")+"\n"+
			"catalog:\n  path: "+catalogPath+"\n"), 0o600))
	return cfgPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI(t *testing.T) {
	cfg := writeProject(t)

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "forge version")

	out, err = run(t, "validate", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "1 categories, 1 subcategories, 1 items")

	out, err = run(t, "catalog", "show", "-c", cfg, "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "| Robe | 4× Thread |")

	out, err = run(t, "character", "list", "-c", cfg, "42")
	require.NoError(t, err)
	assert.Contains(t, out, "No characters registered.")

	out, err = run(t, "character", "add", "-c", cfg, "42", "Mira")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered Mira")

	out, err = run(t, "character", "list", "-c", cfg, "42")
	require.NoError(t, err)
	assert.Contains(t, out, "- Mira")

	out, err = run(t, "records", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "No requests recorded.")

	_, err = run(t, "character", "add", "-c", cfg, "42")
	assert.Error(t, err, "name is required")
}
