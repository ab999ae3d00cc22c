package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
source:
  kind: csv
  id_column: id
  line_columns: [line1, line2, line3, line4, line5, line6]
  attribute_columns: [iban]
  csv_delimiter: ";"
sink:
  kinds: [none]
worker:
  concurrency: 2
  progress_bar: false
`

func TestSampleCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"sample", "--count", "5", "--seed", "3",
		"--config", cfgPath, "--env-file", filepath.Join(dir, "missing.env"),
	})
	require.NoError(t, rootCmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "id;line1;line2;line3;line4;line5;line6;iban", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1;"))
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"migrate", "export", "sample", "index"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
