package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCompileWritesToOutFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.pas")
	require.NoError(t, os.WriteFile(src, []byte("program p(output);\nbegin\nend.\n"), 0644))

	dst := filepath.Join(dir, "prog.asm")
	out = dst
	debug = false
	defer func() { out = "" }()

	err := runCompile(rootCmd, []string{src})
	require.NoError(t, err)

	generated, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(generated), "global _asm_main")
}

func TestRunCompileReportsMissingFile(t *testing.T) {
	out = ""
	err := runCompile(rootCmd, []string{filepath.Join(t.TempDir(), "missing.pas")})
	require.Error(t, err)
}
