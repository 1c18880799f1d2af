package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestNormalizeCommand(t *testing.T) {
	assert.Equal(t, "Escola de São José\n", execute(t, "normalize", "ESCOLA", "DE", "SAO", "JOSE"))
}

func TestClassifyCommand(t *testing.T) {
	assert.Equal(t, "rural\n", execute(t, "classify", "2", "0"))
	assert.Equal(t, "quilombola\n", execute(t, "classify", "1", "3"))
	assert.Contains(t, execute(t, "classify", "9", "9"), "no category")
}

func TestImportRejectsInvalidConfig(t *testing.T) {
	t.Setenv("DRY_RUN", "false")
	t.Setenv("BOT_USERNAME", "")
	t.Setenv("BOT_PASSWORD", "")

	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"import", "missing.csv"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOT_USERNAME")
}
