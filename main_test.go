package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pccr10001/callscreen/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	numbers := filepath.Join(dir, "numbers.csv")
	names := filepath.Join(dir, "names.csv")
	require.NoError(t, os.WriteFile(numbers, []byte("5551234\n"), 0o644))
	require.NoError(t, os.WriteFile(names, []byte("SPAM\n"), 0o644))

	prev := config.AppConfig
	t.Cleanup(func() { config.AppConfig = prev })
	config.AppConfig.Blacklist.NumbersFile = numbers
	config.AppConfig.Blacklist.NamesFile = names
	config.AppConfig.Screening.TollFreePrefixes = []string{"800"}
	config.AppConfig.Screening.ShortNamePolicy = "off"
	config.AppConfig.Screening.ShortNameMinLength = 3

	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"--number", "5551234"}, []string{`number "5551234": blocked (NumberMatched, matched "5551234")`}},
		{[]string{"--number", "8005550000"}, []string{`number "8005550000": blocked (NumberAreaCodeMatched, matched "800")`}},
		{[]string{"--name", "JOHN DOE"}, []string{`name "JOHN DOE": allowed (NoMatch)`}},
		{[]string{"--number", "5550000", "--name", "spammy inc"}, []string{
			`number "5550000": allowed (NoMatch)`,
			`name "spammy inc": blocked (NameMatched, matched "SPAM")`,
		}},
	}

	for _, tt := range tests {
		cmd := checkCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(tt.args)

		require.NoError(t, cmd.Execute())
		for _, line := range tt.want {
			assert.Contains(t, out.String(), line)
		}
	}

	cmd := checkCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestVersionCommand(t *testing.T) {
	cmd := versionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "callscreen dev\n", out.String())
}
