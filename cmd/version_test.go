package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	for _, v := range []string{"1.2.3-test", ""} {
		rootCmd.Version = v
		versionCmd := newVersionCmd()
		var buf bytes.Buffer
		versionCmd.SetOut(&buf)

		versionCmd.Run(versionCmd, []string{})
		assert.Equal(t, "afctl version "+v+"\n", buf.String())
	}
}

func TestVersionCommandHelp(t *testing.T) {
	versionCmd := newVersionCmd()
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.SetErr(&buf)
	versionCmd.SetArgs([]string{"--help"})

	require.NoError(t, versionCmd.Execute())
	assert.Contains(t, buf.String(), "Print the version number of afctl")
}
