package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCommand(t *testing.T, name string) bool {
	t.Helper()
	for _, c := range rootCmd.Commands() {
		if c.Name() == name {
			return true
		}
	}
	return false
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"fetch", "resolve", "layers", "runs", "networks", "serve"} {
		assert.True(t, findCommand(t, name), name)
	}
}

func TestFetchRequiresCodes(t *testing.T) {
	rootCmd.SetArgs([]string{"fetch"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "codes")
}
