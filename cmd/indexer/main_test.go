package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"index", "retry", "delete", "sources", "stats"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestIndexCmd_RequiresSource(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"index"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source")
}

func TestDeleteCmd_RequiresID(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"delete"})

	require.Error(t, cmd.Execute())
}

func TestRetryCmd_DefaultLimit(t *testing.T) {
	cmd := newRetryCmd(&rootOptions{})
	f := cmd.Flags().Lookup("limit")
	require.NotNil(t, f)
	assert.Equal(t, "100", f.DefValue)
}
