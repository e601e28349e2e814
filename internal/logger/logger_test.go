package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Setup(Config{Level: "debug", Format: "json", Output: path}))
	t.Cleanup(func() { _ = Setup(Config{}) })

	l := WithAccount(WithComponent("reconcile"), "acct-1")
	l.Debug().Int("applied", 2).Msg("run complete")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.True(t, strings.Contains(line, `"component":"reconcile"`), line)
	assert.True(t, strings.Contains(line, `"account_id":"acct-1"`), line)
	assert.True(t, strings.Contains(line, `"applied":2`), line)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestSetup_BadLevel(t *testing.T) {
	assert.Error(t, Setup(Config{Level: "loud"}))
}
