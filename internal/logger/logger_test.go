package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggerIsUsable(t *testing.T) {
	require.NotNil(t, Log)
	assert.NotPanics(t, func() { Log.Debugf("nothing %d", 1) })
}

func TestInitWritesToFile(t *testing.T) {
	prev := Log
	defer func() { Log = prev }()

	path := filepath.Join(t.TempDir(), "subforge.log")
	Init(Options{Verbose: true, Path: path})
	Log.Infof("built %s", "demo")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "built demo")
	assert.Contains(t, string(data), "INFO")
}
