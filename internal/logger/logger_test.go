package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func keepGlobals(t *testing.T) {
	t.Helper()
	prev, level := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(level)
	})
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FILE", "")
	require.Equal(t, Options{Level: "warn"}, FromEnv("warn"))

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FILE", "/tmp/navy.log")
	require.Equal(t, Options{Level: "debug", File: "/tmp/navy.log"}, FromEnv("warn"))
}

func TestSetupWritesToFileAndConsole(t *testing.T) {
	keepGlobals(t)
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "navy.log")

	closer, err := Setup(Options{Level: "WARN", File: path, Out: &console})
	require.NoError(t, err)
	require.NotNil(t, closer)
	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	log.Info().Msg("hidden")
	ForMatch("m-1").Warn().Msg("shown")
	require.NoError(t, closer.Close())

	require.NotContains(t, console.String(), "hidden")
	require.Contains(t, console.String(), "shown")
	require.Contains(t, console.String(), "matchId=m-1")
	require.NotContains(t, console.String(), "\x1b[")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "shown")
}

func TestSetupReportsBadLevelAndFile(t *testing.T) {
	keepGlobals(t)
	var console bytes.Buffer
	closer, err := Setup(Options{
		Level: "loud",
		File:  filepath.Join(t.TempDir(), "missing", "navy.log"),
		Out:   &console,
	})
	require.Error(t, err)
	require.ErrorContains(t, err, `log level "loud"`)
	require.ErrorContains(t, err, "log file")
	require.Nil(t, closer)
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestCallerColumn(t *testing.T) {
	short := caller(0, "/a/b/board.go", 12)
	require.Len(t, short, callerWidth)
	require.Equal(t, "board.go:12", strings.TrimRight(short, " "))

	long := caller(0, "/x/a_really_long_file_name_for_logs.go", 1234)
	require.Len(t, long, callerWidth)
	require.True(t, strings.HasSuffix(long, "_for_logs.go:1234"))
}
