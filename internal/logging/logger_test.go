package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace":   TRACE,
		"DEBUG":   DEBUG,
		" info ":  INFO,
		"warning": WARN,
		"error":   ERROR,
		"bogus":   INFO,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestWriterLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("test", &buf, WARN)

	logger.Info("не должно попасть")
	logger.Warn("коин %d", 7)

	out := buf.String()
	assert.NotContains(t, out, "не должно попасть")
	assert.Contains(t, out, "[WARN] [test] коин 7")
	assert.True(t, logger.Enabled(ERROR))
	assert.False(t, logger.Enabled(DEBUG))
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() { logger.Info("ничего") })
}

func TestNewLogger_WritesFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	Configure(Options{Dir: dir, ConsoleLevel: ERROR, FileLevel: DEBUG, ConsoleOutput: &console})
	defer Configure(DefaultOptions())

	logger, err := NewLogger("file-test")
	require.NoError(t, err)

	logger.Debug("в файл")
	require.NoError(t, logger.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "file-test_*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] [file-test] в файл")
	assert.Empty(t, console.String(), "DEBUG не должен попасть в консоль при уровне ERROR")
}

func TestLoggerManager_CachesComponents(t *testing.T) {
	lm := &LoggerManager{loggers: make(map[string]*Logger)}

	a := lm.MustGetLogger("alpha")
	b := lm.MustGetLogger("alpha")
	assert.Same(t, a, b)

	lm.MustGetLogger("beta")
	assert.Equal(t, []string{"alpha", "beta"}, lm.ListComponents())

	require.NoError(t, lm.SetLogLevel("alpha", ERROR, ERROR))
	assert.False(t, a.Enabled(WARN))
	assert.Error(t, lm.SetLogLevel("gamma", INFO, INFO))
}

func TestLogProtocolError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("proto", &buf, DEBUG)

	LogProtocolError(logger, "conn-1", errors.New("short read"), []byte{0x01, 0x02})

	out := buf.String()
	assert.Contains(t, out, "Protocol error from conn-1: short read")
	assert.True(t, strings.Contains(out, "01 02"), "ожидался hex дамп")
}

func TestHexDump(t *testing.T) {
	assert.Equal(t, "No data", HexDump(nil))
	big := make([]byte, 1024)
	dump := HexDump(big)
	assert.Equal(t, 16, strings.Count(dump, "\n"), "дамп ограничен 256 байтами")
}
