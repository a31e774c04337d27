package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	exec := New(10*time.Second, 10240)
	require.NotNil(t, exec)
	assert.Equal(t, 10*time.Second, exec.timeout)
	assert.Equal(t, 10240, exec.maxOutputSize)
}

func TestExecuteUnsupportedLanguage(t *testing.T) {
	exec := New(time.Second, 10240)

	result, err := exec.Execute(context.Background(), "puts 'hi'", "ruby", "")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Unsupported language: ruby")
	assert.Equal(t, "", result.Output)
}

func TestTruncateUnderLimit(t *testing.T) {
	exec := New(time.Second, 100)

	out := exec.truncate("short output", "... (output truncated)")
	assert.Equal(t, "short output", out)
}

func TestTruncateOverLimit(t *testing.T) {
	exec := New(time.Second, 16)

	long := strings.Repeat("x", 64)
	out := exec.truncate(long, "... (output truncated)")
	assert.Equal(t, strings.Repeat("x", 16)+"\n... (output truncated)", out)
}

func TestTruncateExactLimit(t *testing.T) {
	exec := New(time.Second, 8)

	exact := strings.Repeat("y", 8)
	out := exec.truncate(exact, "... (output truncated)")
	assert.Equal(t, exact, out)
}

func TestCommandErrorPrefersStderr(t *testing.T) {
	err := context.Canceled

	assert.Equal(t, "stack trace here", commandError(err, "stack trace here"))
	assert.Equal(t, err.Error(), commandError(err, ""))
}

func TestCommandErrorTimeout(t *testing.T) {
	assert.Equal(t, "Execution timed out", commandError(context.DeadlineExceeded, "partial stderr"))
}

func TestCommandResultShaping(t *testing.T) {
	ok := commandResult("out", "warnings", nil)
	assert.True(t, ok.Success)
	assert.Equal(t, "out", ok.Output)
	assert.Equal(t, "warnings", ok.Error)

	failed := commandResult("partial", "boom", context.Canceled)
	assert.False(t, failed.Success)
	assert.Equal(t, "partial", failed.Output)
	assert.Equal(t, "boom", failed.Error)
}
