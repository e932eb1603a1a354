package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("test message")
	assert.True(t, called, "custom logger should be called")

	// nil installs a no-op, not a nil func
	called = false
	SetLogger(nil)
	Logf("test message")
	assert.False(t, called, "no-op logger must not invoke previous logger")
	assert.NotNil(t, Logf)
}

func TestDebugf(t *testing.T) {
	original := Logf
	defer func() {
		Logf = original
		SetDebug(false)
	}()

	var got []string
	SetLogger(func(format string, v ...interface{}) { got = append(got, format) })

	SetDebug(false)
	Debugf("muted %d", 1)
	assert.Empty(t, got, "Debugf must be silent when debug is off")

	SetDebug(true)
	assert.True(t, DebugEnabled())
	Debugf("audible %d", 2)
	assert.Equal(t, []string{"audible %d"}, got)
}
