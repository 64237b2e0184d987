package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubLoggerLevelGating(t *testing.T) {
	var buf bytes.Buffer
	sl := NewSubLogger("TEST_GATING", &buf)
	sl.SetLevels(Levels{Info: true})

	sl.Debugf("should not appear %d", 1)
	assert.Empty(t, buf.String())

	sl.Infof("hello %s", "world")
	assert.True(t, strings.Contains(buf.String(), "hello world"))
	assert.True(t, strings.Contains(buf.String(), "[INFO]"))
	assert.True(t, strings.Contains(buf.String(), "TEST_GATING"))
}

func TestNewSubLoggerReturnsSameInstance(t *testing.T) {
	a := NewSubLogger("TEST_SAME", nil)
	b := NewSubLogger("TEST_SAME", nil)
	assert.Same(t, a, b)
}
