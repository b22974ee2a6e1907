package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultsWhenTemplatesEmpty(t *testing.T) {
	s := New(Templates{}, nil)
	assert.Equal(t, defaultOpen, s.Open())
	assert.Equal(t, defaultClosed, s.Closed())
	assert.Equal(t, defaultJoinDenied, s.JoinDenied())
}

func TestTemplateOverrides(t *testing.T) {
	s := New(Templates{
		Open:   "we are open",
		Closed: "we are closed",
	}, nil)
	assert.Equal(t, "we are open", s.Open())
	assert.Equal(t, "we are closed", s.Closed())
}

func TestClosingWarningSubstitutesMinutes(t *testing.T) {
	s := New(Templates{}, nil)
	assert.Equal(t, "⏰ The chat will close in 4 minute(s)!", s.ClosingWarning(4))

	custom := New(Templates{Warning: "closing in {minutes}m, {minutes} left"}, nil)
	assert.Equal(t, "closing in 2m, 2 left", custom.ClosingWarning(2))
}
