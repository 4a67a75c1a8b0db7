package safe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunRecovers(t *testing.T) {
	assert.NotPanics(t, func() {
		Run(func() { panic("boom") })
	})
}

func TestCallConvertsPanic(t *testing.T) {
	err := Call(func() error { panic("kaboom") }, "test")

	var pe *PanicError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "kaboom", pe.Value)
}

func TestCallPassesError(t *testing.T) {
	want := errors.New("plain")
	assert.Equal(t, want, Call(func() error { return want }, "test"))
}
