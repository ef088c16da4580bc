package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTimeoutError(t *testing.T) {
	assert.True(t, IsTimeoutError(context.DeadlineExceeded))
	assert.True(t, IsTimeoutError(fmt.Errorf("call: %w", context.DeadlineExceeded)))
	assert.True(t, IsTimeoutError(errors.New("request timed out")))
	assert.False(t, IsTimeoutError(errors.New("bad request")))
	assert.False(t, IsTimeoutError(nil))
}

func TestCombineErrors(t *testing.T) {
	assert.NoError(t, CombineErrors(nil))
	assert.NoError(t, CombineErrors([]error{nil, nil}))

	one := errors.New("one")
	assert.Equal(t, one, CombineErrors([]error{nil, one}))

	two := errors.New("two")
	combined := CombineErrors([]error{one, two})
	assert.ErrorIs(t, combined, one)
	assert.ErrorIs(t, combined, two)
}

func TestFilterReferences(t *testing.T) {
	lines := []string{
		"# channels to digest",
		"  https://youtu.be/dQw4w9WgXcQ  ",
		"",
		"@somechannel # weekly",
		"https://youtu.be/dQw4w9WgXcQ",
	}

	assert.Equal(t, []string{"https://youtu.be/dQw4w9WgXcQ", "@somechannel"}, FilterReferences(lines))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "hello", TruncateString("hello", 10))
	assert.Equal(t, "hel...", TruncateString("hello world", 6))
	assert.Equal(t, "hé", TruncateString("héllo", 2))
	assert.Equal(t, "", TruncateString("hello", 0))
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "$0.000450", FormatCost(0.00045))
	assert.Equal(t, "$1.2500", FormatCost(1.25))
	assert.Equal(t, "$0.0000", FormatCost(0))
}

func TestValidateRange(t *testing.T) {
	assert.NoError(t, ValidateRange(3, 1, 50, "references"))
	assert.Error(t, ValidateRange(51, 1, 50, "references"))
	assert.Error(t, ValidateOneOf("redis", []string{"memory", "postgres"}, "store.backend"))
}
