package cipher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_WrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Kind: TruncatedFrame, Cause: cause}

	assert.Contains(t, err.Error(), "truncated frame")
	assert.Contains(t, err.Error(), "boom")
	assert.ErrorIs(t, err, cause)
}

func TestError_WithoutCause(t *testing.T) {
	err := &Error{Kind: ReplaySuspected}
	assert.Equal(t, "cipher: replay suspected", err.Error())
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "invalid tag", InvalidTag.String())
	assert.Equal(t, "security level mismatch", SecurityLevelMismatch.String())
	assert.Equal(t, "unknown", ErrorKind(99).String())
}
