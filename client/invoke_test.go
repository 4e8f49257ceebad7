package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvokeCounter_Next_Sequential(t *testing.T) {
	var c invokeCounter
	for want := byte(1); want <= 15; want++ {
		assert.Equal(t, want, c.next())
	}
}

func TestInvokeCounter_Next_WrapsPastZero(t *testing.T) {
	var c invokeCounter
	for i := 0; i < 15; i++ {
		c.next()
	}
	assert.Equal(t, byte(1), c.next())
}
