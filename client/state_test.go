package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_String(t *testing.T) {
	cases := []struct {
		s    State
		want string
	}{
		{Disconnected, "disconnected"},
		{Associating, "associating"},
		{Associated, "associated"},
		{Releasing, "releasing"},
		{Broken, "broken"},
		{State(99), "unknown"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.s.String())
	}
}
