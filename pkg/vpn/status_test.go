package vpn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFromCode(t *testing.T) {
	for _, s := range []Status{StatusStopped, StatusStarting, StatusRunning, StatusWaitingForNetwork, StatusReconnecting} {
		got, ok := StatusFromCode(s.Code())
		assert.True(t, ok)
		assert.Equal(t, s, got)
	}

	got, ok := StatusFromCode(42)
	assert.False(t, ok)
	assert.Equal(t, StatusStopped, got)
}

func TestStatusIsStarted(t *testing.T) {
	assert.False(t, StatusStopped.IsStarted())
	for _, s := range []Status{StatusStarting, StatusRunning, StatusWaitingForNetwork, StatusReconnecting} {
		assert.True(t, s.IsStarted(), s.String())
	}
}
