package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-trust/pkg/audit"
)

func TestCanTransition_Table(t *testing.T) {
	all := []Status{StatusUntrusted, StatusTrusted, StatusRevoked}
	legal := map[[2]Status]bool{
		{StatusUntrusted, StatusTrusted}: true,
		{StatusUntrusted, StatusRevoked}: true,
		{StatusTrusted, StatusRevoked}:   true,
		{StatusTrusted, StatusUntrusted}: true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_RevokedIsTerminal(t *testing.T) {
	assert.True(t, StatusRevoked.IsTerminal())
	assert.False(t, StatusTrusted.IsTerminal())
	assert.False(t, StatusUntrusted.IsTerminal())
	assert.False(t, Status("bogus").IsTerminal())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("trusted")
	require.NoError(t, err)
	assert.Equal(t, StatusTrusted, s)

	_, err = ParseStatus("TRUSTED")
	assert.Error(t, err)
	_, err = ParseStatus("")
	assert.Error(t, err)
}

func TestTransitionEvent(t *testing.T) {
	assert.Equal(t, audit.EventDeviceTrusted, transitionEvent(StatusUntrusted, StatusTrusted))
	assert.Equal(t, audit.EventDeviceTrustReset, transitionEvent(StatusTrusted, StatusUntrusted))
	assert.Equal(t, audit.EventDeviceRevoked, transitionEvent(StatusTrusted, StatusRevoked))
	assert.Equal(t, audit.EventDeviceRevoked, transitionEvent(StatusUntrusted, StatusRevoked))
	assert.True(t, resetsTrust(StatusTrusted, StatusUntrusted))
	assert.False(t, resetsTrust(StatusTrusted, StatusRevoked))
}
