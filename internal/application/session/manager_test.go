package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestManager_StartSnapshotsStop(t *testing.T) {
	otpT := &mockTransport{}
	otpT.On("HasCredentials", mock.Anything).Return(true)
	otpT.On("Start", mock.Anything, mock.Anything).Return(nil)
	otpT.On("Disconnect").Return()
	notifT := &mockTransport{}
	notifT.On("HasCredentials", mock.Anything).Return(false)
	notifT.On("Start", mock.Anything, mock.Anything).Return(nil)
	notifT.On("Disconnect").Return()

	otp := NewChannel("otp", otpT, ChannelOptions{})
	notif := NewChannel("notifications", notifT, ChannelOptions{})
	m := NewManager(nil, otp, notif)

	m.Start(context.Background())
	otp.HandleReady()

	snaps := m.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "otp", snaps[0].Channel)
	assert.True(t, snaps[0].Ready())
	assert.Equal(t, AwaitingPairing, snaps[1].State)

	ch, ok := m.Channel("notifications")
	assert.True(t, ok)
	assert.Same(t, notif, ch)
	_, ok = m.Channel("sms")
	assert.False(t, ok)
	assert.Equal(t, []string{"otp", "notifications"}, m.Names())

	m.Stop()
	otpT.AssertCalled(t, "Disconnect")
	notifT.AssertCalled(t, "Disconnect")
	assert.Equal(t, Disconnected, otp.Snapshot().State)
}
