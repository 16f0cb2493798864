package fsm

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine(t *testing.T, hooks Hooks) *Machine {
	t.Helper()
	return New(hooks, zerolog.Nop())
}

func TestFullAssociationLifecycle(t *testing.T) {
	var opened, sentRQ, confirmedAC, releasedLocally, confirmedRelease, closed bool

	m := newTestMachine(t, Hooks{
		OpenTransport:      func() { opened = true },
		SendAssociateRQ:    func() { sentRQ = true },
		ConfirmAssociateAC: func() { confirmedAC = true },
		SendReleaseRQ:      func() { releasedLocally = true },
		ConfirmRelease:     func() { confirmedRelease = true },
		CloseTransport:     func() { closed = true },
	})

	require.NoError(t, m.Fire(EvtAAssociateRQLocal))
	assert.Equal(t, Sta4, m.State())
	assert.True(t, opened)

	require.NoError(t, m.Fire(EvtTransportConnConfirm))
	assert.Equal(t, Sta5, m.State())
	assert.True(t, sentRQ)

	require.NoError(t, m.Fire(EvtAAssociateACPDU))
	assert.Equal(t, Sta6, m.State())
	assert.True(t, confirmedAC)

	require.NoError(t, m.Fire(EvtAReleaseRQLocal))
	assert.Equal(t, Sta7, m.State())
	assert.True(t, releasedLocally)

	require.NoError(t, m.Fire(EvtAReleaseRPPDU))
	assert.Equal(t, Sta1, m.State())
	assert.True(t, confirmedRelease)
	assert.True(t, closed)
}

func TestIncomingAssociationAccepted(t *testing.T) {
	var indicated, sentAC bool
	m := newTestMachine(t, Hooks{
		AcceptIncoming:  func() bool { return true },
		IndicateAssociate: func() { indicated = true },
		SendAssociateAC:   func() { sentAC = true },
	})

	require.NoError(t, m.Fire(EvtTransportConnIndication))
	assert.Equal(t, Sta2, m.State())

	require.NoError(t, m.Fire(EvtAAssociateRQPDU))
	assert.Equal(t, Sta3, m.State())
	assert.True(t, indicated)

	require.NoError(t, m.Fire(EvtAAssociateACLocal))
	assert.Equal(t, Sta6, m.State())
	assert.True(t, sentAC)
}

func TestIncomingAssociationRejectedByAE6(t *testing.T) {
	var sentRJ bool
	m := newTestMachine(t, Hooks{
		AcceptIncoming: func() bool { return false },
		SendAssociateRJ: func() { sentRJ = true },
	})

	require.NoError(t, m.Fire(EvtTransportConnIndication))
	require.NoError(t, m.Fire(EvtAAssociateRQPDU))
	assert.Equal(t, Sta13, m.State())
	assert.True(t, sentRJ)
}

func TestARTIMTimeoutInSta2(t *testing.T) {
	fired := make(chan struct{}, 1)
	m := newTestMachine(t, Hooks{
		CloseTransport: func() { fired <- struct{}{} },
	})
	m.timer = NewARTIMTimer(20*time.Millisecond, m.onARTIMExpired)

	require.NoError(t, m.Fire(EvtTransportConnIndication))
	assert.Equal(t, Sta2, m.State())

	m.timer.Start()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("ARTIM timeout did not fire")
	}
	assert.Equal(t, Sta1, m.State())
}

func TestReleaseCollision(t *testing.T) {
	var sentRQ, sentRP, indicatedRelease, confirmedRelease bool
	m := newTestMachine(t, Hooks{
		SendReleaseRQ:   func() { sentRQ = true },
		SendReleaseRP:   func() { sentRP = true },
		IndicateRelease: func() { indicatedRelease = true },
		ConfirmRelease:  func() { confirmedRelease = true },
	})
	m.setState(Sta6)

	require.NoError(t, m.Fire(EvtAReleaseRQLocal))
	assert.Equal(t, Sta7, m.State())
	assert.True(t, sentRQ)

	require.NoError(t, m.Fire(EvtAReleaseRQPDU))
	assert.Equal(t, Sta10, m.State())
	assert.True(t, indicatedRelease)

	require.NoError(t, m.Fire(EvtAReleaseRPPDU))
	assert.Equal(t, Sta12, m.State())
	assert.True(t, confirmedRelease)

	require.NoError(t, m.Fire(EvtAReleaseRPLocal))
	assert.Equal(t, Sta13, m.State())
	assert.True(t, sentRP)
}

func TestAbortInSta6(t *testing.T) {
	var source, reason byte
	var closed bool
	m := newTestMachine(t, Hooks{
		IndicateAbort: func(s, r byte) { source, reason = s, r },
		CloseTransport: func() { closed = true },
	})
	m.setState(Sta6)

	require.NoError(t, m.Fire(EvtAAbortPDU))
	assert.Equal(t, Sta1, m.State())
	assert.Equal(t, byte(0x02), source)
	assert.Equal(t, byte(0x00), reason)
	assert.True(t, closed)
}

func TestUnexpectedPDUAborts(t *testing.T) {
	var abortSent bool
	m := newTestMachine(t, Hooks{
		SendAbort: func(source, reason byte) { abortSent = true },
	})
	m.setState(Sta6)

	err := m.Fire(EvtAAssociateACPDU)
	assert.Error(t, err)
	assert.Equal(t, Sta13, m.State())
	assert.True(t, abortSent)
}
