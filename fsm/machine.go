package fsm

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Hooks are the side effects the 28 actions perform, supplied by whatever
// owns the transport and the service-user callbacks (package assoc). Every
// method is called synchronously from within Fire, on the association's
// single dispatch goroutine — none of them may block on another Fire call.
type Hooks struct {
	SendAssociateRQ func()
	SendAssociateAC func()
	SendAssociateRJ func()
	SendReleaseRQ   func()
	SendReleaseRP   func()
	SendAbort       func(source, reason byte)
	SendPData       func()

	OpenTransport  func()
	CloseTransport func()

	IndicateAssociate  func()
	ConfirmAssociateAC func()
	ConfirmAssociateRJ func()
	IndicateRelease    func()
	ConfirmRelease     func()
	IndicateAbort      func(source, reason byte)
	IndicateData       func()

	// AcceptIncoming is consulted only for the AE-6 transition (an
	// incoming A-ASSOCIATE-RQ PDU): it returns true to accept the
	// association (-> Sta3) or false to have the engine send an
	// A-ASSOCIATE-RJ and move to Sta13.
	AcceptIncoming func() bool
}

// Machine runs the Upper Layer Association state machine for one
// association. All Fire calls must come from a single goroutine — the
// same discipline package assoc already uses for the dispatch loop.
type Machine struct {
	mu    sync.Mutex
	state State
	hooks Hooks
	timer *ARTIMTimer
	log   zerolog.Logger

	// requestor is set once AE-1 runs, i.e. this side issued the
	// A-ASSOCIATE request; it decides the Sta7 release-collision branch.
	requestor bool
}

// New constructs a Machine in Sta1 (Idle).
func New(hooks Hooks, log zerolog.Logger) *Machine {
	m := &Machine{state: Sta1, hooks: hooks, log: log}
	m.timer = NewARTIMTimer(0, m.onARTIMExpired)
	return m
}

// State returns the current state. Safe to call from any goroutine for
// diagnostics; the FSM's own invariant (single-writer) still requires Fire
// calls to come from one goroutine.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Machine) onARTIMExpired() {
	m.Fire(EvtArtimTimerExpired)
}

// Fire applies one event to the machine, running whichever action the
// transition table names and moving to the resulting state. An event with
// no table entry for the current state aborts the association: AA-8 for
// PDU-sourced events, AA-1 for locally-sourced ones.
func (m *Machine) Fire(event Event) error {
	state := m.State()
	t, ok := Lookup(state, event)
	if !ok {
		return m.fireUnexpected(state, event)
	}

	m.log.Debug().Str("state", state.String()).Str("event", event.String()).
		Str("action", t.Action.String()).Msg("fsm transition")

	next := t.Next
	switch next {
	case NextAE6Outcome:
		if m.hooks.AcceptIncoming != nil && m.hooks.AcceptIncoming() {
			next = Sta3
		} else {
			next = Sta13
		}
	case NextCollisionRequestor:
		next = Sta9
	case NextCollisionAcceptor:
		if m.requestor {
			next = Sta9
		} else {
			next = Sta10
		}
	}

	// State is committed before the action runs: several actions (AE-6's
	// accept path, release collision resolution) synchronously re-enter
	// Fire from within a hook, and that nested call must see the state
	// this transition is moving to, not the one it's leaving.
	m.setState(next)
	m.runAction(t.Action)
	return nil
}

func (m *Machine) fireUnexpected(state State, event Event) error {
	m.log.Warn().Str("state", state.String()).Str("event", event.String()).
		Msg("unexpected event, aborting association")

	if isLocalEvent(event) {
		m.runAction(AA1)
	} else {
		m.runAction(AA8)
	}
	m.setState(Sta13)
	return fmt.Errorf("fsm: unexpected event %s in state %s", event, state)
}

func isLocalEvent(e Event) bool {
	switch e {
	case EvtAAssociateRQLocal, EvtAAssociateACLocal, EvtAAssociateRJLocal,
		EvtAReleaseRQLocal, EvtAReleaseRPLocal, EvtAAbortLocal, EvtPDataTFLocal:
		return true
	default:
		return false
	}
}

// runAction executes the side effects of one named action. The mapping of
// action -> hook calls follows PS3.8 Table 9-10's action descriptions.
func (m *Machine) runAction(a Action) {
	h := m.hooks
	switch a {
	case AE1:
		m.requestor = true
		call(h.OpenTransport)
	case AE2:
		call(h.SendAssociateRQ)
	case AE3:
		m.timer.Stop()
		call(h.ConfirmAssociateAC)
	case AE4:
		m.timer.Stop()
		call(h.ConfirmAssociateRJ)
	case AE5:
		m.timer.Start()
	case AE6:
		m.timer.Stop()
		if h.AcceptIncoming != nil && h.AcceptIncoming() {
			call(h.IndicateAssociate)
		} else {
			call(h.SendAssociateRJ)
			m.timer.Start()
		}
	case AE7:
		call(h.SendAssociateAC)
	case AE8:
		call(h.SendAssociateRJ)
		m.timer.Start()
	case DT1:
		call(h.SendPData)
	case DT2:
		call(h.IndicateData)
	case AR1:
		call(h.SendReleaseRQ)
	case AR2:
		call(h.IndicateRelease)
	case AR3:
		m.timer.Stop()
		call(h.ConfirmRelease)
		call(h.CloseTransport)
	case AR4:
		call(h.SendReleaseRP)
		m.timer.Start()
	case AR5:
		m.timer.Stop()
	case AR6:
		call(h.IndicateData)
	case AR7:
		call(h.SendPData)
	case AR8:
		call(h.IndicateRelease)
	case AR9:
		call(h.SendReleaseRP)
	case AR10:
		call(h.ConfirmRelease)
	case AA1:
		callAbort(h.SendAbort, 0x00, 0x00)
		m.timer.Start()
	case AA2:
		m.timer.Stop()
		call(h.CloseTransport)
	case AA3:
		callAbort(h.IndicateAbort, 0x02, 0x00)
		call(h.CloseTransport)
	case AA4:
		callAbort(h.IndicateAbort, 0x02, 0x00)
	case AA5:
		m.timer.Stop()
	case AA6:
	case AA7:
		callAbort(h.SendAbort, 0x02, 0x02)
	case AA8:
		callAbort(h.SendAbort, 0x02, 0x02)
		m.timer.Start()
	}
}

func call(f func()) {
	if f != nil {
		f()
	}
}

func callAbort(f func(source, reason byte), source, reason byte) {
	if f != nil {
		f(source, reason)
	}
}
