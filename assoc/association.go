package assoc

import (
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomnet/dimse"
	dicomerrors "github.com/caio-sobreiro/dicomnet/errors"
	"github.com/caio-sobreiro/dicomnet/fsm"
	"github.com/caio-sobreiro/dicomnet/interfaces"
	"github.com/caio-sobreiro/dicomnet/metrics"
	"github.com/caio-sobreiro/dicomnet/pdu"
	"github.com/caio-sobreiro/dicomnet/types"
)

// implementationClassUIDRoot is this stack's private root, suffixed with a
// per-process UUID so two instances never collide on the wire (spec §6;
// DESIGN.md: grounded on OtchereDev-ris-dicom-connector's use of
// google/uuid for connection-scoped identifiers).
const implementationClassUIDRoot = "1.2.826.0.1.3680043.dicomnet"

var processSuffix = uuid.NewString()[:8]

// PresentationContext is one negotiated abstract-syntax/transfer-syntax
// pairing, shared by both association roles.
type PresentationContext struct {
	ID             byte
	AbstractSyntax string
	TransferSyntax string
	Accepted       bool
}

// Association is one Upper Layer Association: a state machine, a
// connection, and the negotiated presentation contexts, driven entirely by
// its own goroutine (run). All public methods marshal their request onto
// that goroutine via cmdCh rather than touching the machine directly.
type Association struct {
	id   string
	conn net.Conn
	cfg  Config
	log  zerolog.Logger

	machine *fsm.Machine

	presentationContexts map[byte]*PresentationContext
	peerMaxPDULength     uint32
	peerImplClassUID     string

	reassembler *dimse.Reassembler
	handler     interfaces.ServiceHandler

	pduCh     chan pdu.PDU
	errCh     chan error
	cmdCh     chan func()
	closeOnce chan struct{}

	pendingDialAddress string
	onEstablished      func(error)

	pendingRQ    *pdu.AAssociateRQ
	pendingAC    *pdu.AAssociateAC
	pendingRJ    *pdu.AAssociateRJ
	pendingData  *pdu.PDataTF
	pendingAbort *pdu.AAbort

	role          string
	establishedAt time.Time
	closeReason   string

	// Hooks for the five service-user indications/confirmations spec §6
	// names: on_associate_indication, on_release_indication,
	// on_release_confirmation, on_abort_indication, on_dimse.
	OnAssociateIndication func(rq pdu.AAssociateRQ) bool
	OnReleaseIndication   func()
	OnReleaseConfirmation func()
	OnAbortIndication     func(source, reason byte)
	OnDIMSE               func(msg dimse.Message, pcid byte)

	lastErr error
}

// ID returns the UUID assigned to this association at construction, used
// as the trace id in every log line it emits.
func (a *Association) ID() string { return a.id }

// State returns the current Upper Layer Association state.
func (a *Association) State() fsm.State { return a.machine.State() }

// WaitClosed blocks until the association's dispatch goroutine has exited,
// which happens once the state machine reaches Sta1 (Idle) or the
// transport fails.
func (a *Association) WaitClosed() { <-a.closeOnce }

// PresentationContextID returns the id of an accepted presentation context
// negotiated for the given abstract syntax, if any.
func (a *Association) PresentationContextID(abstractSyntax string) (byte, bool) {
	for _, pc := range a.presentationContexts {
		if pc.AbstractSyntax == abstractSyntax && pc.Accepted {
			return pc.ID, true
		}
	}
	return 0, false
}

// TransferSyntaxFor returns the transfer syntax negotiated for the accepted
// presentation context with the given id, if any.
func (a *Association) TransferSyntaxFor(pcid byte) (string, bool) {
	pc, ok := a.presentationContexts[pcid]
	if !ok || !pc.Accepted {
		return "", false
	}
	return pc.TransferSyntax, true
}

func newAssociation(conn net.Conn, cfg Config, handler interfaces.ServiceHandler, role string) *Association {
	id := uuid.NewString()
	log := cfg.Logger.With().Str("assoc_id", id).Logger()

	a := &Association{
		id:                   id,
		conn:                 conn,
		cfg:                  cfg,
		log:                  log,
		presentationContexts: make(map[byte]*PresentationContext),
		handler:              handler,
		pduCh:                make(chan pdu.PDU, 8),
		errCh:                make(chan error, 1),
		cmdCh:                make(chan func()),
		closeOnce:            make(chan struct{}),
		role:                 role,
		closeReason:          metrics.ReasonError,
	}

	a.machine = fsm.New(fsm.Hooks{
		OpenTransport:      a.hookOpenTransport,
		SendAssociateRQ:    a.hookSendAssociateRQ,
		SendAssociateAC:    a.hookSendAssociateAC,
		SendAssociateRJ:    a.hookSendAssociateRJ,
		SendReleaseRQ:      a.hookSendReleaseRQ,
		SendReleaseRP:      a.hookSendReleaseRP,
		SendAbort:          a.hookSendAbort,
		CloseTransport:     a.hookCloseTransport,
		ConfirmAssociateAC: a.hookConfirmAssociateAC,
		ConfirmAssociateRJ: a.hookConfirmAssociateRJ,
		IndicateAssociate:  a.hookIndicateAssociate,
		IndicateRelease:    a.hookIndicateRelease,
		ConfirmRelease:     a.hookConfirmRelease,
		IndicateAbort:      a.hookIndicateAbort,
		IndicateData:       a.hookIndicateData,
		AcceptIncoming:     a.hookAcceptIncoming,
	}, log)

	return a
}

// Dial opens a transport connection to address and performs the
// A-ASSOCIATE request/accept sequence, returning once the association
// reaches Sta6 or is rejected/aborted.
func Dial(address string, cfg Config) (*Association, error) {
	cfg.setDefaults()
	if err := cfg.validateConfig(); err != nil {
		return nil, fmt.Errorf("assoc: invalid config: %w", err)
	}

	a := newAssociation(nil, cfg, nil, metrics.RoleRequestor)
	a.pendingDialAddress = address

	established := make(chan error, 1)
	a.onEstablished = func(err error) { established <- err }

	go a.run()

	if err := <-established; err != nil {
		return nil, err
	}
	return a, nil
}

// Accept drives the acceptor side of an already-open transport connection
// (as produced by net.Listener.Accept) through the A-ASSOCIATE sequence.
// handler dispatches DIMSE messages once the association is established.
func Accept(conn net.Conn, cfg Config, handler interfaces.ServiceHandler) (*Association, error) {
	cfg.setDefaults()
	if err := cfg.validateConfig(); err != nil {
		return nil, fmt.Errorf("assoc: invalid config: %w", err)
	}

	a := newAssociation(conn, cfg, handler, metrics.RoleAcceptor)

	established := make(chan error, 1)
	a.onEstablished = func(err error) { established <- err }

	go a.run()
	a.cmdCh <- func() { _ = a.machine.Fire(fsm.EvtTransportConnIndication) }

	if err := <-established; err != nil {
		return nil, err
	}
	return a, nil
}

// SendDIMSE fragments and sends a DIMSE message over the named
// presentation context.
func (a *Association) SendDIMSE(pcid byte, msg dimse.Message) error {
	return a.doSync(func() error { return a.sendDIMSELocked(pcid, msg) })
}

// sendDIMSELocked performs the actual fragment-and-write; callers already
// running on the dispatch goroutine (e.g. hookIndicateData's handler
// dispatch) must call this directly instead of SendDIMSE, since doSync
// would deadlock posting back onto cmdCh from inside run's own select loop.
func (a *Association) sendDIMSELocked(pcid byte, msg dimse.Message) error {
	fragments := dimse.Fragment(pcid, msg, a.peerMaxPDULength)
	for _, f := range fragments {
		if err := a.writePDU(f); err != nil {
			return err
		}
	}
	if msg.Command != nil {
		a.cfg.Metrics.DIMSESent(msg.Command.CommandField)
	}
	return nil
}

// RequestRelease starts a graceful release by firing the local A-RELEASE
// request; it returns once that event has been processed and does not wait
// for the peer's A-RELEASE-RP (WaitClosed does).
func (a *Association) RequestRelease() error {
	return a.doSync(func() error {
		return a.machine.Fire(fsm.EvtAReleaseRQLocal)
	})
}

// RespondRelease answers a peer's A-RELEASE-RQ (observed via
// OnReleaseIndication) by sending A-RELEASE-RP. It does not close the
// transport itself: the association ends when the peer closes it or the
// ARTIM timer expires.
func (a *Association) RespondRelease() error {
	return a.doSync(func() error {
		return a.machine.Fire(fsm.EvtAReleaseRPLocal)
	})
}

// RequestAbort tears the association down immediately with the given
// source/reason (PS3.8 Table 9-26).
func (a *Association) RequestAbort(source, reason byte) error {
	return a.doSync(func() error {
		a.closeReason = metrics.ReasonAborted
		a.hookSendAbort(source, reason)
		return a.machine.Fire(fsm.EvtAAbortLocal)
	})
}

func (a *Association) doSync(f func() error) error {
	done := make(chan error, 1)
	select {
	case a.cmdCh <- func() { done <- f() }:
	case <-a.closeOnce:
		return dicomerrors.ErrConnectionClosed
	}
	select {
	case err := <-done:
		return err
	case <-a.closeOnce:
		return dicomerrors.ErrConnectionClosed
	}
}

func (a *Association) writePDU(p pdu.PDU) error {
	if a.cfg.WriteTimeout > 0 {
		_ = a.conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout))
	}
	_, err := a.conn.Write(p.Pack())
	if err == nil {
		a.cfg.Metrics.PDUSent(pduTypeName(p.Type()))
	}
	return err
}

func pduTypeName(t byte) string {
	switch t {
	case types.TypeAssociateRQ:
		return "a_associate_rq"
	case types.TypeAssociateAC:
		return "a_associate_ac"
	case types.TypeAssociateRJ:
		return "a_associate_rj"
	case types.TypePDataTF:
		return "p_data_tf"
	case types.TypeReleaseRQ:
		return "a_release_rq"
	case types.TypeReleaseRP:
		return "a_release_rp"
	case types.TypeAbort:
		return "a_abort"
	default:
		return fmt.Sprintf("unknown_0x%02x", t)
	}
}

func (a *Association) localImplementationClassUID() string {
	return fmt.Sprintf("%s.%s", implementationClassUIDRoot, processSuffix)
}

// negotiatedTransferSyntax returns the first transfer syntax in
// cfg.AcceptedTransferSyntaxes order that the peer also proposed.
func negotiatedTransferSyntax(preferred, proposed []string) (string, bool) {
	proposedSet := make(map[string]bool, len(proposed))
	for _, ts := range proposed {
		proposedSet[ts] = true
	}
	for _, ts := range preferred {
		if proposedSet[ts] {
			return ts, true
		}
	}
	return "", false
}

func abstractSyntaxAccepted(accepted []string, candidate string) bool {
	for _, a := range accepted {
		if a == candidate {
			return true
		}
	}
	return false
}
