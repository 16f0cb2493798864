package assoc

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/caio-sobreiro/dicomnet/dimse"
	dicomerrors "github.com/caio-sobreiro/dicomnet/errors"
	"github.com/caio-sobreiro/dicomnet/fsm"
	"github.com/caio-sobreiro/dicomnet/metrics"
	"github.com/caio-sobreiro/dicomnet/pdu"
	"github.com/caio-sobreiro/dicomnet/types"
)

// run is the single goroutine that owns this association's state machine.
// Every Fire call, every PDU write, and every hook body happens here —
// package assoc never calls fsm.Machine.Fire from any other goroutine.
func (a *Association) run() {
	defer close(a.closeOnce)

	if a.conn == nil {
		if err := a.dial(); err != nil {
			a.finishEstablish(err)
			return
		}
	}

	go a.readLoop()

	for {
		select {
		case cmd := <-a.cmdCh:
			cmd()
			if a.machine.State() == fsm.Sta13 && a.conn != nil {
				// AR-4/AA-1/AA-8/AE-8 (and AE-6's reject branch) already
				// started the ARTIM timer; wait
				// for the peer to close or the timer to fire.
			}
		case p, ok := <-a.pduCh:
			if !ok {
				return
			}
			a.handlePDU(p)
		case err := <-a.errCh:
			a.handleTransportError(err)
			return
		}

		if a.machine.State() == fsm.Sta1 {
			return
		}
	}
}

func (a *Association) dial() error {
	dialer := &net.Dialer{Timeout: a.cfg.ConnectTimeout}
	conn, err := dialer.Dial("tcp", a.pendingDialAddress)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return dicomerrors.NewTimeoutError("dial", a.cfg.ConnectTimeout.String())
		}
		return dicomerrors.NewNetworkError("dial", err)
	}
	a.conn = conn

	if err := a.machine.Fire(fsm.EvtAAssociateRQLocal); err != nil {
		return err
	}
	return a.machine.Fire(fsm.EvtTransportConnConfirm)
}

func (a *Association) readLoop() {
	reader := bufio.NewReaderSize(a.conn, 64*1024)
	var buf []byte

	for {
		if a.cfg.ReadTimeout > 0 {
			_ = a.conn.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
		}

		chunk := make([]byte, 64*1024)
		n, err := reader.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}

		for {
			consumed, value, ok, decodeErr := pdu.Decode(buf)
			if decodeErr != nil {
				a.errCh <- decodeErr
				return
			}
			if !ok {
				break
			}
			buf = buf[consumed:]
			select {
			case a.pduCh <- value:
			case <-a.closeOnce:
				return
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				a.errCh <- io.EOF
			} else {
				a.errCh <- err
			}
			return
		}
	}
}

func (a *Association) handlePDU(p pdu.PDU) {
	a.cfg.Metrics.PDUReceived(pduTypeName(p.Type()))

	switch v := p.(type) {
	case pdu.AAssociateRQ:
		a.pendingRQ = &v
		_ = a.machine.Fire(fsm.EvtAAssociateRQPDU)
	case pdu.AAssociateAC:
		a.pendingAC = &v
		_ = a.machine.Fire(fsm.EvtAAssociateACPDU)
	case pdu.AAssociateRJ:
		a.pendingRJ = &v
		_ = a.machine.Fire(fsm.EvtAAssociateRJPDU)
	case pdu.PDataTF:
		a.pendingData = &v
		_ = a.machine.Fire(fsm.EvtPDataTFPDU)
	case pdu.AReleaseRQ:
		_ = a.machine.Fire(fsm.EvtAReleaseRQPDU)
	case pdu.AReleaseRP:
		_ = a.machine.Fire(fsm.EvtAReleaseRPPDU)
	case pdu.AAbort:
		a.pendingAbort = &v
		_ = a.machine.Fire(fsm.EvtAAbortPDU)
	default:
		_ = a.machine.Fire(fsm.EvtInvalidPDU)
	}
}

func (a *Association) handleTransportError(err error) {
	if errors.Is(err, io.EOF) {
		_ = a.machine.Fire(fsm.EvtTransportConnClosed)
		a.lastErr = err
		a.finishEstablish(err)
		return
	}

	_ = a.machine.Fire(fsm.EvtTransportError)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		err = dicomerrors.NewTimeoutError("read", a.cfg.ReadTimeout.String())
	} else {
		err = dicomerrors.NewNetworkError("read", err)
	}
	a.lastErr = err
	a.finishEstablish(err)
}

func (a *Association) finishEstablish(err error) {
	if a.onEstablished != nil {
		cb := a.onEstablished
		a.onEstablished = nil
		cb(err)
	}
}

// --- fsm.Hooks implementations ---

func (a *Association) hookOpenTransport() {
	// Transport is opened synchronously in dial(); AE-1's job here is a
	// no-op placeholder so the table-driven Fire sequence stays uniform
	// between the client and server roles.
}

func (a *Association) hookSendAssociateRQ() {
	rq := pdu.AAssociateRQ{
		CalledAETitle:  a.cfg.CalledAETitle,
		CallingAETitle: a.cfg.CallingAETitle,
	}
	maxLen := a.cfg.MaxPDULength
	rq.UserInformation = pdu.UserInformationItem{
		MaximumLength:          &maxLen,
		ImplementationClassUID: a.localImplementationClassUID(),
	}
	for i, syntax := range a.cfg.AcceptedAbstractSyntaxes {
		id := byte(2*i + 1)
		rq.PresentationContexts = append(rq.PresentationContexts, pdu.PresentationContextRQItem{
			ID:               id,
			AbstractSyntax:   syntax,
			TransferSyntaxes: a.cfg.AcceptedTransferSyntaxes,
		})
		a.presentationContexts[id] = &PresentationContext{ID: id, AbstractSyntax: syntax}
	}

	if err := a.writePDU(rq); err != nil {
		a.lastErr = err
	}
}

func (a *Association) hookSendAssociateAC() {
	ac := pdu.AAssociateAC{
		CalledAETitle:  a.cfg.CalledAETitle,
		CallingAETitle: a.cfg.CallingAETitle,
	}
	maxLen := a.cfg.MaxPDULength
	ac.UserInformation = pdu.UserInformationItem{
		MaximumLength:          &maxLen,
		ImplementationClassUID: a.localImplementationClassUID(),
	}

	if a.pendingRQ != nil {
		for _, pc := range a.pendingRQ.PresentationContexts {
			result := types.ResultAbstractSyntaxNotSupported
			ts := ""
			if abstractSyntaxAccepted(a.cfg.AcceptedAbstractSyntaxes, pc.AbstractSyntax) {
				if negotiated, ok := negotiatedTransferSyntax(a.cfg.AcceptedTransferSyntaxes, pc.TransferSyntaxes); ok {
					result = types.ResultAcceptance
					ts = negotiated
				} else {
					result = types.ResultTransferSyntaxesNotSupported
				}
			}
			ac.PresentationContexts = append(ac.PresentationContexts, pdu.PresentationContextACItem{
				ID: pc.ID, Result: result, TransferSyntax: ts,
			})
			a.presentationContexts[pc.ID] = &PresentationContext{
				ID: pc.ID, AbstractSyntax: pc.AbstractSyntax,
				TransferSyntax: ts, Accepted: result == types.ResultAcceptance,
			}
		}
		if rqMax := a.pendingRQ.UserInformation.MaximumLength; rqMax != nil {
			a.peerMaxPDULength = *rqMax
		}
		a.peerImplClassUID = a.pendingRQ.UserInformation.ImplementationClassUID
	}

	if err := a.writePDU(ac); err != nil {
		a.lastErr = err
	}
}

func (a *Association) hookSendAssociateRJ() {
	rj := pdu.AAssociateRJ{
		Result: 0x01,
		Source: byte(errSourceServiceUser),
		Reason: 0x01,
	}
	if err := a.writePDU(rj); err != nil {
		a.lastErr = err
	}
}

const errSourceServiceUser = 0x01

func (a *Association) hookSendReleaseRQ() {
	_ = a.writePDU(pdu.AReleaseRQ{})
}

func (a *Association) hookSendReleaseRP() {
	_ = a.writePDU(pdu.AReleaseRP{})
}

func (a *Association) hookSendAbort(source, reason byte) {
	_ = a.writePDU(pdu.AAbort{Source: source, Reason: reason})
}

func (a *Association) hookCloseTransport() {
	if a.conn != nil {
		_ = a.conn.Close()
	}
	if !a.establishedAt.IsZero() {
		a.cfg.Metrics.AssociationClosed(a.role, a.closeReason, time.Since(a.establishedAt))
		a.establishedAt = time.Time{}
	}
}

func (a *Association) hookConfirmAssociateAC() {
	if a.pendingAC != nil {
		for _, pc := range a.pendingAC.PresentationContexts {
			if existing, ok := a.presentationContexts[pc.ID]; ok {
				existing.TransferSyntax = pc.TransferSyntax
				existing.Accepted = pc.Result == types.ResultAcceptance
			}
		}
		if maxLen := a.pendingAC.UserInformation.MaximumLength; maxLen != nil {
			a.peerMaxPDULength = *maxLen
		}
		a.peerImplClassUID = a.pendingAC.UserInformation.ImplementationClassUID
	}
	a.establishedAt = time.Now()
	a.cfg.Metrics.AssociationEstablished(a.role)
	a.finishEstablish(nil)
}

func (a *Association) hookConfirmAssociateRJ() {
	var reason byte
	if a.pendingRJ != nil {
		reason = a.pendingRJ.Reason
	}
	a.closeReason = metrics.ReasonRejected
	a.finishEstablish(dicomerrors.NewAssociationError(
		dicomerrors.RejectSourceServiceProvider,
		dicomerrors.AssociationRejectReason(reason),
		"peer rejected association"))
}

func (a *Association) hookIndicateAssociate() {
	accepted := true
	if a.pendingRQ != nil && a.OnAssociateIndication != nil {
		accepted = a.OnAssociateIndication(*a.pendingRQ)
	}
	if accepted {
		_ = a.machine.Fire(fsm.EvtAAssociateACLocal)
		a.establishedAt = time.Now()
		a.cfg.Metrics.AssociationEstablished(a.role)
	} else {
		_ = a.machine.Fire(fsm.EvtAAssociateRJLocal)
	}
	a.finishEstablish(nil)
}

func (a *Association) hookIndicateRelease() {
	a.closeReason = metrics.ReasonReleased
	if a.OnReleaseIndication != nil {
		a.OnReleaseIndication()
	}
}

func (a *Association) hookConfirmRelease() {
	a.closeReason = metrics.ReasonReleased
	if a.OnReleaseConfirmation != nil {
		a.OnReleaseConfirmation()
	}
}

func (a *Association) hookIndicateAbort(source, reason byte) {
	if a.pendingAbort != nil {
		source, reason = a.pendingAbort.Source, a.pendingAbort.Reason
	}
	a.closeReason = metrics.ReasonAborted
	if a.OnAbortIndication != nil {
		a.OnAbortIndication(source, reason)
	}
	a.finishEstablish(dicomerrors.NewAbortError(source, reason))
}

func (a *Association) hookIndicateData() {
	if a.pendingData == nil {
		return
	}
	pcid, ok := firstPCID(*a.pendingData)
	if !ok {
		return
	}

	if pc, ok := a.presentationContexts[pcid]; !ok || !pc.Accepted {
		a.hookSendAbort(0x02, 0x06)
		_ = a.machine.Fire(fsm.EvtAAbortLocal)
		return
	}

	if a.reassembler == nil {
		a.reassembler = dimse.NewReassembler()
	}
	msg, done, err := a.reassembler.Feed(*a.pendingData)
	if err != nil {
		a.hookSendAbort(0x02, 0x06)
		_ = a.machine.Fire(fsm.EvtAAbortLocal)
		return
	}
	if !done {
		return
	}
	a.reassembler = nil

	if a.OnDIMSE != nil {
		a.OnDIMSE(msg, pcid)
		return
	}

	if a.handler != nil {
		respond := func(resp *types.Message, data []byte) error {
			return a.sendDIMSELocked(pcid, dimse.Message{Command: resp, DataSet: data})
		}

		start := time.Now()
		err := a.handler.HandleDIMSE(context.Background(), msg.Command, msg.DataSet, respond)
		if msg.Command != nil {
			a.cfg.Metrics.DIMSEReceived(msg.Command.CommandField, time.Since(start), err)
		}
		if err != nil {
			a.log.Warn().Err(err).Msg("service handler returned an error")
		}
	}
}

func firstPCID(p pdu.PDataTF) (byte, bool) {
	if len(p.PDVs) == 0 {
		return 0, false
	}
	return p.PDVs[0].PresentationContextID, true
}

// hookAcceptIncoming accepts every well-formed A-ASSOCIATE-RQ; unsupported
// presentation contexts are rejected one by one in the A-ASSOCIATE-AC.
func (a *Association) hookAcceptIncoming() bool {
	return a.pendingRQ != nil
}

