// Package client is a thin, synchronous-feeling veneer over package assoc
// for the common SCU role: establish one association, issue a handful of
// DIMSE requests in sequence, and read back their responses.
package client

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomnet/assoc"
	"github.com/caio-sobreiro/dicomnet/dimse"
	"github.com/caio-sobreiro/dicomnet/types"
)

// Config configures an outbound association. It mirrors assoc.Config but
// defaults AcceptedAbstractSyntaxes to the SOP classes this package's
// request helpers (C-ECHO/C-FIND/C-GET/C-STORE) know how to drive.
type Config struct {
	CallingAETitle string
	CalledAETitle  string
	MaxPDULength   uint32

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	Logger zerolog.Logger

	AcceptedAbstractSyntaxes  []string
	PreferredTransferSyntaxes []string
}

// DefaultAbstractSyntaxes lists the SOP classes Connect proposes
// presentation contexts for when Config.AcceptedAbstractSyntaxes is empty.
var DefaultAbstractSyntaxes = []string{
	verificationSOPClassUID,
	studyRootFindSOPClassUID,
	types.StudyRootQueryRetrieveInformationModelGet,
	types.CTImageStorage,
}

// Association is a client-side DICOM association: the assoc package's
// state machine and wire handling, plus a response queue the request
// helpers in this package read from.
type Association struct {
	*assoc.Association
	responses chan dimse.Message
}

// Connect establishes a DICOM association with a remote SCP, proposing a
// presentation context per entry in cfg.AcceptedAbstractSyntaxes (or
// DefaultAbstractSyntaxes), and blocks until the association is
// established, rejected, or aborted.
func Connect(address string, cfg Config) (*Association, error) {
	abstractSyntaxes := cfg.AcceptedAbstractSyntaxes
	if len(abstractSyntaxes) == 0 {
		abstractSyntaxes = DefaultAbstractSyntaxes
	}

	underlying, err := assoc.Dial(address, assoc.Config{
		CallingAETitle:           cfg.CallingAETitle,
		CalledAETitle:            cfg.CalledAETitle,
		MaxPDULength:             cfg.MaxPDULength,
		AcceptedAbstractSyntaxes: abstractSyntaxes,
		AcceptedTransferSyntaxes: cfg.PreferredTransferSyntaxes,
		ConnectTimeout:           cfg.ConnectTimeout,
		ReadTimeout:              cfg.ReadTimeout,
		WriteTimeout:             cfg.WriteTimeout,
		Logger:                   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("client: failed to establish association: %w", err)
	}

	a := &Association{
		Association: underlying,
		responses:   make(chan dimse.Message),
	}
	a.OnDIMSE = func(msg dimse.Message, _ byte) { a.responses <- msg }

	return a, nil
}

// Close gracefully releases the association and waits for the transport to
// close.
func (a *Association) Close() error {
	err := a.RequestRelease()
	a.WaitClosed()
	return err
}

// GetPresentationContextID finds an accepted presentation context for the
// given abstract syntax.
func (a *Association) GetPresentationContextID(abstractSyntax string) (byte, error) {
	if id, ok := a.PresentationContextID(abstractSyntax); ok {
		return id, nil
	}
	return 0, fmt.Errorf("client: no accepted presentation context for abstract syntax %s", abstractSyntax)
}

// nextResponse blocks for the next DIMSE message the association receives.
func (a *Association) nextResponse() (dimse.Message, error) {
	msg, ok := <-a.responses
	if !ok {
		return dimse.Message{}, fmt.Errorf("client: association closed while waiting for response")
	}
	return msg, nil
}
