package client

import (
	"fmt"

	"github.com/caio-sobreiro/dicomnet/dimse"
	"github.com/caio-sobreiro/dicomnet/types"
)

const verificationSOPClassUID = types.VerificationSOPClass

// CEchoResponse is the C-ECHO-RSP status returned for a verification
// request.
type CEchoResponse struct {
	Status    uint16
	MessageID uint16
}

// SendCEcho issues a C-ECHO-RQ over the verification presentation context
// and waits for the matching response.
func (a *Association) SendCEcho(messageID uint16) (*CEchoResponse, error) {
	pcid, err := a.GetPresentationContextID(verificationSOPClassUID)
	if err != nil {
		return nil, err
	}

	req := &types.Message{
		CommandField:        types.CEchoRQ,
		MessageID:           messageID,
		AffectedSOPClassUID: verificationSOPClassUID,
		CommandDataSetType:  types.CommandDataSetTypeNull,
	}
	if err := a.SendDIMSE(pcid, dimse.Message{Command: req}); err != nil {
		return nil, fmt.Errorf("client: failed to send C-ECHO-RQ: %w", err)
	}

	resp, err := a.nextResponse()
	if err != nil {
		return nil, fmt.Errorf("client: failed to receive C-ECHO-RSP: %w", err)
	}

	return &CEchoResponse{
		Status:    resp.Command.Status,
		MessageID: resp.Command.MessageIDBeingRespondedTo,
	}, nil
}
