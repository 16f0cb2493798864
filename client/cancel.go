package client

import (
	"fmt"

	"github.com/caio-sobreiro/dicomnet/dimse"
	"github.com/caio-sobreiro/dicomnet/types"
)

// SendCCancel issues a C-CANCEL-RQ for a previously sent C-FIND/C-GET/C-MOVE
// request identified by messageID. C-CANCEL-RQ has no response; the
// cancelled operation's own response stream reports StatusCancel instead.
func (a *Association) SendCCancel(messageID uint16, sopClassUID string) error {
	pcid, err := a.GetPresentationContextID(sopClassUID)
	if err != nil {
		return err
	}

	cmd := &types.Message{
		CommandField:              types.CCancelRQ,
		MessageIDBeingRespondedTo: messageID,
		CommandDataSetType:        types.CommandDataSetTypeNull,
	}

	if err := a.SendDIMSE(pcid, dimse.Message{Command: cmd}); err != nil {
		return fmt.Errorf("client: failed to send C-CANCEL-RQ: %w", err)
	}
	return nil
}
