package client

import (
	"fmt"

	"github.com/caio-sobreiro/dicomnet/dicom"
	"github.com/caio-sobreiro/dicomnet/dimse"
	"github.com/caio-sobreiro/dicomnet/types"
)

const studyRootFindSOPClassUID = types.StudyRootQueryRetrieveInformationModelFind

// CFindRequest describes a C-FIND-RQ: the identifier dataset carries the
// query keys.
type CFindRequest struct {
	SOPClassUID string
	MessageID   uint16
	Priority    uint16
	Dataset     *dicom.Dataset
}

// CFindResponse is one C-FIND-RSP in the (zero or more pending, one final)
// sequence a single query produces.
type CFindResponse struct {
	Status    uint16
	MessageID uint16
	Dataset   *dicom.Dataset
}

// SendCFind issues a C-FIND-RQ and collects every C-FIND-RSP the SCP sends
// back, from the first Pending match through the final Success/Failure.
func (a *Association) SendCFind(req *CFindRequest) ([]*CFindResponse, error) {
	sopClassUID := req.SOPClassUID
	if sopClassUID == "" {
		sopClassUID = studyRootFindSOPClassUID
	}

	pcid, err := a.GetPresentationContextID(sopClassUID)
	if err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == 0 {
		priority = types.PriorityMedium
	}

	var dataset []byte
	if req.Dataset != nil {
		ts, _ := a.TransferSyntaxFor(pcid)
		dataset, err = dicom.EncodeDatasetWithTransferSyntax(req.Dataset, ts)
		if err != nil {
			return nil, fmt.Errorf("client: failed to encode C-FIND identifier: %w", err)
		}
	}

	cmd := &types.Message{
		CommandField:        types.CFindRQ,
		MessageID:           req.MessageID,
		AffectedSOPClassUID: sopClassUID,
		Priority:            priority,
		CommandDataSetType:  0x0001,
	}
	if len(dataset) == 0 {
		cmd.CommandDataSetType = types.CommandDataSetTypeNull
	}

	if err := a.SendDIMSE(pcid, dimse.Message{Command: cmd, DataSet: dataset}); err != nil {
		return nil, fmt.Errorf("client: failed to send C-FIND-RQ: %w", err)
	}

	var responses []*CFindResponse
	for {
		msg, err := a.nextResponse()
		if err != nil {
			return responses, fmt.Errorf("client: failed to receive C-FIND-RSP: %w", err)
		}

		resp := &CFindResponse{
			Status:    msg.Command.Status,
			MessageID: msg.Command.MessageIDBeingRespondedTo,
		}
		if types.HasDataset(msg.Command.CommandDataSetType) && len(msg.DataSet) > 0 {
			ds, err := dicom.ParseDataset(msg.DataSet)
			if err != nil {
				return responses, fmt.Errorf("client: failed to parse C-FIND-RSP identifier: %w", err)
			}
			resp.Dataset = ds
		}
		responses = append(responses, resp)

		if resp.Status != types.StatusPending {
			return responses, nil
		}
	}
}
