package client

import (
	"fmt"

	"github.com/caio-sobreiro/dicomnet/dicom"
	"github.com/caio-sobreiro/dicomnet/dimse"
	"github.com/caio-sobreiro/dicomnet/types"
)

// CStoreRequest describes a C-STORE-RQ: the SOP instance and its dataset.
type CStoreRequest struct {
	SOPClassUID    string
	SOPInstanceUID string
	MessageID      uint16
	Priority       uint16
	Dataset        *dicom.Dataset
}

// CStoreResponse is the C-STORE-RSP the SCP returns once the instance is
// (or fails to be) stored.
type CStoreResponse struct {
	Status                 uint16
	MessageID              uint16
	AffectedSOPInstanceUID string
}

// SendCStore issues a C-STORE-RQ carrying req.Dataset and waits for the
// matching response.
func (a *Association) SendCStore(req *CStoreRequest) (*CStoreResponse, error) {
	pcid, err := a.GetPresentationContextID(req.SOPClassUID)
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
			return nil, fmt.Errorf("client: failed to encode C-STORE dataset: %w", err)
		}
	}

	cmd := &types.Message{
		CommandField:           types.CStoreRQ,
		MessageID:              req.MessageID,
		AffectedSOPClassUID:    req.SOPClassUID,
		AffectedSOPInstanceUID: req.SOPInstanceUID,
		Priority:               priority,
		CommandDataSetType:     0x0001,
	}
	if len(dataset) == 0 {
		cmd.CommandDataSetType = types.CommandDataSetTypeNull
	}

	if err := a.SendDIMSE(pcid, dimse.Message{Command: cmd, DataSet: dataset}); err != nil {
		return nil, fmt.Errorf("client: failed to send C-STORE-RQ: %w", err)
	}

	resp, err := a.nextResponse()
	if err != nil {
		return nil, fmt.Errorf("client: failed to receive C-STORE-RSP: %w", err)
	}

	return &CStoreResponse{
		Status:                 resp.Command.Status,
		MessageID:              resp.Command.MessageIDBeingRespondedTo,
		AffectedSOPInstanceUID: resp.Command.AffectedSOPInstanceUID,
	}, nil
}
