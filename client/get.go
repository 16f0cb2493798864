package client

import (
	"fmt"

	"github.com/caio-sobreiro/dicomnet/dicom"
	"github.com/caio-sobreiro/dicomnet/dimse"
	"github.com/caio-sobreiro/dicomnet/types"
)

// CGetRequest describes a C-GET-RQ: the identifier dataset carries the
// retrieve keys for the sub-operations the SCP performs against this same
// association.
type CGetRequest struct {
	SOPClassUID string
	MessageID   uint16
	Priority    uint16
	Dataset     *dicom.Dataset
}

// CGetResponse is one C-GET-RSP, reporting progress of the retrieve's
// sub-operations until the final response.
type CGetResponse struct {
	Status                         uint16
	MessageID                      uint16
	NumberOfRemainingSuboperations uint16
	NumberOfCompletedSuboperations uint16
	NumberOfFailedSuboperations    uint16
	NumberOfWarningSuboperations   uint16
}

// SendCGet issues a C-GET-RQ and collects every C-GET-RSP until the final
// (non-pending) response. C-STORE-RQs the SCP sends back over the same
// association during the retrieve arrive on the same response queue;
// SendCGet skips them, sends no C-STORE-RSP and does not return their
// datasets.
func (a *Association) SendCGet(req *CGetRequest) ([]*CGetResponse, error) {
	sopClassUID := req.SOPClassUID
	if sopClassUID == "" {
		sopClassUID = types.StudyRootQueryRetrieveInformationModelGet
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
			return nil, fmt.Errorf("client: failed to encode C-GET identifier: %w", err)
		}
	}

	cmd := &types.Message{
		CommandField:        types.CGetRQ,
		MessageID:           req.MessageID,
		AffectedSOPClassUID: sopClassUID,
		Priority:            priority,
		CommandDataSetType:  0x0001,
	}
	if len(dataset) == 0 {
		cmd.CommandDataSetType = types.CommandDataSetTypeNull
	}

	if err := a.SendDIMSE(pcid, dimse.Message{Command: cmd, DataSet: dataset}); err != nil {
		return nil, fmt.Errorf("client: failed to send C-GET-RQ: %w", err)
	}

	var responses []*CGetResponse
	for {
		msg, err := a.nextResponse()
		if err != nil {
			return responses, fmt.Errorf("client: failed to receive C-GET-RSP: %w", err)
		}
		// Skip the C-STORE-RQ sub-operations interleaved with the responses.
		if msg.Command == nil || msg.Command.CommandField != types.CGetRSP {
			continue
		}

		resp := &CGetResponse{
			Status:    msg.Command.Status,
			MessageID: msg.Command.MessageIDBeingRespondedTo,
		}
		if v := msg.Command.NumberOfRemainingSuboperations; v != nil {
			resp.NumberOfRemainingSuboperations = *v
		}
		if v := msg.Command.NumberOfCompletedSuboperations; v != nil {
			resp.NumberOfCompletedSuboperations = *v
		}
		if v := msg.Command.NumberOfFailedSuboperations; v != nil {
			resp.NumberOfFailedSuboperations = *v
		}
		if v := msg.Command.NumberOfWarningSuboperations; v != nil {
			resp.NumberOfWarningSuboperations = *v
		}
		responses = append(responses, resp)

		if resp.Status != types.StatusPending {
			return responses, nil
		}
	}
}
