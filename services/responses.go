package services

import (
	"github.com/caio-sobreiro/dicomnet/types"
)

// ResponseBuilder provides convenient methods for creating standard DIMSE
// response messages, populating the fields every response of a given kind
// requires.
type ResponseBuilder struct {
	request *types.Message
}

// NewResponseBuilder creates a response builder for the given request
// message.
func NewResponseBuilder(request *types.Message) *ResponseBuilder {
	return &ResponseBuilder{request: request}
}

// CEchoResponse creates a C-ECHO-RSP message with no dataset.
func (b *ResponseBuilder) CEchoResponse(status uint16) *types.Message {
	return &types.Message{
		CommandField:              types.CEchoRSP,
		MessageIDBeingRespondedTo: b.request.MessageID,
		AffectedSOPClassUID:       types.VerificationSOPClass,
		CommandDataSetType:        types.CommandDataSetTypeNull,
		Status:                    status,
	}
}

// CFindResponse creates a C-FIND-RSP message. For a pending match set
// status=types.StatusPending and hasDataset=true; for the final response
// set status=types.StatusSuccess (or a failure code) and hasDataset=false.
func (b *ResponseBuilder) CFindResponse(status uint16, hasDataset bool) *types.Message {
	datasetType := types.CommandDataSetTypeNull
	if hasDataset {
		datasetType = 0x0000
	}

	return &types.Message{
		CommandField:              types.CFindRSP,
		MessageIDBeingRespondedTo: b.request.MessageID,
		AffectedSOPClassUID:       b.request.AffectedSOPClassUID,
		CommandDataSetType:        datasetType,
		Status:                    status,
	}
}

// CMoveResponse creates a C-MOVE-RSP message with sub-operation counts.
// For pending responses during C-STORE sub-operations use
// types.StatusPending; for the final response use types.StatusSuccess.
func (b *ResponseBuilder) CMoveResponse(status uint16, completed, failed, warning, remaining *uint16) *types.Message {
	return &types.Message{
		CommandField:                   types.CMoveRSP,
		MessageIDBeingRespondedTo:      b.request.MessageID,
		AffectedSOPClassUID:            b.request.AffectedSOPClassUID,
		CommandDataSetType:             types.CommandDataSetTypeNull,
		Status:                         status,
		NumberOfCompletedSuboperations: completed,
		NumberOfFailedSuboperations:    failed,
		NumberOfWarningSuboperations:   warning,
		NumberOfRemainingSuboperations: remaining,
	}
}

// CGetResponse creates a C-GET-RSP message with sub-operation counts,
// mirroring CMoveResponse (C-GET and C-MOVE share the same response shape).
func (b *ResponseBuilder) CGetResponse(status uint16, completed, failed, warning, remaining *uint16) *types.Message {
	return &types.Message{
		CommandField:                   types.CGetRSP,
		MessageIDBeingRespondedTo:      b.request.MessageID,
		AffectedSOPClassUID:            b.request.AffectedSOPClassUID,
		CommandDataSetType:             types.CommandDataSetTypeNull,
		Status:                         status,
		NumberOfCompletedSuboperations: completed,
		NumberOfFailedSuboperations:    failed,
		NumberOfWarningSuboperations:   warning,
		NumberOfRemainingSuboperations: remaining,
	}
}

// CStoreResponse creates a C-STORE-RSP message with no dataset.
func (b *ResponseBuilder) CStoreResponse(status uint16, sopInstanceUID string) *types.Message {
	if sopInstanceUID == "" {
		sopInstanceUID = b.request.AffectedSOPInstanceUID
	}

	return &types.Message{
		CommandField:              types.CStoreRSP,
		MessageIDBeingRespondedTo: b.request.MessageID,
		AffectedSOPClassUID:       b.request.AffectedSOPClassUID,
		AffectedSOPInstanceUID:    sopInstanceUID,
		CommandDataSetType:        types.CommandDataSetTypeNull,
		Status:                    status,
	}
}

// Helper functions for creating responses without a builder instance.

// NewCEchoResponse creates a C-ECHO-RSP message from a request.
func NewCEchoResponse(request *types.Message, status uint16) *types.Message {
	return NewResponseBuilder(request).CEchoResponse(status)
}

// NewCFindPendingResponse creates a pending C-FIND-RSP message (with dataset).
func NewCFindPendingResponse(request *types.Message) *types.Message {
	return NewResponseBuilder(request).CFindResponse(types.StatusPending, true)
}

// NewCFindSuccessResponse creates a final success C-FIND-RSP message (no dataset).
func NewCFindSuccessResponse(request *types.Message) *types.Message {
	return NewResponseBuilder(request).CFindResponse(types.StatusSuccess, false)
}

// NewCFindErrorResponse creates an error C-FIND-RSP message.
func NewCFindErrorResponse(request *types.Message, status uint16) *types.Message {
	return NewResponseBuilder(request).CFindResponse(status, false)
}

// NewCMoveSuccessResponse creates a final success C-MOVE-RSP message with sub-operation counts.
func NewCMoveSuccessResponse(request *types.Message, completed, failed, warning uint16) *types.Message {
	remaining := uint16(0)
	return NewResponseBuilder(request).CMoveResponse(
		types.StatusSuccess,
		&completed,
		&failed,
		&warning,
		&remaining,
	)
}

// NewCMovePendingResponse creates a pending C-MOVE-RSP message with sub-operation counts.
func NewCMovePendingResponse(request *types.Message, completed, failed, warning, remaining uint16) *types.Message {
	return NewResponseBuilder(request).CMoveResponse(
		types.StatusPending,
		&completed,
		&failed,
		&warning,
		&remaining,
	)
}

// NewCMoveErrorResponse creates an error C-MOVE-RSP message.
func NewCMoveErrorResponse(request *types.Message, status uint16) *types.Message {
	return NewResponseBuilder(request).CMoveResponse(status, nil, nil, nil, nil)
}

// NewCStoreResponse creates a C-STORE-RSP message.
func NewCStoreResponse(request *types.Message, status uint16) *types.Message {
	return NewResponseBuilder(request).CStoreResponse(status, "")
}
