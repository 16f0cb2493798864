package types

// DIMSE command field values, DICOM PS3.7 Table E.1-1 / Annex E.
const (
	CStoreRQ  = 0x0001
	CStoreRSP = 0x8001

	CGetRQ  = 0x0010
	CGetRSP = 0x8010

	CFindRQ  = 0x0020
	CFindRSP = 0x8020

	CMoveRQ  = 0x0021
	CMoveRSP = 0x8021

	CEchoRQ  = 0x0030
	CEchoRSP = 0x8030

	CCancelRQ = 0x0FFF

	NEventReportRQ  = 0x0100
	NEventReportRSP = 0x8100

	NGetRQ  = 0x0110
	NGetRSP = 0x8110

	NSetRQ  = 0x0120
	NSetRSP = 0x8120

	NActionRQ  = 0x0130
	NActionRSP = 0x8130

	// NCreateRQ/NCreateRSP use the standard PS3.7 Table 8.1-1 codes.
	// original_source/twisteddicom packs these two swapped (see DESIGN.md,
	// Open Question iii) — this module always uses the standard values.
	NCreateRQ  = 0x0140
	NCreateRSP = 0x8140

	NDeleteRQ  = 0x0150
	NDeleteRSP = 0x8150
)

// DIMSE status codes, DICOM PS3.7 Annex C (only the classes this stack
// discriminates between; full per-service status codes are carried verbatim
// in Message.Status).
const (
	StatusSuccess = 0x0000
	StatusPending = 0xFF00
	StatusFailure = 0xC000
	StatusWarning = 0x0100
	StatusCancel  = 0xFE00
)

// CommandPriority values for C-STORE/C-FIND/C-MOVE/C-GET requests.
const (
	PriorityLow    uint16 = 0x0002
	PriorityMedium uint16 = 0x0000
	PriorityHigh   uint16 = 0x0001
)

// CommandDataSetType sentinel: any other value means a dataset is present.
const CommandDataSetTypeNull uint16 = 0x0101

// Message is the parsed/to-be-encoded Command Set (Group 0x0000) shared by
// all 23 DIMSE command types. Not every field applies to every CommandField;
// dimse.Catalogue (package dimse) knows which subset each command projects.
type Message struct {
	CommandField uint16

	MessageID                 uint16
	MessageIDBeingRespondedTo uint16

	AffectedSOPClassUID    string
	AffectedSOPInstanceUID string
	RequestedSOPClassUID   string
	RequestedSOPInstanceUID string

	Priority           uint16
	CommandDataSetType uint16
	Status             uint16

	// MoveDestination is the calling AE title a C-MOVE-RQ asks results to
	// be routed to.
	MoveDestination string

	// EventTypeID (N-EVENT-REPORT) / ActionTypeID (N-ACTION).
	EventTypeID  *uint16
	ActionTypeID *uint16

	// AttributeIdentifierList (N-GET) is an ordered list of tags requested.
	AttributeIdentifierList []Tag

	// C-MOVE/C-GET sub-operation counters, present only on the final
	// (non-pending) response.
	NumberOfRemainingSuboperations *uint16
	NumberOfCompletedSuboperations *uint16
	NumberOfFailedSuboperations    *uint16
	NumberOfWarningSuboperations   *uint16

	// TransferSyntaxUID is not part of the wire command set: it records the
	// transfer syntax the accompanying dataset (if any) was/will be encoded
	// with, for use by the DIMSE and dataset-codec layers.
	TransferSyntaxUID string
}

// IsResponse reports whether a CommandField is a *-RSP code (high bit set).
func IsResponse(commandField uint16) bool {
	return commandField&0x8000 != 0
}

// ResponseCommandFor maps a DIMSE request command to its corresponding
// response command. C-CANCEL-RQ has no response.
func ResponseCommandFor(request uint16) uint16 {
	switch request {
	case CCancelRQ:
		return CCancelRQ
	default:
		return request | 0x8000
	}
}

// HasDataset reports whether CommandDataSetType indicates an attached
// dataset (spec §3: 0x0101 ≡ absent, anything else ≡ present).
func HasDataset(commandDataSetType uint16) bool {
	return commandDataSetType != CommandDataSetTypeNull
}
