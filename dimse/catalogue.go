package dimse

import "github.com/caio-sobreiro/dicomnet/types"

// CommandInfo describes one of the 23 DIMSE command types: whether it
// normally carries a data set and which service class it belongs to, for
// dispatch in package assoc / services.
type CommandInfo struct {
	Name        string
	IsResponse  bool
	HasRequestDataset bool
	HasResponseDataset bool
}

// Catalogue maps every CommandField this stack recognizes to its
// CommandInfo, restoring the full 23-command set that
// `_examples/original_source/twisteddicom/dimsemessages.py` defines and
// the teacher only partially wired (C-ECHO/C-FIND/C-MOVE/C-STORE).
var Catalogue = map[uint16]CommandInfo{
	types.CStoreRQ:  {Name: "C-STORE-RQ", HasRequestDataset: true},
	types.CStoreRSP: {Name: "C-STORE-RSP", IsResponse: true},

	types.CGetRQ:  {Name: "C-GET-RQ", HasRequestDataset: true},
	types.CGetRSP: {Name: "C-GET-RSP", IsResponse: true, HasResponseDataset: true},

	types.CFindRQ:  {Name: "C-FIND-RQ", HasRequestDataset: true},
	types.CFindRSP: {Name: "C-FIND-RSP", IsResponse: true, HasResponseDataset: true},

	types.CMoveRQ:  {Name: "C-MOVE-RQ", HasRequestDataset: true},
	types.CMoveRSP: {Name: "C-MOVE-RSP", IsResponse: true, HasResponseDataset: true},

	types.CEchoRQ:  {Name: "C-ECHO-RQ"},
	types.CEchoRSP: {Name: "C-ECHO-RSP", IsResponse: true},

	types.CCancelRQ: {Name: "C-CANCEL-RQ"},

	types.NEventReportRQ:  {Name: "N-EVENT-REPORT-RQ", HasRequestDataset: true},
	types.NEventReportRSP: {Name: "N-EVENT-REPORT-RSP", IsResponse: true, HasResponseDataset: true},

	types.NGetRQ:  {Name: "N-GET-RQ"},
	types.NGetRSP: {Name: "N-GET-RSP", IsResponse: true, HasResponseDataset: true},

	types.NSetRQ:  {Name: "N-SET-RQ", HasRequestDataset: true},
	types.NSetRSP: {Name: "N-SET-RSP", IsResponse: true, HasResponseDataset: true},

	types.NActionRQ:  {Name: "N-ACTION-RQ", HasRequestDataset: true},
	types.NActionRSP: {Name: "N-ACTION-RSP", IsResponse: true, HasResponseDataset: true},

	types.NCreateRQ:  {Name: "N-CREATE-RQ", HasRequestDataset: true},
	types.NCreateRSP: {Name: "N-CREATE-RSP", IsResponse: true, HasResponseDataset: true},

	types.NDeleteRQ:  {Name: "N-DELETE-RQ"},
	types.NDeleteRSP: {Name: "N-DELETE-RSP", IsResponse: true},
}

// Lookup returns the CommandInfo for a CommandField, and whether it's a
// command this stack recognizes at all.
func Lookup(commandField uint16) (CommandInfo, bool) {
	info, ok := Catalogue[commandField]
	return info, ok
}
