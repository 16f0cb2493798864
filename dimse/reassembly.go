package dimse

import (
	"fmt"

	"github.com/caio-sobreiro/dicomnet/pdu"
	"github.com/caio-sobreiro/dicomnet/types"
)

// run is either Command or Data: a P-DATA-TF fragment stream never
// interleaves the two without an intervening last-fragment boundary.
type run int

const (
	runCommand run = iota
	runData
)

// Reassembler accumulates PDV fragments from consecutive P-DATA-TF PDUs
// into complete DIMSE messages. One Reassembler is associated with exactly
// one presentation context for the lifetime of a single DIMSE exchange;
// package assoc keeps one per in-flight operation.
type Reassembler struct {
	expecting              run
	presentationContextID  byte
	pcidSet                bool
	commandBuf             []byte
	command                *types.Message
	dataBuf                []byte
}

// NewReassembler starts a fresh reassembler expecting a Command Set first.
func NewReassembler() *Reassembler {
	return &Reassembler{expecting: runCommand}
}

// Message is a fully reassembled DIMSE exchange: the decoded Command Set
// plus the raw data set bytes, if CommandDataSetType indicated one was
// attached. DataSet bytes are handed to the external dataset collaborator
// (dicom.ParseDataset) for decoding — this layer never interprets them.
type Message struct {
	Command *types.Message
	DataSet []byte
}

// Feed appends one P-DATA-TF PDU's PDVs. It returns a complete Message
// once both the command run and (if present) the data run have seen their
// last fragment. Returns (Message{}, false, nil) while more PDUs are
// needed. A presentation-context-id mismatch across fragments of the same
// run, or fragments arriving out of the expected command/data order, is a
// protocol violation the caller should fold into an A-ABORT (reason
// "invalid PDU parameter", PS3.8 Table 9-26 reason 6).
func (r *Reassembler) Feed(p pdu.PDataTF) (Message, bool, error) {
	for _, pdv := range p.PDVs {
		if !r.pcidSet {
			r.presentationContextID = pdv.PresentationContextID
			r.pcidSet = true
		} else if pdv.PresentationContextID != r.presentationContextID {
			return Message{}, false, fmt.Errorf("dimse: presentation-context-id changed mid-message (%d -> %d)", r.presentationContextID, pdv.PresentationContextID)
		}

		switch r.expecting {
		case runCommand:
			if !pdv.IsCommand() {
				return Message{}, false, fmt.Errorf("dimse: expected command fragment, got data fragment")
			}
			r.commandBuf = append(r.commandBuf, pdv.Data...)
			if pdv.IsLast() {
				cmd, err := DecodeCommand(r.commandBuf)
				if err != nil {
					return Message{}, false, err
				}
				if !types.HasDataset(cmd.CommandDataSetType) {
					return Message{Command: cmd}, true, nil
				}
				r.command = cmd
				r.expecting = runData
			}
		case runData:
			if pdv.IsCommand() {
				return Message{}, false, fmt.Errorf("dimse: expected data fragment, got command fragment")
			}
			r.dataBuf = append(r.dataBuf, pdv.Data...)
			if pdv.IsLast() {
				return Message{Command: r.command, DataSet: r.dataBuf}, true, nil
			}
		}
	}
	return Message{}, false, nil
}

// PresentationContextID returns the presentation context this reassembler
// is bound to, once the first PDV has been seen.
func (r *Reassembler) PresentationContextID() (byte, bool) {
	return r.presentationContextID, r.pcidSet
}
