package dimse

import (
	"github.com/caio-sobreiro/dicomnet/pdu"
	"github.com/caio-sobreiro/dicomnet/types"
)

// Fragment splits a Message into the P-DATA-TF PDUs needed to deliver it
// under a peer's negotiated maximum PDU length, honoring the "largest even
// number of bytes ≤ peerMaxPDULength-6" rule (spec §5, PS3.8 §9.3.5) and
// keeping the command run and the data run as separate fragment runs.
func Fragment(pcid byte, msg Message, peerMaxPDULength uint32) []pdu.PDataTF {
	fragmentSize := pdu.MaxPDVFragmentSize(peerMaxPDULength)

	var out []pdu.PDataTF
	commandBytes := EncodeCommand(msg.Command)
	out = append(out, splitRun(pcid, commandBytes, fragmentSize, true)...)

	if types.HasDataset(msg.Command.CommandDataSetType) && len(msg.DataSet) > 0 {
		out = append(out, splitRun(pcid, msg.DataSet, fragmentSize, false)...)
	}

	return out
}

// splitRun cuts data into <= fragmentSize chunks, each its own P-DATA-TF
// PDU carrying one PDV, with the control byte marking command-vs-data and
// last-fragment-of-run.
func splitRun(pcid byte, data []byte, fragmentSize int, isCommand bool) []pdu.PDataTF {
	if len(data) == 0 {
		data = []byte{}
	}

	var pdus []pdu.PDataTF
	offset := 0
	for {
		end := offset + fragmentSize
		last := end >= len(data)
		if last {
			end = len(data)
		}
		chunk := data[offset:end]

		var pdv pdu.PDV
		if isCommand {
			pdv = pdu.NewCommandPDV(pcid, chunk, last)
		} else {
			pdv = pdu.NewDataPDV(pcid, chunk, last)
		}
		pdus = append(pdus, pdu.PDataTF{PDVs: []pdu.PDV{pdv}})

		if last {
			break
		}
		offset = end
	}
	return pdus
}
