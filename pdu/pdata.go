package pdu

import (
	"encoding/binary"

	"github.com/caio-sobreiro/dicomnet/types"
)

// pdvControlCommand marks a PDV fragment as carrying a Command Set;
// pdvControlLast marks it as the last fragment of its message fragment
// run, PS3.8 §9.3.5.1.
const (
	pdvControlCommand = 0x01
	pdvControlLast    = 0x02
)

// PDV is one Presentation Data Value item: a presentation-context ID plus a
// fragment of either the Command Set or the Data Set.
type PDV struct {
	PresentationContextID byte
	Control               byte
	Data                  []byte
}

// IsCommand reports whether this PDV carries Command Set bytes.
func (p PDV) IsCommand() bool { return p.Control&pdvControlCommand != 0 }

// IsLast reports whether this PDV is the last fragment of its run.
func (p PDV) IsLast() bool { return p.Control&pdvControlLast != 0 }

// NewCommandPDV builds a command-set PDV fragment.
func NewCommandPDV(pcid byte, data []byte, last bool) PDV {
	ctrl := byte(pdvControlCommand)
	if last {
		ctrl |= pdvControlLast
	}
	return PDV{PresentationContextID: pcid, Control: ctrl, Data: data}
}

// NewDataPDV builds a data-set PDV fragment.
func NewDataPDV(pcid byte, data []byte, last bool) PDV {
	ctrl := byte(0)
	if last {
		ctrl |= pdvControlLast
	}
	return PDV{PresentationContextID: pcid, Control: ctrl, Data: data}
}

// PDataTF is the P-DATA-TF PDU, PS3.8 §9.3.5: one or more PDVs.
type PDataTF struct {
	PDVs []PDV
}

func (p PDataTF) Type() byte { return types.TypePDataTF }

func (p PDataTF) Pack() []byte {
	var body []byte
	for _, pdv := range p.PDVs {
		body = append(body, packPDV(pdv)...)
	}
	return WriteHeader(types.TypePDataTF, body)
}

func packPDV(pdv PDV) []byte {
	// item-length = pc-id(1) + control(1) + len(Data)
	itemLen := 2 + len(pdv.Data)
	var out [4]byte
	binary.BigEndian.PutUint32(out[:], uint32(itemLen))
	buf := make([]byte, 0, 4+itemLen)
	buf = append(buf, out[:]...)
	buf = append(buf, pdv.PresentationContextID, pdv.Control)
	buf = append(buf, pdv.Data...)
	return buf
}

// ParsePDataTF decodes a P-DATA-TF body into its constituent PDVs.
func ParsePDataTF(body []byte) (PDataTF, error) {
	var p PDataTF
	offset := 0
	for offset < len(body) {
		if offset+4 > len(body) {
			return PDataTF{}, errShortItem("PDV item length")
		}
		itemLen := int(binary.BigEndian.Uint32(body[offset : offset+4]))
		start := offset + 4
		end := start + itemLen
		if end > len(body) || itemLen < 2 {
			return PDataTF{}, errShortItem("PDV item")
		}
		p.PDVs = append(p.PDVs, PDV{
			PresentationContextID: body[start],
			Control:                body[start+1],
			Data:                   append([]byte(nil), body[start+2:end]...),
		})
		offset = end
	}
	return p, nil
}

// MaxPDVFragmentSize returns the largest PDV.Data length that keeps a PDV
// item within peerMaxPDULength, per spec §5: "the largest even number ≤
// peer_max_pdu_length − 6" (6 = 4-byte PDV item length + pc-id + control).
func MaxPDVFragmentSize(peerMaxPDULength uint32) int {
	if peerMaxPDULength == 0 {
		// 0 means "no limit declared by the peer" (PS3.7 Annex D.3.3.2);
		// fall back to a generous but bounded default.
		return 1<<16 - 6
	}
	n := int(peerMaxPDULength) - 6
	if n < 2 {
		n = 2
	}
	if n%2 != 0 {
		n--
	}
	return n
}
