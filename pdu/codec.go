package pdu

import (
	"fmt"

	"github.com/caio-sobreiro/dicomnet/types"
)

// PDU is any of the seven Upper Layer PDUs: something that knows its type
// octet and can re-encode itself to the exact wire frame (header included).
type PDU interface {
	Type() byte
	Pack() []byte
}

// Decode reads exactly one PDU from buf. It returns the number of bytes
// consumed, the decoded PDU, and whether a full frame was available. A
// false ok with a nil error means "need more bytes" — the caller must
// leave buf untouched and read more from the transport.
func Decode(buf []byte) (consumed int, value PDU, ok bool, err error) {
	consumed, frame, ok, err := ReadFrame(buf)
	if err != nil || !ok {
		return 0, nil, ok, err
	}

	value, err = decodeFrame(frame)
	if err != nil {
		return 0, nil, false, err
	}
	return consumed, value, true, nil
}

func decodeFrame(frame RawFrame) (PDU, error) {
	switch frame.Type {
	case types.TypeAssociateRQ:
		return ParseAAssociateRQ(frame.Body)
	case types.TypeAssociateAC:
		return ParseAAssociateAC(frame.Body)
	case types.TypeAssociateRJ:
		return ParseAAssociateRJ(frame.Body)
	case types.TypePDataTF:
		return ParsePDataTF(frame.Body)
	case types.TypeReleaseRQ:
		return ParseAReleaseRQ(frame.Body)
	case types.TypeReleaseRP:
		return ParseAReleaseRP(frame.Body)
	case types.TypeAbort:
		return ParseAAbort(frame.Body)
	default:
		return nil, fmt.Errorf("pdu: unrecognized PDU type 0x%02x", frame.Type)
	}
}
