package pdu

import "github.com/caio-sobreiro/dicomnet/types"

// AReleaseRQ is the A-RELEASE-RQ PDU, PS3.8 §9.3.6 — a fixed 4-byte
// reserved body.
type AReleaseRQ struct{}

func (AReleaseRQ) Type() byte   { return types.TypeReleaseRQ }
func (AReleaseRQ) Pack() []byte { return WriteHeader(types.TypeReleaseRQ, make([]byte, 4)) }

// ParseAReleaseRQ validates and decodes an A-RELEASE-RQ body.
func ParseAReleaseRQ(body []byte) (AReleaseRQ, error) {
	if len(body) < 4 {
		return AReleaseRQ{}, errShortItem("A-RELEASE-RQ")
	}
	return AReleaseRQ{}, nil
}

// AReleaseRP is the A-RELEASE-RP PDU, PS3.8 §9.3.7.
type AReleaseRP struct{}

func (AReleaseRP) Type() byte   { return types.TypeReleaseRP }
func (AReleaseRP) Pack() []byte { return WriteHeader(types.TypeReleaseRP, make([]byte, 4)) }

// ParseAReleaseRP validates and decodes an A-RELEASE-RP body.
func ParseAReleaseRP(body []byte) (AReleaseRP, error) {
	if len(body) < 4 {
		return AReleaseRP{}, errShortItem("A-RELEASE-RP")
	}
	return AReleaseRP{}, nil
}

// AAbort is the A-ABORT PDU, PS3.8 §9.3.8.
type AAbort struct {
	Source byte
	Reason byte
}

func (a AAbort) Type() byte { return types.TypeAbort }

func (a AAbort) Pack() []byte {
	body := []byte{0, 0, a.Source, a.Reason}
	return WriteHeader(types.TypeAbort, body)
}

// ParseAAbort decodes an A-ABORT body.
func ParseAAbort(body []byte) (AAbort, error) {
	if len(body) < 4 {
		return AAbort{}, errShortItem("A-ABORT")
	}
	return AAbort{Source: body[2], Reason: body[3]}, nil
}
