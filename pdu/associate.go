package pdu

import (
	"encoding/binary"

	"github.com/caio-sobreiro/dicomnet/types"
)

const applicationContextDICOM3 = "1.2.840.10008.3.1.1.1"

// AAssociateRQ is the A-ASSOCIATE-RQ PDU, PS3.8 §9.3.2.
type AAssociateRQ struct {
	ProtocolVersion     uint16
	CalledAETitle       string
	CallingAETitle      string
	ApplicationContext  string
	PresentationContexts []PresentationContextRQItem
	UserInformation     UserInformationItem
}

// Type implements PDU.
func (rq AAssociateRQ) Type() byte { return types.TypeAssociateRQ }

// Pack encodes the full frame (6-byte header included).
func (rq AAssociateRQ) Pack() []byte {
	body := make([]byte, 2+2+16+16+32)
	binary.BigEndian.PutUint16(body[0:2], orDefault(rq.ProtocolVersion, 1))
	copy(body[4:20], types.PadAET(rq.CalledAETitle))
	copy(body[20:36], types.PadAET(rq.CallingAETitle))

	appContext := rq.ApplicationContext
	if appContext == "" {
		appContext = applicationContextDICOM3
	}
	body = append(body, packApplicationContext(appContext)...)

	for _, pc := range rq.PresentationContexts {
		body = append(body, packPresentationContextRQ(pc)...)
	}
	body = append(body, packUserInformation(rq.UserInformation)...)

	return WriteHeader(types.TypeAssociateRQ, body)
}

func orDefault(v, def uint16) uint16 {
	if v == 0 {
		return def
	}
	return v
}

// ParseAAssociateRQ decodes an A-ASSOCIATE-RQ body (post 6-byte header).
func ParseAAssociateRQ(body []byte) (AAssociateRQ, error) {
	if len(body) < 68 {
		return AAssociateRQ{}, errShortItem("A-ASSOCIATE-RQ fixed fields")
	}
	rq := AAssociateRQ{
		ProtocolVersion: binary.BigEndian.Uint16(body[0:2]),
		CalledAETitle:   types.TrimAET(string(body[4:20])),
		CallingAETitle:  types.TrimAET(string(body[20:36])),
	}

	offset := 68
	for offset < len(body) {
		itemType, start, end, next, ok := readItemHeader(body, offset)
		if !ok {
			return AAssociateRQ{}, errShortItem("A-ASSOCIATE-RQ item")
		}
		value := body[start:end]
		switch itemType {
		case types.ItemApplicationContext:
			rq.ApplicationContext = string(value)
		case types.ItemPresentationContextRQ:
			pc, err := parsePresentationContextRQ(value)
			if err != nil {
				return AAssociateRQ{}, err
			}
			rq.PresentationContexts = append(rq.PresentationContexts, pc)
		case types.ItemUserInformation:
			ui, err := parseUserInformation(value)
			if err != nil {
				return AAssociateRQ{}, err
			}
			rq.UserInformation = ui
		}
		offset = next
	}
	return rq, nil
}

// AAssociateAC is the A-ASSOCIATE-AC PDU, PS3.8 §9.3.3. Field layout mirrors
// the RQ; only the semantics of AE title fields (echoed, not validated by
// this layer) and the per-context result differ.
type AAssociateAC struct {
	ProtocolVersion      uint16
	CalledAETitle        string
	CallingAETitle       string
	ApplicationContext   string
	PresentationContexts []PresentationContextACItem
	UserInformation      UserInformationItem
}

func (ac AAssociateAC) Type() byte { return types.TypeAssociateAC }

func (ac AAssociateAC) Pack() []byte {
	body := make([]byte, 2+2+16+16+32)
	binary.BigEndian.PutUint16(body[0:2], orDefault(ac.ProtocolVersion, 1))
	copy(body[4:20], types.PadAET(ac.CalledAETitle))
	copy(body[20:36], types.PadAET(ac.CallingAETitle))

	appContext := ac.ApplicationContext
	if appContext == "" {
		appContext = applicationContextDICOM3
	}
	body = append(body, packApplicationContext(appContext)...)

	for _, pc := range ac.PresentationContexts {
		body = append(body, packPresentationContextAC(pc)...)
	}
	body = append(body, packUserInformation(ac.UserInformation)...)

	return WriteHeader(types.TypeAssociateAC, body)
}

// ParseAAssociateAC decodes an A-ASSOCIATE-AC body.
func ParseAAssociateAC(body []byte) (AAssociateAC, error) {
	if len(body) < 68 {
		return AAssociateAC{}, errShortItem("A-ASSOCIATE-AC fixed fields")
	}
	ac := AAssociateAC{
		ProtocolVersion: binary.BigEndian.Uint16(body[0:2]),
		CalledAETitle:   types.TrimAET(string(body[4:20])),
		CallingAETitle:  types.TrimAET(string(body[20:36])),
	}

	offset := 68
	for offset < len(body) {
		itemType, start, end, next, ok := readItemHeader(body, offset)
		if !ok {
			return AAssociateAC{}, errShortItem("A-ASSOCIATE-AC item")
		}
		value := body[start:end]
		switch itemType {
		case types.ItemApplicationContext:
			ac.ApplicationContext = string(value)
		case types.ItemPresentationContextAC:
			pc, err := parsePresentationContextAC(value)
			if err != nil {
				return AAssociateAC{}, err
			}
			ac.PresentationContexts = append(ac.PresentationContexts, pc)
		case types.ItemUserInformation:
			ui, err := parseUserInformation(value)
			if err != nil {
				return AAssociateAC{}, err
			}
			ac.UserInformation = ui
		}
		offset = next
	}
	return ac, nil
}

// AAssociateRJ is the A-ASSOCIATE-RJ PDU, PS3.8 §9.3.4.
type AAssociateRJ struct {
	Result byte
	Source byte
	Reason byte
}

func (rj AAssociateRJ) Type() byte { return types.TypeAssociateRJ }

func (rj AAssociateRJ) Pack() []byte {
	body := []byte{0, rj.Result, rj.Source, rj.Reason}
	return WriteHeader(types.TypeAssociateRJ, body)
}

// ParseAAssociateRJ decodes an A-ASSOCIATE-RJ body.
func ParseAAssociateRJ(body []byte) (AAssociateRJ, error) {
	if len(body) < 4 {
		return AAssociateRJ{}, errShortItem("A-ASSOCIATE-RJ")
	}
	return AAssociateRJ{Result: body[1], Source: body[2], Reason: body[3]}, nil
}
