package pdu

import (
	"encoding/binary"

	"github.com/caio-sobreiro/dicomnet/types"
)

func packApplicationContext(name string) []byte {
	out := make([]byte, 0, itemHeaderSize+len(name))
	out = writeItemHeader(out, types.ItemApplicationContext, len(name))
	return append(out, name...)
}

// PresentationContextRQItem is one proposed abstract-syntax/transfer-syntax
// list, DICOM PS3.8 §9.3.2.2.
type PresentationContextRQItem struct {
	ID                 byte
	AbstractSyntax     string
	TransferSyntaxes   []string
}

// PresentationContextACItem is the acceptor's per-context result, with at
// most one negotiated transfer syntax.
type PresentationContextACItem struct {
	ID             byte
	Result         byte
	TransferSyntax string
}

func packPresentationContextRQ(pc PresentationContextRQItem) []byte {
	var body []byte
	body = append(body, pc.ID, 0, 0, 0)
	body = append(body, packSubItem(types.SubItemAbstractSyntax, pc.AbstractSyntax)...)
	for _, ts := range pc.TransferSyntaxes {
		body = append(body, packSubItem(types.SubItemTransferSyntax, ts)...)
	}
	out := writeItemHeader(nil, types.ItemPresentationContextRQ, len(body))
	return append(out, body...)
}

func packPresentationContextAC(pc PresentationContextACItem) []byte {
	var body []byte
	body = append(body, pc.ID, 0, pc.Result, 0)
	body = append(body, packSubItem(types.SubItemTransferSyntax, pc.TransferSyntax)...)
	out := writeItemHeader(nil, types.ItemPresentationContextAC, len(body))
	return append(out, body...)
}

func packSubItem(subType byte, value string) []byte {
	out := writeItemHeader(nil, subType, len(value))
	return append(out, value...)
}

func parsePresentationContextRQ(value []byte) (PresentationContextRQItem, error) {
	if len(value) < 4 {
		return PresentationContextRQItem{}, errShortItem("presentation-context-rq")
	}
	pc := PresentationContextRQItem{ID: value[0]}
	offset := 4
	for offset < len(value) {
		subType, start, end, next, ok := readItemHeader(value, offset)
		if !ok {
			return PresentationContextRQItem{}, errShortItem("presentation-context-rq sub-item")
		}
		switch subType {
		case types.SubItemAbstractSyntax:
			pc.AbstractSyntax = string(value[start:end])
		case types.SubItemTransferSyntax:
			pc.TransferSyntaxes = append(pc.TransferSyntaxes, string(value[start:end]))
		}
		offset = next
	}
	return pc, nil
}

func parsePresentationContextAC(value []byte) (PresentationContextACItem, error) {
	if len(value) < 4 {
		return PresentationContextACItem{}, errShortItem("presentation-context-ac")
	}
	pc := PresentationContextACItem{ID: value[0], Result: value[2]}
	offset := 4
	for offset < len(value) {
		subType, start, end, next, ok := readItemHeader(value, offset)
		if !ok {
			return PresentationContextACItem{}, errShortItem("presentation-context-ac sub-item")
		}
		if subType == types.SubItemTransferSyntax {
			pc.TransferSyntax = string(value[start:end])
		}
		offset = next
	}
	return pc, nil
}

// UserInformationItem is the tagged union of sub-items carried in a
// User Information item (PS3.8 §D.3.3). Unknown sub-items are preserved
// verbatim so a relay never silently drops negotiation data it doesn't
// understand (spec §3).
type UserInformationItem struct {
	MaximumLength              *uint32
	ImplementationClassUID     string
	ImplementationVersionName  string
	AsyncOperationsWindow      *AsyncOperationsWindow
	RoleSelections             []RoleSelection
	SOPExtendedNegotiations    []SOPExtendedNegotiation
	SOPCommonExtendedNegotiations []SOPCommonExtendedNegotiation
	UserIdentityRQ             *UserIdentityRQ
	UserIdentityAC             *UserIdentityAC
	Unknown                    []UnknownSubitem
}

// AsyncOperationsWindow is PS3.7 Annex D.3.3.3.
type AsyncOperationsWindow struct {
	MaxOperationsInvoked  uint16
	MaxOperationsPerformed uint16
}

// RoleSelection is PS3.7 Annex D.3.3.4, one entry per negotiated SOP class.
type RoleSelection struct {
	SOPClassUID     string
	SCURole         byte
	SCPRole         byte
}

// SOPExtendedNegotiation is PS3.7 Annex D.3.3.5, application-info blob
// opaque to this stack.
type SOPExtendedNegotiation struct {
	SOPClassUID     string
	ApplicationInfo []byte
}

// SOPCommonExtendedNegotiation is PS3.7 Annex D.3.3.6.
type SOPCommonExtendedNegotiation struct {
	SOPClassUID           string
	ServiceClassUID       string
	RelatedGeneralSOPClassUIDs []string
}

// UserIdentityRQ is PS3.7 Annex D.3.3.7, sub-item encode/decode only — this
// stack performs no authentication handshake (spec Non-goals).
type UserIdentityRQ struct {
	UserIdentityType      byte
	PositiveResponseRequested bool
	PrimaryField          []byte
	SecondaryField        []byte
}

// UserIdentityAC is the AC counterpart, carrying only a server response.
type UserIdentityAC struct {
	ServerResponse []byte
}

// UnknownSubitem preserves an unrecognized sub-item's type and raw value so
// pack() round-trips it byte-for-byte.
type UnknownSubitem struct {
	Type  byte
	Value []byte
}

func packUserInformation(ui UserInformationItem) []byte {
	var body []byte

	if ui.MaximumLength != nil {
		var v [4]byte
		binary.BigEndian.PutUint32(v[:], *ui.MaximumLength)
		body = append(body, writeItemHeader(nil, types.SubItemMaximumLength, 4)...)
		body = append(body, v[:]...)
	}
	if ui.ImplementationClassUID != "" {
		body = append(body, packSubItem(types.SubItemImplementationClass, ui.ImplementationClassUID)...)
	}
	if ui.AsyncOperationsWindow != nil {
		var v [4]byte
		binary.BigEndian.PutUint16(v[0:2], ui.AsyncOperationsWindow.MaxOperationsInvoked)
		binary.BigEndian.PutUint16(v[2:4], ui.AsyncOperationsWindow.MaxOperationsPerformed)
		body = append(body, writeItemHeader(nil, types.SubItemAsyncOperations, 4)...)
		body = append(body, v[:]...)
	}
	for _, rs := range ui.RoleSelections {
		body = append(body, packRoleSelection(rs)...)
	}
	if ui.ImplementationVersionName != "" {
		body = append(body, packSubItem(types.SubItemImplementationVer, ui.ImplementationVersionName)...)
	}
	for _, sn := range ui.SOPExtendedNegotiations {
		body = append(body, packSOPExtendedNegotiation(sn)...)
	}
	for _, sn := range ui.SOPCommonExtendedNegotiations {
		body = append(body, packSOPCommonExtendedNegotiation(sn)...)
	}
	if ui.UserIdentityRQ != nil {
		body = append(body, packUserIdentityRQ(*ui.UserIdentityRQ)...)
	}
	if ui.UserIdentityAC != nil {
		body = append(body, packUserIdentityAC(*ui.UserIdentityAC)...)
	}
	for _, u := range ui.Unknown {
		body = append(body, writeItemHeader(nil, u.Type, len(u.Value))...)
		body = append(body, u.Value...)
	}

	out := writeItemHeader(nil, types.ItemUserInformation, len(body))
	return append(out, body...)
}

func packRoleSelection(rs RoleSelection) []byte {
	var body []byte
	var uidLen [2]byte
	binary.BigEndian.PutUint16(uidLen[:], uint16(len(rs.SOPClassUID)))
	body = append(body, uidLen[:]...)
	body = append(body, rs.SOPClassUID...)
	body = append(body, rs.SCURole, rs.SCPRole)
	out := writeItemHeader(nil, types.SubItemRoleSelection, len(body))
	return append(out, body...)
}

func packSOPExtendedNegotiation(sn SOPExtendedNegotiation) []byte {
	var body []byte
	var uidLen [2]byte
	binary.BigEndian.PutUint16(uidLen[:], uint16(len(sn.SOPClassUID)))
	body = append(body, uidLen[:]...)
	body = append(body, sn.SOPClassUID...)
	body = append(body, sn.ApplicationInfo...)
	out := writeItemHeader(nil, types.SubItemSOPExtendedNeg, len(body))
	return append(out, body...)
}

func packSOPCommonExtendedNegotiation(sn SOPCommonExtendedNegotiation) []byte {
	var body []byte
	body = append(body, uidField(sn.SOPClassUID)...)
	body = append(body, uidField(sn.ServiceClassUID)...)
	var count [2]byte
	binary.BigEndian.PutUint16(count[:], uint16(len(sn.RelatedGeneralSOPClassUIDs)))
	body = append(body, count[:]...)
	for _, uid := range sn.RelatedGeneralSOPClassUIDs {
		body = append(body, uidField(uid)...)
	}
	out := writeItemHeader(nil, types.SubItemSOPCommonExtendedNeg, len(body))
	return append(out, body...)
}

func uidField(uid string) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(uid)))
	return append(lenBuf[:], uid...)
}

func packUserIdentityRQ(ui UserIdentityRQ) []byte {
	var body []byte
	body = append(body, ui.UserIdentityType)
	if ui.PositiveResponseRequested {
		body = append(body, 1)
	} else {
		body = append(body, 0)
	}
	var pLen [2]byte
	binary.BigEndian.PutUint16(pLen[:], uint16(len(ui.PrimaryField)))
	body = append(body, pLen[:]...)
	body = append(body, ui.PrimaryField...)
	var sLen [2]byte
	binary.BigEndian.PutUint16(sLen[:], uint16(len(ui.SecondaryField)))
	body = append(body, sLen[:]...)
	body = append(body, ui.SecondaryField...)
	out := writeItemHeader(nil, types.SubItemUserIdentityRQ, len(body))
	return append(out, body...)
}

func packUserIdentityAC(ui UserIdentityAC) []byte {
	var body []byte
	var rLen [2]byte
	binary.BigEndian.PutUint16(rLen[:], uint16(len(ui.ServerResponse)))
	body = append(body, rLen[:]...)
	body = append(body, ui.ServerResponse...)
	out := writeItemHeader(nil, types.SubItemUserIdentityAC, len(body))
	return append(out, body...)
}

func parseUserInformation(value []byte) (UserInformationItem, error) {
	var ui UserInformationItem
	offset := 0
	for offset < len(value) {
		subType, start, end, next, ok := readItemHeader(value, offset)
		if !ok {
			return ui, errShortItem("user-information sub-item")
		}
		sub := value[start:end]

		switch subType {
		case types.SubItemMaximumLength:
			if len(sub) < 4 {
				return ui, errShortItem("maximum-length sub-item")
			}
			v := binary.BigEndian.Uint32(sub)
			ui.MaximumLength = &v
		case types.SubItemImplementationClass:
			ui.ImplementationClassUID = string(sub)
		case types.SubItemImplementationVer:
			ui.ImplementationVersionName = string(sub)
		case types.SubItemAsyncOperations:
			if len(sub) < 4 {
				return ui, errShortItem("async-operations-window sub-item")
			}
			ui.AsyncOperationsWindow = &AsyncOperationsWindow{
				MaxOperationsInvoked:   binary.BigEndian.Uint16(sub[0:2]),
				MaxOperationsPerformed: binary.BigEndian.Uint16(sub[2:4]),
			}
		case types.SubItemRoleSelection:
			rs, err := parseRoleSelection(sub)
			if err != nil {
				return ui, err
			}
			ui.RoleSelections = append(ui.RoleSelections, rs)
		case types.SubItemSOPExtendedNeg:
			sn, err := parseSOPExtendedNegotiation(sub)
			if err != nil {
				return ui, err
			}
			ui.SOPExtendedNegotiations = append(ui.SOPExtendedNegotiations, sn)
		case types.SubItemSOPCommonExtendedNeg:
			sn, err := parseSOPCommonExtendedNegotiation(sub)
			if err != nil {
				return ui, err
			}
			ui.SOPCommonExtendedNegotiations = append(ui.SOPCommonExtendedNegotiations, sn)
		case types.SubItemUserIdentityRQ:
			uirq, err := parseUserIdentityRQ(sub)
			if err != nil {
				return ui, err
			}
			ui.UserIdentityRQ = &uirq
		case types.SubItemUserIdentityAC:
			ui.UserIdentityAC = &UserIdentityAC{ServerResponse: append([]byte(nil), sub...)}
		default:
			ui.Unknown = append(ui.Unknown, UnknownSubitem{Type: subType, Value: append([]byte(nil), sub...)})
		}

		offset = next
	}
	return ui, nil
}

func parseRoleSelection(sub []byte) (RoleSelection, error) {
	if len(sub) < 2 {
		return RoleSelection{}, errShortItem("role-selection")
	}
	uidLen := int(binary.BigEndian.Uint16(sub[0:2]))
	if len(sub) < 2+uidLen+2 {
		return RoleSelection{}, errShortItem("role-selection")
	}
	return RoleSelection{
		SOPClassUID: string(sub[2 : 2+uidLen]),
		SCURole:     sub[2+uidLen],
		SCPRole:     sub[2+uidLen+1],
	}, nil
}

func parseSOPExtendedNegotiation(sub []byte) (SOPExtendedNegotiation, error) {
	if len(sub) < 2 {
		return SOPExtendedNegotiation{}, errShortItem("sop-extended-negotiation")
	}
	uidLen := int(binary.BigEndian.Uint16(sub[0:2]))
	if len(sub) < 2+uidLen {
		return SOPExtendedNegotiation{}, errShortItem("sop-extended-negotiation")
	}
	return SOPExtendedNegotiation{
		SOPClassUID:     string(sub[2 : 2+uidLen]),
		ApplicationInfo: append([]byte(nil), sub[2+uidLen:]...),
	}, nil
}

func parseSOPCommonExtendedNegotiation(sub []byte) (SOPCommonExtendedNegotiation, error) {
	offset := 0
	sopUID, offset, err := readUIDField(sub, offset)
	if err != nil {
		return SOPCommonExtendedNegotiation{}, err
	}
	serviceUID, offset, err := readUIDField(sub, offset)
	if err != nil {
		return SOPCommonExtendedNegotiation{}, err
	}
	if offset+2 > len(sub) {
		return SOPCommonExtendedNegotiation{}, errShortItem("sop-common-extended-negotiation")
	}
	count := int(binary.BigEndian.Uint16(sub[offset : offset+2]))
	offset += 2
	result := SOPCommonExtendedNegotiation{SOPClassUID: sopUID, ServiceClassUID: serviceUID}
	for i := 0; i < count; i++ {
		var uid string
		uid, offset, err = readUIDField(sub, offset)
		if err != nil {
			return SOPCommonExtendedNegotiation{}, err
		}
		result.RelatedGeneralSOPClassUIDs = append(result.RelatedGeneralSOPClassUIDs, uid)
	}
	return result, nil
}

func readUIDField(data []byte, offset int) (string, int, error) {
	if offset+2 > len(data) {
		return "", 0, errShortItem("uid-field")
	}
	l := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	if offset+l > len(data) {
		return "", 0, errShortItem("uid-field")
	}
	return string(data[offset : offset+l]), offset + l, nil
}

func parseUserIdentityRQ(sub []byte) (UserIdentityRQ, error) {
	if len(sub) < 4 {
		return UserIdentityRQ{}, errShortItem("user-identity-rq")
	}
	ui := UserIdentityRQ{UserIdentityType: sub[0], PositiveResponseRequested: sub[1] != 0}
	offset := 2
	pLen := int(binary.BigEndian.Uint16(sub[offset : offset+2]))
	offset += 2
	if offset+pLen > len(sub) {
		return UserIdentityRQ{}, errShortItem("user-identity-rq primary field")
	}
	ui.PrimaryField = append([]byte(nil), sub[offset:offset+pLen]...)
	offset += pLen
	if offset+2 > len(sub) {
		return UserIdentityRQ{}, errShortItem("user-identity-rq secondary length")
	}
	sLen := int(binary.BigEndian.Uint16(sub[offset : offset+2]))
	offset += 2
	if offset+sLen > len(sub) {
		return UserIdentityRQ{}, errShortItem("user-identity-rq secondary field")
	}
	ui.SecondaryField = append([]byte(nil), sub[offset:offset+sLen]...)
	return ui, nil
}
