package dimse

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/caio-sobreiro/dicomnet/types"
)

// Command Set tags, DICOM PS3.7 Annex E. The command set itself is always
// Implicit VR Little Endian regardless of the negotiated transfer syntax
// for the accompanying data set (PS3.7 §6.3.1) — this codec hard-codes
// that encoding rather than consulting the dataset collaborator.
const (
	tagCommandGroupLength        = 0x00000000
	tagAffectedSOPClassUID       = 0x00000002
	tagRequestedSOPClassUID      = 0x00000003
	tagCommandField              = 0x00000100
	tagMessageID                 = 0x00000110
	tagMessageIDBeingRespondedTo = 0x00000120
	tagMoveDestination           = 0x00000600
	tagPriority                  = 0x00000700
	tagCommandDataSetType        = 0x00000800
	tagStatus                    = 0x00000900
	tagAffectedSOPInstanceUID    = 0x00001000
	tagRequestedSOPInstanceUID   = 0x00001001
	tagEventTypeID               = 0x00001002
	tagAttributeIdentifierList   = 0x00001005
	tagActionTypeID              = 0x00001008
	tagNumberOfRemaining         = 0x00001020
	tagNumberOfCompleted         = 0x00001021
	tagNumberOfFailed            = 0x00001022
	tagNumberOfWarning           = 0x00001023
)

// EncodeCommand serializes a Message's Command Set into Implicit VR Little
// Endian element bytes, prefixed with the mandatory CommandGroupLength
// (0000,0000) element whose value is the length of everything that
// follows it (PS3.7 §6.3.1).
func EncodeCommand(msg *types.Message) []byte {
	var out []byte

	out = appendUint16(out, tagCommandField, msg.CommandField)

	if msg.AffectedSOPClassUID != "" {
		out = appendUID(out, tagAffectedSOPClassUID, msg.AffectedSOPClassUID)
	}
	if msg.RequestedSOPClassUID != "" {
		out = appendUID(out, tagRequestedSOPClassUID, msg.RequestedSOPClassUID)
	}
	if !types.IsResponse(msg.CommandField) {
		out = appendUint16(out, tagMessageID, msg.MessageID)
	}
	if msg.MessageIDBeingRespondedTo != 0 {
		out = appendUint16(out, tagMessageIDBeingRespondedTo, msg.MessageIDBeingRespondedTo)
	}
	if msg.MoveDestination != "" {
		out = appendUID(out, tagMoveDestination, msg.MoveDestination)
	}
	if msg.Priority != 0 || msg.CommandField == types.CFindRQ || msg.CommandField == types.CMoveRQ || msg.CommandField == types.CGetRQ {
		out = appendUint16(out, tagPriority, msg.Priority)
	}
	out = appendUint16(out, tagCommandDataSetType, msg.CommandDataSetType)
	if types.IsResponse(msg.CommandField) {
		out = appendUint16(out, tagStatus, msg.Status)
	}
	if msg.AffectedSOPInstanceUID != "" {
		out = appendUID(out, tagAffectedSOPInstanceUID, msg.AffectedSOPInstanceUID)
	}
	if msg.RequestedSOPInstanceUID != "" {
		out = appendUID(out, tagRequestedSOPInstanceUID, msg.RequestedSOPInstanceUID)
	}
	if msg.EventTypeID != nil {
		out = appendUint16(out, tagEventTypeID, *msg.EventTypeID)
	}
	if msg.ActionTypeID != nil {
		out = appendUint16(out, tagActionTypeID, *msg.ActionTypeID)
	}
	if len(msg.AttributeIdentifierList) > 0 {
		out = appendTagList(out, tagAttributeIdentifierList, msg.AttributeIdentifierList)
	}
	if msg.NumberOfRemainingSuboperations != nil {
		out = appendUint16(out, tagNumberOfRemaining, *msg.NumberOfRemainingSuboperations)
	}
	if msg.NumberOfCompletedSuboperations != nil {
		out = appendUint16(out, tagNumberOfCompleted, *msg.NumberOfCompletedSuboperations)
	}
	if msg.NumberOfFailedSuboperations != nil {
		out = appendUint16(out, tagNumberOfFailed, *msg.NumberOfFailedSuboperations)
	}
	if msg.NumberOfWarningSuboperations != nil {
		out = appendUint16(out, tagNumberOfWarning, *msg.NumberOfWarningSuboperations)
	}

	return append(appendUint32(nil, tagCommandGroupLength, uint32(len(out))), out...)
}

// DecodeCommand parses Implicit VR Little Endian Command Set bytes back
// into a Message.
func DecodeCommand(data []byte) (*types.Message, error) {
	msg := &types.Message{}

	offset := 0
	for offset+8 <= len(data) {
		group := binary.LittleEndian.Uint16(data[offset : offset+2])
		element := binary.LittleEndian.Uint16(data[offset+2 : offset+4])
		length := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		tag := uint32(group)<<16 | uint32(element)

		valueStart := offset + 8
		valueEnd := valueStart + int(length)
		if valueEnd > len(data) {
			return nil, fmt.Errorf("dimse: command element %08x declares length %d past end of buffer", tag, length)
		}
		value := data[valueStart:valueEnd]

		switch tag {
		case tagCommandField:
			msg.CommandField = mustUint16(value)
		case tagMessageID:
			msg.MessageID = mustUint16(value)
		case tagMessageIDBeingRespondedTo:
			msg.MessageIDBeingRespondedTo = mustUint16(value)
		case tagAffectedSOPClassUID:
			msg.AffectedSOPClassUID = trimUID(value)
		case tagRequestedSOPClassUID:
			msg.RequestedSOPClassUID = trimUID(value)
		case tagMoveDestination:
			msg.MoveDestination = trimUID(value)
		case tagPriority:
			msg.Priority = mustUint16(value)
		case tagCommandDataSetType:
			msg.CommandDataSetType = mustUint16(value)
		case tagStatus:
			msg.Status = mustUint16(value)
		case tagAffectedSOPInstanceUID:
			msg.AffectedSOPInstanceUID = trimUID(value)
		case tagRequestedSOPInstanceUID:
			msg.RequestedSOPInstanceUID = trimUID(value)
		case tagEventTypeID:
			v := mustUint16(value)
			msg.EventTypeID = &v
		case tagActionTypeID:
			v := mustUint16(value)
			msg.ActionTypeID = &v
		case tagAttributeIdentifierList:
			msg.AttributeIdentifierList = parseTagList(value)
		case tagNumberOfRemaining:
			v := mustUint16(value)
			msg.NumberOfRemainingSuboperations = &v
		case tagNumberOfCompleted:
			v := mustUint16(value)
			msg.NumberOfCompletedSuboperations = &v
		case tagNumberOfFailed:
			v := mustUint16(value)
			msg.NumberOfFailedSuboperations = &v
		case tagNumberOfWarning:
			v := mustUint16(value)
			msg.NumberOfWarningSuboperations = &v
		}

		offset = valueEnd
		if length%2 == 1 {
			offset++
		}
	}

	return msg, nil
}

func appendUint16(out []byte, tag uint32, v uint16) []byte {
	out = appendTagHeader(out, tag, 2)
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return append(out, buf[:]...)
}

func appendUint32(out []byte, tag uint32, v uint32) []byte {
	out = appendTagHeader(out, tag, 4)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(out, buf[:]...)
}

func appendUID(out []byte, tag uint32, uid string) []byte {
	value := []byte(uid)
	if len(value)%2 == 1 {
		value = append(value, 0x00)
	}
	out = appendTagHeader(out, tag, len(value))
	return append(out, value...)
}

func appendTagList(out []byte, tag uint32, tags []types.Tag) []byte {
	value := make([]byte, 0, len(tags)*4)
	for _, t := range tags {
		var buf [4]byte
		binary.LittleEndian.PutUint16(buf[0:2], t.Group)
		binary.LittleEndian.PutUint16(buf[2:4], t.Element)
		value = append(value, buf[:]...)
	}
	return append(appendTagHeader(out, tag, len(value)), value...)
}

func appendTagHeader(out []byte, tag uint32, length int) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint16(buf[0:2], uint16(tag>>16))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(tag))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(length))
	return append(out, buf[:]...)
}

func mustUint16(value []byte) uint16 {
	if len(value) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(value)
}

func trimUID(value []byte) string {
	s := string(value)
	if idx := strings.IndexByte(s, 0); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func parseTagList(value []byte) []types.Tag {
	var tags []types.Tag
	for offset := 0; offset+4 <= len(value); offset += 4 {
		tags = append(tags, types.Tag{
			Group:   binary.LittleEndian.Uint16(value[offset : offset+2]),
			Element: binary.LittleEndian.Uint16(value[offset+2 : offset+4]),
		})
	}
	return tags
}
