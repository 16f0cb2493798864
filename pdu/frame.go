// Package pdu implements the DICOM Upper Layer frame reader/writer (L1) and
// the PDU codec (L2): bit-exact pack/unpack for the seven PDU types and
// their nested items, DICOM PS3.8 §9.
package pdu

import (
	"encoding/binary"
)

const headerSize = 6

// RawFrame is one fully-buffered PDU before variant-specific decoding: the
// type octet plus its declared-length body.
type RawFrame struct {
	Type byte
	Body []byte
}

// ReadFrame attempts to cut one PDU frame out of buf starting at offset 0.
// It returns the number of bytes consumed and the frame on success. When
// fewer than 6+declared-length bytes are buffered it returns (0, RawFrame{},
// false, nil) — the caller must not advance its offset and should wait for
// more bytes. buf is never mutated or retained past the call: Body is a
// fresh copy.
func ReadFrame(buf []byte) (consumed int, frame RawFrame, ok bool, err error) {
	if len(buf) < headerSize {
		return 0, RawFrame{}, false, nil
	}

	pduType := buf[0]
	length := binary.BigEndian.Uint32(buf[2:6])
	total := headerSize + int(length)

	if len(buf) < total {
		return 0, RawFrame{}, false, nil
	}

	body := make([]byte, length)
	copy(body, buf[headerSize:total])

	return total, RawFrame{Type: pduType, Body: body}, true, nil
}

// WriteHeader appends a 6-byte PDU header (type, reserved=0, big-endian
// length) in front of body and returns the full frame.
func WriteHeader(pduType byte, body []byte) []byte {
	out := make([]byte, headerSize, headerSize+len(body))
	out[0] = pduType
	out[1] = 0
	binary.BigEndian.PutUint32(out[2:6], uint32(len(body)))
	return append(out, body...)
}

// itemHeaderSize is the 4-byte {type, reserved, u16 length} header shared by
// every item/sub-item.
const itemHeaderSize = 4

func writeItemHeader(out []byte, itemType byte, length int) []byte {
	out = append(out, itemType, 0)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(length))
	return append(out, lenBuf[:]...)
}

// readItemHeader reads a 4-byte item header at data[offset:] and returns the
// item type, the value bounds, and the offset just past the value.
func readItemHeader(data []byte, offset int) (itemType byte, valueStart, valueEnd, next int, ok bool) {
	if offset+itemHeaderSize > len(data) {
		return 0, 0, 0, 0, false
	}
	itemType = data[offset]
	length := binary.BigEndian.Uint16(data[offset+2 : offset+4])
	valueStart = offset + itemHeaderSize
	valueEnd = valueStart + int(length)
	if valueEnd > len(data) {
		return 0, 0, 0, 0, false
	}
	return itemType, valueStart, valueEnd, valueEnd, true
}
