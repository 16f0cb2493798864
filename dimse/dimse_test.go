package dimse

import (
	"encoding/binary"
	"testing"

	"github.com/caio-sobreiro/dicomnet/pdu"
	"github.com/caio-sobreiro/dicomnet/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRoundTrip(t *testing.T) {
	msg := &types.Message{
		CommandField:        types.CEchoRQ,
		MessageID:            7,
		AffectedSOPClassUID:  "1.2.840.10008.1.1",
		CommandDataSetType:   types.CommandDataSetTypeNull,
	}

	encoded := EncodeCommand(msg)
	decoded, err := DecodeCommand(encoded)
	require.NoError(t, err)

	assert.Equal(t, msg.CommandField, decoded.CommandField)
	assert.Equal(t, msg.MessageID, decoded.MessageID)
	assert.Equal(t, msg.AffectedSOPClassUID, decoded.AffectedSOPClassUID)
	assert.Equal(t, msg.CommandDataSetType, decoded.CommandDataSetType)
}

func TestEncodeCommand_PrependsGroupLength(t *testing.T) {
	msg := &types.Message{
		CommandField:        types.CEchoRQ,
		MessageID:           7,
		AffectedSOPClassUID: "1.2.840.10008.1.1",
		CommandDataSetType:  types.CommandDataSetTypeNull,
	}

	encoded := EncodeCommand(msg)
	require.GreaterOrEqual(t, len(encoded), 12)

	group := binary.LittleEndian.Uint16(encoded[0:2])
	element := binary.LittleEndian.Uint16(encoded[2:4])
	valueLength := binary.LittleEndian.Uint32(encoded[4:8])
	length := binary.LittleEndian.Uint32(encoded[8:12])

	assert.EqualValues(t, 0x0000, group)
	assert.EqualValues(t, 0x0000, element)
	assert.EqualValues(t, 4, valueLength)
	assert.Equal(t, len(encoded)-12, int(length))
}

func TestFragmentAndReassembleNoDataset(t *testing.T) {
	msg := Message{Command: &types.Message{
		CommandField:       types.CEchoRQ,
		MessageID:           1,
		AffectedSOPClassUID: "1.2.840.10008.1.1",
		CommandDataSetType:  types.CommandDataSetTypeNull,
	}}

	pdus := Fragment(1, msg, 16384)
	require.Len(t, pdus, 1)

	r := NewReassembler()
	got, done, err := r.Feed(pdus[0])
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, types.CEchoRQ, int(got.Command.CommandField))
}

func TestFragmentAndReassembleWithDataset(t *testing.T) {
	dataset := make([]byte, 500)
	for i := range dataset {
		dataset[i] = byte(i % 256)
	}

	msg := Message{
		Command: &types.Message{
			CommandField:       types.CStoreRQ,
			MessageID:           2,
			AffectedSOPClassUID: "1.2.840.10008.5.1.4.1.1.7",
			CommandDataSetType:  0x0001,
		},
		DataSet: dataset,
	}

	// Force tiny fragments to exercise multi-PDV reassembly.
	pdus := Fragment(1, msg, 20)

	r := NewReassembler()
	var final Message
	var done bool
	var err error
	for _, p := range pdus {
		final, done, err = r.Feed(p)
		require.NoError(t, err)
	}
	require.True(t, done)
	assert.Equal(t, dataset, final.DataSet)
	assert.Equal(t, types.CStoreRQ, int(final.Command.CommandField))
}

func TestReassemblerRejectsPresentationContextMismatch(t *testing.T) {
	r := NewReassembler()
	_, _, err := r.Feed(pdu.PDataTF{PDVs: []pdu.PDV{pdu.NewCommandPDV(1, []byte{1, 2}, false)}})
	require.NoError(t, err)

	_, _, err = r.Feed(pdu.PDataTF{PDVs: []pdu.PDV{pdu.NewCommandPDV(2, []byte{3, 4}, true)}})
	assert.Error(t, err)
}

func TestReassemblerRejectsCommandDataInterleave(t *testing.T) {
	r := NewReassembler()
	_, _, err := r.Feed(pdu.PDataTF{PDVs: []pdu.PDV{pdu.NewDataPDV(1, []byte{1}, true)}})
	assert.Error(t, err)
}

func TestCatalogueCoversAll23Commands(t *testing.T) {
	assert.Len(t, Catalogue, 23)
	info, ok := Lookup(types.CStoreRQ)
	require.True(t, ok)
	assert.True(t, info.HasRequestDataset)
}
