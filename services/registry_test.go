package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caio-sobreiro/dicomnet/interfaces"
	"github.com/caio-sobreiro/dicomnet/types"
)

// mockHandler implements interfaces.ServiceHandler.
type mockHandler struct {
	handleFunc func(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error
}

func (m *mockHandler) HandleDIMSE(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error {
	if m.handleFunc != nil {
		return m.handleFunc(ctx, msg, data, respond)
	}
	return respond(&types.Message{
		CommandField:              types.ResponseCommandFor(msg.CommandField),
		MessageIDBeingRespondedTo: msg.MessageID,
		Status:                    types.StatusSuccess,
	}, nil)
}

// recordingResponder collects every response a handler sends.
type recordingResponder struct {
	responses []*types.Message
	datasets  [][]byte
}

func (r *recordingResponder) respond(msg *types.Message, data []byte) error {
	r.responses = append(r.responses, msg)
	r.datasets = append(r.datasets, data)
	return nil
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()
	require.NotNil(t, registry)
	require.NotNil(t, registry.handlers)
	assert.Empty(t, registry.handlers)
}

func TestRegistry_RegisterHandler(t *testing.T) {
	registry := NewRegistry()
	handler := &mockHandler{}

	registry.RegisterHandler(types.CEchoRQ, handler)

	assert.True(t, registry.HasHandler(types.CEchoRQ))
	assert.False(t, registry.HasHandler(types.CFindRQ))
}

func TestRegistry_RegisterHandler_Replace(t *testing.T) {
	registry := NewRegistry()
	handler1 := &mockHandler{
		handleFunc: func(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error {
			return respond(&types.Message{Status: 1}, nil)
		},
	}
	handler2 := &mockHandler{
		handleFunc: func(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error {
			return respond(&types.Message{Status: 2}, nil)
		},
	}

	registry.RegisterHandler(types.CEchoRQ, handler1)
	registry.RegisterHandler(types.CEchoRQ, handler2)

	ctx := context.Background()
	msg := &types.Message{CommandField: types.CEchoRQ, MessageID: 1}

	responder := &recordingResponder{}
	require.NoError(t, registry.HandleDIMSE(ctx, msg, nil, responder.respond))
	require.Len(t, responder.responses, 1)
	assert.EqualValues(t, 2, responder.responses[0].Status)
}

func TestRegistry_UnregisterHandler(t *testing.T) {
	registry := NewRegistry()
	handler := &mockHandler{}

	registry.RegisterHandler(types.CEchoRQ, handler)
	require.True(t, registry.HasHandler(types.CEchoRQ))

	registry.UnregisterHandler(types.CEchoRQ)
	assert.False(t, registry.HasHandler(types.CEchoRQ))
}

func TestRegistry_HandleDIMSE(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	handler := &mockHandler{
		handleFunc: func(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error {
			return respond(&types.Message{
				CommandField:              types.CEchoRSP,
				MessageIDBeingRespondedTo: msg.MessageID,
				Status:                    types.StatusSuccess,
			}, nil)
		},
	}
	registry.RegisterHandler(types.CEchoRQ, handler)

	msg := &types.Message{CommandField: types.CEchoRQ, MessageID: 42}

	responder := &recordingResponder{}
	require.NoError(t, registry.HandleDIMSE(ctx, msg, nil, responder.respond))
	require.Len(t, responder.responses, 1)
	assert.Equal(t, uint16(types.CEchoRSP), responder.responses[0].CommandField)
	assert.EqualValues(t, 42, responder.responses[0].MessageIDBeingRespondedTo)
	assert.Nil(t, responder.datasets[0])
}

func TestRegistry_HandleDIMSE_NoHandler(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	msg := &types.Message{CommandField: types.CEchoRQ, MessageID: 1}

	responder := &recordingResponder{}
	require.NoError(t, registry.HandleDIMSE(ctx, msg, nil, responder.respond))
	require.Len(t, responder.responses, 1)
	assert.EqualValues(t, types.StatusFailure, responder.responses[0].Status)
}

func TestRegistry_HandleDIMSE_NoHandler_ResponseCommand(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	msg := &types.Message{CommandField: types.CCancelRQ, MessageID: 1}

	responder := &recordingResponder{}
	err := registry.HandleDIMSE(ctx, msg, nil, responder.respond)
	assert.Error(t, err)
}

func TestRegistry_HandleDIMSE_HandlerError(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	expectedErr := errors.New("handler error")
	handler := &mockHandler{
		handleFunc: func(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error {
			return expectedErr
		},
	}
	registry.RegisterHandler(types.CEchoRQ, handler)

	msg := &types.Message{CommandField: types.CEchoRQ, MessageID: 1}

	responder := &recordingResponder{}
	err := registry.HandleDIMSE(ctx, msg, nil, responder.respond)
	assert.ErrorIs(t, err, expectedErr)
}

func TestRegistry_HandleDIMSE_Streaming(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	handler := &mockHandler{
		handleFunc: func(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error {
			for i := 0; i < 3; i++ {
				if err := respond(&types.Message{
					CommandField:              types.CFindRSP,
					MessageIDBeingRespondedTo: msg.MessageID,
					Status:                    types.StatusPending,
				}, nil); err != nil {
					return err
				}
			}
			return respond(&types.Message{
				CommandField:              types.CFindRSP,
				MessageIDBeingRespondedTo: msg.MessageID,
				Status:                    types.StatusSuccess,
			}, nil)
		},
	}
	registry.RegisterHandler(types.CFindRQ, handler)

	msg := &types.Message{CommandField: types.CFindRQ, MessageID: 1}

	responder := &recordingResponder{}
	require.NoError(t, registry.HandleDIMSE(ctx, msg, nil, responder.respond))
	require.Len(t, responder.responses, 4)
	for _, resp := range responder.responses[:3] {
		assert.EqualValues(t, types.StatusPending, resp.Status)
	}
	assert.EqualValues(t, types.StatusSuccess, responder.responses[3].Status)
}

func TestRegistry_RegisteredCommands(t *testing.T) {
	registry := NewRegistry()
	handler := &mockHandler{}

	registry.RegisterHandler(types.CEchoRQ, handler)
	registry.RegisterHandler(types.CFindRQ, handler)
	registry.RegisterHandler(types.CStoreRQ, handler)

	commands := registry.RegisteredCommands()
	assert.Len(t, commands, 3)

	found := make(map[uint16]bool)
	for _, cmd := range commands {
		found[cmd] = true
	}
	for _, expected := range []uint16{types.CEchoRQ, types.CFindRQ, types.CStoreRQ} {
		assert.True(t, found[expected], "expected command 0x%04x to be registered", expected)
	}
}

func TestCreateErrorResponse(t *testing.T) {
	req := &types.Message{
		CommandField:        types.CEchoRQ,
		MessageID:           42,
		AffectedSOPClassUID: types.VerificationSOPClass,
	}

	resp := CreateErrorResponse(req, types.StatusFailure)

	assert.EqualValues(t, types.CEchoRSP, resp.CommandField)
	assert.EqualValues(t, 42, resp.MessageIDBeingRespondedTo)
	assert.EqualValues(t, types.StatusFailure, resp.Status)
	assert.Equal(t, types.CommandDataSetTypeNull, resp.CommandDataSetType)
	assert.Equal(t, req.AffectedSOPClassUID, resp.AffectedSOPClassUID)
}

func TestRegistry_Integration(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	registry.RegisterHandler(types.CEchoRQ, NewEchoService())

	echoMsg := &types.Message{
		CommandField:        types.CEchoRQ,
		MessageID:           1,
		AffectedSOPClassUID: types.VerificationSOPClass,
		CommandDataSetType:  types.CommandDataSetTypeNull,
	}

	responder := &recordingResponder{}
	require.NoError(t, registry.HandleDIMSE(ctx, echoMsg, nil, responder.respond))
	require.Len(t, responder.responses, 1)
	assert.EqualValues(t, types.StatusSuccess, responder.responses[0].Status)
	assert.Nil(t, responder.datasets[0])
}
