package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/caio-sobreiro/dicomnet/interfaces"
	"github.com/caio-sobreiro/dicomnet/types"
)

// Registry dispatches DIMSE messages to one of several service handlers
// keyed by command field, and implements interfaces.ServiceHandler itself
// so it can be handed straight to server.New/assoc.Accept.
//
// Example usage:
//
//	registry := services.NewRegistry()
//	registry.RegisterHandler(types.CEchoRQ, services.NewEchoService())
//	server.ListenAndServe(ctx, addr, aeTitle, registry)
type Registry struct {
	handlers map[uint16]interfaces.ServiceHandler
}

// NewRegistry creates an empty registry. Use RegisterHandler to add service
// handlers.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[uint16]interfaces.ServiceHandler),
	}
}

// RegisterHandler registers a service handler for a specific DIMSE request
// command field (e.g. types.CEchoRQ). Calling it again for the same
// command replaces the previous handler.
func (r *Registry) RegisterHandler(commandField uint16, handler interfaces.ServiceHandler) {
	r.handlers[commandField] = handler
}

// UnregisterHandler removes the handler for a specific DIMSE command. After
// unregistering, messages with this command field get an error response.
func (r *Registry) UnregisterHandler(commandField uint16) {
	delete(r.handlers, commandField)
}

// HandleDIMSE routes a DIMSE message to the handler registered for its
// command field. If no handler is registered, it responds with a failure
// status rather than leaving the request unanswered.
func (r *Registry) HandleDIMSE(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error {
	log.Ctx(ctx).Debug().
		Str("command_field", fmt.Sprintf("0x%04x", msg.CommandField)).
		Uint16("message_id", msg.MessageID).
		Msg("routing DIMSE message")

	handler, ok := r.handlers[msg.CommandField]
	if !ok {
		log.Ctx(ctx).Warn().Str("command_field", fmt.Sprintf("0x%04x", msg.CommandField)).
			Msg("no handler registered for DIMSE command")
		if types.IsResponse(msg.CommandField) || msg.CommandField == types.CCancelRQ {
			return fmt.Errorf("services: unsupported DIMSE command: 0x%04x", msg.CommandField)
		}
		return respond(CreateErrorResponse(msg, types.StatusFailure), nil)
	}

	return handler.HandleDIMSE(ctx, msg, data, respond)
}

// HasHandler returns true if a handler is registered for the given command
// field.
func (r *Registry) HasHandler(commandField uint16) bool {
	_, ok := r.handlers[commandField]
	return ok
}

// RegisteredCommands returns every command field that has a handler
// registered.
func (r *Registry) RegisteredCommands() []uint16 {
	commands := make([]uint16, 0, len(r.handlers))
	for cmd := range r.handlers {
		commands = append(commands, cmd)
	}
	return commands
}

// CreateErrorResponse builds the standard DIMSE error response for req:
// the matching *-RSP command field, the message id it answers, and the
// given status.
func CreateErrorResponse(req *types.Message, status uint16) *types.Message {
	return &types.Message{
		CommandField:              types.ResponseCommandFor(req.CommandField),
		MessageIDBeingRespondedTo: req.MessageID,
		AffectedSOPClassUID:       req.AffectedSOPClassUID,
		CommandDataSetType:        types.CommandDataSetTypeNull,
		Status:                    status,
	}
}
