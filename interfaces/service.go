// Package interfaces contains all service and handler interfaces
package interfaces

import (
	"context"

	"github.com/caio-sobreiro/dicomnet/types"
)

// ResponseFunc sends one DIMSE response (a C-STORE-RQ sub-operation, a
// pending or final *-RSP) back over the association a request arrived on.
// Handlers that produce more than one response — C-FIND matches, C-MOVE/
// C-GET sub-operations — call it once per message; assoc fragments and
// writes each call in turn.
type ResponseFunc func(resp *types.Message, data []byte) error

// ServiceHandler handles DIMSE operations for an established association.
// A handler that only ever sends one response (C-ECHO, C-STORE) calls
// respond once; one that streams (C-FIND, C-MOVE, C-GET) calls it as many
// times as it has results, then returns once the final response is sent.
type ServiceHandler interface {
	HandleDIMSE(ctx context.Context, msg *types.Message, data []byte, respond ResponseFunc) error
}
