// Package services provides reusable DICOM service implementations.
//
// This package contains standard DICOM service implementations that can be
// used by any DICOM server application. These implementations follow the
// DICOM standard and have no external backend dependencies.
package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/caio-sobreiro/dicomnet/interfaces"
	"github.com/caio-sobreiro/dicomnet/types"
)

// EchoService handles C-ECHO verification requests.
//
// C-ECHO is used to verify connectivity and application-level communication
// between two DICOM Application Entities (AEs). It's the DICOM equivalent
// of a "ping" operation, and is stateless.
type EchoService struct{}

// NewEchoService creates a new C-ECHO service instance.
func NewEchoService() *EchoService {
	return &EchoService{}
}

// HandleDIMSE processes a C-ECHO request and responds with success.
func (s *EchoService) HandleDIMSE(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error {
	log.Ctx(ctx).Debug().Uint16("message_id", msg.MessageID).Msg("processing C-ECHO request")

	response := &types.Message{
		CommandField:              types.CEchoRSP,
		MessageIDBeingRespondedTo: msg.MessageID,
		AffectedSOPClassUID:       types.VerificationSOPClass,
		CommandDataSetType:        types.CommandDataSetTypeNull,
		Status:                    types.StatusSuccess,
	}
	return respond(response, nil)
}

// HealthCheck verifies that the echo service is operational. Since echo
// service is stateless with no external dependencies, this always returns
// healthy.
func (s *EchoService) HealthCheck(ctx context.Context) error {
	return nil
}
