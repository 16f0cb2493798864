// Package assoc ties the fsm, pdu, and dimse packages to a net.Conn: it is
// the composition root spec.md calls "Association" — one goroutine per
// association, driving the Upper Layer state machine off PDUs read from
// the wire and DIMSE messages handed to it by the service layer.
package assoc

import (
	"os"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomnet/metrics"
	"github.com/caio-sobreiro/dicomnet/types"
)

var validate = validator.New()

// Config holds the negotiation parameters for one association, validated
// with struct tags the way codeninja55-go-radx and marmos91-dittofs
// validate their own configuration structs.
type Config struct {
	CalledAETitle  string `validate:"required,max=16"`
	CallingAETitle string `validate:"required,max=16"`

	MaxPDULength uint32 `validate:"omitempty,min=4096"`

	// AcceptedAbstractSyntaxes lists the SOP/meta-SOP classes this
	// association is willing to negotiate a presentation context for.
	// The acceptor side rejects any proposed context naming a syntax not
	// in this list (result ResultAbstractSyntaxNotSupported).
	AcceptedAbstractSyntaxes []string `validate:"required,min=1"`

	// AcceptedTransferSyntaxes lists transfer syntaxes in preference
	// order; the first one also proposed/requested by the peer wins.
	AcceptedTransferSyntaxes []string `validate:"required,min=1"`

	ARTIMTimeout time.Duration `validate:"omitempty,min=0"`

	ConnectTimeout time.Duration `validate:"omitempty,min=0"`
	ReadTimeout    time.Duration `validate:"omitempty,min=0"`
	WriteTimeout   time.Duration `validate:"omitempty,min=0"`

	Logger zerolog.Logger `validate:"-"`

	// Metrics records association lifecycle and DIMSE throughput. A nil
	// value is valid and every recording call becomes a no-op (see
	// metrics.Metrics' nil-receiver guards).
	Metrics *metrics.Metrics `validate:"-"`
}

func (c *Config) setDefaults() {
	if c.MaxPDULength == 0 {
		c.MaxPDULength = 16384
	}
	if c.ARTIMTimeout == 0 {
		c.ARTIMTimeout = 10 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if len(c.AcceptedTransferSyntaxes) == 0 {
		c.AcceptedTransferSyntaxes = []string{types.ExplicitVRLittleEndian, types.ImplicitVRLittleEndian}
	}
	if reflect.DeepEqual(c.Logger, zerolog.Logger{}) {
		// zero-value zerolog.Logger{} has no writer configured; fall back
		// to a real stderr logger the way the teacher falls back to
		// slog.Default().
		c.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func (c *Config) validateConfig() error {
	return validate.Struct(c)
}
