// Package server exposes a reusable DICOM listener built on package assoc:
// it accepts TCP connections, drives each one through an Upper Layer
// Association via assoc.Accept, and hands established associations'
// DIMSE traffic to the caller's interfaces.ServiceHandler.
package server

import (
	"context"
	"errors"
	"net"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomnet/assoc"
	"github.com/caio-sobreiro/dicomnet/interfaces"
	"github.com/caio-sobreiro/dicomnet/metrics"
)

// Option configures a Server instance.
type Option func(*Server)

// WithLogger overrides the logger used by the server.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.Logger = logger }
}

// WithReadTimeout sets the read timeout for client connections.
func WithReadTimeout(timeout time.Duration) Option {
	return func(s *Server) { s.ReadTimeout = timeout }
}

// WithWriteTimeout sets the write timeout for client connections.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(s *Server) { s.WriteTimeout = timeout }
}

// WithAcceptedAbstractSyntaxes overrides the abstract syntaxes this server
// negotiates presentation contexts for (default: verification only).
func WithAcceptedAbstractSyntaxes(syntaxes []string) Option {
	return func(s *Server) { s.AcceptedAbstractSyntaxes = syntaxes }
}

// WithAcceptedTransferSyntaxes overrides the transfer syntax preference
// order (default: Explicit then Implicit VR Little Endian).
func WithAcceptedTransferSyntaxes(syntaxes []string) Option {
	return func(s *Server) { s.AcceptedTransferSyntaxes = syntaxes }
}

// WithMetrics records association lifecycle and DIMSE throughput for every
// association this server accepts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.Metrics = m }
}

const verificationSOPClass = "1.2.840.10008.1.1"

// Server exposes a reusable DICOM listener that wires package assoc to a
// net.Listener.
type Server struct {
	AETitle                  string
	Handler                  interfaces.ServiceHandler
	Logger                   zerolog.Logger
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
	AcceptedAbstractSyntaxes []string
	AcceptedTransferSyntaxes []string

	Metrics *metrics.Metrics
}

// New builds a Server with the provided AE title and handler.
func New(aeTitle string, handler interfaces.ServiceHandler, opts ...Option) *Server {
	srv := &Server{AETitle: aeTitle, Handler: handler}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// ListenAndServe listens on the given address and serves until the context
// is done or an error occurs.
func ListenAndServe(ctx context.Context, address, aeTitle string, handler interfaces.ServiceHandler, opts ...Option) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	defer listener.Close()

	srv := New(aeTitle, handler, opts...)
	return srv.Serve(ctx, listener)
}

// Serve accepts connections from listener until ctx is cancelled or an
// unrecoverable error occurs.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if listener == nil {
		return errors.New("dicomserver: listener is required")
	}
	if s == nil {
		return errors.New("dicomserver: server is nil")
	}
	if s.Handler == nil {
		return errors.New("dicomserver: handler is required")
	}
	if s.AETitle == "" {
		return errors.New("dicomserver: AE title is required")
	}

	logger := s.logger()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	logger.Info().Str("address", listener.Addr().String()).Str("ae_title", s.AETitle).
		Msg("DICOM server listening")

	var (
		wg       sync.WaitGroup
		serveErr error
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				logger.Warn().Err(err).Msg("accept timeout")
				continue
			}
			serveErr = err
			break
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			s.handleConnection(c, logger)
		}(conn)
	}

	wg.Wait()

	if serveErr != nil {
		return serveErr
	}
	return ctx.Err()
}

func (s *Server) handleConnection(conn net.Conn, logger zerolog.Logger) {
	logger.Info().Str("remote_addr", conn.RemoteAddr().String()).Msg("accepted DICOM connection")

	cfg := assoc.Config{
		CalledAETitle:            s.AETitle,
		CallingAETitle:           s.AETitle,
		AcceptedAbstractSyntaxes: s.acceptedAbstractSyntaxes(),
		AcceptedTransferSyntaxes: s.AcceptedTransferSyntaxes,
		ReadTimeout:              s.ReadTimeout,
		WriteTimeout:             s.WriteTimeout,
		Logger:                   logger,
		Metrics:                  s.Metrics,
	}

	a, err := assoc.Accept(conn, cfg, s.Handler)
	if err != nil {
		logger.Warn().Err(err).Str("remote_addr", conn.RemoteAddr().String()).
			Msg("association not established")
		return
	}

	released := make(chan struct{})
	a.OnReleaseIndication = func() {
		_ = a.RespondRelease()
		close(released)
	}
	a.OnAbortIndication = func(source, reason byte) {
		logger.Info().Uint8("source", source).Uint8("reason", reason).
			Str("assoc_id", a.ID()).Msg("association aborted by peer")
	}

	<-released
	logger.Info().Str("remote_addr", conn.RemoteAddr().String()).Msg("DICOM connection closed")
}

func (s *Server) acceptedAbstractSyntaxes() []string {
	if len(s.AcceptedAbstractSyntaxes) > 0 {
		return s.AcceptedAbstractSyntaxes
	}
	return []string{verificationSOPClass}
}

func (s *Server) logger() zerolog.Logger {
	if !reflect.DeepEqual(s.Logger, zerolog.Logger{}) {
		return s.Logger
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
