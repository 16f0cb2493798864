package assoc

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caio-sobreiro/dicomnet/dimse"
	"github.com/caio-sobreiro/dicomnet/fsm"
	"github.com/caio-sobreiro/dicomnet/types"
)

const verificationSOPClass = "1.2.840.10008.1.1"

func baseConfig(aeTitle, peerAETitle string) Config {
	return Config{
		CalledAETitle:            peerAETitle,
		CallingAETitle:           aeTitle,
		AcceptedAbstractSyntaxes: []string{verificationSOPClass},
		AcceptedTransferSyntaxes: []string{types.ImplicitVRLittleEndian},
		Logger:                   zerolog.Nop(),
	}
}

func listenOnce(t *testing.T) (addr string, acceptedConn chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ch := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			ch <- conn
		}
		ln.Close()
	}()
	return ln.Addr().String(), ch
}

func TestEchoRoundTrip(t *testing.T) {
	addr, conns := listenOnce(t)

	serverDone := make(chan *Association, 1)
	go func() {
		conn := <-conns
		cfg := baseConfig("STORESCP", "STORESCU")
		var pcid byte
		srv, err := Accept(conn, cfg, nil)
		if err != nil {
			serverDone <- nil
			return
		}
		srv.OnDIMSE = func(msg dimse.Message, p byte) {
			pcid = p
			response := dimse.Message{Command: &types.Message{
				CommandField:              types.CEchoRSP,
				Status:                     types.StatusSuccess,
				MessageIDBeingRespondedTo: msg.Command.MessageID,
				CommandDataSetType:         types.CommandDataSetTypeNull,
			}}
			// OnDIMSE runs on the dispatch goroutine, so it replies through
			// sendDIMSELocked rather than SendDIMSE.
			_ = srv.sendDIMSELocked(pcid, response)
		}
		serverDone <- srv
	}()

	cfg := baseConfig("STORESCU", "STORESCP")
	client, err := Dial(addr, cfg)
	require.NoError(t, err)
	require.Equal(t, fsm.Sta6, client.State())

	received := make(chan dimse.Message, 1)
	client.OnDIMSE = func(msg dimse.Message, pcid byte) { received <- msg }

	var pcid byte
	for id, pc := range client.presentationContexts {
		if pc.Accepted {
			pcid = id
		}
	}
	require.NotZero(t, pcid)

	echoRQ := dimse.Message{Command: &types.Message{
		CommandField:        types.CEchoRQ,
		MessageID:            1,
		AffectedSOPClassUID:  verificationSOPClass,
		CommandDataSetType:   types.CommandDataSetTypeNull,
	}}
	require.NoError(t, client.SendDIMSE(pcid, echoRQ))

	select {
	case msg := <-received:
		assert.Equal(t, types.CEchoRSP, int(msg.Command.CommandField))
		assert.Equal(t, types.StatusSuccess, int(msg.Command.Status))
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive C-ECHO-RSP")
	}

	<-serverDone
}

func TestUnsupportedAbstractSyntaxRejected(t *testing.T) {
	addr, conns := listenOnce(t)

	go func() {
		conn := <-conns
		cfg := baseConfig("STORESCP", "STORESCU")
		cfg.AcceptedAbstractSyntaxes = []string{"1.2.840.10008.5.1.4.1.1.7"}
		_, _ = Accept(conn, cfg, nil)
	}()

	// The association itself is accepted; only the presentation context is
	// rejected.
	cfg := baseConfig("STORESCU", "STORESCP")
	client, err := Dial(addr, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, client.presentationContexts)
	for _, pc := range client.presentationContexts {
		assert.False(t, pc.Accepted)
	}
}

func TestDataOnRejectedContextAborted(t *testing.T) {
	const ctStorageSOPClass = "1.2.840.10008.5.1.4.1.1.7"

	addr, conns := listenOnce(t)

	serverAborted := make(chan [2]byte, 1)
	go func() {
		conn := <-conns
		cfg := baseConfig("STORESCP", "STORESCU")
		_, err := Accept(conn, cfg, nil)
		require.NoError(t, err)
	}()

	cfg := baseConfig("STORESCU", "STORESCP")
	cfg.AcceptedAbstractSyntaxes = []string{verificationSOPClass, ctStorageSOPClass}
	client, err := Dial(addr, cfg)
	require.NoError(t, err)

	// A locally initiated abort raises no indication on the aborting side,
	// so the server's A-ABORT is observed as the client's abort indication.
	client.OnAbortIndication = func(source, reason byte) {
		serverAborted <- [2]byte{source, reason}
	}

	var rejectedPCID byte
	for id, pc := range client.presentationContexts {
		if pc.AbstractSyntax == ctStorageSOPClass {
			require.False(t, pc.Accepted)
			rejectedPCID = id
		}
	}
	require.NotZero(t, rejectedPCID)

	storeRQ := dimse.Message{Command: &types.Message{
		CommandField:           types.CStoreRQ,
		MessageID:              1,
		AffectedSOPClassUID:    ctStorageSOPClass,
		AffectedSOPInstanceUID: "1.2.3.4",
		CommandDataSetType:     types.CommandDataSetTypeNull,
	}}
	require.NoError(t, client.SendDIMSE(rejectedPCID, storeRQ))

	select {
	case got := <-serverAborted:
		assert.Equal(t, [2]byte{0x02, 0x06}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("server never aborted on rejected-context P-DATA")
	}
}

func TestReleaseRoundTrip(t *testing.T) {
	addr, conns := listenOnce(t)

	serverReleased := make(chan struct{}, 1)
	go func() {
		conn := <-conns
		cfg := baseConfig("STORESCP", "STORESCU")
		srv, err := Accept(conn, cfg, nil)
		require.NoError(t, err)
		srv.OnReleaseIndication = func() {
			serverReleased <- struct{}{}
		}
	}()

	cfg := baseConfig("STORESCU", "STORESCP")
	client, err := Dial(addr, cfg)
	require.NoError(t, err)

	require.NoError(t, client.RequestRelease())

	select {
	case <-serverReleased:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed release indication")
	}
}
