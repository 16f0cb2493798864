package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/caio-sobreiro/dicomnet/dicom"
	"github.com/caio-sobreiro/dicomnet/interfaces"
	"github.com/caio-sobreiro/dicomnet/server"
	"github.com/caio-sobreiro/dicomnet/services"
	"github.com/caio-sobreiro/dicomnet/types"
)

// cfindStub answers every C-FIND-RQ with a single pending match carrying a
// fixed patient name, followed by the final success response.
type cfindStub struct{}

func (cfindStub) HandleDIMSE(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error {
	match := dicom.NewDataset()
	match.AddElement(dicom.Tag{Group: 0x0010, Element: 0x0010}, dicom.VR_PN, "TEST^PATIENT")

	if err := respond(services.NewCFindPendingResponse(msg), match.EncodeDataset()); err != nil {
		return err
	}
	return respond(services.NewCFindSuccessResponse(msg), nil)
}

// cstoreStub accepts every C-STORE-RQ unconditionally.
type cstoreStub struct{}

func (cstoreStub) HandleDIMSE(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error {
	return respond(services.NewCStoreResponse(msg, types.StatusSuccess), nil)
}

func startTestServer(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	registry := services.NewRegistry()
	registry.RegisterHandler(types.CEchoRQ, services.NewEchoService())
	registry.RegisterHandler(types.CFindRQ, cfindStub{})
	registry.RegisterHandler(types.CStoreRQ, cstoreStub{})

	srv := server.New("TEST_SCP", registry,
		server.WithLogger(zerolog.Nop()),
		server.WithAcceptedAbstractSyntaxes([]string{
			types.VerificationSOPClass,
			types.StudyRootQueryRetrieveInformationModelFind,
			types.CTImageStorage,
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx, ln)
	t.Cleanup(cancel)

	return ln.Addr().String()
}

func testConfig(abstractSyntaxes ...string) Config {
	return Config{
		CallingAETitle:            "TEST_SCU",
		CalledAETitle:             "TEST_SCP",
		ConnectTimeout:            2 * time.Second,
		ReadTimeout:               2 * time.Second,
		WriteTimeout:              2 * time.Second,
		Logger:                    zerolog.Nop(),
		AcceptedAbstractSyntaxes:  abstractSyntaxes,
		PreferredTransferSyntaxes: []string{types.ImplicitVRLittleEndian},
	}
}

func TestSendCEcho(t *testing.T) {
	addr := startTestServer(t)

	a, err := Connect(addr, testConfig(types.VerificationSOPClass))
	require.NoError(t, err)
	defer a.Close()

	resp, err := a.SendCEcho(1)
	require.NoError(t, err)
	require.EqualValues(t, types.StatusSuccess, resp.Status)
	require.EqualValues(t, 1, resp.MessageID)
}

func TestSendCFind(t *testing.T) {
	addr := startTestServer(t)

	a, err := Connect(addr, testConfig(types.StudyRootQueryRetrieveInformationModelFind))
	require.NoError(t, err)
	defer a.Close()

	identifier := dicom.NewDataset()
	identifier.AddElement(dicom.Tag{Group: 0x0010, Element: 0x0010}, dicom.VR_PN, "*")

	responses, err := a.SendCFind(&CFindRequest{MessageID: 7, Dataset: identifier})
	require.NoError(t, err)
	require.Len(t, responses, 2)
	require.EqualValues(t, types.StatusPending, responses[0].Status)
	require.NotNil(t, responses[0].Dataset)
	require.Equal(t, "TEST^PATIENT", responses[0].Dataset.GetString(dicom.Tag{Group: 0x0010, Element: 0x0010}))
	require.EqualValues(t, types.StatusSuccess, responses[1].Status)
}

func TestSendCStore(t *testing.T) {
	addr := startTestServer(t)

	a, err := Connect(addr, testConfig(types.CTImageStorage))
	require.NoError(t, err)
	defer a.Close()

	dataset := dicom.NewDataset()
	dataset.AddElement(dicom.Tag{Group: 0x0008, Element: 0x0018}, dicom.VR_UI, "1.2.3.4")

	resp, err := a.SendCStore(&CStoreRequest{
		SOPClassUID:    types.CTImageStorage,
		SOPInstanceUID: "1.2.3.4",
		MessageID:      9,
		Dataset:        dataset,
	})
	require.NoError(t, err)
	require.EqualValues(t, types.StatusSuccess, resp.Status)
	require.Equal(t, "1.2.3.4", resp.AffectedSOPInstanceUID)
}

func TestGetPresentationContextID_Unnegotiated(t *testing.T) {
	addr := startTestServer(t)

	// The server only accepts verification/find/CT-storage; proposing
	// C-MOVE gets the presentation context rejected (not the whole
	// association), so later use of it should fail cleanly.
	a, err := Connect(addr, testConfig(types.StudyRootQueryRetrieveInformationModelMove))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.GetPresentationContextID(types.StudyRootQueryRetrieveInformationModelMove)
	require.Error(t, err)
}
