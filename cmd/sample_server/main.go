// Command sample_server is a minimal storage/query SCP used to exercise
// package server and package services end to end: it accepts associations,
// answers C-ECHO, stores C-STORE instances in memory, answers C-FIND
// against them, and forwards C-MOVE sub-operations to a destination AE via
// package client.
package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/caio-sobreiro/dicomnet/client"
	"github.com/caio-sobreiro/dicomnet/dicom"
	dicomerrors "github.com/caio-sobreiro/dicomnet/errors"
	"github.com/caio-sobreiro/dicomnet/interfaces"
	"github.com/caio-sobreiro/dicomnet/metrics"
	"github.com/caio-sobreiro/dicomnet/server"
	"github.com/caio-sobreiro/dicomnet/services"
	"github.com/caio-sobreiro/dicomnet/types"
)

// instance is one stored DICOM object, keyed by SOP Instance UID.
type instance struct {
	SOPClassUID    string
	SOPInstanceUID string
	StudyUID       string
	SeriesUID      string
	PatientID      string
	PatientName    string
	Modality       string
	TransferSyntax string
	Dataset        *dicom.Dataset
}

// store is an in-memory DICOM instance repository used to answer C-FIND
// and provide C-MOVE sub-operation sources.
type store struct {
	mu        sync.RWMutex
	instances map[string]*instance
}

func newStore() *store {
	return &store{instances: make(map[string]*instance)}
}

func (s *store) put(inst *instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[inst.SOPInstanceUID] = inst
}

func (s *store) find(studyUID, seriesUID, sopUID string) []*instance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*instance
	for _, inst := range s.instances {
		switch {
		case sopUID != "":
			if inst.SOPInstanceUID == sopUID {
				matches = append(matches, inst)
			}
		case seriesUID != "":
			if inst.SeriesUID == seriesUID {
				matches = append(matches, inst)
			}
		case studyUID != "":
			if inst.StudyUID == studyUID {
				matches = append(matches, inst)
			}
		default:
			matches = append(matches, inst)
		}
	}
	return matches
}

// The methods below adapt store's flat SOP-instance map onto
// interfaces.DataStore's patient/study/series/image hierarchy, so the
// /inventory debug endpoint can walk the same data the DIMSE handlers
// answer C-FIND/C-MOVE/C-GET against. StorePatient/StoreStudy/StoreSeries
// are no-ops: this store's only write path is C-STORE (store.put), which
// already records the study/series/patient identifiers an instance carries.
var _ interfaces.DataStore = (*store)(nil)

func (s *store) FindPatients(query *types.QueryRequest) ([]types.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := make(map[string]*types.Patient)
	var order []string
	for _, inst := range s.instances {
		if query != nil && query.PatientID != "" && query.PatientID != inst.PatientID {
			continue
		}
		p, ok := byID[inst.PatientID]
		if !ok {
			p = &types.Patient{ID: inst.PatientID, Name: inst.PatientName}
			byID[inst.PatientID] = p
			order = append(order, inst.PatientID)
		}
		addStudyRef(p, inst)
	}

	patients := make([]types.Patient, 0, len(order))
	for _, id := range order {
		patients = append(patients, *byID[id])
	}
	return patients, nil
}

func (s *store) GetPatient(patientID string) (*types.Patient, error) {
	patients, _ := s.FindPatients(&types.QueryRequest{PatientID: patientID})
	if len(patients) == 0 {
		return nil, fmt.Errorf("patient %s not found", patientID)
	}
	return &patients[0], nil
}

func (s *store) StorePatient(*types.Patient) error { return nil }

func (s *store) FindStudies(query *types.QueryRequest) ([]types.Study, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byUID := make(map[string]*types.Study)
	var order []string
	for _, inst := range s.instances {
		if query != nil && query.StudyInstanceUID != "" && query.StudyInstanceUID != inst.StudyUID {
			continue
		}
		st, ok := byUID[inst.StudyUID]
		if !ok {
			st = &types.Study{InstanceUID: inst.StudyUID}
			byUID[inst.StudyUID] = st
			order = append(order, inst.StudyUID)
		}
		addSeriesRef(st, inst)
	}

	studies := make([]types.Study, 0, len(order))
	for _, uid := range order {
		studies = append(studies, *byUID[uid])
	}
	return studies, nil
}

func (s *store) GetStudy(studyInstanceUID string) (*types.Study, error) {
	studies, _ := s.FindStudies(&types.QueryRequest{StudyInstanceUID: studyInstanceUID})
	if len(studies) == 0 {
		return nil, fmt.Errorf("study %s not found", studyInstanceUID)
	}
	return &studies[0], nil
}

func (s *store) StoreStudy(*types.Study) error { return nil }

func (s *store) FindSeries(query *types.QueryRequest) ([]types.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byUID := make(map[string]*types.Series)
	var order []string
	for _, inst := range s.instances {
		if query != nil && query.SeriesInstanceUID != "" && query.SeriesInstanceUID != inst.SeriesUID {
			continue
		}
		sr, ok := byUID[inst.SeriesUID]
		if !ok {
			sr = &types.Series{InstanceUID: inst.SeriesUID, Modality: inst.Modality}
			byUID[inst.SeriesUID] = sr
			order = append(order, inst.SeriesUID)
		}
		sr.Images = append(sr.Images, types.Image{SOPInstanceUID: inst.SOPInstanceUID})
	}

	series := make([]types.Series, 0, len(order))
	for _, uid := range order {
		series = append(series, *byUID[uid])
	}
	return series, nil
}

func (s *store) GetSeries(seriesInstanceUID string) (*types.Series, error) {
	series, _ := s.FindSeries(&types.QueryRequest{SeriesInstanceUID: seriesInstanceUID})
	if len(series) == 0 {
		return nil, fmt.Errorf("series %s not found", seriesInstanceUID)
	}
	return &series[0], nil
}

func (s *store) StoreSeries(*types.Series) error { return nil }

func (s *store) FindImages(query *types.QueryRequest) ([]types.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var images []types.Image
	for _, inst := range s.instances {
		if query != nil && query.SOPInstanceUID != "" && query.SOPInstanceUID != inst.SOPInstanceUID {
			continue
		}
		images = append(images, types.Image{SOPInstanceUID: inst.SOPInstanceUID})
	}
	return images, nil
}

func (s *store) GetImage(sopInstanceUID string) (*types.Image, error) {
	s.mu.RLock()
	inst, ok := s.instances[sopInstanceUID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("image %s not found", sopInstanceUID)
	}
	return &types.Image{SOPInstanceUID: inst.SOPInstanceUID}, nil
}

func (s *store) StoreImage(*types.Image) error { return nil }

func addStudyRef(p *types.Patient, inst *instance) {
	for i := range p.Studies {
		if p.Studies[i].InstanceUID == inst.StudyUID {
			addSeriesRef(&p.Studies[i], inst)
			return
		}
	}
	st := types.Study{InstanceUID: inst.StudyUID}
	addSeriesRef(&st, inst)
	p.Studies = append(p.Studies, st)
}

func addSeriesRef(st *types.Study, inst *instance) {
	for i := range st.Series {
		if st.Series[i].InstanceUID == inst.SeriesUID {
			st.Series[i].Images = append(st.Series[i].Images, types.Image{SOPInstanceUID: inst.SOPInstanceUID})
			return
		}
	}
	st.Series = append(st.Series, types.Series{
		InstanceUID: inst.SeriesUID,
		Modality:    inst.Modality,
		Images:      []types.Image{{SOPInstanceUID: inst.SOPInstanceUID}},
	})
}

// sampleHandler is the interfaces.ServiceHandler registered directly with
// the commands it answers itself; C-ECHO is delegated to services.EchoService
// via services.Registry.
type sampleHandler struct {
	store *store
}

func (h *sampleHandler) HandleDIMSE(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error {
	switch msg.CommandField {
	case types.CStoreRQ:
		return h.handleCStore(ctx, msg, data, respond)
	case types.CFindRQ:
		return h.handleCFind(ctx, msg, data, respond)
	case types.CMoveRQ:
		return h.handleCMove(ctx, msg, data, respond)
	case types.CGetRQ:
		return h.handleCGet(ctx, msg, data, respond)
	default:
		log.Ctx(ctx).Warn().Str("command_field", fmt.Sprintf("0x%04x", msg.CommandField)).Msg("unsupported DIMSE command")
		return respond(services.CreateErrorResponse(msg, types.StatusFailure), nil)
	}
}

func (h *sampleHandler) handleCStore(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error {
	if !types.IsStorageSOPClass(msg.AffectedSOPClassUID) {
		log.Ctx(ctx).Warn().Str("sop_class", msg.AffectedSOPClassUID).Msg("C-STORE against a non-storage SOP class")
		return respond(services.NewResponseBuilder(msg).CStoreResponse(types.StatusFailure, msg.AffectedSOPInstanceUID), nil)
	}

	ts := msg.TransferSyntaxUID
	if ts == "" {
		ts = types.ImplicitVRLittleEndian
	}
	if types.IsRetired(ts) {
		log.Ctx(ctx).Warn().Str("transfer_syntax", ts).Msg("C-STORE proposed a retired transfer syntax")
		return respond(services.NewResponseBuilder(msg).CStoreResponse(types.StatusFailure, msg.AffectedSOPInstanceUID), nil)
	}

	dataset, err := dicom.ParseDatasetWithTransferSyntax(data, ts)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to parse C-STORE dataset")
		return respond(services.NewResponseBuilder(msg).CStoreResponse(types.StatusFailure, msg.AffectedSOPInstanceUID), nil)
	}

	h.store.put(&instance{
		SOPClassUID:    msg.AffectedSOPClassUID,
		SOPInstanceUID: msg.AffectedSOPInstanceUID,
		StudyUID:       dataset.GetString(dicom.Tag{Group: 0x0020, Element: 0x000D}),
		SeriesUID:      dataset.GetString(dicom.Tag{Group: 0x0020, Element: 0x000E}),
		PatientID:      dataset.GetString(dicom.Tag{Group: 0x0010, Element: 0x0020}),
		PatientName:    dataset.GetString(dicom.Tag{Group: 0x0010, Element: 0x0010}),
		Modality:       dataset.GetString(dicom.Tag{Group: 0x0008, Element: 0x0060}),
		TransferSyntax: ts,
		Dataset:        dataset,
	})

	log.Ctx(ctx).Info().Str("sop_instance", msg.AffectedSOPInstanceUID).Msg("stored instance")
	return respond(services.NewResponseBuilder(msg).CStoreResponse(types.StatusSuccess, msg.AffectedSOPInstanceUID), nil)
}

func (h *sampleHandler) handleCFind(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error {
	if !types.IsQueryRetrieveSOPClass(msg.AffectedSOPClassUID) {
		log.Ctx(ctx).Warn().Str("sop_class", msg.AffectedSOPClassUID).Msg("C-FIND against a non-query/retrieve SOP class")
		return respond(services.NewCFindErrorResponse(msg, types.StatusFailure), nil)
	}

	query, err := dicom.ParseDatasetWithTransferSyntax(data, msg.TransferSyntaxUID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to parse C-FIND identifier")
		return respond(services.NewCFindErrorResponse(msg, types.StatusFailure), nil)
	}

	studyUID := query.GetString(dicom.Tag{Group: 0x0020, Element: 0x000D})
	seriesUID := query.GetString(dicom.Tag{Group: 0x0020, Element: 0x000E})
	sopUID := query.GetString(dicom.Tag{Group: 0x0008, Element: 0x0018})

	matches := h.store.find(studyUID, seriesUID, sopUID)
	log.Ctx(ctx).Info().Int("count", len(matches)).Msg("C-FIND matches")

	for _, match := range matches {
		pending := services.NewCFindPendingResponse(msg)
		if err := respond(pending, match.Dataset.EncodeDataset()); err != nil {
			return err
		}
	}
	return respond(services.NewCFindSuccessResponse(msg), nil)
}

func (h *sampleHandler) handleCMove(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error {
	if !types.IsQueryRetrieveSOPClass(msg.AffectedSOPClassUID) {
		log.Ctx(ctx).Warn().Str("sop_class", msg.AffectedSOPClassUID).Msg("C-MOVE against a non-query/retrieve SOP class")
		return respond(services.NewCMoveErrorResponse(msg, types.StatusFailure), nil)
	}

	query, err := dicom.ParseDatasetWithTransferSyntax(data, msg.TransferSyntaxUID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to parse C-MOVE identifier")
		return respond(services.NewCMoveErrorResponse(msg, types.StatusFailure), nil)
	}

	studyUID := query.GetString(dicom.Tag{Group: 0x0020, Element: 0x000D})
	seriesUID := query.GetString(dicom.Tag{Group: 0x0020, Element: 0x000E})
	sopUID := query.GetString(dicom.Tag{Group: 0x0008, Element: 0x0018})

	matches := h.store.find(studyUID, seriesUID, sopUID)
	total := len(matches)
	log.Ctx(ctx).Info().Int("count", total).Str("destination", msg.MoveDestination).Msg("C-MOVE matches")

	var completed, failed, warning uint16
	for i, match := range matches {
		remaining := uint16(total - i)
		if err := respond(services.NewCMovePendingResponse(msg, completed, failed, warning, remaining), nil); err != nil {
			return err
		}

		if err := h.forwardCStore(ctx, msg.MoveDestination, match); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("sop_instance", match.SOPInstanceUID).Msg("C-STORE sub-operation failed")
			failed++
			continue
		}
		completed++
	}

	return respond(services.NewCMoveSuccessResponse(msg, completed, failed, warning), nil)
}

// handleCGet answers a C-GET-RQ by sending each matching instance back as
// a C-STORE-RQ over the same association's C-GET presentation context,
// ahead of the per-instance pending response.
func (h *sampleHandler) handleCGet(ctx context.Context, msg *types.Message, data []byte, respond interfaces.ResponseFunc) error {
	if !types.IsQueryRetrieveSOPClass(msg.AffectedSOPClassUID) {
		log.Ctx(ctx).Warn().Str("sop_class", msg.AffectedSOPClassUID).Msg("C-GET against a non-query/retrieve SOP class")
		return respond(services.NewResponseBuilder(msg).CGetResponse(types.StatusFailure, nil, nil, nil, nil), nil)
	}

	query, err := dicom.ParseDatasetWithTransferSyntax(data, msg.TransferSyntaxUID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to parse C-GET identifier")
		return respond(services.NewResponseBuilder(msg).CGetResponse(types.StatusFailure, nil, nil, nil, nil), nil)
	}

	studyUID := query.GetString(dicom.Tag{Group: 0x0020, Element: 0x000D})
	seriesUID := query.GetString(dicom.Tag{Group: 0x0020, Element: 0x000E})
	sopUID := query.GetString(dicom.Tag{Group: 0x0008, Element: 0x0018})

	matches := h.store.find(studyUID, seriesUID, sopUID)
	total := len(matches)
	log.Ctx(ctx).Info().Int("count", total).Msg("C-GET matches")

	var completed, failed, warning uint16
	for i, match := range matches {
		remaining := uint16(total - i)

		storeReq := &types.Message{
			CommandField:           types.CStoreRQ,
			MessageID:              msg.MessageID,
			AffectedSOPClassUID:    match.SOPClassUID,
			AffectedSOPInstanceUID: match.SOPInstanceUID,
			Priority:               types.PriorityMedium,
			CommandDataSetType:     0x0000,
		}
		if err := respond(storeReq, match.Dataset.EncodeDataset()); err != nil {
			return err
		}

		if err := respond(services.NewResponseBuilder(msg).CGetResponse(types.StatusPending, &completed, &failed, &warning, &remaining), nil); err != nil {
			return err
		}
		completed++
	}

	return respond(services.NewResponseBuilder(msg).CGetResponse(types.StatusSuccess, &completed, &failed, &warning, nil), nil)
}

// forwardCStore opens a fresh association to destination and stores match
// there, as C-MOVE sub-operations are always performed on a new
// association rather than the one the C-MOVE-RQ arrived on.
func (h *sampleHandler) forwardCStore(ctx context.Context, destination string, match *instance) error {
	tsInfo := types.GetTransferSyntaxInfo(match.TransferSyntax)
	log.Ctx(ctx).Debug().
		Str("transfer_syntax", tsInfo.Name).
		Bool("compressed", types.IsCompressed(match.TransferSyntax)).
		Bool("lossless", types.IsLossless(match.TransferSyntax)).
		Msg("forwarding C-STORE sub-operation")

	cfg := client.Config{
		CallingAETitle:            "SAMPLE_SCP",
		CalledAETitle:             destination,
		MaxPDULength:              16384,
		PreferredTransferSyntaxes: transferSyntaxPreference(match.TransferSyntax),
		AcceptedAbstractSyntaxes:  []string{match.SOPClassUID},
	}

	assoc, err := client.Connect(destination, cfg)
	if err != nil {
		return fmt.Errorf("connect to move destination: %w", err)
	}
	defer assoc.Close()

	resp, err := assoc.SendCStore(&client.CStoreRequest{
		SOPClassUID:    match.SOPClassUID,
		SOPInstanceUID: match.SOPInstanceUID,
		MessageID:      1,
		Dataset:        match.Dataset,
	})
	if err != nil {
		return fmt.Errorf("C-STORE sub-operation: %w", err)
	}
	if resp.Status != types.StatusSuccess {
		return dicomerrors.NewDIMSEError("C-STORE", resp.Status, "move sub-operation failed at destination")
	}
	return nil
}

func transferSyntaxPreference(native string) []string {
	preferred := []string{native}
	for _, ts := range []string{types.ExplicitVRLittleEndian, types.ImplicitVRLittleEndian, types.JPEG2000Lossless, types.JPEG2000} {
		if ts != native {
			preferred = append(preferred, ts)
		}
	}
	return preferred
}

// loadDicomFile reads a Part 10 DICOM file and stores it as an instance.
func loadDicomFile(s *store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read DICOM file: %w", err)
	}

	body, err := dicom.StripPart10Header(raw)
	if err != nil {
		return fmt.Errorf("strip part 10 header: %w", err)
	}

	ts := transferSyntaxFromMeta(raw)
	dataset, err := dicom.ParseDatasetWithTransferSyntax(body, ts)
	if err != nil {
		return fmt.Errorf("parse dataset: %w", err)
	}

	inst := &instance{
		SOPClassUID:    dataset.GetString(dicom.Tag{Group: 0x0008, Element: 0x0016}),
		SOPInstanceUID: dataset.GetString(dicom.Tag{Group: 0x0008, Element: 0x0018}),
		StudyUID:       dataset.GetString(dicom.Tag{Group: 0x0020, Element: 0x000D}),
		SeriesUID:      dataset.GetString(dicom.Tag{Group: 0x0020, Element: 0x000E}),
		PatientID:      dataset.GetString(dicom.Tag{Group: 0x0010, Element: 0x0020}),
		PatientName:    dataset.GetString(dicom.Tag{Group: 0x0010, Element: 0x0010}),
		Modality:       dataset.GetString(dicom.Tag{Group: 0x0008, Element: 0x0060}),
		TransferSyntax: ts,
		Dataset:        dataset,
	}
	s.put(inst)

	log.Info().Str("sop_instance", inst.SOPInstanceUID).Str("transfer_syntax", ts).Msg("loaded DICOM instance from file")
	return nil
}

// transferSyntaxFromMeta does a minimal scan of a Part 10 file's meta
// information group for (0002,0010) Transfer Syntax UID, defaulting to
// Explicit VR Little Endian if it can't be found.
func transferSyntaxFromMeta(raw []byte) string {
	tag := []byte{0x02, 0x00, 0x10, 0x00}
	for i := 132; i+8 < len(raw) && i < 1024; i++ {
		if raw[i] == tag[0] && raw[i+1] == tag[1] && raw[i+2] == tag[2] && raw[i+3] == tag[3] {
			if string(raw[i+4:i+6]) == "UI" {
				length := binary.LittleEndian.Uint16(raw[i+6 : i+8])
				if i+8+int(length) <= len(raw) {
					return strings.TrimRight(string(raw[i+8:i+8+int(length)]), "\x00 ")
				}
			}
		}
	}
	return types.ExplicitVRLittleEndian
}

// generateSyntheticInstances seeds the store with a handful of CT instances
// so the server has something to answer C-FIND/C-MOVE/C-GET against
// without a sample file on disk.
func generateSyntheticInstances(s *store) {
	studyUID := "1.2.840.999.999.1.1.1.1"
	seriesUID := "1.2.840.999.999.1.1.1.1.1"

	for i := 1; i <= 3; i++ {
		sopInstanceUID := fmt.Sprintf("1.2.840.999.999.1.1.1.1.1.%d", i)

		dataset := dicom.NewDataset()
		dataset.AddElement(dicom.Tag{Group: 0x0008, Element: 0x0016}, dicom.VR_UI, types.CTImageStorage)
		dataset.AddElement(dicom.Tag{Group: 0x0008, Element: 0x0018}, dicom.VR_UI, sopInstanceUID)
		dataset.AddElement(dicom.Tag{Group: 0x0008, Element: 0x0020}, dicom.VR_DA, "20250109")
		dataset.AddElement(dicom.Tag{Group: 0x0008, Element: 0x0060}, dicom.VR_CS, "CT")
		dataset.AddElement(dicom.Tag{Group: 0x0010, Element: 0x0010}, dicom.VR_PN, "TEST^PATIENT")
		dataset.AddElement(dicom.Tag{Group: 0x0010, Element: 0x0020}, dicom.VR_LO, "12345")
		dataset.AddElement(dicom.Tag{Group: 0x0020, Element: 0x000D}, dicom.VR_UI, studyUID)
		dataset.AddElement(dicom.Tag{Group: 0x0020, Element: 0x000E}, dicom.VR_UI, seriesUID)
		dataset.AddElement(dicom.Tag{Group: 0x0020, Element: 0x0013}, dicom.VR_IS, fmt.Sprintf("%d", i))

		s.put(&instance{
			SOPClassUID:    types.CTImageStorage,
			SOPInstanceUID: sopInstanceUID,
			StudyUID:       studyUID,
			SeriesUID:      seriesUID,
			PatientID:      "12345",
			PatientName:    "TEST^PATIENT",
			Modality:       "CT",
			TransferSyntax: types.ImplicitVRLittleEndian,
			Dataset:        dataset,
		})
	}

	log.Info().Int("count", 3).Str("study_uid", studyUID).Msg("generated synthetic DICOM instances")
}

// serveMetrics exposes registerer's collectors on /metrics and a patient
// inventory (via interfaces.DataStore) on /inventory until the process
// exits. Errors are logged rather than fatal, since losing either debug
// endpoint shouldn't take the DICOM server down with it.
func serveMetrics(addr string, registerer *prometheus.Registry, ds interfaces.DataStore, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registerer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/inventory", func(w http.ResponseWriter, r *http.Request) {
		var query *types.QueryRequest
		if patientID := r.URL.Query().Get("patient_id"); patientID != "" {
			query = &types.QueryRequest{PatientID: patientID}
		}

		patients, err := ds.FindPatients(query)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(patients); err != nil {
			logger.Error().Err(err).Msg("failed to encode inventory response")
		}
	})

	logger.Info().Str("address", addr).Msg("metrics endpoint listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics endpoint terminated")
	}
}

func main() {
	port := flag.Int("port", 4242, "TCP port to listen on")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve Prometheus metrics on")
	aeTitle := flag.String("ae", "SAMPLE_SCP", "server AE title")
	dicomFile := flag.String("dicom", "", "path to a sample Part 10 DICOM file to preload")
	synthetic := flag.Bool("synthetic", false, "seed the store with synthetic CT instances instead of loading from file")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := newStore()
	switch {
	case *synthetic:
		generateSyntheticInstances(s)
	case *dicomFile != "":
		if err := loadDicomFile(s, *dicomFile); err != nil {
			logger.Error().Err(err).Str("file", *dicomFile).Msg("failed to load DICOM file")
			os.Exit(1)
		}
	default:
		logger.Error().Msg("must specify either --dicom <file> or --synthetic")
		os.Exit(1)
	}

	registry := services.NewRegistry()
	registry.RegisterHandler(types.CEchoRQ, services.NewEchoService())

	handler := &sampleHandler{store: s}
	for _, cmd := range []uint16{types.CStoreRQ, types.CFindRQ, types.CMoveRQ, types.CGetRQ} {
		registry.RegisterHandler(cmd, handler)
	}

	registerer := prometheus.NewRegistry()
	assocMetrics := metrics.NewMetrics(registerer)
	go serveMetrics(*metricsAddr, registerer, s, logger)

	address := fmt.Sprintf(":%d", *port)
	acceptedAbstractSyntaxes := []string{
		types.VerificationSOPClass,
		types.CTImageStorage,
		types.StudyRootQueryRetrieveInformationModelFind,
		types.StudyRootQueryRetrieveInformationModelMove,
		types.StudyRootQueryRetrieveInformationModelGet,
	}

	err := server.ListenAndServe(ctx, address, *aeTitle, registry,
		server.WithLogger(logger),
		server.WithAcceptedAbstractSyntaxes(acceptedAbstractSyntaxes),
		server.WithAcceptedTransferSyntaxes(types.GetCommonTransferSyntaxes()),
		server.WithMetrics(assocMetrics),
	)
	switch {
	case err == nil:
		logger.Info().Msg("sample server shutdown complete")
	case errors.Is(err, context.Canceled):
		logger.Info().Err(err).Msg("sample server stopped")
	default:
		logger.Error().Err(err).Msg("sample server terminated unexpectedly")
		os.Exit(1)
	}
}
