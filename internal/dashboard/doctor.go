// Package dashboard contains the role controllers. Each one is a thin
// sequencer over the API client: every mutating action is followed by a
// full refetch of the consultation, so derived clinical fields are never
// mutated locally.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ambienthealth/companion/internal/api"
	"github.com/ambienthealth/companion/internal/model"
)

var (
	// ErrRecordingActive fires when a second recording is started while
	// one is already running for the same consultation.
	ErrRecordingActive = errors.New("a recording is already in progress for this consultation")
	// ErrNoRecording fires when finishing a recording that was never begun.
	ErrNoRecording = errors.New("no recording in progress for this consultation")
	// ErrDeleteNotConfirmed fires when an image delete happens without the
	// explicit confirmation step.
	ErrDeleteNotConfirmed = errors.New("image deletion was not confirmed")
	// ErrInvalidImageType fires for an image type outside the known set.
	ErrInvalidImageType = errors.New("invalid medical image type")
)

// Doctor drives the doctor workflow: start consultation, capture audio,
// teach-back, report generation, completion, and medical images.
type Doctor struct {
	client   *api.Client
	language string
	log      zerolog.Logger

	mu        sync.Mutex
	recording map[int64]bool
}

func NewDoctor(client *api.Client, language string, log zerolog.Logger) *Doctor {
	return &Doctor{
		client:    client,
		language:  language,
		log:       log,
		recording: make(map[int64]bool),
	}
}

// Patients lists the patients this doctor can open consultations for.
func (d *Doctor) Patients(ctx context.Context) ([]model.User, error) {
	return d.client.ListPatients(ctx)
}

// Consultations lists the doctor's consultations in the given language.
// Shaped to feed viewmodel.SourceFunc.
func (d *Doctor) Consultations(ctx context.Context, language string) ([]model.Consultation, error) {
	return d.client.ListConsultations(ctx, 0, language)
}

// StartConsultation opens a consultation and returns the fresh aggregate.
func (d *Doctor) StartConsultation(ctx context.Context, patientID int64) (*model.Consultation, error) {
	id, err := d.client.CreateConsultation(ctx, patientID)
	if err != nil {
		return nil, err
	}
	d.log.Info().Int64("consultation_id", id).Int64("patient_id", patientID).Msg("consultation started")
	return d.refetch(ctx, id)
}

// BeginRecording claims the single recording slot for a consultation. A
// second Begin while one is active is rejected; the UI disables the control
// off this error.
func (d *Doctor) BeginRecording(consultationID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.recording[consultationID] {
		return ErrRecordingActive
	}
	d.recording[consultationID] = true
	return nil
}

// CancelRecording releases the recording slot without uploading.
func (d *Doctor) CancelRecording(consultationID int64) {
	d.mu.Lock()
	delete(d.recording, consultationID)
	d.mu.Unlock()
}

// FinishRecording uploads the captured audio and releases the slot. The
// slot is released whether or not the upload succeeds, so a failed upload
// can be retried.
func (d *Doctor) FinishRecording(ctx context.Context, consultationID int64, filename, mimeType string, r io.Reader) (*model.Consultation, error) {
	d.mu.Lock()
	active := d.recording[consultationID]
	delete(d.recording, consultationID)
	d.mu.Unlock()
	if !active {
		return nil, ErrNoRecording
	}
	return d.UploadAudio(ctx, consultationID, filename, mimeType, r)
}

// UploadAudio validates and submits consultation audio, then refetches.
// Validation failures never reach the network.
func (d *Doctor) UploadAudio(ctx context.Context, consultationID int64, filename, mimeType string, r io.Reader) (*model.Consultation, error) {
	if err := api.ValidateAudio(filename, mimeType); err != nil {
		return nil, err
	}
	if err := d.client.UploadAudio(ctx, consultationID, filename, r); err != nil {
		return nil, err
	}
	return d.refetch(ctx, consultationID)
}

// MockTranscribe runs the demo transcription path, then refetches.
func (d *Doctor) MockTranscribe(ctx context.Context, consultationID int64) (*model.Consultation, error) {
	if err := d.client.MockTranscribe(ctx, consultationID); err != nil {
		return nil, err
	}
	return d.refetch(ctx, consultationID)
}

// SubmitTeachBack uploads one recording answering all teach-back questions,
// then refetches so the new answers and scores are authoritative.
func (d *Doctor) SubmitTeachBack(ctx context.Context, consultationID int64, filename, mimeType string, r io.Reader) (*model.Consultation, error) {
	if err := api.ValidateAudio(filename, mimeType); err != nil {
		return nil, err
	}
	if err := d.client.TeachBackAnswerAllAudio(ctx, consultationID, filename, r); err != nil {
		return nil, err
	}
	return d.refetch(ctx, consultationID)
}

// CanGenerateReport reports whether the "generate report" control should be
// offered: a clinical report exists and no patient report does yet.
func (d *Doctor) CanGenerateReport(c *model.Consultation) bool {
	return c != nil && !c.Completed() && c.ClinicalReport != nil && c.PatientReport == nil
}

// GenerateReport derives the patient report, then refetches.
func (d *Doctor) GenerateReport(ctx context.Context, consultationID int64) (*model.Consultation, error) {
	if err := d.client.GeneratePatientReport(ctx, consultationID); err != nil {
		return nil, err
	}
	return d.refetch(ctx, consultationID)
}

// Complete marks the consultation completed, then refetches. After this the
// consultation is read-only for the doctor.
func (d *Doctor) Complete(ctx context.Context, consultationID int64) (*model.Consultation, error) {
	if err := d.client.CompleteConsultation(ctx, consultationID); err != nil {
		return nil, err
	}
	d.log.Info().Int64("consultation_id", consultationID).Msg("consultation completed")
	return d.refetch(ctx, consultationID)
}

// AddImage validates and uploads a medical image, then refetches.
func (d *Doctor) AddImage(ctx context.Context, consultationID int64, filename, mimeType string, r io.Reader, imageType, description string) (*model.Consultation, error) {
	if err := api.ValidateImage(filename, mimeType); err != nil {
		return nil, err
	}
	if !model.ImageTypes[imageType] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidImageType, imageType)
	}
	if _, err := d.client.UploadImage(ctx, consultationID, filename, r, imageType, description); err != nil {
		return nil, err
	}
	return d.refetch(ctx, consultationID)
}

// DeleteImage removes a medical image after the confirm step returns true.
// Without confirmation, no API call fires.
func (d *Doctor) DeleteImage(ctx context.Context, consultationID, imageID int64, confirm func() bool) (*model.Consultation, error) {
	if confirm == nil || !confirm() {
		return nil, ErrDeleteNotConfirmed
	}
	if err := d.client.DeleteImage(ctx, consultationID, imageID); err != nil {
		return nil, err
	}
	return d.refetch(ctx, consultationID)
}

// UploadSignature validates and stores this doctor's e-signature image.
// Validation failures never reach the network.
func (d *Doctor) UploadSignature(ctx context.Context, filename, mimeType string, r io.Reader) error {
	if err := api.ValidateImage(filename, mimeType); err != nil {
		return err
	}
	return d.client.UploadSignature(ctx, filename, r)
}

func (d *Doctor) refetch(ctx context.Context, consultationID int64) (*model.Consultation, error) {
	return d.client.GetConsultation(ctx, consultationID, d.language)
}
