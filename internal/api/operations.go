package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ambienthealth/companion/internal/model"
)

// Default filenames used when an upload has no original name.
const (
	DefaultAudioName     = "recording.webm"
	DefaultTeachBackName = "teach-back-recording.webm"
	DefaultImageName     = "image.jpg"
	DefaultSignatureName = "signature.png"
)

// LoginResponse is the credential exchange result.
type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	User        model.User `json:"user"`
}

// CreatePatientRequest provisions a patient account (admin only).
type CreatePatientRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	FullName          string `json:"full_name"`
	Phone             string `json:"phone,omitempty"`
	Address           string `json:"address,omitempty"`
	PreferredLanguage string `json:"preferred_language,omitempty"`
}

// Login exchanges credentials for a token and user. It does not install the
// token; the session layer owns that.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	in := map[string]string{"email": email, "password": password}
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the identity bound to the current token.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var out model.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPatients returns all patient accounts visible to a doctor.
func (c *Client) ListPatients(ctx context.Context) ([]model.User, error) {
	var out []model.User
	if err := c.do(ctx, http.MethodGet, "/doctor/patients", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminListPatients returns all patient accounts (admin view).
func (c *Client) AdminListPatients(ctx context.Context) ([]model.User, error) {
	var out []model.User
	if err := c.do(ctx, http.MethodGet, "/admin/patients", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePatient provisions a patient account.
func (c *Client) CreatePatient(ctx context.Context, req CreatePatientRequest) (*model.User, error) {
	var out model.User
	if err := c.do(ctx, http.MethodPost, "/admin/patients", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateConsultation opens a new consultation for a patient and returns its id.
func (c *Client) CreateConsultation(ctx context.Context, patientID int64) (int64, error) {
	in := map[string]int64{"patient_id": patientID}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/consultations", nil, in, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// GetConsultation fetches one consultation's full aggregate in the
// requested display language.
func (c *Client) GetConsultation(ctx context.Context, id int64, language string) (*model.Consultation, error) {
	q := url.Values{}
	if language != "" {
		q.Set("language", language)
	}
	var out model.Consultation
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/consultations/%d", id), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListConsultations lists consultations visible to the caller, optionally
// scoped to one patient, in the requested display language.
func (c *Client) ListConsultations(ctx context.Context, patientID int64, language string) ([]model.Consultation, error) {
	q := url.Values{}
	if patientID > 0 {
		q.Set("patient_id", strconv.FormatInt(patientID, 10))
	}
	if language != "" {
		q.Set("language", language)
	}
	var out []model.Consultation
	if err := c.do(ctx, http.MethodGet, "/consultations", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PatientVisits lists the authenticated patient's own visit history.
func (c *Client) PatientVisits(ctx context.Context, language string) ([]model.Consultation, error) {
	q := url.Values{}
	if language != "" {
		q.Set("language", language)
	}
	var out []model.Consultation
	if err := c.do(ctx, http.MethodGet, "/patient/visits", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadAudio submits consultation audio for transcription and extraction.
func (c *Client) UploadAudio(ctx context.Context, consultationID int64, filename string, r io.Reader) error {
	if filename == "" {
		filename = DefaultAudioName
	}
	return c.upload(ctx, fmt.Sprintf("/consultations/%d/audio", consultationID), filename, r, nil, nil)
}

// MockTranscribe triggers the demo transcription path, which seeds a fixed
// transcript and runs extraction over it.
func (c *Client) MockTranscribe(ctx context.Context, consultationID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/consultations/%d/mock-transcribe", consultationID), nil, nil, nil)
}

// TeachBackAnswerAllAudio submits a single recording covering all teach-back
// questions; the service splits out per-question answers and scores them.
func (c *Client) TeachBackAnswerAllAudio(ctx context.Context, consultationID int64, filename string, r io.Reader) error {
	if filename == "" {
		filename = DefaultTeachBackName
	}
	return c.upload(ctx, fmt.Sprintf("/consultations/%d/teach-back/answer-all-audio", consultationID), filename, r, nil, nil)
}

// GeneratePatientReport asks the service to derive the patient-facing
// report from the clinical report.
func (c *Client) GeneratePatientReport(ctx context.Context, consultationID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/consultations/%d/patient-report", consultationID), nil, nil, nil)
}

// CompleteConsultation marks a consultation completed. This is one-way.
func (c *Client) CompleteConsultation(ctx context.Context, consultationID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/consultations/%d/complete", consultationID), nil, nil, nil)
}

// UploadImage attaches a medical image to a consultation.
func (c *Client) UploadImage(ctx context.Context, consultationID int64, filename string, r io.Reader, imageType, description string) (*model.MedicalImage, error) {
	if filename == "" {
		filename = DefaultImageName
	}
	fields := map[string]string{"image_type": imageType}
	if description != "" {
		fields["description"] = description
	}
	var out model.MedicalImage
	if err := c.upload(ctx, fmt.Sprintf("/consultations/%d/images", consultationID), filename, r, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListImages returns the medical images attached to a consultation.
func (c *Client) ListImages(ctx context.Context, consultationID int64) ([]model.MedicalImage, error) {
	var out []model.MedicalImage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/consultations/%d/images", consultationID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteImage removes one medical image.
func (c *Client) DeleteImage(ctx context.Context, consultationID, imageID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/consultations/%d/images/%d", consultationID, imageID), nil, nil, nil)
}

// UploadSignature stores the authenticated doctor's e-signature image.
func (c *Client) UploadSignature(ctx context.Context, filename string, r io.Reader) error {
	if filename == "" {
		filename = DefaultSignatureName
	}
	return c.upload(ctx, "/doctor/signature", filename, r, nil, nil)
}

// FetchStatic retrieves a stored file (image or signature) by filename.
func (c *Client) FetchStatic(ctx context.Context, filename string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/static/"+url.PathEscape(filename), nil), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET /static/%s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.errorFrom(resp)
	}
	return io.ReadAll(resp.Body)
}
