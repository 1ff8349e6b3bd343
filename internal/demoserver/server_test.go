package demoserver

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ambienthealth/companion/internal/api"
	"github.com/ambienthealth/companion/internal/model"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New("test-secret", zerolog.Nop())
	if err := srv.Seed(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func login(t *testing.T, ts *httptest.Server, email, password string) *api.Client {
	t.Helper()
	client, err := api.New(ts.URL)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	resp, err := client.Login(context.Background(), email, password)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	client.SetToken(resp.AccessToken)
	return client
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	_, ts := newTestServer(t)
	client, err := api.New(ts.URL)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	_, err = client.Login(context.Background(), "doctor@ambient.ai", "wrong")
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.Status)
	}
	if apiErr.Message != "Invalid email or password" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestMeReturnsTokenOwner(t *testing.T) {
	_, ts := newTestServer(t)
	doctor := login(t, ts, "doctor@ambient.ai", "doctor123")

	me, err := doctor.Me(context.Background())
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.Role != model.RoleDoctor || me.FullName != "Dr. Smith" {
		t.Errorf("unexpected identity %+v", me)
	}
}

func TestRoleGuards(t *testing.T) {
	_, ts := newTestServer(t)
	patient := login(t, ts, "patient1@ambient.ai", "patient123")

	_, err := patient.ListPatients(context.Background())
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Errorf("patient listing doctor patients: got %v, want 403", err)
	}
	_, err = patient.AdminListPatients(context.Background())
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Errorf("patient listing admin patients: got %v, want 403", err)
	}
}

// findPatient returns the seeded demo patient.
func findPatient(t *testing.T, doctor *api.Client) model.User {
	t.Helper()
	patients, err := doctor.ListPatients(context.Background())
	if err != nil {
		t.Fatalf("list patients: %v", err)
	}
	for _, p := range patients {
		if p.Email == "patient1@ambient.ai" {
			return p
		}
	}
	t.Fatal("seeded patient not found")
	return model.User{}
}

func TestConsultationWorkflow(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()
	doctor := login(t, ts, "doctor@ambient.ai", "doctor123")
	patient := findPatient(t, doctor)

	id, err := doctor.CreateConsultation(ctx, patient.ID)
	if err != nil {
		t.Fatalf("create consultation: %v", err)
	}

	cons, err := doctor.GetConsultation(ctx, id, "")
	if err != nil {
		t.Fatalf("get consultation: %v", err)
	}
	if cons.Status != model.StatusActive {
		t.Errorf("status = %q, want active", cons.Status)
	}
	if cons.PatientName != "Kamalesh R" || cons.DoctorName != "Dr. Smith" {
		t.Errorf("participant names not assembled: %+v", cons)
	}
	if cons.PatientUID == nil || len(*cons.PatientUID) != 5 {
		t.Errorf("patient uid not assembled: %v", cons.PatientUID)
	}

	// Transcription seeds the transcript, clinical report and questions.
	if err := doctor.MockTranscribe(ctx, id); err != nil {
		t.Fatalf("mock transcribe: %v", err)
	}
	cons, err = doctor.GetConsultation(ctx, id, "")
	if err != nil {
		t.Fatalf("get after transcribe: %v", err)
	}
	if cons.Transcript == nil || cons.Transcript.Content == "" {
		t.Fatal("transcript missing after transcription")
	}
	if cons.ClinicalReport == nil || !strings.Contains(cons.ClinicalReport.Symptoms, "fever") {
		t.Errorf("clinical report not extracted: %+v", cons.ClinicalReport)
	}
	if len(cons.TeachBackItems) != 3 {
		t.Fatalf("teach-back items = %d, want 3", len(cons.TeachBackItems))
	}
	if _, ok := cons.OverallUnderstanding(); ok {
		t.Error("understanding score present before any answers")
	}

	// Teach-back answers are scored; the aggregate appears.
	recording := bytes.Repeat([]byte("audio"), 200)
	if err := doctor.TeachBackAnswerAllAudio(ctx, id, "", bytes.NewReader(recording)); err != nil {
		t.Fatalf("teach-back audio: %v", err)
	}
	cons, err = doctor.GetConsultation(ctx, id, "")
	if err != nil {
		t.Fatalf("get after teach-back: %v", err)
	}
	score, ok := cons.OverallUnderstanding()
	if !ok || score != 75.0 {
		t.Errorf("understanding score = %v/%v, want 75.0/true", score, ok)
	}

	// The patient report appears exactly once.
	if err := doctor.GeneratePatientReport(ctx, id); err != nil {
		t.Fatalf("generate report: %v", err)
	}
	cons, err = doctor.GetConsultation(ctx, id, "")
	if err != nil {
		t.Fatalf("get after report: %v", err)
	}
	if cons.PatientReport == nil {
		t.Fatal("patient report missing after generation")
	}
	if cons.PatientReport.Language != "en" {
		t.Errorf("report language = %q, want en", cons.PatientReport.Language)
	}
	err = doctor.GeneratePatientReport(ctx, id)
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("second report generation: got %v, want 400", err)
	}

	// Completing freezes the consultation.
	if err := doctor.CompleteConsultation(ctx, id); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := doctor.MockTranscribe(ctx, id); !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("mutation after completion: got %v, want 400", err)
	}
	if err := doctor.CompleteConsultation(ctx, id); !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("double completion: got %v, want 400", err)
	}

	// The patient sees their visit, with the completed status.
	patientClient := login(t, ts, "patient1@ambient.ai", "patient123")
	visits, err := patientClient.PatientVisits(ctx, "en")
	if err != nil {
		t.Fatalf("patient visits: %v", err)
	}
	if len(visits) != 1 || visits[0].Status != model.StatusCompleted {
		t.Errorf("visits = %+v, want one completed visit", visits)
	}
}

func TestReportLanguageRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()
	doctor := login(t, ts, "doctor@ambient.ai", "doctor123")
	patient := findPatient(t, doctor)

	id, err := doctor.CreateConsultation(ctx, patient.ID)
	if err != nil {
		t.Fatalf("create consultation: %v", err)
	}
	if err := doctor.MockTranscribe(ctx, id); err != nil {
		t.Fatalf("mock transcribe: %v", err)
	}
	if err := doctor.GeneratePatientReport(ctx, id); err != nil {
		t.Fatalf("generate report: %v", err)
	}

	english, err := doctor.GetConsultation(ctx, id, "en")
	if err != nil {
		t.Fatalf("get en: %v", err)
	}
	tamil, err := doctor.GetConsultation(ctx, id, "ta")
	if err != nil {
		t.Fatalf("get ta: %v", err)
	}
	if tamil.PatientReport == nil || tamil.PatientReport.Language != "ta" {
		t.Fatalf("tamil fetch returned %+v", tamil.PatientReport)
	}
	if !strings.Contains(tamil.PatientReport.Content, "உங்கள் வருகை சுருக்கம்") {
		t.Errorf("tamil report not localized:\n%s", tamil.PatientReport.Content)
	}
	if tamil.PatientReport.Content == english.PatientReport.Content {
		t.Error("content did not vary by language")
	}
	// Clinical extraction stays in its source language.
	if !strings.Contains(tamil.PatientReport.DiagnosisSummary, "viral flu") {
		t.Errorf("diagnosis summary = %q", tamil.PatientReport.DiagnosisSummary)
	}

	// Switching back restores the original content exactly.
	again, err := doctor.GetConsultation(ctx, id, "en")
	if err != nil {
		t.Fatalf("get en again: %v", err)
	}
	if again.PatientReport.Content != english.PatientReport.Content {
		t.Error("round trip through tamil did not restore the english content")
	}
	if again.PatientReport.WarningSigns != english.PatientReport.WarningSigns {
		t.Error("round trip did not restore the warning signs")
	}
}

func TestTeachBackGuards(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()
	doctor := login(t, ts, "doctor@ambient.ai", "doctor123")
	patient := findPatient(t, doctor)

	id, err := doctor.CreateConsultation(ctx, patient.ID)
	if err != nil {
		t.Fatalf("create consultation: %v", err)
	}

	// No clinical report yet.
	recording := bytes.Repeat([]byte("audio"), 200)
	err = doctor.TeachBackAnswerAllAudio(ctx, id, "", bytes.NewReader(recording))
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("teach-back before transcription: got %v, want 400", err)
	}
	if !strings.Contains(apiErr.Message, "transcribe") {
		t.Errorf("message = %q", apiErr.Message)
	}

	if err := doctor.MockTranscribe(ctx, id); err != nil {
		t.Fatalf("mock transcribe: %v", err)
	}

	// A near-empty recording is rejected.
	err = doctor.TeachBackAnswerAllAudio(ctx, id, "", bytes.NewReader([]byte("tiny")))
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("short recording: got %v, want 400", err)
	}
	if !strings.Contains(apiErr.Message, "too short") {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestPatientCannotReadOthersConsultation(t *testing.T) {
	srv, ts := newTestServer(t)
	ctx := context.Background()
	doctor := login(t, ts, "doctor@ambient.ai", "doctor123")
	patient := findPatient(t, doctor)

	id, err := doctor.CreateConsultation(ctx, patient.ID)
	if err != nil {
		t.Fatalf("create consultation: %v", err)
	}

	if _, err := srv.store.CreateUser(model.User{
		Email:    "patient2@ambient.ai",
		FullName: "Other Patient",
		Role:     model.RolePatient,
	}, mustHash(t, "patient123")); err != nil {
		t.Fatalf("create user: %v", err)
	}

	otherClient := login(t, ts, "patient2@ambient.ai", "patient123")
	_, err = otherClient.GetConsultation(ctx, id, "")
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Errorf("foreign consultation read: got %v, want 403", err)
	}
	if apiErr != nil && apiErr.Message != "Access denied" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestImageLifecycle(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()
	doctor := login(t, ts, "doctor@ambient.ai", "doctor123")
	patient := findPatient(t, doctor)

	id, err := doctor.CreateConsultation(ctx, patient.ID)
	if err != nil {
		t.Fatalf("create consultation: %v", err)
	}

	img, err := doctor.UploadImage(ctx, id, "wrist.png", strings.NewReader("not-a-real-png"), "x-ray", "left wrist")
	if err != nil {
		t.Fatalf("upload image: %v", err)
	}
	if img.ImageType != "x-ray" || img.OriginalFilename == nil || *img.OriginalFilename != "wrist.png" {
		t.Errorf("stored image = %+v", img)
	}

	_, err = doctor.UploadImage(ctx, id, "x.png", strings.NewReader("data"), "selfie", "")
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("invalid image type: got %v, want 400", err)
	}

	images, err := doctor.ListImages(ctx, id)
	if err != nil {
		t.Fatalf("list images: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("images = %d, want 1", len(images))
	}

	// The stored blob is reachable by its generated name.
	data, err := doctor.FetchStatic(ctx, images[0].Filename)
	if err != nil {
		t.Fatalf("fetch static: %v", err)
	}
	if string(data) != "not-a-real-png" {
		t.Errorf("static payload = %q", data)
	}

	if err := doctor.DeleteImage(ctx, id, images[0].ID); err != nil {
		t.Fatalf("delete image: %v", err)
	}
	images, err = doctor.ListImages(ctx, id)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(images) != 0 {
		t.Errorf("images after delete = %d, want 0", len(images))
	}
	if _, err := doctor.FetchStatic(ctx, img.Filename); err == nil {
		t.Error("deleted blob still served")
	}
}

func TestAdminCreatesPatient(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()
	admin := login(t, ts, "admin@ambient.ai", "admin123")

	created, err := admin.CreatePatient(ctx, api.CreatePatientRequest{
		Email:    "new@ambient.ai",
		Password: "secret123",
		FullName: "New Patient",
	})
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	if created.Role != model.RolePatient || created.PatientUID == nil || len(*created.PatientUID) != 5 {
		t.Errorf("created = %+v", created)
	}
	if created.PreferredLanguage != "en" {
		t.Errorf("language defaulted to %q, want en", created.PreferredLanguage)
	}

	_, err = admin.CreatePatient(ctx, api.CreatePatientRequest{
		Email:    "new@ambient.ai",
		Password: "secret123",
		FullName: "Dup",
	})
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("duplicate email: got %v, want 400", err)
	}
	if apiErr.Message != "Email already registered" {
		t.Errorf("message = %q", apiErr.Message)
	}

	// The new patient can log in straight away.
	login(t, ts, "new@ambient.ai", "secret123")
}

func TestDoctorSignatureUpload(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()
	doctor := login(t, ts, "doctor@ambient.ai", "doctor123")
	patient := findPatient(t, doctor)

	if err := doctor.UploadSignature(ctx, "sig.png", strings.NewReader("signature-bytes")); err != nil {
		t.Fatalf("upload signature: %v", err)
	}
	me, err := doctor.Me(ctx)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.SignatureFilename == nil {
		t.Fatal("signature filename not recorded")
	}

	// The signature filename rides along on consultation reads.
	id, err := doctor.CreateConsultation(ctx, patient.ID)
	if err != nil {
		t.Fatalf("create consultation: %v", err)
	}
	cons, err := doctor.GetConsultation(ctx, id, "")
	if err != nil {
		t.Fatalf("get consultation: %v", err)
	}
	if cons.DoctorSignatureFilename == nil || *cons.DoctorSignatureFilename != *me.SignatureFilename {
		t.Errorf("signature filename = %v, want %v", cons.DoctorSignatureFilename, me.SignatureFilename)
	}
}

func mustHash(t *testing.T, password string) []byte {
	t.Helper()
	hash, err := bcryptHash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return hash
}
