package demoserver

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/ambienthealth/companion/internal/model"
)

// teachBackMinBytes rejects recordings too small to contain speech.
const teachBackMinBytes = 500

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        model.User `json:"user"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	rec, err := s.store.UserByEmail(req.Email)
	if err != nil || bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(req.Password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}
	token, err := issueToken(s.secret, rec.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Could not issue token")
	}
	return c.JSON(http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        rec.User,
	})
}

func (s *Server) handleMe(c echo.Context) error {
	return c.JSON(http.StatusOK, currentUser(c))
}

func (s *Server) handleListPatients(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.Patients())
}

type createPatientRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	FullName          string `json:"full_name"`
	Phone             string `json:"phone"`
	Address           string `json:"address"`
	PreferredLanguage string `json:"preferred_language"`
}

func (s *Server) handleCreatePatient(c echo.Context) error {
	var req createPatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Email, password and full name are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Could not hash password")
	}
	uid := newPatientUID()
	u := model.User{
		PatientUID:        &uid,
		Email:             req.Email,
		FullName:          req.FullName,
		Role:              model.RolePatient,
		PreferredLanguage: orDefault(req.PreferredLanguage, "en"),
	}
	if req.Phone != "" {
		u.Phone = &req.Phone
	}
	if req.Address != "" {
		u.Address = &req.Address
	}
	created, err := s.store.CreateUser(u, hash)
	if err == ErrEmailTaken {
		return echo.NewHTTPError(http.StatusBadRequest, "Email already registered")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Could not create patient")
	}
	return c.JSON(http.StatusOK, created)
}

// -- Consultations --

type createConsultationRequest struct {
	PatientID int64 `json:"patient_id"`
}

func (s *Server) handleCreateConsultation(c echo.Context) error {
	var req createConsultationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	patient, err := s.store.UserByID(req.PatientID)
	if err != nil || patient.Role != model.RolePatient {
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	}
	created := s.store.CreateConsultation(currentUser(c).ID, patient.ID)
	return c.JSON(http.StatusOK, map[string]int64{"id": created.ID})
}

func (s *Server) handleListConsultations(c echo.Context) error {
	u := currentUser(c)
	var doctorID, patientID int64
	switch u.Role {
	case model.RoleDoctor:
		doctorID = u.ID
		if raw := c.QueryParam("patient_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "Invalid patient_id")
			}
			patientID = id
		}
	case model.RolePatient:
		patientID = u.ID
	}
	list := s.store.ConsultationsFor(doctorID, patientID)
	lang := c.QueryParam("language")
	out := make([]model.Consultation, 0, len(list))
	for i := range list {
		out = append(out, *s.assemble(&list[i], lang))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetConsultation(c echo.Context) error {
	cons, httpErr := s.visibleConsultation(c)
	if httpErr != nil {
		return httpErr
	}
	return c.JSON(http.StatusOK, s.assemble(cons, c.QueryParam("language")))
}

func (s *Server) handlePatientVisits(c echo.Context) error {
	u := currentUser(c)
	list := s.store.ConsultationsFor(0, u.ID)
	lang := c.QueryParam("language")
	out := make([]model.Consultation, 0, len(list))
	for i := range list {
		out = append(out, *s.assemble(&list[i], lang))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleComplete(c echo.Context) error {
	cons, httpErr := s.ownedConsultation(c)
	if httpErr != nil {
		return httpErr
	}
	if cons.Completed() {
		return echo.NewHTTPError(http.StatusBadRequest, "Consultation already completed")
	}
	if err := s.store.CompleteConsultation(cons.ID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Consultation not found")
	}
	cons, _ = s.store.Consultation(cons.ID)
	return c.JSON(http.StatusOK, s.assemble(cons, ""))
}

// -- Transcription and reports --

func (s *Server) handleUploadAudio(c echo.Context) error {
	cons, httpErr := s.mutableConsultation(c)
	if httpErr != nil {
		return httpErr
	}
	data, filename, httpErr := readUpload(c)
	if httpErr != nil {
		return httpErr
	}
	stored := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	s.store.PutFile(stored, data)

	cons = s.transcribe(cons, &stored)
	return c.JSON(http.StatusOK, s.assemble(cons, ""))
}

func (s *Server) handleMockTranscribe(c echo.Context) error {
	cons, httpErr := s.mutableConsultation(c)
	if httpErr != nil {
		return httpErr
	}
	cons = s.transcribe(cons, nil)
	return c.JSON(http.StatusOK, s.assemble(cons, ""))
}

// transcribe runs the demo transcription pipeline: canned transcript,
// heuristic extraction, and seeding of the teach-back question set.
func (s *Server) transcribe(cons *model.Consultation, audioPath *string) *model.Consultation {
	s.store.UpsertTranscript(cons.ID, mockTranscript, audioPath)
	fields := extractClinical(mockTranscript)
	s.store.UpsertClinicalReport(cons.ID, fields.Symptoms, fields.Diagnosis, fields.Medications, fields.FollowUp)
	if len(s.store.TeachBackItems(cons.ID)) < len(teachBackQuestions) {
		s.store.SeedTeachBackQuestions(cons.ID, teachBackQuestions)
	}
	return cons
}

func (s *Server) handleTeachBackAudio(c echo.Context) error {
	cons, httpErr := s.mutableConsultation(c)
	if httpErr != nil {
		return httpErr
	}
	if _, ok := s.store.ClinicalReport(cons.ID); !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Clinical report not found. Please transcribe the consultation first.")
	}
	data, _, httpErr := readUpload(c)
	if httpErr != nil {
		return httpErr
	}
	if len(data) < teachBackMinBytes {
		return echo.NewHTTPError(http.StatusBadRequest, "Recording too short or empty. Please record your answers again.")
	}
	items := s.store.TeachBackItems(cons.ID)
	for i := range items {
		answer := teachBackAnswers[i%len(teachBackAnswers)]
		s.store.AnswerTeachBack(cons.ID, i, answer, scoreAnswer(answer))
	}
	return c.JSON(http.StatusOK, s.assemble(cons, ""))
}

func (s *Server) handleGeneratePatientReport(c echo.Context) error {
	cons, httpErr := s.mutableConsultation(c)
	if httpErr != nil {
		return httpErr
	}
	cr, ok := s.store.ClinicalReport(cons.ID)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Clinical report not found. Please transcribe the consultation first.")
	}
	if _, exists := s.store.PatientReport(cons.ID); exists {
		return echo.NewHTTPError(http.StatusBadRequest, "Patient report already generated")
	}
	language := "en"
	if patient, err := s.store.UserByID(cons.PatientID); err == nil && patient.PreferredLanguage != "" {
		language = patient.PreferredLanguage
	}
	fields := clinicalFields{
		Symptoms:    cr.Symptoms,
		Diagnosis:   cr.Diagnosis,
		Medications: cr.Medications,
		FollowUp:    cr.FollowUp,
	}
	loc := localeFor(language)
	s.store.CreatePatientReport(model.PatientReport{
		ConsultationID:         cons.ID,
		Language:               language,
		Content:                reportContent(fields, language),
		DiagnosisSummary:       orDefault(cr.Diagnosis, loc.notSpecified),
		MedicationInstructions: orDefault(cr.Medications, loc.noMedications),
		WarningSigns:           loc.warningSigns,
	})
	return c.JSON(http.StatusOK, s.assemble(cons, ""))
}

// -- Images and files --

func (s *Server) handleUploadImage(c echo.Context) error {
	cons, httpErr := s.mutableConsultation(c)
	if httpErr != nil {
		return httpErr
	}
	imageType := c.FormValue("image_type")
	if !model.ImageTypes[imageType] {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid image type")
	}
	data, filename, httpErr := readUpload(c)
	if httpErr != nil {
		return httpErr
	}
	stored := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	s.store.PutFile(stored, data)

	img := model.MedicalImage{
		ConsultationID:   cons.ID,
		Filename:         stored,
		OriginalFilename: &filename,
		ImageType:        imageType,
	}
	if desc := c.FormValue("description"); desc != "" {
		img.Description = &desc
	}
	return c.JSON(http.StatusOK, s.store.AddImage(img))
}

func (s *Server) handleListImages(c echo.Context) error {
	cons, httpErr := s.visibleConsultation(c)
	if httpErr != nil {
		return httpErr
	}
	return c.JSON(http.StatusOK, s.store.Images(cons.ID))
}

func (s *Server) handleDeleteImage(c echo.Context) error {
	cons, httpErr := s.mutableConsultation(c)
	if httpErr != nil {
		return httpErr
	}
	imageID, err := strconv.ParseInt(c.Param("image_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid image id")
	}
	if err := s.store.DeleteImage(cons.ID, imageID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Image not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Image deleted"})
}

func (s *Server) handleUploadSignature(c echo.Context) error {
	data, filename, httpErr := readUpload(c)
	if httpErr != nil {
		return httpErr
	}
	stored := "signature-" + uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	s.store.PutFile(stored, data)

	u := currentUser(c)
	if err := s.store.SetSignature(u.ID, stored); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	updated, _ := s.store.UserByID(u.ID)
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleStatic(c echo.Context) error {
	data, ok := s.store.File(c.Param("filename"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "File not found")
	}
	return c.Blob(http.StatusOK, http.DetectContentType(data), data)
}

// -- Helpers --

// visibleConsultation loads the consultation from the path and enforces
// read access: doctors see their own, patients their own, admins any.
func (s *Server) visibleConsultation(c echo.Context) (*model.Consultation, *echo.HTTPError) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid consultation id")
	}
	cons, err := s.store.Consultation(id)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Consultation not found")
	}
	u := currentUser(c)
	switch u.Role {
	case model.RoleDoctor:
		if cons.DoctorID != u.ID {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Consultation not found")
		}
	case model.RolePatient:
		if cons.PatientID != u.ID {
			return nil, echo.NewHTTPError(http.StatusForbidden, "Access denied")
		}
	}
	return cons, nil
}

// ownedConsultation is visibleConsultation restricted to the owning doctor.
func (s *Server) ownedConsultation(c echo.Context) (*model.Consultation, *echo.HTTPError) {
	cons, httpErr := s.visibleConsultation(c)
	if httpErr != nil {
		return nil, httpErr
	}
	if cons.DoctorID != currentUser(c).ID {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Consultation not found")
	}
	return cons, nil
}

// mutableConsultation additionally rejects completed consultations, which
// are read-only.
func (s *Server) mutableConsultation(c echo.Context) (*model.Consultation, *echo.HTTPError) {
	cons, httpErr := s.ownedConsultation(c)
	if httpErr != nil {
		return nil, httpErr
	}
	if cons.Completed() {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Consultation is completed")
	}
	return cons, nil
}

// readUpload pulls the "file" multipart part into memory.
func readUpload(c echo.Context) ([]byte, string, *echo.HTTPError) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "Missing file")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "Could not read file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "Could not read file")
	}
	return data, fh.Filename, nil
}

// assemble attaches every derived artifact plus the participant names to a
// consultation before it goes over the wire. A non-empty lang re-renders
// the patient report's localized scaffolding in that language; the
// extracted clinical text itself is not translated (the demo has no
// translation model). Re-rendering is deterministic, so fetching in
// another language and back restores the original content.
func (s *Server) assemble(cons *model.Consultation, lang string) *model.Consultation {
	out := *cons
	if doctor, err := s.store.UserByID(out.DoctorID); err == nil {
		out.DoctorName = doctor.FullName
		out.DoctorSignatureFilename = doctor.SignatureFilename
	}
	if patient, err := s.store.UserByID(out.PatientID); err == nil {
		out.PatientName = patient.FullName
		out.PatientUID = patient.PatientUID
	}
	if tr, ok := s.store.Transcript(out.ID); ok {
		out.Transcript = tr
	}
	if cr, ok := s.store.ClinicalReport(out.ID); ok {
		out.ClinicalReport = cr
	}
	if pr, ok := s.store.PatientReport(out.ID); ok {
		if lang != "" && lang != pr.Language {
			if _, known := reportLocales[lang]; known {
				if cr, haveCR := s.store.ClinicalReport(out.ID); haveCR {
					loc := localeFor(lang)
					fields := clinicalFields{
						Symptoms:    cr.Symptoms,
						Diagnosis:   cr.Diagnosis,
						Medications: cr.Medications,
						FollowUp:    cr.FollowUp,
					}
					pr.Language = lang
					pr.Content = reportContent(fields, lang)
					pr.DiagnosisSummary = orDefault(cr.Diagnosis, loc.notSpecified)
					pr.MedicationInstructions = orDefault(cr.Medications, loc.noMedications)
					pr.WarningSigns = loc.warningSigns
				}
			}
		}
		out.PatientReport = pr
	}
	out.TeachBackItems = s.store.TeachBackItems(out.ID)
	out.MedicalImages = s.store.Images(out.ID)
	return &out
}

// newPatientUID derives a short human-readable patient identifier.
func newPatientUID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:5])
}
