package demoserver

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ambienthealth/companion/internal/model"
)

// Sentinel errors surfaced by the store.
var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

// userRecord is a stored account: the public shape plus the password hash.
type userRecord struct {
	model.User
	PasswordHash []byte
}

// Store is the in-memory state behind the demo server. Everything lives
// under one mutex; the demo server is not built for load.
type Store struct {
	mu sync.RWMutex

	nextID          int64
	users           map[int64]*userRecord
	consultations   map[int64]*model.Consultation
	transcripts     map[int64]*model.Transcript     // by consultation id
	clinicalReports map[int64]*model.ClinicalReport // by consultation id
	patientReports  map[int64]*model.PatientReport  // by consultation id
	teachBack       map[int64][]model.TeachBackItem // by consultation id, ordered
	images          map[int64][]model.MedicalImage  // by consultation id, ordered
	files           map[string][]byte               // stored blobs by filename
}

func NewStore() *Store {
	return &Store{
		users:           make(map[int64]*userRecord),
		consultations:   make(map[int64]*model.Consultation),
		transcripts:     make(map[int64]*model.Transcript),
		clinicalReports: make(map[int64]*model.ClinicalReport),
		patientReports:  make(map[int64]*model.PatientReport),
		teachBack:       make(map[int64][]model.TeachBackItem),
		images:          make(map[int64][]model.MedicalImage),
		files:           make(map[string][]byte),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// -- Users --

func (s *Store) CreateUser(u model.User, passwordHash []byte) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return nil, ErrEmailTaken
		}
	}
	u.ID = s.id()
	s.users[u.ID] = &userRecord{User: u, PasswordHash: passwordHash}
	out := u
	return &out, nil
}

func (s *Store) UserByEmail(email string) (*userRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			rec := *u
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Store) UserByID(id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := u.User
	return &out, nil
}

func (s *Store) Patients() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.User
	for _, u := range s.users {
		if u.Role == model.RolePatient {
			out = append(out, u.User)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) SetSignature(doctorID int64, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[doctorID]
	if !ok {
		return ErrNotFound
	}
	u.SignatureFilename = &filename
	return nil
}

// -- Consultations --

func (s *Store) CreateConsultation(doctorID, patientID int64) *model.Consultation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &model.Consultation{
		ID:        s.id(),
		DoctorID:  doctorID,
		PatientID: patientID,
		Status:    model.StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	s.consultations[c.ID] = c
	return c
}

func (s *Store) Consultation(id int64) (*model.Consultation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.consultations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

// ConsultationsFor lists consultations filtered by doctor and/or patient,
// newest first.
func (s *Store) ConsultationsFor(doctorID, patientID int64) []model.Consultation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Consultation
	for _, c := range s.consultations {
		if doctorID != 0 && c.DoctorID != doctorID {
			continue
		}
		if patientID != 0 && c.PatientID != patientID {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) CompleteConsultation(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consultations[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	c.Status = model.StatusCompleted
	c.CompletedAt = &now
	return nil
}

// -- Derived artifacts --

// UpsertTranscript overwrites the consultation's transcript; re-transcription
// replaces, never appends.
func (s *Store) UpsertTranscript(consultationID int64, content string, audioPath *string) *model.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.transcripts[consultationID]
	if ok {
		tr.Content = content
	} else {
		tr = &model.Transcript{
			ID:             s.id(),
			ConsultationID: consultationID,
			Content:        content,
			CreatedAt:      time.Now().UTC(),
		}
		s.transcripts[consultationID] = tr
	}
	if audioPath != nil {
		tr.AudioPath = audioPath
	}
	out := *tr
	return &out
}

func (s *Store) Transcript(consultationID int64) (*model.Transcript, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.transcripts[consultationID]
	if !ok {
		return nil, false
	}
	out := *tr
	return &out, true
}

func (s *Store) UpsertClinicalReport(consultationID int64, symptoms, diagnosis, medications, followUp string) *model.ClinicalReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	cr, ok := s.clinicalReports[consultationID]
	if ok {
		cr.Symptoms, cr.Diagnosis, cr.Medications, cr.FollowUp = symptoms, diagnosis, medications, followUp
	} else {
		cr = &model.ClinicalReport{
			ID:             s.id(),
			ConsultationID: consultationID,
			Symptoms:       symptoms,
			Diagnosis:      diagnosis,
			Medications:    medications,
			FollowUp:       followUp,
			CreatedAt:      time.Now().UTC(),
		}
		s.clinicalReports[consultationID] = cr
	}
	out := *cr
	return &out
}

func (s *Store) ClinicalReport(consultationID int64) (*model.ClinicalReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cr, ok := s.clinicalReports[consultationID]
	if !ok {
		return nil, false
	}
	out := *cr
	return &out, true
}

func (s *Store) CreatePatientReport(pr model.PatientReport) *model.PatientReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr.ID = s.id()
	pr.CreatedAt = time.Now().UTC()
	s.patientReports[pr.ConsultationID] = &pr
	out := pr
	return &out
}

func (s *Store) PatientReport(consultationID int64) (*model.PatientReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pr, ok := s.patientReports[consultationID]
	if !ok {
		return nil, false
	}
	out := *pr
	return &out, true
}

// -- Teach-back --

func (s *Store) TeachBackItems(consultationID int64) []model.TeachBackItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.TeachBackItem(nil), s.teachBack[consultationID]...)
}

// SeedTeachBackQuestions replaces the item set with fresh unanswered
// questions.
func (s *Store) SeedTeachBackQuestions(consultationID int64, questions []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]model.TeachBackItem, 0, len(questions))
	for _, q := range questions {
		items = append(items, model.TeachBackItem{
			ID:             s.id(),
			ConsultationID: consultationID,
			Question:       q,
			CreatedAt:      time.Now().UTC(),
		})
	}
	s.teachBack[consultationID] = items
}

// AnswerTeachBack records the answer and score for the item at position idx.
func (s *Store) AnswerTeachBack(consultationID int64, idx int, answer string, score int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.teachBack[consultationID]
	if idx < 0 || idx >= len(items) {
		return
	}
	items[idx].PatientAnswer = &answer
	items[idx].UnderstandingScore = &score
}

// -- Images and files --

func (s *Store) AddImage(img model.MedicalImage) *model.MedicalImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	img.ID = s.id()
	img.CreatedAt = time.Now().UTC()
	s.images[img.ConsultationID] = append(s.images[img.ConsultationID], img)
	out := img
	return &out
}

func (s *Store) Images(consultationID int64) []model.MedicalImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.MedicalImage(nil), s.images[consultationID]...)
}

func (s *Store) DeleteImage(consultationID, imageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.images[consultationID]
	for i, img := range items {
		if img.ID == imageID {
			delete(s.files, img.Filename)
			s.images[consultationID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *Store) PutFile(name string, data []byte) {
	s.mu.Lock()
	s.files[name] = data
	s.mu.Unlock()
}

func (s *Store) File(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[name]
	return data, ok
}
