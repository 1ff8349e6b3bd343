// Package model holds the entity shapes shared by the API client, the
// view-model, the report renderer and the demo server. Field names and JSON
// tags follow the consultation service's wire format.
package model

import (
	"math"
	"time"
)

// Role identifies what a user is allowed to do.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDoctor, RolePatient, RoleAdmin:
		return true
	}
	return false
}

// Consultation statuses. A consultation starts active and transitions to
// completed exactly once; there is no way back.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Medical image types accepted by the service.
var ImageTypes = map[string]bool{
	"x-ray":  true,
	"scan":   true,
	"injury": true,
	"burn":   true,
	"skin":   true,
	"wound":  true,
	"other":  true,
}

// User is an account on the consultation service. PatientUID and
// PreferredLanguage are only meaningful for patients; SignatureFilename only
// for doctors.
type User struct {
	ID                int64   `json:"id"`
	PatientUID        *string `json:"patient_uid,omitempty"`
	Email             string  `json:"email"`
	FullName          string  `json:"full_name"`
	Role              Role    `json:"role"`
	Phone             *string `json:"phone,omitempty"`
	Address           *string `json:"address,omitempty"`
	PreferredLanguage string  `json:"preferred_language,omitempty"`
	SignatureFilename *string `json:"signature_filename,omitempty"`
}

// Transcript is the free text derived from a consultation's audio.
type Transcript struct {
	ID             int64     `json:"id"`
	ConsultationID int64     `json:"consultation_id"`
	Content        string    `json:"content"`
	AudioPath      *string   `json:"audio_path,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ClinicalReport is the structured extraction from a transcript.
type ClinicalReport struct {
	ID             int64     `json:"id"`
	ConsultationID int64     `json:"consultation_id"`
	Symptoms       string    `json:"symptoms"`
	Diagnosis      string    `json:"diagnosis"`
	Medications    string    `json:"medications"`
	FollowUp       string    `json:"follow_up"`
	CreatedAt      time.Time `json:"created_at"`
}

// PatientReport is the patient-facing take-home rendering derived from a
// clinical report. At most one exists per consultation.
type PatientReport struct {
	ID                     int64      `json:"id"`
	ConsultationID         int64      `json:"consultation_id"`
	Language               string     `json:"language"`
	Content                string     `json:"content"`
	DiagnosisSummary       string     `json:"diagnosis_summary"`
	MedicationInstructions string     `json:"medication_instructions"`
	WarningSigns           string     `json:"warning_signs"`
	FollowUpDate           *time.Time `json:"follow_up_date,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

// TeachBackItem is one comprehension-check question with the patient's
// answer and its understanding score, when captured.
type TeachBackItem struct {
	ID                 int64     `json:"id"`
	ConsultationID     int64     `json:"consultation_id"`
	Question           string    `json:"question"`
	PatientAnswer      *string   `json:"patient_answer,omitempty"`
	UnderstandingScore *int      `json:"understanding_score,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// MedicalImage references an uploaded image attached to a consultation.
type MedicalImage struct {
	ID               int64     `json:"id"`
	ConsultationID   int64     `json:"consultation_id"`
	Filename         string    `json:"filename"`
	OriginalFilename *string   `json:"original_filename,omitempty"`
	ImageType        string    `json:"image_type,omitempty"`
	Description      *string   `json:"description,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Consultation is one visit record with all derived artifacts, as returned
// by the service for a requested display language.
type Consultation struct {
	ID                       int64           `json:"id"`
	DoctorID                 int64           `json:"doctor_id"`
	PatientID                int64           `json:"patient_id"`
	Status                   string          `json:"status"`
	CreatedAt                time.Time       `json:"created_at"`
	CompletedAt              *time.Time      `json:"completed_at,omitempty"`
	DoctorName               string          `json:"doctor_name,omitempty"`
	DoctorSignatureFilename  *string         `json:"doctor_signature_filename,omitempty"`
	PatientName              string          `json:"patient_name,omitempty"`
	PatientUID               *string         `json:"patient_uid,omitempty"`
	Transcript               *Transcript     `json:"transcript,omitempty"`
	ClinicalReport           *ClinicalReport `json:"clinical_report,omitempty"`
	TeachBackItems           []TeachBackItem `json:"teach_back_items"`
	PatientReport            *PatientReport  `json:"patient_report,omitempty"`
	MedicalImages            []MedicalImage  `json:"medical_images"`
}

// Completed reports whether the consultation has been marked complete and is
// therefore read-only to the doctor.
func (c *Consultation) Completed() bool {
	return c.Status == StatusCompleted
}

// OverallUnderstanding returns the mean of all scored teach-back items,
// rounded to one decimal place. The second return is false when no item
// carries a score; callers must treat that as "absent", never as zero.
func (c *Consultation) OverallUnderstanding() (float64, bool) {
	return OverallUnderstanding(c.TeachBackItems)
}

// OverallUnderstanding computes the aggregate understanding score over a
// teach-back item set. Unscored items do not contribute.
func OverallUnderstanding(items []TeachBackItem) (float64, bool) {
	sum, n := 0, 0
	for _, it := range items {
		if it.UnderstandingScore != nil {
			sum += *it.UnderstandingScore
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	mean := float64(sum) / float64(n)
	return math.Round(mean*10) / 10, true
}
