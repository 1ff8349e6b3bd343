// Package demoserver is an in-memory implementation of the consultation
// service boundary. It exists so the CLI and the integration tests can run
// the full doctor/patient/admin workflow offline: JWT login, consultations,
// canned transcription with heuristic clinical extraction, teach-back
// scoring, report generation and media storage. Nothing survives a restart.
package demoserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ambienthealth/companion/internal/model"
)

type Server struct {
	echo   *echo.Echo
	store  *Store
	secret []byte
	log    zerolog.Logger
}

func New(secret string, log zerolog.Logger) *Server {
	s := &Server{
		echo:   echo.New(),
		store:  NewStore(),
		secret: []byte(secret),
		log:    log,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(recovery(log))
	s.echo.Use(requestID())
	s.echo.Use(requestLogger(log))

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.POST("/auth/login", s.handleLogin)

	authed := e.Group("", s.jwtMiddleware())
	authed.GET("/auth/me", s.handleMe)
	authed.GET("/static/:filename", s.handleStatic)

	doctor := authed.Group("", requireRole(model.RoleDoctor))
	doctor.GET("/doctor/patients", s.handleListPatients)
	doctor.POST("/doctor/signature", s.handleUploadSignature)
	doctor.POST("/consultations", s.handleCreateConsultation)
	doctor.POST("/consultations/:id/audio", s.handleUploadAudio)
	doctor.POST("/consultations/:id/mock-transcribe", s.handleMockTranscribe)
	doctor.POST("/consultations/:id/teach-back/answer-all-audio", s.handleTeachBackAudio)
	doctor.POST("/consultations/:id/patient-report", s.handleGeneratePatientReport)
	doctor.POST("/consultations/:id/complete", s.handleComplete)
	doctor.POST("/consultations/:id/images", s.handleUploadImage)
	doctor.DELETE("/consultations/:id/images/:image_id", s.handleDeleteImage)

	authed.GET("/consultations", s.handleListConsultations)
	authed.GET("/consultations/:id", s.handleGetConsultation)
	authed.GET("/consultations/:id/images", s.handleListImages)

	admin := authed.Group("", requireRole(model.RoleAdmin))
	admin.GET("/admin/patients", s.handleListPatients)
	admin.POST("/admin/patients", s.handleCreatePatient)

	patient := authed.Group("", requireRole(model.RolePatient))
	patient.GET("/patient/visits", s.handlePatientVisits)
}

// Handler exposes the server as an http.Handler for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("demo server listening")
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Seed provisions the demo accounts. Safe to call once per process.
func (s *Server) Seed() error {
	type account struct {
		email    string
		password string
		name     string
		role     model.Role
		language string
	}
	accounts := []account{
		{"doctor@ambient.ai", "doctor123", "Dr. Smith", model.RoleDoctor, ""},
		{"patient1@ambient.ai", "patient123", "Kamalesh R", model.RolePatient, "en"},
		{"admin@ambient.ai", "admin123", "Admin User", model.RoleAdmin, ""},
	}
	for _, a := range accounts {
		hash, err := bcryptHash(a.password)
		if err != nil {
			return err
		}
		u := model.User{
			Email:             a.email,
			FullName:          a.name,
			Role:              a.role,
			PreferredLanguage: a.language,
		}
		if a.role == model.RolePatient {
			uid := newPatientUID()
			u.PatientUID = &uid
		}
		if _, err := s.store.CreateUser(u, hash); err != nil && err != ErrEmailTaken {
			return err
		}
	}
	s.log.Info().Msg("demo accounts seeded")
	return nil
}

func bcryptHash(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
