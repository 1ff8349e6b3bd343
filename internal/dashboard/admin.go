package dashboard

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ambienthealth/companion/internal/api"
	"github.com/ambienthealth/companion/internal/model"
)

// ErrMissingPatientFields fires when a patient provisioning request lacks
// one of the required fields.
var ErrMissingPatientFields = errors.New("email, password and full name are required")

// Admin provisions patient accounts.
type Admin struct {
	client *api.Client
	log    zerolog.Logger
}

func NewAdmin(client *api.Client, log zerolog.Logger) *Admin {
	return &Admin{client: client, log: log}
}

// Patients lists all patient accounts.
func (a *Admin) Patients(ctx context.Context) ([]model.User, error) {
	return a.client.AdminListPatients(ctx)
}

// CreatePatient provisions a patient account. Basic completeness is checked
// client-side; uniqueness and everything else is the service's call.
func (a *Admin) CreatePatient(ctx context.Context, req api.CreatePatientRequest) (*model.User, error) {
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		return nil, ErrMissingPatientFields
	}
	if req.PreferredLanguage == "" {
		req.PreferredLanguage = "en"
	}
	user, err := a.client.CreatePatient(ctx, req)
	if err != nil {
		return nil, err
	}
	a.log.Info().Str("email", user.Email).Msg("patient account created")
	return user, nil
}
