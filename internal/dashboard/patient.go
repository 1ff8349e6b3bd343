package dashboard

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ambienthealth/companion/internal/api"
	"github.com/ambienthealth/companion/internal/model"
	"github.com/ambienthealth/companion/internal/report"
)

// Patient drives the patient view: a read-only visit history per language
// plus take-home report export.
type Patient struct {
	client   *api.Client
	renderer *report.Renderer
	log      zerolog.Logger
}

func NewPatient(client *api.Client, renderer *report.Renderer, log zerolog.Logger) *Patient {
	return &Patient{client: client, renderer: renderer, log: log}
}

// Visits lists the patient's own consultations in the requested language.
// Shaped to feed viewmodel.SourceFunc.
func (p *Patient) Visits(ctx context.Context, language string) ([]model.Consultation, error) {
	return p.client.PatientVisits(ctx, language)
}

// ExportReport renders the already-fetched aggregate to a PDF. It reads
// what the view-model holds and does not refetch.
func (p *Patient) ExportReport(ctx context.Context, c *model.Consultation, language string) ([]byte, string, error) {
	raw, name, err := p.renderer.Render(ctx, c, language)
	if err != nil {
		return nil, "", err
	}
	p.log.Info().Int64("consultation_id", c.ID).Str("file", name).Msg("report exported")
	return raw, name, nil
}
