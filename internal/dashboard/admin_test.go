package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ambienthealth/companion/internal/api"
)

func newAdmin(t *testing.T, url string) *Admin {
	t.Helper()
	client, err := api.New(url)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewAdmin(client, zerolog.Nop())
}

func TestCreatePatientRequiresFields(t *testing.T) {
	cs := newCountingServer(t)
	a := newAdmin(t, cs.srv.URL)

	cases := []api.CreatePatientRequest{
		{},
		{Email: "p@x"},
		{Email: "p@x", Password: "pw"},
		{Password: "pw", FullName: "P"},
	}
	for _, req := range cases {
		if _, err := a.CreatePatient(context.Background(), req); !errors.Is(err, ErrMissingPatientFields) {
			t.Errorf("expected ErrMissingPatientFields for %+v, got %v", req, err)
		}
	}
	if got := cs.requests.Load(); got != 0 {
		t.Errorf("incomplete request must not reach the network, saw %d requests", got)
	}
}

func TestCreatePatientDefaultsLanguage(t *testing.T) {
	cs := newCountingServer(t)
	a := newAdmin(t, cs.srv.URL)

	_, err := a.CreatePatient(context.Background(), api.CreatePatientRequest{
		Email: "p@x", Password: "pw", FullName: "P",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cs.requests.Load(); got != 1 {
		t.Errorf("expected 1 request, got %d", got)
	}
}
