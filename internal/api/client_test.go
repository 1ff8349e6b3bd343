package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBearerTokenAttached(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1,"email":"d@x","full_name":"Dr","role":"doctor"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.SetToken("tok-123")

	if _, err := c.Me(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
}

func TestNoTokenNoHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"access_token":"t","user":{"id":1,"email":"d@x","full_name":"Dr","role":"doctor"}}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	if _, err := c.Login(context.Background(), "d@x", "pw"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("expected no auth header, got %q", gotAuth)
	}
}

func TestErrorMessageExtraction(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"detail key", `{"detail":"Invalid email or password"}`, "Invalid email or password"},
		{"message key", `{"message":"Access denied"}`, "Access denied"},
		{"garbage body", `<html>boom</html>`, "request failed"},
		{"empty body", ``, "request failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, _ := New(srv.URL)
			_, err := c.Me(context.Background())
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.Status != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", apiErr.Status)
			}
			if apiErr.Message != tc.want {
				t.Errorf("expected message %q, got %q", tc.want, apiErr.Message)
			}
		})
	}
}

func TestUploadPreservesFilename(t *testing.T) {
	var gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		f := r.MultipartForm.File["file"]
		if len(f) != 1 {
			t.Fatalf("expected one file part, got %d", len(f))
		}
		gotName = f[0].Filename
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	err := c.UploadAudio(context.Background(), 7, "visit-7.wav", strings.NewReader("RIFFdata"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotName != "visit-7.wav" {
		t.Errorf("filename not preserved: got %q", gotName)
	}
}

func TestUploadDefaultFilename(t *testing.T) {
	var gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		gotName = r.MultipartForm.File["file"][0].Filename
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	if err := c.UploadAudio(context.Background(), 7, "", strings.NewReader("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotName != DefaultAudioName {
		t.Errorf("expected default filename %q, got %q", DefaultAudioName, gotName)
	}
}

func TestUploadImageFields(t *testing.T) {
	var gotType, gotDesc string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		gotType = r.FormValue("image_type")
		gotDesc = r.FormValue("description")
		w.Write([]byte(`{"id":3,"consultation_id":7,"filename":"abc.png","image_type":"x-ray"}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	img, err := c.UploadImage(context.Background(), 7, "chest.png", strings.NewReader("png"), "x-ray", "chest film")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotType != "x-ray" || gotDesc != "chest film" {
		t.Errorf("form fields not sent: type=%q desc=%q", gotType, gotDesc)
	}
	if img.ID != 3 {
		t.Errorf("expected image id 3, got %d", img.ID)
	}
}

func TestLanguageQueryParameter(t *testing.T) {
	var gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.URL.Query().Get("language")
		w.Write([]byte(`{"id":7,"doctor_id":1,"patient_id":2,"status":"active","created_at":"2026-01-05T10:00:00Z","teach_back_items":[],"medical_images":[]}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	if _, err := c.GetConsultation(context.Background(), 7, "ta"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLang != "ta" {
		t.Errorf("expected language query 'ta', got %q", gotLang)
	}
}

func TestNewRejectsRelativeURL(t *testing.T) {
	if _, err := New("localhost:8000"); err == nil {
		t.Error("expected error for non-absolute base url")
	}
}
