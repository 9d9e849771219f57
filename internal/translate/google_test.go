package translate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGoogleClient_Translate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("q"); got != "Hola & adiós" {
			t.Errorf("q = %q", got)
		}
		if r.PostForm.Get("target") != "en" || r.PostForm.Get("key") != "k" || r.PostForm.Get("format") != "text" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"Hello & goodbye","detectedSourceLanguage":"es"}]}}`))
	}))
	defer srv.Close()

	c := NewGoogleClient("k", WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	tr, err := c.Translate(context.Background(), "Hola & adiós", "en")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if tr.Text != "Hello & goodbye" || tr.DetectedSource != "es" {
		t.Fatalf("unexpected translation: %+v", tr)
	}
}

func TestGoogleClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	c := NewGoogleClient("bad", WithEndpoint(srv.URL))
	_, err := c.Translate(context.Background(), "Hola", "en")
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestGoogleClient_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"translations":[]}}`))
	}))
	defer srv.Close()

	if _, err := NewGoogleClient("k", WithEndpoint(srv.URL)).Translate(context.Background(), "Hola", "en"); err == nil {
		t.Fatal("expected error for empty translations")
	}
}
