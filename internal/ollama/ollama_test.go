package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/wagner/internal/providers"
)

func TestExtractText(t *testing.T) {
	var captured struct {
		Model  string         `json:"model"`
		Images []string       `json:"images"`
		Format string         `json:"format"`
		Stream bool           `json:"stream"`
		Opts   map[string]any `json:"options"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"{\"sentences\":[]}"}`))
	}))
	defer srv.Close()

	out, err := New(srv.URL, 0).ExtractText(context.Background(), providers.Config{
		Model:     "llava",
		Prompt:    "read",
		MaxTokens: 50,
		JSON:      true,
		Images:    []providers.Image{{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"sentences":[]}` {
		t.Errorf("unexpected output %q", out)
	}
	if captured.Model != "llava" || captured.Format != "json" || captured.Stream {
		t.Errorf("unexpected request: %+v", captured)
	}
	if len(captured.Images) != 1 || captured.Images[0] != "/9g=" {
		t.Errorf("image not base64 encoded: %v", captured.Images)
	}
	if captured.Opts["num_predict"].(float64) != 50 {
		t.Errorf("num_predict not forwarded: %v", captured.Opts)
	}
}

func TestExtractTextNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := New(srv.URL, 0).ExtractText(context.Background(), providers.Config{Prompt: "p"}); err == nil {
		t.Fatal("expected error for 404")
	}
}
