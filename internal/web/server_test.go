package web

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database/mock"
	"github.com/kozaktomas/facegate/internal/extractor"
	"github.com/kozaktomas/facegate/internal/matcher"
	"github.com/kozaktomas/facegate/internal/metrics"
	"github.com/kozaktomas/facegate/internal/workflow"
)

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := mock.NewMockIdentityStore(2)
	ext := extractor.Func(func(_ context.Context, img []byte) ([]float32, error) {
		if string(img) == "alice" {
			return []float32{1, 0}, nil
		}
		return nil, extractor.ErrNoFace
	})
	m := metrics.NewManager()
	svc := workflow.New(store, ext, matcher.New(0.35, 2), workflow.WithLogger(logger), workflow.WithMetrics(m))
	return NewServer(&config.WebConfig{Host: "127.0.0.1", Port: 0, APIToken: token}, svc, m, logger)
}

func uploadBody(t *testing.T, fields map[string]string, image string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("image", "face.jpg")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(image))
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestServer_EnrollVerifyDeleteFlow(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, "").Router())
	defer ts.Close()

	body, ct := uploadBody(t, map[string]string{"id": "42", "name": "Alice"}, "alice")
	resp, err := http.Post(ts.URL+"/api/v1/identities", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("enroll status = %d, want 201", resp.StatusCode)
	}

	body, ct = uploadBody(t, nil, "alice")
	resp, err = http.Post(ts.URL+"/api/v1/verify", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"admitted":true`) {
		t.Fatalf("verify = %d %s, want admitted", resp.StatusCode, data)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/identities/42", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	data, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(data), `facegate_verifications_total{outcome="admitted"} 1`) {
		t.Errorf("metrics missing admitted verification:\n%s", data)
	}
}

func TestServer_APITokenRequired(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, "s3cret").Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/identities")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/identities", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}
