package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facegate/internal/database/mock"
	"github.com/kozaktomas/facegate/internal/extractor"
	"github.com/kozaktomas/facegate/internal/matcher"
	"github.com/kozaktomas/facegate/internal/workflow"
)

const testDim = 2

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newTestService builds a workflow over the mock store. Images are looked up
// by content in faces; unknown images have no face.
func newTestService(faces map[string][]float32) (*workflow.Service, *mock.MockIdentityStore) {
	store := mock.NewMockIdentityStore(testDim)
	ext := extractor.Func(func(_ context.Context, img []byte) ([]float32, error) {
		if d, ok := faces[string(img)]; ok {
			return d, nil
		}
		return nil, extractor.ErrNoFace
	})
	return workflow.New(store, ext, matcher.New(0.35, testDim), workflow.WithLogger(testLogger)), store
}

// multipartRequest creates a request with form fields and an optional image part.
func multipartRequest(t *testing.T, method, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "face.jpg")
		if err != nil {
			t.Fatal(err)
		}
		part.Write(image)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
