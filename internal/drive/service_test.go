package drive

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/andresuchdata/cloudmigrate/internal/storage"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	srv, err := drive.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	return &Service{srv: srv}
}

func TestOpen_MissingFileIsNotFound(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"File not found: gone."}}`)
	})

	_, err := svc.Open(context.Background(), "gone")

	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, storage.KindNotFound, storage.KindOf(err))
}

func TestOpen_ServerErrorIsTransfer(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := svc.Open(context.Background(), "f1")

	require.Error(t, err)
	assert.Equal(t, storage.KindTransfer, storage.KindOf(err))
}

func TestOpen_StreamsContent(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "media", r.URL.Query().Get("alt"))
		_, _ = io.WriteString(w, "a,b\n")
	})

	rc, err := svc.Open(context.Background(), "f1")
	require.NoError(t, err)
	defer rc.Close()

	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(b))
}

func TestFindFolderByPath_MissingFolderIsNotFound(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"files":[]}`)
	})

	_, err := svc.FindFolderByPath(context.Background(), "exports/2024")

	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClassify(t *testing.T) {
	plain := errors.New("connection reset")

	assert.ErrorIs(t, classify(&googleapi.Error{Code: http.StatusNotFound}), storage.ErrNotFound)
	assert.NotErrorIs(t, classify(&googleapi.Error{Code: http.StatusForbidden}), storage.ErrNotFound)
	assert.Same(t, plain, classify(plain))
}
