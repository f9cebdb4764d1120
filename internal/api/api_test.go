package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/cloudmigrate/internal/drive"
	"github.com/andresuchdata/cloudmigrate/internal/ledger"
	"github.com/andresuchdata/cloudmigrate/internal/storage"
	"github.com/andresuchdata/cloudmigrate/internal/transfer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeMigrator struct {
	listFn    func(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	migrateFn func(ctx context.Context, dir string) (*transfer.Report, error)
	runsFn    func(ctx context.Context, limit int) ([]ledger.Run, error)
}

func (f *fakeMigrator) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	return f.listFn(ctx, prefix)
}

func (f *fakeMigrator) MigrateDirectory(ctx context.Context, dir string) (*transfer.Report, error) {
	return f.migrateFn(ctx, dir)
}

func (f *fakeMigrator) Runs(ctx context.Context, limit int) ([]ledger.Run, error) {
	return f.runsFn(ctx, limit)
}

func serve(t *testing.T, router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(t, NewRouter(nil, nil), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListObjects(t *testing.T) {
	m := &fakeMigrator{listFn: func(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
		assert.Equal(t, "reports", prefix)
		return []storage.ObjectInfo{{Key: "reports/q1.csv", Size: 10}}, nil
	}}

	rec := serve(t, NewRouter(&Services{Migration: m}, nil), http.MethodGet, "/api/v1/objects?prefix=reports", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Objects []map[string]any `json:"objects"`
		Count   int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "reports/q1.csv", body.Objects[0]["name"])
}

func TestListObjects_NotFound(t *testing.T) {
	m := &fakeMigrator{listFn: func(context.Context, string) ([]storage.ObjectInfo, error) {
		return nil, &storage.Error{Op: "list", Bucket: "b", Err: storage.ErrNotFound}
	}}

	rec := serve(t, NewRouter(&Services{Migration: m}, nil), http.MethodGet, "/api/v1/objects", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMigrate(t *testing.T) {
	dataDir := t.TempDir()
	var gotDir string
	m := &fakeMigrator{migrateFn: func(_ context.Context, dir string) (*transfer.Report, error) {
		gotDir = dir
		return &transfer.Report{Total: 1, Succeeded: 1, Outcomes: []transfer.Outcome{
			{Source: "a", Destination: "a", Status: transfer.StatusSuccess},
		}}, nil
	}}
	router := NewRouter(&Services{Migration: m, DataDir: dataDir}, nil)

	rec := serve(t, router, http.MethodPost, "/api/v1/migrations", `{"dir":"exports"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, filepath.Join(dataDir, "exports"), gotDir)
	var report transfer.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Succeeded)

	rec = serve(t, router, http.MethodPost, "/api/v1/migrations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dataDir, gotDir)
}

func TestMigrate_RejectsEscapingDir(t *testing.T) {
	m := &fakeMigrator{migrateFn: func(context.Context, string) (*transfer.Report, error) {
		t.Fatal("migration must not run")
		return nil, nil
	}}
	router := NewRouter(&Services{Migration: m, DataDir: t.TempDir()}, nil)

	for _, body := range []string{`{"dir":"../etc"}`, `{"dir":"/etc"}`, `{"dir":`} {
		rec := serve(t, router, http.MethodPost, "/api/v1/migrations", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestListRuns(t *testing.T) {
	m := &fakeMigrator{runsFn: func(_ context.Context, limit int) ([]ledger.Run, error) {
		return []ledger.Run{{ID: int64(limit), Mode: "migrate"}}, nil
	}}
	router := NewRouter(&Services{Migration: m}, nil)

	rec := serve(t, router, http.MethodGet, "/api/v1/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":5`)

	rec = serve(t, router, http.MethodGet, "/api/v1/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRuns_LedgerDisabled(t *testing.T) {
	m := &fakeMigrator{runsFn: func(context.Context, int) ([]ledger.Run, error) {
		return nil, ledger.ErrDisabled
	}}

	rec := serve(t, NewRouter(&Services{Migration: m}, nil), http.MethodGet, "/api/v1/runs", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakeDrive struct{}

func (fakeDrive) ListFiles(_ context.Context, folderID string) ([]drive.File, error) {
	if folderID == "broken" {
		return nil, errors.New("drive unavailable")
	}
	return []drive.File{{ID: "f1", Name: folderID + ".csv"}}, nil
}

func (fakeDrive) FindFolderByPath(_ context.Context, path string) (string, error) {
	switch path {
	case "missing":
		return "", fmt.Errorf("%w: folder missing", storage.ErrNotFound)
	case "flaky":
		return "", errors.New("drive unavailable")
	}
	return "resolved", nil
}

func TestDriveFiles(t *testing.T) {
	router := NewRouter(&Services{Drive: fakeDrive{}}, nil)

	rec := serve(t, router, http.MethodGet, "/api/v1/drive/files?path=exports", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "resolved.csv")

	assert.Equal(t, http.StatusNotFound, serve(t, router, http.MethodGet, "/api/v1/drive/files?path=missing", "").Code)
	assert.Equal(t, http.StatusBadGateway, serve(t, router, http.MethodGet, "/api/v1/drive/files?path=flaky", "").Code)
	assert.Equal(t, http.StatusBadGateway, serve(t, router, http.MethodGet, "/api/v1/drive/files?folderId=broken", "").Code)
}

func TestRoutesAbsentWithoutServices(t *testing.T) {
	router := NewRouter(&Services{}, nil)

	assert.Equal(t, http.StatusNotFound, serve(t, router, http.MethodGet, "/api/v1/objects", "").Code)
}

func corsGet(t *testing.T, router *gin.Engine, origin string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", origin)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCORS_DefaultsToLocalhost(t *testing.T) {
	router := NewRouter(&Services{}, nil)

	rec := corsGet(t, router, "http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = corsGet(t, router, "http://evil.test")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_WildcardDropsCredentials(t *testing.T) {
	router := NewRouter(&Services{}, []string{"*"})

	rec := corsGet(t, router, "http://evil.test")

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, allowAll := normalizeAllowedOrigins([]string{"http://a.test, http://b.test", " ", "*"})

	assert.True(t, allowAll)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, origins)
}
