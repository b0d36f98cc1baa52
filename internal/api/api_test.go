package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/metaedit/internal/models"
	"github.com/starford/metaedit/internal/photometa"
	"github.com/starford/metaedit/internal/photoservice"
	"github.com/starford/metaedit/internal/session"
	"github.com/starford/metaedit/internal/testutil"
)

// testEnv sets up a temp library of three photos, an open session and
// the router. An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) (*photoservice.Service, http.Handler, string) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (*photoservice.Service, http.Handler, string) {
	t.Helper()

	libDir := filepath.Join(t.TempDir(), "photos")
	codec := photometa.NewCodec(testutil.Logger())
	fixtures := []struct {
		rel string
		rec *models.Record
	}{
		{"A.jpg", &models.Record{Location: models.Str("Paris"), People: models.NewPeopleSet("Alice", "Bob")}},
		{"B.jpg", &models.Record{Location: models.Str("Paris, Texas")}},
		{"sub/C.jpg", nil},
	}
	for _, f := range fixtures {
		p := testutil.WriteJPEG(t, libDir, f.rel)
		if f.rec != nil {
			require.NoError(t, codec.Encode(p, f.rec, photometa.UserEdit))
		}
	}

	sess := session.New(codec, session.Options{Logger: testutil.Logger()})
	require.NoError(t, sess.Open(context.Background(), libDir))
	svc := photoservice.NewService(sess)
	router := NewRouter(svc, authEnabled, token, sseHandler)
	return svc, router, libDir
}

func do(t *testing.T, router http.Handler, method, target string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func paths(resp PhotoListResponse) []string {
	out := make([]string, 0, len(resp.Photos))
	for _, p := range resp.Photos {
		out = append(out, p.Path)
	}
	return out
}

func TestListPhotos_All(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/photos", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[PhotoListResponse](t, w)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, []string{"A.jpg", "B.jpg", "sub/C.jpg"}, paths(resp))
}

func TestListPhotos_Filter(t *testing.T) {
	_, router, _ := testEnv(t, "")

	resp := decode[PhotoListResponse](t, do(t, router, http.MethodGet, "/photos?location=par", nil, nil))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, []string{"A.jpg", "B.jpg"}, paths(resp))

	resp = decode[PhotoListResponse](t, do(t, router, http.MethodGet, "/photos?people=alice,%20BOB", nil, nil))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, []string{"A.jpg"}, paths(resp))

	resp = decode[PhotoListResponse](t, do(t, router, http.MethodGet, "/photos?people=alice,carol", nil, nil))
	assert.Zero(t, resp.Total)
	assert.NotNil(t, resp.Photos, "no match should be an empty list")
	assert.Empty(t, resp.Photos)
}

func TestListPhotos_Pagination(t *testing.T) {
	_, router, _ := testEnv(t, "")

	resp := decode[PhotoListResponse](t, do(t, router, http.MethodGet, "/photos?limit=1&offset=1", nil, nil))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, []string{"B.jpg"}, paths(resp))
}

func TestGetPhoto(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/photos/A.jpg", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	photo := decode[PhotoDetail](t, w)
	require.NotNil(t, photo.Location)
	assert.Equal(t, "Paris", *photo.Location)
	assert.Equal(t, []string{"Alice", "Bob"}, photo.People)
	assert.NotEmpty(t, photo.Checksum)
	assert.Equal(t, `"`+photo.Checksum+`"`, w.Header().Get("ETag"))
}

func TestGetPhoto_NestedAndEncodedPath(t *testing.T) {
	_, router, _ := testEnv(t, "")

	for _, target := range []string{"/photos/sub/C.jpg", "/photos/sub%2FC.jpg"} {
		t.Run(target, func(t *testing.T) {
			w := do(t, router, http.MethodGet, target, nil, nil)
			require.Equal(t, http.StatusOK, w.Code)
			raw := decode[map[string]any](t, w)
			assert.Nil(t, raw["people"], "unset fields should be null")
			assert.Nil(t, raw["location"], "unset fields should be null")
		})
	}
}

func TestGetPhoto_NotFound(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/photos/nope.jpg", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdatePhoto(t *testing.T) {
	svc, router, libDir := testEnv(t, "")

	body, _ := json.Marshal(map[string]string{"group": "trip", "people": "Carol"})
	w := do(t, router, http.MethodPut, "/photos/B.jpg", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, err := photometa.NewCodec(testutil.Logger()).Decode(filepath.Join(libDir, "B.jpg"))
	require.NoError(t, err)
	require.NotNil(t, rec.Group)
	assert.Equal(t, "trip", *rec.Group)
	assert.Equal(t, "Carol", rec.People.Join())
	assert.Equal(t, "Paris, Texas", *rec.Location, "untouched field changed")

	items, _, err := svc.Search(context.Background(), criteriaFromQuery(map[string][]string{"group": {"TRIP"}}), 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 1, "index not updated")
	assert.Equal(t, "B.jpg", items[0].Path)
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/photos/A.jpg", nil, nil)
	etag := w.Header().Get("ETag")

	body, _ := json.Marshal(map[string]string{"comment": "first"})
	w = do(t, router, http.MethodPut, "/photos/A.jpg", body, map[string]string{"If-Match": etag})
	require.Equal(t, http.StatusOK, w.Code, "update with fresh etag")

	// Same stale etag again must conflict.
	body, _ = json.Marshal(map[string]string{"comment": "second"})
	w = do(t, router, http.MethodPut, "/photos/A.jpg", body, map[string]string{"If-Match": etag})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdatePhoto_BadRequests(t *testing.T) {
	_, router, _ := testEnv(t, "")

	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"invalid json", "/photos/A.jpg", "{not json", http.StatusBadRequest},
		{"no fields", "/photos/A.jpg", `{}`, http.StatusBadRequest},
		{"unknown field", "/photos/A.jpg", `{"rating":"5"}`, http.StatusBadRequest},
		{"unknown photo", "/photos/nope.jpg", `{"date":"x"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPut, tt.target, []byte(tt.body), nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestUpdatePhoto_WriteFailure(t *testing.T) {
	_, router, libDir := testEnv(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "B.jpg"), []byte("broken"), 0o644))

	w := do(t, router, http.MethodPut, "/photos/B.jpg", []byte(`{"date":"x"}`), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestServeFile(t *testing.T) {
	_, router, libDir := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/files/A.jpg", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	want, err := os.ReadFile(filepath.Join(libDir, "A.jpg"))
	require.NoError(t, err)
	assert.Equal(t, want, w.Body.Bytes())
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
}

func TestServeFile_NotIndexed(t *testing.T) {
	_, router, libDir := testEnv(t, "")
	testutil.WriteFile(t, libDir, "secret.txt", []byte("nope"))

	for _, target := range []string{"/files/secret.txt", "/files/..%2F..%2Fetc%2Fpasswd"} {
		w := do(t, router, http.MethodGet, target, nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, target)
	}
}

func TestExport(t *testing.T) {
	_, router, libDir := testEnv(t, "")

	body, _ := json.Marshal(ExportRequest{Criteria: criteriaFromQuery(map[string][]string{"location": {"texas"}})})
	w := do(t, router, http.MethodPost, "/export", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rep := decode[ExportResponse](t, w)
	require.Len(t, rep.Copies, 1)

	dest := filepath.Join(filepath.Dir(libDir), "filtered_images")
	assert.FileExists(t, filepath.Join(dest, "B.jpg"))
}

func TestExport_PaddedCriteria(t *testing.T) {
	_, router, libDir := testEnv(t, "")

	body := []byte(`{"criteria":{"people":[" Alice ", "  "],"location":"  "}}`)
	w := do(t, router, http.MethodPost, "/export", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rep := decode[ExportResponse](t, w)
	assert.Len(t, rep.Copies, 1)

	entries, err := os.ReadDir(filepath.Join(filepath.Dir(libDir), "filtered_images"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "A.jpg", entries[0].Name())
}

func TestExport_EmptyBodyExportsAll(t *testing.T) {
	_, router, libDir := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/export", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	entries, err := os.ReadDir(filepath.Join(filepath.Dir(libDir), "filtered_images"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestNoLibraryOpen(t *testing.T) {
	sess := session.New(photometa.NewCodec(testutil.Logger()), session.Options{Logger: testutil.Logger()})
	router := NewRouter(photoservice.NewService(sess), false, "", nil)

	w := do(t, router, http.MethodGet, "/photos", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	_, router, _ := testEnv(t, "secret123")

	tests := []struct {
		name   string
		method string
		target string
		header map[string]string
		want   int
	}{
		{"valid token", http.MethodGet, "/photos", map[string]string{"Authorization": "Bearer secret123"}, http.StatusOK},
		{"missing token", http.MethodGet, "/photos", nil, http.StatusUnauthorized},
		{"wrong token", http.MethodGet, "/photos", map[string]string{"Authorization": "Bearer wrong"}, http.StatusUnauthorized},
		{"query token", http.MethodGet, "/photos?access_token=secret123", nil, http.StatusOK},
		{"query token on POST", http.MethodPost, "/export?access_token=secret123", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, tt.method, tt.target, nil, tt.header)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWithSSE(t, true, "secret", blockingSSE)

	w := do(t, router, http.MethodGet, "/events", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router, _ := testEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEqual(t, http.StatusUnauthorized, w.Code)
}
