package parsestub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(store *Store) http.Handler {
	return NewRouter(NewHandler(store, "app-id"), "/parse")
}

func do(t *testing.T, h http.Handler, method, target, appID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if appID != "" {
		req.Header.Set("X-Parse-Application-Id", appID)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateObject(t *testing.T) {
	store := NewStore()
	h := newTestRouter(store)

	rec := do(t, h, http.MethodPost, "/parse/classes/Resource", "app-id", `{"filename":"x.png"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body["objectId"], 10)
	assert.NotEmpty(t, body["createdAt"])
	assert.Equal(t, "/parse/classes/Resource/"+body["objectId"], rec.Header().Get("Location"))
	assert.Equal(t, 1, store.Count("Resource"))
}

func TestCreateObjectRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		appID  string
		body   string
		status int
	}{
		{name: "missing app id", body: `{}`, status: http.StatusForbidden},
		{name: "wrong app id", appID: "other", body: `{}`, status: http.StatusForbidden},
		{name: "not json", appID: "app-id", body: `nope`, status: http.StatusBadRequest},
		{name: "json array", appID: "app-id", body: `[1,2]`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			rec := do(t, newTestRouter(store), http.MethodPost, "/parse/classes/Resource", tt.appID, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.True(t, json.Valid(rec.Body.Bytes()))
			assert.Zero(t, store.Count("Resource"))
		})
	}
}

func TestFindObjectsOrderSkipLimit(t *testing.T) {
	store := NewStore()
	base := time.Date(2018, 7, 5, 10, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png"} {
		store.Create("Resource", map[string]any{"filename": name})
	}
	h := newTestRouter(store)

	rec := do(t, h, http.MethodGet, "/parse/classes/Resource?order=-createdAt&skip=1&limit=2", "app-id", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 2)
	assert.Equal(t, "c.png", body.Results[0]["filename"])
	assert.Equal(t, "b.png", body.Results[1]["filename"])

	rec = do(t, h, http.MethodGet, "/parse/classes/Resource?skip=10", "app-id", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/parse/classes/Resource?limit=x", "app-id", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
