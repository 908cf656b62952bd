package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmg-amp-rating/internal/config"
	"github.com/acmg-amp-rating/internal/domain"
	"github.com/acmg-amp-rating/internal/rating"
	"github.com/acmg-amp-rating/internal/service"
)

const brca1Variant = "grch37-17-41245466-G-A"

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []*domain.VerdictRecord
}

func (r *memoryRecorder) RecordVerdict(_ context.Context, rec *domain.VerdictRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memoryRecorder) ListVerdicts(_ context.Context, variant string, limit int) ([]*domain.VerdictRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.VerdictRecord{}
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		if r.records[i].Variant == variant {
			out = append(out, r.records[i])
		}
	}
	return out, nil
}

type stubPrediction struct {
	source    domain.Source
	judgments []domain.Judgment
}

func (s stubPrediction) Source() domain.Source { return s.source }

func (s stubPrediction) Predict(context.Context, string) ([]domain.Judgment, error) {
	return s.judgments, nil
}

type failingStore struct {
	domain.RatingStore
	err error
}

func (f failingStore) Fetch(context.Context, string) (*domain.RatingRecord, error) {
	return nil, f.err
}

func newTestServer(t *testing.T, store domain.RatingStore, opts ...service.RatingServiceOption) (*Server, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()

	cfg, err := config.NewManager()
	require.NoError(t, err)

	svc := service.NewRatingService(logger, store, opts...)
	return NewServer(cfg, svc, logger), hook
}

func newSQLiteStore(t *testing.T) *rating.SQLiteStore {
	t.Helper()
	store, err := rating.NewSQLiteStore(filepath.Join(t.TempDir(), "ratings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

const pathogenicRecord = `{"comment":"segregates","criteria":[
	{"code":"Pvs1","presence":"Present"},
	{"code":"Ps1","presence":"Present"},
	{"code":"Ba1","presence":"Absent"}]}`

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t, newSQLiteStore(t))

	w := doJSON(t, server.Handler(), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestHealth_Degraded(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg, err := config.NewManager()
	require.NoError(t, err)
	svc := service.NewRatingService(logger, newSQLiteStore(t))
	server := NewServer(cfg, svc, logger, WithHealthCheck("redis", func(context.Context) error {
		return errors.New("connection refused")
	}))

	w := doJSON(t, server.Handler(), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestListCriteria(t *testing.T) {
	server, _ := newTestServer(t, newSQLiteStore(t))

	w := doJSON(t, server.Handler(), http.MethodGet, "/api/v1/criteria", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Criteria []map[string]interface{} `json:"criteria"`
		Rules    []map[string]interface{} `json:"rules"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Criteria, domain.CriterionCount)
	assert.Equal(t, "Pvs1", resp.Criteria[0]["code"])
	assert.Len(t, resp.Rules, len(service.CombiningRules()))
}

func TestClassify(t *testing.T) {
	server, _ := newTestServer(t, newSQLiteStore(t))

	w := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/classify", pathogenicRecord)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var eval service.Evaluation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &eval))
	assert.Equal(t, domain.PATHOGENIC, eval.Verdict.Classification)
	assert.Equal(t, domain.RulePathogenicVeryStrongStrong, eval.Verdict.Rule)
	assert.Equal(t, []domain.CriterionCode{domain.PVS1, domain.PS1}, eval.Verdict.Contributing)
	assert.Equal(t, "Pathogenic - Disease-causing variant", eval.Verdict.Significance)
	assert.True(t, eval.Verdict.ActionRequired)
	assert.Contains(t, w.Body.String(), `"clinical_significance"`)
	assert.Len(t, eval.Effective, domain.CriterionCount)
	assert.Equal(t, "segregates", eval.Comment)
}

func TestClassify_InvalidInput(t *testing.T) {
	server, _ := newTestServer(t, newSQLiteStore(t))

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"criteria":`},
		{"unknown criterion", `{"criteria":[{"code":"Px9","presence":"Present"}]}`},
		{"strength not allowed", `{"criteria":[{"code":"Bs3","presence":"Present","strength":"MODERATE"}]}`},
		{"duplicate criterion", `{"criteria":[{"code":"Pm1","presence":"Present"},{"code":"Pm1","presence":"Absent"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/classify", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
		})
	}
}

func TestMerge(t *testing.T) {
	server, _ := newTestServer(t, newSQLiteStore(t))

	body := `{"judgments":[
		{"source":"InterVar","code":"Pm2","presence":"Present"},
		{"source":"AutoACMG","code":"Pm2","presence":"Absent"},
		{"source":"InterVar","code":"Bp7","presence":"Present"},
		{"source":"User","code":"Bp4","presence":"Present"}]}`

	w := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/merge", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var eval service.Evaluation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &eval))

	pm2 := eval.Effective[domain.PM2]
	assert.Equal(t, domain.PresenceUnknown, pm2.Presence)
	assert.True(t, pm2.Conflict)
	assert.Equal(t, domain.LIKELY_BENIGN, eval.Verdict.Classification)
	assert.Equal(t, domain.RuleLikelyBenignSupporting, eval.Verdict.Rule)

	w = doJSON(t, server.Handler(), http.MethodPost, "/api/v1/merge", `{"judgments":[{"source":"Oracle","code":"Pm2","presence":"Present"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRatingLifecycle(t *testing.T) {
	recorder := &memoryRecorder{}
	server, _ := newTestServer(t, newSQLiteStore(t), service.WithHistory(recorder))
	h := server.Handler()
	path := "/api/v1/ratings/" + brca1Variant

	w := doJSON(t, h, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, h, http.MethodPost, path, pathogenicRecord)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, h, http.MethodPost, path, pathogenicRecord)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, h, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got RatingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, brca1Variant, got.Variant)
	assert.Equal(t, "segregates", got.Record.Comment)
	assert.Len(t, got.Record.Criteria, domain.CriterionCount)
	assert.Equal(t, domain.PATHOGENIC, got.Evaluation.Verdict.Classification)

	w = doJSON(t, h, http.MethodPut, path, `{"comment":"revised","criteria":[{"code":"Ba1","presence":"Present"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, h, http.MethodGet, path+"/verdict", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var verdict domain.Verdict
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verdict))
	assert.Equal(t, domain.BENIGN, verdict.Classification)
	assert.Equal(t, domain.RuleBenignStandAlone, verdict.Rule)

	w = doJSON(t, h, http.MethodGet, path+"/history?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		History []domain.VerdictRecord `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.History, 2)
	assert.Equal(t, domain.BENIGN, history.History[0].Classification)
	assert.Equal(t, "revised", history.History[0].Comment)

	w = doJSON(t, h, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, h, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRating_CanonicalVariantKey(t *testing.T) {
	server, _ := newTestServer(t, newSQLiteStore(t))
	h := server.Handler()

	w := doJSON(t, h, http.MethodPut, "/api/v1/ratings/GRCh37-chr17-41245466-g-a", pathogenicRecord)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, h, http.MethodGet, "/api/v1/ratings/"+brca1Variant, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/v1/ratings/not-a-variant", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRatings(t *testing.T) {
	server, _ := newTestServer(t, newSQLiteStore(t))
	h := server.Handler()

	for _, v := range []string{brca1Variant, "grch38-17-7674220-C-T", "DEL-grch38-1-1000-2000"} {
		w := doJSON(t, h, http.MethodPut, "/api/v1/ratings/"+v, pathogenicRecord)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := doJSON(t, h, http.MethodGet, "/api/v1/ratings?limit=2&offset=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Ratings, 2)
	assert.Equal(t, 2, page.Limit)

	w = doJSON(t, h, http.MethodGet, "/api/v1/ratings?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(t, h, http.MethodGet, "/api/v1/ratings?offset=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPersistenceErrorsPassThrough(t *testing.T) {
	backendErr := domain.NewPersistenceError("fetch", brca1Variant, http.StatusServiceUnavailable, errors.New("backend down"))
	server, hook := newTestServer(t, failingStore{err: backendErr})

	w := doJSON(t, server.Handler(), http.MethodGet, "/api/v1/ratings/"+brca1Variant+"/verdict", nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "PERSISTENCE_FAILED")
	assert.Contains(t, w.Body.String(), "backend down")

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Request failed" {
			logged = true
		}
	}
	assert.True(t, logged)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrUnknownCriterion, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrAlreadyExists, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{&domain.AnnotationError{Source: domain.SourceInterVar, Err: errors.New("boom")}, http.StatusBadGateway},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

func dialSession(t *testing.T, srv *httptest.Server, variant string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ratings/" + variant + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) SessionResponse {
	t.Helper()
	var resp SessionResponse
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestLiveSession(t *testing.T) {
	logger, _ := test.NewNullLogger()
	resolver := service.NewPredictionResolver(service.PredictionResolverConfig{}, []domain.PredictionSource{
		stubPrediction{source: domain.SourceInterVar, judgments: []domain.Judgment{
			{Source: domain.SourceInterVar, Code: domain.PM1, Presence: domain.PresencePresent},
		}},
	}, nil, nil, logger)

	store := newSQLiteStore(t)
	server, _ := newTestServer(t, store, service.WithPredictions(resolver))
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	conn := dialSession(t, srv, brca1Variant)

	initial := readResponse(t, conn)
	assert.Equal(t, "evaluation", initial.Type)
	assert.NotEmpty(t, initial.SessionID)
	require.NotNil(t, initial.OpenedAt)
	assert.False(t, initial.OpenedAt.IsZero())
	assert.False(t, initial.Persisted)
	require.NotNil(t, initial.Evaluation)
	assert.Equal(t, domain.SourceInterVar, initial.Evaluation.Effective[domain.PM1].Source)

	require.NoError(t, conn.WriteJSON(map[string]string{"code": "Pvs1", "presence": "Present"}))
	update := readResponse(t, conn)
	assert.Equal(t, "judgment", update.Type)
	require.NotNil(t, update.Effective)
	assert.Equal(t, domain.PVS1, update.Effective.Code)
	assert.Equal(t, domain.SourceUser, update.Effective.Source)
	require.NotNil(t, update.Verdict)
	assert.Equal(t, domain.LIKELY_PATHOGENIC, update.Verdict.Classification)
	assert.Equal(t, domain.RuleLikelyPathogenicVeryStrongModerate, update.Verdict.Rule)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"code":"Zz9","presence":"Present"}`)))
	bad := readResponse(t, conn)
	assert.Equal(t, "error", bad.Type)
	assert.NotEmpty(t, bad.Error)

	require.NoError(t, conn.WriteJSON(map[string]string{"code": "Bs3", "presence": "Present", "strength": "MODERATE"}))
	bad = readResponse(t, conn)
	assert.Equal(t, "error", bad.Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "save", "comment": "reviewed"}))
	saved := readResponse(t, conn)
	assert.Equal(t, "saved", saved.Type)
	assert.True(t, saved.Persisted)
	require.NotNil(t, saved.Evaluation)
	assert.Equal(t, domain.LIKELY_PATHOGENIC, saved.Evaluation.Verdict.Classification)

	record, err := store.Fetch(context.Background(), brca1Variant)
	require.NoError(t, err)
	assert.Equal(t, "reviewed", record.Comment)
	pvs1, ok := record.Lookup(domain.PVS1)
	require.True(t, ok)
	assert.Equal(t, domain.PresencePresent, pvs1.Presence)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "reset"}))
	reset := readResponse(t, conn)
	assert.Equal(t, "evaluation", reset.Type)
	require.NotNil(t, reset.Evaluation)
	assert.Equal(t, domain.PresenceUnknown, reset.Evaluation.Effective[domain.PVS1].Presence)
	assert.Equal(t, domain.PresencePresent, reset.Evaluation.Effective[domain.PM1].Presence)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "dance"}))
	unknown := readResponse(t, conn)
	assert.Equal(t, "error", unknown.Type)
}

func TestLiveSession_InvalidVariant(t *testing.T) {
	server, _ := newTestServer(t, newSQLiteStore(t))
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ratings/nonsense/live"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
