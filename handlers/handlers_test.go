package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/iankiku/agentsauthority-chatbot-sub003/cache"
	"github.com/iankiku/agentsauthority-chatbot-sub003/middleware"
	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRunner is a mock for the analysis runner
type MockRunner struct {
	mock.Mock
}

// Start mocks the Start method
func (m *MockRunner) Start(subject types.AnalysisSubject) (types.Job, error) {
	args := m.Called(subject)
	return args.Get(0).(types.Job), args.Error(1)
}

// MockJobReader is a mock for the job store
type MockJobReader struct {
	mock.Mock
}

// Get mocks the Get method
func (m *MockJobReader) Get(id string) (types.Job, error) {
	args := m.Called(id)
	return args.Get(0).(types.Job), args.Error(1)
}

// List mocks the List method
func (m *MockJobReader) List() []types.Job {
	args := m.Called()
	return args.Get(0).([]types.Job)
}

// MockResultCache is a mock for the freshness cache
type MockResultCache struct {
	mock.Mock
}

// GetJSON mocks the GetJSON method
func (m *MockResultCache) GetJSON(ctx context.Context, class cache.ResourceClass, dst interface{}, identity ...string) bool {
	args := m.Called(ctx, class, dst, identity)
	return args.Bool(0)
}

// Invalidate mocks the Invalidate method
func (m *MockResultCache) Invalidate(ctx context.Context, class cache.ResourceClass, identity ...string) error {
	args := m.Called(ctx, class, identity)
	return args.Error(0)
}

// ClearAll mocks the ClearAll method
func (m *MockResultCache) ClearAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Policy mocks the Policy method
func (m *MockResultCache) Policy() cache.Policy {
	args := m.Called()
	return args.Get(0).(cache.Policy)
}

// MockProgress is a mock for the progress broadcaster
type MockProgress struct {
	mock.Mock
}

// Subscribe mocks the Subscribe method
func (m *MockProgress) Subscribe(ctx context.Context, jobID string) <-chan types.JobEvent {
	args := m.Called(ctx, jobID)
	return args.Get(0).(<-chan types.JobEvent)
}

type testMocks struct {
	runner   *MockRunner
	jobs     *MockJobReader
	cache    *MockResultCache
	progress *MockProgress
}

func setupTestHandler(t *testing.T) (*Handler, testMocks) {
	t.Helper()
	mocks := testMocks{
		runner:   &MockRunner{},
		jobs:     &MockJobReader{},
		cache:    &MockResultCache{},
		progress: &MockProgress{},
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests

	// Initialize middleware logger for tests
	middleware.Logger = logger

	handler := NewHandler(mocks.runner, mocks.jobs, mocks.cache, mocks.progress, logger)
	return handler, mocks
}

func eventStream(events ...types.JobEvent) <-chan types.JobEvent {
	ch := make(chan types.JobEvent, len(events))
	for _, event := range events {
		ch <- event
	}
	close(ch)
	return ch
}

func withJobID(r *http.Request, id string) *http.Request {
	return mux.SetURLVars(r, map[string]string{"id": id})
}

var acme = types.AnalysisSubject{BrandName: "Acme", BrandURL: "https://acme.com", Qualifier: "in Europe"}

func TestHandleCreateAnalysisAccepted(t *testing.T) {
	handler, mocks := setupTestHandler(t)

	mocks.cache.On("GetJSON", mock.Anything, cache.ClassBrandAnalysis, mock.Anything, acme.Identity()).Return(false)
	mocks.runner.On("Start", acme).Return(types.Job{ID: "job-42", Status: types.JobPending, Subject: acme}, nil)

	body := `{"brandName":"  Acme ","brandUrl":"HTTPS://Acme.com/","qualifier":"in Europe"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyses", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandleCreateAnalysis(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "/api/jobs/job-42", w.Header().Get("Location"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp CreateAnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job-42", resp.JobID)
	assert.Equal(t, types.JobPending, resp.Status)
	assert.Equal(t, "/api/jobs/job-42", resp.StatusURL)
	assert.Nil(t, resp.Result)

	mocks.runner.AssertExpectations(t)
	mocks.cache.AssertExpectations(t)
}

func TestHandleCreateAnalysisCacheHit(t *testing.T) {
	handler, mocks := setupTestHandler(t)

	subject := types.AnalysisSubject{BrandName: "Acme", BrandURL: "https://acme.com"}
	cached := types.AnalysisResult{OverallScore: 72.5, VisibilityScore: 80, QueriesRun: 6}
	mocks.cache.On("GetJSON", mock.Anything, cache.ClassBrandAnalysis, mock.Anything, subject.Identity()).
		Run(func(args mock.Arguments) {
			*args.Get(2).(*types.AnalysisResult) = cached
		}).
		Return(true)

	req := httptest.NewRequest(http.MethodPost, "/api/analyses", strings.NewReader(`{"brandName":"Acme","brandUrl":"https://acme.com"}`))
	w := httptest.NewRecorder()

	handler.HandleCreateAnalysis(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	var resp CreateAnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, types.JobCompleted, resp.Status)
	assert.Empty(t, resp.JobID)
	require.NotNil(t, resp.Result)
	assert.Equal(t, 72.5, resp.Result.OverallScore)
	assert.Equal(t, 6, resp.Result.QueriesRun)

	mocks.runner.AssertNotCalled(t, "Start", mock.Anything)
}

func TestHandleCreateAnalysisValidation(t *testing.T) {
	testCases := []struct {
		name  string
		body  string
		field string
	}{
		{"Invalid JSON", `{"brandName":`, ""},
		{"Missing brand name", `{"brandUrl":"https://acme.com"}`, "brandName"},
		{"Blank brand name", `{"brandName":"   ","brandUrl":"https://acme.com"}`, "brandName"},
		{"Brand name too long", `{"brandName":"` + strings.Repeat("a", MaxBrandNameLength+1) + `","brandUrl":"https://acme.com"}`, "brandName"},
		{"Script in brand name", `{"brandName":"<script>x</script>","brandUrl":"https://acme.com"}`, "brandName"},
		{"Missing URL", `{"brandName":"Acme"}`, "brandUrl"},
		{"Relative URL", `{"brandName":"Acme","brandUrl":"acme.com"}`, "brandUrl"},
		{"Javascript URL", `{"brandName":"Acme","brandUrl":"javascript:alert(1)"}`, "brandUrl"},
		{"Private URL", `{"brandName":"Acme","brandUrl":"http://10.0.0.8"}`, "brandUrl"},
		{"Qualifier too long", `{"brandName":"Acme","brandUrl":"https://acme.com","qualifier":"` + strings.Repeat("q", MaxQualifierLength+1) + `"}`, "qualifier"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler, mocks := setupTestHandler(t)

			req := httptest.NewRequest(http.MethodPost, "/api/analyses", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			handler.HandleCreateAnalysis(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var apiErr middleware.APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
			assert.Equal(t, middleware.ErrCodeValidation, apiErr.Error)
			if tc.field != "" {
				assert.Contains(t, apiErr.Details, tc.field)
			}

			mocks.runner.AssertNotCalled(t, "Start", mock.Anything)
			mocks.cache.AssertNotCalled(t, "GetJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestHandleCreateAnalysisStartFailure(t *testing.T) {
	handler, mocks := setupTestHandler(t)

	mocks.cache.On("GetJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false)
	mocks.runner.On("Start", mock.Anything).Return(types.Job{}, errors.New("store unavailable"))

	req := httptest.NewRequest(http.MethodPost, "/api/analyses", strings.NewReader(`{"brandName":"Acme","brandUrl":"https://acme.com"}`))
	w := httptest.NewRecorder()
	handler.HandleCreateAnalysis(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestValidateSubjectCanonicalizes(t *testing.T) {
	subject, err := ValidateSubject(CreateAnalysisRequest{
		BrandName: " Acme Corp ",
		BrandURL:  "HTTPS://WWW.Acme.com/products/#pricing",
		Qualifier: " for startups ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", subject.BrandName)
	assert.Equal(t, "https://www.acme.com/products", subject.BrandURL)
	assert.Equal(t, "for startups", subject.Qualifier)

	var validationErr *types.ValidationError
	_, err = ValidateSubject(CreateAnalysisRequest{BrandName: "Acme", BrandURL: "https://printer.local"})
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "brandUrl", validationErr.Field)
}

func TestHandleGetJob(t *testing.T) {
	handler, mocks := setupTestHandler(t)

	job := types.Job{ID: "job-1", Status: types.JobProcessing, Progress: 50, Stage: "Scanning AI providers", Subject: acme}
	mocks.jobs.On("Get", "job-1").Return(job, nil)

	w := httptest.NewRecorder()
	handler.HandleGetJob(w, withJobID(httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil), "job-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	var got types.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "job-1", got.ID)
	assert.Equal(t, types.JobProcessing, got.Status)
	assert.Equal(t, 50, got.Progress)
	assert.Equal(t, "Scanning AI providers", got.Stage)
}

func TestHandleGetJobNotFound(t *testing.T) {
	handler, mocks := setupTestHandler(t)

	mocks.jobs.On("Get", "missing").Return(types.Job{}, &types.NotFoundError{Resource: "job", ID: "missing"})

	w := httptest.NewRecorder()
	handler.HandleGetJob(w, withJobID(httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil), "missing"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var apiErr middleware.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, middleware.ErrCodeNotFound, apiErr.Error)
	assert.Equal(t, types.JobNotFoundMessage, apiErr.Details)
}

func TestHandleInvalidateAnalysis(t *testing.T) {
	handler, mocks := setupTestHandler(t)

	subject := types.AnalysisSubject{BrandName: "Acme", BrandURL: "https://acme.com"}
	mocks.cache.On("Invalidate", mock.Anything, cache.ClassBrandAnalysis, subject.Identity()).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/analyses?brandName=Acme&brandUrl=https://acme.com/", nil)
	w := httptest.NewRecorder()
	handler.HandleInvalidateAnalysis(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mocks.cache.AssertExpectations(t)

	// Missing identity
	w = httptest.NewRecorder()
	handler.HandleInvalidateAnalysis(w, httptest.NewRequest(http.MethodDelete, "/api/analyses?brandName=Acme", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleClearCache(t *testing.T) {
	handler, mocks := setupTestHandler(t)
	mocks.cache.On("ClearAll", mock.Anything).Return(nil).Once()
	mocks.cache.On("ClearAll", mock.Anything).Return(errors.New("datastore unavailable")).Once()

	w := httptest.NewRecorder()
	handler.HandleClearCache(w, httptest.NewRequest(http.MethodDelete, "/api/cache", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	handler.HandleClearCache(w, httptest.NewRequest(http.MethodDelete, "/api/cache", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "datastore unavailable")
	mocks.cache.AssertExpectations(t)
}

func TestHandleGetCachePolicy(t *testing.T) {
	handler, mocks := setupTestHandler(t)

	mocks.cache.On("Policy").Return(cache.Policy{
		cache.ClassBrandAnalysis:  6 * time.Hour,
		cache.ClassBrandDiscovery: time.Hour,
		cache.ClassProviderScan:   30 * time.Minute,
	})

	w := httptest.NewRecorder()
	handler.HandleGetCachePolicy(w, httptest.NewRequest(http.MethodGet, "/api/cache/policy", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var entries []CachePolicyEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 3)

	byClass := make(map[string]CachePolicyEntry)
	for _, entry := range entries {
		byClass[entry.ResourceClass] = entry
	}
	assert.Equal(t, int64(21600), byClass[string(cache.ClassBrandAnalysis)].TTLSeconds)
	assert.Equal(t, "6h0m0s", byClass[string(cache.ClassBrandAnalysis)].TTL)
	assert.Equal(t, int64(3600), byClass[string(cache.ClassBrandDiscovery)].TTLSeconds)
	assert.Equal(t, int64(1800), byClass[string(cache.ClassProviderScan)].TTLSeconds)
}

func TestHandleStreamJob(t *testing.T) {
	handler, mocks := setupTestHandler(t)

	result := &types.AnalysisResult{OverallScore: 64}
	mocks.progress.On("Subscribe", mock.Anything, "job-1").Return(eventStream(
		types.JobEvent{Type: types.JobEventStatus, JobID: "job-1", Status: types.JobProcessing, Progress: 30, Stage: "Running AI queries"},
		types.JobEvent{Type: types.JobEventStatus, JobID: "job-1", Status: types.JobCompleted, Progress: 100, Result: result},
	))

	w := httptest.NewRecorder()
	handler.HandleStreamJob(w, withJobID(httptest.NewRequest(http.MethodGet, "/api/jobs/job-1/stream", nil), "job-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	var events []types.JobEvent
	scanner := bufio.NewScanner(strings.NewReader(w.Body.String()))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event types.JobEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}

	require.Len(t, events, 2)
	assert.Equal(t, 30, events[0].Progress)
	assert.Equal(t, types.JobCompleted, events[1].Status)
	require.NotNil(t, events[1].Result)
	assert.Equal(t, 64.0, events[1].Result.OverallScore)
}

func TestHandleStreamJobNotFound(t *testing.T) {
	handler, mocks := setupTestHandler(t)

	mocks.progress.On("Subscribe", mock.Anything, "ghost").Return(eventStream(
		types.JobEvent{Type: types.JobEventError, JobID: "ghost", Error: types.JobNotFoundMessage},
	))

	w := httptest.NewRecorder()
	handler.HandleStreamJob(w, withJobID(httptest.NewRequest(http.MethodGet, "/api/jobs/ghost/stream", nil), "ghost"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"type":"error"`)
	assert.Contains(t, w.Body.String(), types.JobNotFoundMessage)
}

func TestHandleJobWebSocket(t *testing.T) {
	handler, mocks := setupTestHandler(t)

	mocks.progress.On("Subscribe", mock.Anything, "job-1").Return(eventStream(
		types.JobEvent{Type: types.JobEventStatus, JobID: "job-1", Status: types.JobPending, Progress: 0},
		types.JobEvent{Type: types.JobEventStatus, JobID: "job-1", Status: types.JobFailed, Progress: 30, Error: "No AI providers configured"},
	))

	router := mux.NewRouter()
	router.HandleFunc("/api/jobs/{id}/ws", handler.HandleJobWebSocket)
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/jobs/job-1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first, second types.JobEvent
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, types.JobPending, first.Status)
	assert.Equal(t, types.JobFailed, second.Status)
	assert.Equal(t, "No AI providers configured", second.Error)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal closure, got %v", err)
}
