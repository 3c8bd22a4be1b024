package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handler "adwise/handler/http"
	"adwise/src/core/artifact"
	"adwise/src/core/connection"
	"adwise/src/core/distribution"
	"adwise/src/core/failure"
	"adwise/src/core/job"
	"adwise/src/infrastructure/integrations/generation"
	"adwise/src/storage/kvstore"
)

type fakeJobs struct {
	job       job.Job
	submitted []job.Payload
	submitErr error
	resets    int
}

func (f *fakeJobs) Job() job.Job { return f.job }

func (f *fakeJobs) Submit(ctx context.Context, payload job.Payload) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, payload)
	f.job = job.Job{ID: "J1", State: job.StatePolling}
	return nil
}

func (f *fakeJobs) Resume() error { return nil }

func (f *fakeJobs) Reset() error {
	f.resets++
	f.job = job.Job{State: job.StateIdle}
	return nil
}

type fakeArtifacts struct{}

func (fakeArtifacts) Current(ctx context.Context) (*generation.Artifact, error) {
	return &generation.Artifact{ID: "A1", Title: "Launch", FileURL: "http://gen/media/a1.mp4"}, nil
}

func (fakeArtifacts) Archive(ctx context.Context) (*artifact.Archived, error) {
	return &artifact.Archived{
		Artifact: generation.Artifact{ID: "A1"},
		Bucket:   "artifacts",
		Object:   "J1/A1.mp4",
		Size:     11,
	}, nil
}

type fakeDistribution struct {
	failing map[distribution.Kind]error
}

func (f fakeDistribution) CreatePoster(ctx context.Context, jobID string) ([]string, error) {
	return []string{"post_1.jpg"}, f.failing[distribution.Poster]
}

func (f fakeDistribution) SendEmail(ctx context.Context, jobID string) error {
	return f.failing[distribution.Email]
}

func (f fakeDistribution) PublishToSocial(ctx context.Context, jobID string) error {
	return f.failing[distribution.SocialPublish]
}

func (f fakeDistribution) SendMessage(ctx context.Context) error {
	return f.failing[distribution.Messaging]
}

type fixture struct {
	router *gin.Engine
	jobs   *fakeJobs
	store  kvstore.Store
}

func newFixture(t *testing.T, state job.State, failing map[distribution.Kind]error) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := kvstore.NewMemoryStore()
	jobs := &fakeJobs{job: job.Job{State: state}}
	if state == job.StateCompleted {
		jobs.job = job.Job{ID: "J1", State: state, ArtifactID: "A1"}
		require.NoError(t, store.Set(kvstore.ActiveJobIDKey, "J1"))
	}

	dispatcher, err := distribution.NewDispatcher(store, jobs, fakeDistribution{failing: failing})
	require.NoError(t, err)

	h := handler.NewHandler(jobs, fakeArtifacts{}, dispatcher, connection.NewTracker(store), true)
	r := gin.New()
	h.RegisterRoutes(r)
	return &fixture{router: r, jobs: jobs, store: store}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestSubmitJobText(t *testing.T) {
	f := newFixture(t, job.StateIdle, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("text", "launch our new product")
	mw.WriteField("language", "hindi")
	mw.WriteField("contentPreference", "branding")
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/job", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := f.do(req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp handler.JobResponse
	decode(t, w, &resp)
	assert.Equal(t, "J1", resp.ID)
	assert.Equal(t, "polling", resp.State)

	require.Len(t, f.jobs.submitted, 1)
	assert.Equal(t, job.Hindi, f.jobs.submitted[0].Language())
	assert.Equal(t, job.Branding, f.jobs.submitted[0].ContentPreference())
}

func TestSubmitJobFile(t *testing.T) {
	f := newFixture(t, job.StateIdle, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "deck.pdf")
	require.NoError(t, err)
	part.Write([]byte("%PDF-1.7"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/job", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := f.do(req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, f.jobs.submitted, 1)
	src, ok := f.jobs.submitted[0].Source().(job.FileSource)
	require.True(t, ok)
	assert.Equal(t, "deck.pdf", src.Name)
	assert.Equal(t, job.English, f.jobs.submitted[0].Language())
}

func TestSubmitJobErrors(t *testing.T) {
	tests := []struct {
		name       string
		form       string
		submitErr  error
		wantStatus int
		wantCode   string
	}{
		{name: "empty payload", form: "language=English", wantStatus: http.StatusBadRequest, wantCode: "ValidationError"},
		{name: "unknown language", form: "text=hi&language=French", wantStatus: http.StatusBadRequest, wantCode: "ValidationError"},
		{
			name:       "service rejected",
			form:       "text=hi",
			submitErr:  failure.New(failure.Submission, errors.New("503")),
			wantStatus: http.StatusBadGateway,
			wantCode:   "SubmissionError",
		},
		{
			name:       "not idle",
			form:       "text=hi",
			submitErr:  job.ErrInvalidTransition,
			wantStatus: http.StatusConflict,
			wantCode:   "INVALID_TRANSITION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, job.StateIdle, nil)
			f.jobs.submitErr = tt.submitErr

			req := httptest.NewRequest(http.MethodPost, "/api/v1/job", strings.NewReader(tt.form))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := f.do(req)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp handler.ErrorResponse
			decode(t, w, &resp)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestResetJob(t *testing.T) {
	f := newFixture(t, job.StateCompleted, nil)

	w := f.do(httptest.NewRequest(http.MethodDelete, "/api/v1/job", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.jobs.resets)

	var resp handler.JobResponse
	decode(t, w, &resp)
	assert.Equal(t, "idle", resp.State)
}

func TestDistributeRequiresCompletedJob(t *testing.T) {
	f := newFixture(t, job.StatePolling, nil)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/distribution/email", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "PreconditionError")
}

func TestDistribute(t *testing.T) {
	f := newFixture(t, job.StateCompleted, map[distribution.Kind]error{
		distribution.Email: errors.New("smtp down"),
	})

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/distribution/poster", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var poster handler.OutcomeResponse
	decode(t, w, &poster)
	assert.True(t, poster.Succeeded)
	assert.Equal(t, "J1", poster.JobID)
	assert.Equal(t, []string{"post_1.jpg"}, poster.PosterRefs)

	w = f.do(httptest.NewRequest(http.MethodPost, "/api/v1/distribution/email", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "EmailDispatchError")

	w = f.do(httptest.NewRequest(http.MethodPost, "/api/v1/distribution/fax", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFanOut(t *testing.T) {
	f := newFixture(t, job.StateCompleted, map[distribution.Kind]error{
		distribution.SocialPublish: errors.New("token expired"),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/distribution", strings.NewReader(`{"kinds":["email","social-publish"]}`))
	req.Header.Set("Content-Type", "application/json")
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var outcomes []handler.OutcomeResponse
	decode(t, w, &outcomes)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Succeeded)
	assert.False(t, outcomes[1].Succeeded)
	assert.Equal(t, "SocialPublishError", outcomes[1].FailureKind)

	w = f.do(httptest.NewRequest(http.MethodPost, "/api/v1/distribution", nil))
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &outcomes)
	assert.Len(t, outcomes, len(distribution.Kinds))
}

func TestConnections(t *testing.T) {
	f := newFixture(t, job.StateIdle, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/connections", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"instagram":false,"youtube":false,"whatsapp":false,"allConnected":false}`, w.Body.String())

	connect := func(platform, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/connections/"+platform, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return f.do(req)
	}

	assert.Equal(t, http.StatusBadRequest, connect("whatsapp", `{"username":"u","password":"p"}`).Code)
	assert.Equal(t, http.StatusNotFound, connect("tiktok", `{"username":"u","password":"p"}`).Code)
	require.Equal(t, http.StatusOK, connect("whatsapp", `{"phoneNumber":"9876543210"}`).Code)
	require.Equal(t, http.StatusOK, connect("instagram", `{"username":"brand","password":"secret"}`).Code)

	w = connect("youtube", `{"username":"brand","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"instagram":true,"youtube":true,"whatsapp":true,"allConnected":true}`, w.Body.String())

	w = f.do(httptest.NewRequest(http.MethodDelete, "/api/v1/connections/youtube", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"instagram":true,"youtube":false,"whatsapp":true,"allConnected":false}`, w.Body.String())
}

func TestArtifactRoutes(t *testing.T) {
	f := newFixture(t, job.StateCompleted, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/artifact", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fileUrl":"http://gen/media/a1.mp4"`)

	w = f.do(httptest.NewRequest(http.MethodPost, "/api/v1/artifact/archive", nil))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"object":"J1/A1.mp4"`)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, job.StateIdle, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","jobState":"idle"}`, w.Body.String())
}
