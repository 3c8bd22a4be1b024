package generation_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adwise/src/core/job"
	"adwise/src/infrastructure/integrations/generation"
)

func TestSubmitText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/generate", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "hello world", r.FormValue("text"))
		assert.Equal(t, "Tamil", r.FormValue("language"))
		assert.Equal(t, "elaborate", r.FormValue("contentPreference"))
		_, _, err := r.FormFile("file")
		assert.ErrorIs(t, err, http.ErrMissingFile)

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"jobId": "J1"})
	}))
	defer srv.Close()

	payload, err := job.NewTextPayload("hello world", job.Tamil, job.Elaborate)
	require.NoError(t, err)

	id, err := generation.NewClient(srv.URL, srv.Client()).Submit(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "J1", id)
}

func TestSubmitFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)

		assert.Equal(t, "deck.pdf", header.Filename)
		assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))
		assert.Equal(t, "%PDF-1.7", string(data))
		assert.Empty(t, r.FormValue("text"))

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"jobId":"J2"}`))
	}))
	defer srv.Close()

	payload, err := job.NewFilePayload(job.FileSource{
		Name:        "deck.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.7"),
	}, job.English, job.Concise)
	require.NoError(t, err)

	id, err := generation.NewClient(srv.URL, nil).Submit(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "J2", id)
}

func TestSubmitRejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "bad request", status: http.StatusBadRequest, body: `{"message":"Invalid language selection"}`},
		{name: "server error", status: http.StatusInternalServerError, body: ""},
		{name: "ok is not accepted", status: http.StatusOK, body: `{"jobId":"J1"}`},
		{name: "accepted without id", status: http.StatusAccepted, body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			payload, err := job.NewTextPayload("x", job.English, job.Concise)
			require.NoError(t, err)

			_, err = generation.NewClient(srv.URL, nil).Submit(context.Background(), payload)
			assert.Error(t, err)
		})
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/job-status/J1":
			w.Write([]byte(`{"status":"processing"}`))
		case "/job-status/J2":
			w.Write([]byte(`{"status":"COMPLETED","artifactId":"A1"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	client := generation.NewClient(srv.URL+"/", nil)

	report, err := client.Status(context.Background(), "J1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusReport{Status: job.RemoteProcessing}, report)

	report, err = client.Status(context.Background(), "J2")
	require.NoError(t, err)
	assert.Equal(t, job.StatusReport{Status: job.RemoteCompleted, ArtifactID: "A1"}, report)

	_, err = client.Status(context.Background(), "missing")
	var statusErr *generation.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestArtifactAndOpenFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/artifact/A1":
			w.Write([]byte(`{"id":"A1","title":"Launch","description":"Product launch video","fileUrl":"/media/a1.mp4"}`))
		case "/media/a1.mp4":
			w.Header().Set("Content-Type", "video/mp4")
			w.Write([]byte("binary"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	client := generation.NewClient(srv.URL, nil)

	artifact, err := client.Artifact(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, "Launch", artifact.Title)
	assert.Equal(t, srv.URL+"/media/a1.mp4", artifact.FileURL)

	body, contentType, _, err := client.OpenFile(context.Background(), artifact.FileURL)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))
	assert.Equal(t, "video/mp4", contentType)

	_, _, _, err = client.OpenFile(context.Background(), srv.URL+"/media/missing.mp4")
	assert.Error(t, err)
}
