package kelvin

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method        string
	path          string
	authorization string
	userAgent     string
	fieldName     string
	fileName      string
	partType      string
	content       []byte
}

// newKelvin starts a fake Kelvin answering every request with status and body.
func newKelvin(t *testing.T, status int, body string) (*httptest.Server, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.authorization = r.Header.Get("Authorization")
		rec.userAgent = r.Header.Get("User-Agent")

		if err := r.ParseMultipartForm(1 << 20); err == nil {
			for field, headers := range r.MultipartForm.File {
				rec.fieldName = field
				rec.fileName = headers[0].Filename
				rec.partType = headers[0].Header.Get("Content-Type")
				f, err := headers[0].Open()
				if err == nil {
					rec.content, _ = io.ReadAll(f)
					f.Close()
				}
			}
		}

		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, rec
}

func newTestClient(baseURL string) (*Client, *bytes.Buffer) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewClient(nil, baseURL, "s3cret", "cargo-kelvin/test", logger), &logs
}

func TestSubmit_Success(t *testing.T) {
	server, rec := newKelvin(t, http.StatusOK, `{"submit":{"id":42,"url":"https://x/s/42"},"task":{"name":"hw1"}}`)
	client, logs := newTestClient(server.URL)
	archive := []byte("PK\x05\x06 fake zip")

	result, err := client.Submit(context.Background(), archive, 1234)

	require.NoError(t, err)
	assert.Equal(t, Success, result.Outcome)
	require.NotNil(t, result.Submission)
	assert.Equal(t, uint64(42), result.Submission.ID)
	assert.Equal(t, "https://x/s/42", result.Submission.URL)
	assert.Equal(t, "hw1", result.Submission.TaskName)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/api/submits/1234", rec.path)
	assert.Equal(t, "Bearer s3cret", rec.authorization)
	assert.Equal(t, "cargo-kelvin/test", rec.userAgent)
	assert.Equal(t, "solution", rec.fieldName)
	assert.Equal(t, "submit.zip", rec.fileName)
	assert.Equal(t, "application/zip", rec.partType)
	assert.Equal(t, archive, rec.content)

	assert.Contains(t, logs.String(), "Created submit #42 for task hw1")
	assert.Contains(t, logs.String(), "You can find the submit at https://x/s/42")
}

func TestSubmit_Rejected(t *testing.T) {
	server, _ := newKelvin(t, http.StatusForbidden, "token expired")
	client, logs := newTestClient(server.URL)

	result, err := client.Submit(context.Background(), []byte("zip"), 7)

	require.NoError(t, err, "a rejected submit is not a fatal error")
	assert.Equal(t, Rejected, result.Outcome)
	assert.Nil(t, result.Submission)
	assert.Equal(t, http.StatusForbidden, result.StatusCode)
	assert.Equal(t, "token expired", result.Body)

	var errorLine string
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, "level=ERROR") {
			errorLine = line
		}
	}
	assert.Contains(t, errorLine, "403")
	assert.Contains(t, logs.String(), "Response content: token expired")
}

func TestSubmit_MalformedSuccessBody(t *testing.T) {
	tests := map[string]string{
		"not json":       "<html>maintenance</html>",
		"missing task":   `{"submit":{"id":1,"url":"u"}}`,
		"missing id":     `{"submit":{"url":"u"},"task":{"name":"hw"}}`,
		"negative id":    `{"submit":{"id":-1,"url":"u"},"task":{"name":"hw"}}`,
		"wrong url type": `{"submit":{"id":1,"url":5},"task":{"name":"hw"}}`,
		"trailing bytes": `{"submit":{"id":1,"url":"u"},"task":{"name":"hw"}} trailing-garbage`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			server, _ := newKelvin(t, http.StatusOK, body)
			client, _ := newTestClient(server.URL)

			_, err := client.Submit(context.Background(), []byte("zip"), 1)

			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Contains(t, err.Error(), "deserializing response")
		})
	}
}

func TestSubmit_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()
	client, _ := newTestClient(baseURL)

	_, err := client.Submit(context.Background(), []byte("zip"), 1)

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Contains(t, err.Error(), "sending submit to Kelvin")
}

func TestSubmit_RejectedBodyReadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Promise more than is sent so reading the body fails.
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "partial")
	}))
	t.Cleanup(server.Close)
	client, _ := newTestClient(server.URL)

	_, err := client.Submit(context.Background(), []byte("zip"), 1)

	var readErr *ResponseReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, http.StatusInternalServerError, readErr.StatusCode)
}

func TestSubmitURL_TrimsTrailingSlash(t *testing.T) {
	client, _ := newTestClient("https://kelvin.cs.vsb.cz/")

	assert.Equal(t, "https://kelvin.cs.vsb.cz/api/submits/99", client.SubmitURL(99))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "rejected", Rejected.String())
	assert.True(t, errors.Is(&SendError{Cause: io.EOF}, io.EOF))
}
