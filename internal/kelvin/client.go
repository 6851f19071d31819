// Package kelvin uploads archives to the Kelvin grading service.
package kelvin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

const (
	// FormField is the multipart field carrying the archive.
	FormField = "solution"
	// FileName is the file name announced for the archive.
	FileName = "submit.zip"
	// PartContentType is the content type of the archive part.
	PartContentType = "application/zip"
)

// Client submits archives to one Kelvin instance with one API token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a Client. A nil httpClient uses a client with default
// settings and no timeout.
func NewClient(httpClient *http.Client, baseURL, token, userAgent string, logger *slog.Logger) *Client {
	if logger == nil {
		panic("logger is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		userAgent:  userAgent,
		logger:     logger,
	}
}

// SubmitURL returns the upload endpoint for an assignment.
func (c *Client) SubmitURL(assignmentID uint64) string {
	return fmt.Sprintf("%s/api/submits/%d", c.baseURL, assignmentID)
}

// Submit uploads archive as a solution of the assignment. It performs exactly
// one HTTP request.
//
// A non-OK answer is not an error: it yields a Rejected result and is logged.
// Transport failures, an unreadable rejection body and a malformed success
// body are returned as errors.
func (c *Client) Submit(ctx context.Context, archive []byte, assignmentID uint64) (*Result, error) {
	body, contentType, err := encodeForm(archive)
	if err != nil {
		return nil, &RequestError{Cause: err}
	}

	url := c.SubmitURL(assignmentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, &RequestError{Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", contentType)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("Uploading submit", "url", url, "size", len(archive))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &SendError{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.rejected(resp)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DecodeError{Cause: err}
	}

	// The whole body must be one JSON document; trailing bytes are rejected.
	var decoded submitResponse
	if err := json.Unmarshal(content, &decoded); err != nil {
		return nil, &DecodeError{Cause: err}
	}
	submission, err := decoded.submission()
	if err != nil {
		return nil, &DecodeError{Cause: err}
	}

	c.logger.Info(fmt.Sprintf("Created submit #%d for task %s", submission.ID, submission.TaskName))
	c.logger.Info(fmt.Sprintf("You can find the submit at %s", submission.URL))

	return &Result{Outcome: Success, Submission: submission}, nil
}

func (c *Client) rejected(resp *http.Response) (*Result, error) {
	c.logger.Error(fmt.Sprintf("The submit was not successful. Status error: %s", resp.Status))

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ResponseReadError{StatusCode: resp.StatusCode, Cause: err}
	}
	c.logger.Debug(fmt.Sprintf("Response content: %s", content))

	return &Result{
		Outcome:    Rejected,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(content),
	}, nil
}

// encodeForm builds the multipart body holding archive as the solution file.
func encodeForm(archive []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FormField, FileName))
	header.Set("Content-Type", PartContentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(archive); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return &buf, mw.FormDataContentType(), nil
}
