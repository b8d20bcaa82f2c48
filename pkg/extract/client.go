// Package extract provides a client for the resume extraction service,
// which turns a zip of resumes into structured candidate fields.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/resilience"
)

// Client defines the extraction service operations.
type Client interface {
	// Extract submits one archive of resumes and returns a result per
	// candidate the service reported on.
	Extract(ctx context.Context, req Request) ([]Result, error)
}

// Request is a single bulk submission. IDs are listed in archive order.
type Request struct {
	IDs      []string
	Archive  []byte
	Filename string
}

// Result statuses reported by the service.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Result is the service's answer for one candidate. Either Fields or
// Error is set. HasFields records that the response carried a fields object,
// even an empty one.
type Result struct {
	ID        string         `mapstructure:"id" validate:"required"`
	Status    string         `mapstructure:"status" validate:"omitempty,oneof=success failure failed cancelled pending processing"`
	Fields    map[string]any `mapstructure:"fields"`
	Error     string         `mapstructure:"error"`
	HasFields bool           `mapstructure:"-"`
}

// Failed reports whether the service could not extract this candidate.
func (r Result) Failed() bool {
	if r.Error != "" {
		return true
	}
	if r.Status != "" && r.Status != StatusSuccess {
		return true
	}
	return !r.HasFields && len(r.Fields) == 0
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the overall request timeout. Extraction of a full batch
// is slow, so the default is generous.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	validate *validator.Validate
}

// NewClient creates a new extraction service client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "http://localhost:8000",
		http: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Extract(ctx context.Context, req Request) ([]Result, error) {
	if len(req.Archive) == 0 {
		return nil, eris.New("extract: empty archive")
	}
	filename := req.Filename
	if filename == "" {
		filename = "resumes.zip"
	}

	body, contentType, err := encodeMultipart(req.IDs, filename, req.Archive)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/resumes/batch", body)
	if err != nil {
		return nil, eris.Wrap(err, "extract: create request")
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "extract: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "extract: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("extract: unexpected status %d: %s", resp.StatusCode, truncate(data, 512))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	return c.decode(data)
}

func encodeMultipart(ids []string, filename string, archive []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, id := range ids {
		if err := mw.WriteField("ids", id); err != nil {
			return nil, "", eris.Wrap(err, "extract: write ids field")
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", eris.Wrap(err, "extract: create file part")
	}
	if _, err := fw.Write(archive); err != nil {
		return nil, "", eris.Wrap(err, "extract: write archive")
	}
	if err := mw.Close(); err != nil {
		return nil, "", eris.Wrap(err, "extract: close multipart")
	}
	return &buf, mw.FormDataContentType(), nil
}

// decode accepts the service's list of result objects. Older deployments
// return the extracted fields under "candidate" rather than "fields", and
// numeric ids; both are normalized here. Entries without an id are dropped.
func (c *httpClient) decode(data []byte) ([]Result, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "extract: unmarshal response")
	}

	results := make([]Result, 0, len(raw))
	for i, entry := range raw {
		if _, ok := entry["fields"]; !ok {
			if cand, ok := entry["candidate"]; ok {
				entry["fields"] = cand
			}
		}
		delete(entry, "candidate")
		_, hasFields := entry["fields"]
		if v, ok := entry["fields"]; ok && v == nil {
			delete(entry, "fields")
		}
		if v, ok := entry["error"]; ok && v == nil {
			delete(entry, "error")
		}

		var r Result
		if err := mapstructure.WeakDecode(entry, &r); err != nil {
			zap.L().Warn("extract: undecodable result", zap.Int("index", i), zap.Error(err))
			continue
		}
		if err := c.validate.Struct(r); err != nil {
			zap.L().Warn("extract: invalid result", zap.Int("index", i), zap.Error(err))
			continue
		}
		r.HasFields = hasFields
		results = append(results, r)
	}
	return results, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s...", b[:n])
}
