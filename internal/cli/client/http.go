package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type APIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewAPIClientWithCmd builds a client from the resolved credentials of cmd.
// A .env file in the working directory is loaded first when present.
func NewAPIClientWithCmd(cmd *cobra.Command) (*APIClient, error) {
	_ = godotenv.Load()

	creds, err := ResolveCredentials(cmd)
	if err != nil {
		return nil, err
	}
	return NewAPIClientWithConfig(creds.APIKey, creds.APIURL), nil
}

// NewAPIClientWithConfig creates an APIClient with explicit settings.
func NewAPIClientWithConfig(apiKey, baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		// uploads run the whole extraction and embedding pipeline before replying
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// APIError represents an error from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// UploadedFile is one stored file and the chunks produced from it.
type UploadedFile struct {
	FilePath string   `json:"file_path"`
	Chunks   []string `json:"chunks"`
}

type UploadResponse struct {
	Message       string         `json:"message"`
	UploadedFiles []UploadedFile `json:"uploaded_files"`
}

// QueryResult carries the answer text. Found is false when the server had no match.
type QueryResult struct {
	Answer string `json:"answer"`
	Found  bool   `json:"found"`
}

type Document struct {
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
	SizeBytes  int64  `json:"size_bytes"`
	SHA256     string `json:"sha256"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}

// Upload sends the files at paths in a single multipart request under the "files" field.
func (c *APIClient) Upload(ctx context.Context, paths []string) (*UploadResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range paths {
		if err := addFilePart(mw, p); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func addFilePart(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// Query asks a question. A 404 carrying the fallback answer is not an error.
func (c *APIClient) Query(ctx context.Context, text string) (*QueryResult, error) {
	payload, err := json.Marshal(map[string]string{"query": text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/query", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		var miss struct {
			Answers []string `json:"answers"`
		}
		if err := json.Unmarshal(data, &miss); err == nil && len(miss.Answers) > 0 {
			return &QueryResult{Answer: miss.Answers[0]}, nil
		}
	}
	if resp.StatusCode >= 400 {
		return nil, newAPIError(resp.StatusCode, data)
	}

	var hit struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(data, &hit); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &QueryResult{Answer: hit.Answer, Found: true}, nil
}

// Files lists stored filenames.
func (c *APIClient) Files(ctx context.Context) ([]string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/files", nil)
	if err != nil {
		return nil, err
	}

	var names []string
	if err := c.doJSON(req, &names); err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// documentsPageSize is the page size requested while walking the catalog.
const documentsPageSize = 100

// Documents lists the whole ingestion catalog, following next_cursor until
// the server reports no more pages.
func (c *APIClient) Documents(ctx context.Context) ([]Document, error) {
	all := []Document{}
	cursor := ""
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(documentsPageSize))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		req, err := c.newRequest(ctx, http.MethodGet, "/documents?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var page struct {
			Data       []Document `json:"data"`
			NextCursor string     `json:"next_cursor"`
			HasMore    bool       `json:"has_more"`
		}
		if err := c.doJSON(req, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)

		if !page.HasMore || page.NextCursor == "" || page.NextCursor == cursor {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// Download writes the stored file name to outputPath and returns the byte count.
// The output file is removed if the transfer fails.
func (c *APIClient) Download(ctx context.Context, name, outputPath string) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/download/"+url.PathEscape(name), nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return 0, newAPIError(resp.StatusCode, data)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	n, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(outputPath)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	return n, nil
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *APIClient) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return newAPIError(resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{StatusCode: status, Message: errResp.Error}
	}
	msg := string(bytes.TrimSpace(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}
