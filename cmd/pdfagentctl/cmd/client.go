package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// apiClient talks to a running pdfagent API.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string, timeout time.Duration) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// apiError is the error body returned by the API.
type apiError struct {
	Status int    `json:"-"`
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Detail, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Detail, e.Status)
}

func (c *apiClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &apiError{Status: resp.StatusCode}
		if jerr := json.Unmarshal(body, apiErr); jerr != nil || apiErr.Detail == "" {
			apiErr.Detail = strings.TrimSpace(string(body))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) health(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	return out, c.do(req, &out)
}

func (c *apiClient) status(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/status", nil)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	return out, c.do(req, &out)
}

type indexResponse struct {
	Message string `json:"message"`
	Chunks  int    `json:"chunks"`
	Pages   int    `json:"pages"`
}

func (c *apiClient) index(ctx context.Context, path, mode string) (indexResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return indexResponse{}, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("pdf_file", filepath.Base(path))
	if err != nil {
		return indexResponse{}, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return indexResponse{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.WriteField("mode", mode); err != nil {
		return indexResponse{}, err
	}
	if err := mw.Close(); err != nil {
		return indexResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/index_pdf", &buf)
	if err != nil {
		return indexResponse{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out indexResponse
	return out, c.do(req, &out)
}

func (c *apiClient) query(ctx context.Context, question, sessionID string) (string, error) {
	b, err := json.Marshal(map[string]string{"question": question, "session_id": sessionID})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/query", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	var out struct {
		Answer string `json:"answer"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}
