package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

// apiClient talks to a running kotae server.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(serverURL string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(serverURL, "/"),
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

// do sends body as JSON (when non-nil) and decodes a 2xx response into out (when non-nil).
func (c *apiClient) do(method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *apiClient) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError is a non-2xx response from the server.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(b))
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &apiError{Status: resp.StatusCode, Message: msg}
}

func (c *apiClient) Ask(question string, k int) (*models.AskResponse, error) {
	var out models.AskResponse
	if err := c.do(http.MethodPost, "/api/v1/ask", &models.AskRequest{Question: question, K: k}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Search(query string, k int) (*models.SearchResponse, error) {
	var out models.SearchResponse
	if err := c.do(http.MethodPost, "/api/v1/search", &models.SearchRequest{Query: query, K: k}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Status() (*models.Status, error) {
	var out models.Status
	if err := c.do(http.MethodGet, "/api/v1/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) History(limit int) ([]*models.Exchange, error) {
	path := "/api/v1/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Exchanges []*models.Exchange `json:"exchanges"`
	}
	if err := c.do(http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Exchanges, nil
}

func (c *apiClient) Documents() ([]*models.Document, error) {
	var out struct {
		Documents []*models.Document `json:"documents"`
	}
	if err := c.do(http.MethodGet, "/api/v1/documents", nil, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

func (c *apiClient) Reset() error {
	return c.do(http.MethodDelete, "/api/v1/documents", nil, nil)
}

// Upload posts the file at path as a multipart upload.
func (c *apiClient) Upload(path string) (*models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.base+"/api/v1/documents", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var doc models.Document
	if err := c.send(req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *apiClient) WatchList() ([]string, error) {
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := c.do(http.MethodGet, "/api/v1/watch/directories", nil, &out); err != nil {
		return nil, err
	}
	return out.Directories, nil
}

func (c *apiClient) WatchAdd(path string, syncExisting bool) error {
	body := map[string]any{"path": path, "sync": syncExisting}
	return c.do(http.MethodPost, "/api/v1/watch/directories", body, nil)
}

func (c *apiClient) WatchRemove(path string) error {
	return c.do(http.MethodDelete, "/api/v1/watch/directories?path="+url.QueryEscape(path), nil, nil)
}
