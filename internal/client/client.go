package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"sqlquest/internal/sqlrun"
)

const DefaultServerURL = "http://127.0.0.1:8080"

var ErrServiceUnavailable = errors.New("sqlquest service unavailable")

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// HTTPClient talks to the sqlquest service. Its Run method matches
// sqlrun.Service so callers can swap one for the other.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

type runRequest struct {
	Query    string `json:"query"`
	Schema   string `json:"schema,omitempty"`
	LessonID string `json:"lessonId,omitempty"`
}

type tablesResponse struct {
	LessonID string             `json:"lessonId"`
	Tables   []sqlrun.TableInfo `json:"tables"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	baseURL = strings.TrimSpace(baseURL)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) Health(ctx context.Context) error {
	var payload healthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/healthz", nil, &payload); err != nil {
		return err
	}
	if payload.Status != "ok" {
		return fmt.Errorf("unexpected health status %q", payload.Status)
	}
	return nil
}

// Run posts query and schema to /api/sql/run.
func (c *HTTPClient) Run(ctx context.Context, query, schema string) (sqlrun.Result, error) {
	var result sqlrun.Result
	err := c.doJSON(ctx, http.MethodPost, "/api/sql/run", runRequest{Query: query, Schema: schema}, &result)
	if err != nil {
		return sqlrun.Result{}, err
	}
	if result.Rows == nil {
		result.Rows = []sqlrun.Row{}
	}
	return result, nil
}

// RunLesson runs query against the schema the service holds for lessonID.
func (c *HTTPClient) RunLesson(ctx context.Context, lessonID, query string) (sqlrun.Result, error) {
	if strings.TrimSpace(lessonID) == "" {
		return sqlrun.Result{}, errors.New("lesson id is required")
	}
	var result sqlrun.Result
	err := c.doJSON(ctx, http.MethodPost, "/api/sql/run", runRequest{Query: query, LessonID: lessonID}, &result)
	if err != nil {
		return sqlrun.Result{}, err
	}
	if result.Rows == nil {
		result.Rows = []sqlrun.Row{}
	}
	return result, nil
}

func (c *HTTPClient) Tables(ctx context.Context, lessonID string) ([]sqlrun.TableInfo, error) {
	if strings.TrimSpace(lessonID) == "" {
		return nil, errors.New("lesson id is required")
	}

	var payload tablesResponse
	path := "/api/lessons/" + url.PathEscape(lessonID) + "/tables"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Tables, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any) error {
	fullURL := c.baseURL + path

	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return err
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{StatusCode: response.StatusCode}
		var payload errorResponse
		if err := json.NewDecoder(response.Body).Decode(&payload); err == nil && strings.TrimSpace(payload.Error) != "" {
			apiErr.Message = payload.Error
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		return &apiErr
	}

	if responseBody == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(responseBody)
}
