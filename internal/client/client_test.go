package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"sqlquest/internal/httpapi"
	"sqlquest/internal/lessons"
	"sqlquest/internal/sqlrun"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestDoJSONReturnsServiceUnavailable(t *testing.T) {
	client := NewHTTPClient("http://example.test", &http.Client{
		Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("dial error")
		}),
	})

	err := client.doJSON(context.Background(), http.MethodGet, "/healthz", nil, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable wrapper, got %v", err)
	}
}

func TestDoJSONReturnsAPIErrorMessageFromBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResponse{Error: "Query cannot be empty"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, server.Client())
	_, err := client.Run(context.Background(), " ", "CREATE TABLE t (id INTEGER);")
	if err == nil {
		t.Fatalf("expected API error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T (%v)", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("status code = %d, want %d", apiErr.StatusCode, http.StatusBadRequest)
	}
	if apiErr.Message != "Query cannot be empty" {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

func TestAPIErrorFallsBackToStatus(t *testing.T) {
	err := &APIError{StatusCode: http.StatusBadGateway}
	if err.Error() != "request failed with status 502" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestNewHTTPClientDefaults(t *testing.T) {
	if got := NewHTTPClient("  ", nil).BaseURL(); got != DefaultServerURL {
		t.Fatalf("BaseURL = %q, want %q", got, DefaultServerURL)
	}
	if got := NewHTTPClient("http://host:9000/", nil).BaseURL(); got != "http://host:9000" {
		t.Fatalf("BaseURL = %q", got)
	}
}

func TestClientAgainstRouter(t *testing.T) {
	router := httpapi.NewRouter(sqlrun.NewService(), lessons.MustBuiltin(), nil, httpapi.Options{})
	server := httptest.NewServer(router)
	defer server.Close()

	client := NewHTTPClient(server.URL, server.Client())
	ctx := context.Background()

	if err := client.Health(ctx); err != nil {
		t.Fatalf("Health failed: %v", err)
	}

	result, err := client.Run(ctx, "SELECT 1 AS one, 'x' AS two", "CREATE TABLE t (id INTEGER);")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	columns := result.Rows[0].Columns()
	if len(columns) != 2 || columns[0] != "one" || columns[1] != "two" {
		t.Fatalf("columns = %v", columns)
	}
	one, _ := result.Rows[0].Get("one")
	if one != json.Number("1") {
		t.Fatalf("one = %#v, want json.Number(\"1\")", one)
	}

	write, err := client.Run(ctx, "INSERT INTO t VALUES (1)", "CREATE TABLE t (id INTEGER);")
	if err != nil {
		t.Fatalf("Run write failed: %v", err)
	}
	if !write.IsWrite() || write.Rows == nil || len(write.Rows) != 0 {
		t.Fatalf("unexpected write result: %+v", write)
	}

	lessonResult, err := client.RunLesson(ctx, "where-basic", "SELECT * FROM users WHERE country = 'USA'")
	if err != nil {
		t.Fatalf("RunLesson failed: %v", err)
	}
	if len(lessonResult.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(lessonResult.Rows))
	}

	tables, err := client.Tables(ctx, "inner-join")
	if err != nil {
		t.Fatalf("Tables failed: %v", err)
	}
	if len(tables) == 0 {
		t.Fatalf("expected tables for inner-join")
	}

	_, err = client.Tables(ctx, "nope")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}

	_, err = client.Run(ctx, "SELEKT 1", "CREATE TABLE t (id INTEGER);")
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 APIError, got %v", err)
	}
}
