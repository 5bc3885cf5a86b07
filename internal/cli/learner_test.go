package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sqlquest/internal/client"
	"sqlquest/internal/httpapi"
	"sqlquest/internal/lessons"
	"sqlquest/internal/progress"
	"sqlquest/internal/sqlrun"
)

func runLearner(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewLearnerCommand(strings.NewReader(input), &out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func offlineArgs(t *testing.T, dbPath string, args ...string) []string {
	t.Helper()
	return append([]string{"--offline", "--progress-db", dbPath}, args...)
}

func isCompleted(t *testing.T, dbPath, lessonID string) bool {
	t.Helper()

	store, err := progress.Open(dbPath)
	if err != nil {
		t.Fatalf("progress.Open failed: %v", err)
	}
	defer store.Close()

	done, err := store.IsCompleted(context.Background(), lessonID)
	if err != nil {
		t.Fatalf("IsCompleted failed: %v", err)
	}
	return done
}

func TestRunCorrectQueryRecordsProgress(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "progress.db")

	out, err := runLearner(t, "", offlineArgs(t, dbPath, "run", "where-basic", "select * from users", "where country = 'USA';")...)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Alice Johnson", "3 row(s)", "Correct!", "Next lesson: where-and"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Bob Smith") {
		t.Fatalf("UK user in USA result:\n%s", out)
	}
	if !isCompleted(t, dbPath, "where-basic") {
		t.Fatalf("where-basic not recorded as completed")
	}

	out, err = runLearner(t, "", offlineArgs(t, dbPath, "run", "where-basic", "SELECT * FROM users WHERE country = 'USA'")...)
	if err != nil {
		t.Fatalf("repeat run failed: %v", err)
	}
	if strings.Contains(out, "Next lesson") {
		t.Fatalf("repeat completion announced the next lesson again:\n%s", out)
	}
}

func TestRunWrongQueryIsNotRecorded(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "progress.db")

	out, err := runLearner(t, "", offlineArgs(t, dbPath, "run", "where-basic", "SELECT * FROM users")...)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "Not quite: expected 3 row(s), got 10") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if isCompleted(t, dbPath, "where-basic") {
		t.Fatalf("wrong answer recorded as completed")
	}
}

func TestRunSurfacesEngineAndValidationErrors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "progress.db")

	_, err := runLearner(t, "", offlineArgs(t, dbPath, "run", "select-all", "SELECT 1; SELECT 2;")...)
	if !errors.Is(err, sqlrun.ErrMultiStatement) {
		t.Fatalf("err = %v, want ErrMultiStatement", err)
	}

	_, err = runLearner(t, "", offlineArgs(t, dbPath, "run", "select-all", "SELECT * FROM nope")...)
	if err == nil || !strings.Contains(err.Error(), "no such table: nope") {
		t.Fatalf("err = %v, want missing table error", err)
	}

	_, err = runLearner(t, "", offlineArgs(t, dbPath, "run", "no-such-lesson", "SELECT 1")...)
	if err == nil || !strings.Contains(err.Error(), `unknown lesson "no-such-lesson"`) {
		t.Fatalf("err = %v, want unknown lesson", err)
	}
}

func TestLessonsListsCompletion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "progress.db")
	if _, err := runLearner(t, "", offlineArgs(t, dbPath, "run", "inner-join",
		"SELECT customers.name, orders.order_id, orders.amount FROM customers INNER JOIN orders ON customers.id = orders.customer_id")...); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	out, err := runLearner(t, "", offlineArgs(t, dbPath, "lessons", "--category", "joins")...)
	if err != nil {
		t.Fatalf("lessons failed: %v", err)
	}
	joins := lessons.MustBuiltin().LessonsByCategory("joins")
	for _, want := range []string{"Joins", "inner-join", "left-join", "✓", fmt.Sprintf("(1/%d)", len(joins))} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "select-all") {
		t.Fatalf("category filter ignored:\n%s", out)
	}

	if _, err := runLearner(t, "", offlineArgs(t, dbPath, "lessons", "--category", "nope")...); err == nil {
		t.Fatalf("expected unknown category error")
	}
}

func TestShowDescribesTables(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "progress.db")

	out, err := runLearner(t, "", offlineArgs(t, dbPath, "show", "multi-join", "--schema")...)
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	for _, want := range []string{"Tables:", "customers(", "orders(", "products(", "Schema:", "CREATE TABLE"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Hint:") {
		t.Fatalf("hint shown without --hint:\n%s", out)
	}
}

func TestSQLRunsAgainstSchemaFile(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.sql")
	schema := "CREATE TABLE t (id INTEGER, name TEXT);\nINSERT INTO t VALUES (1, 'a,b'), (2, NULL);\n"
	if err := os.WriteFile(schemaPath, []byte(schema), 0o600); err != nil {
		t.Fatalf("write schema: %v", err)
	}

	out, err := runLearner(t, "", "--offline", "sql", "--schema-file", schemaPath, "SELECT id, name FROM t ORDER BY id")
	if err != nil {
		t.Fatalf("sql failed: %v\n%s", err, out)
	}
	for _, want := range []string{"a,b", "NULL", "2 row(s)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	out, err = runLearner(t, "", "--offline", "sql", "--schema-file", schemaPath, "DELETE FROM t WHERE id = 2")
	if err != nil {
		t.Fatalf("sql write failed: %v", err)
	}
	if !strings.Contains(out, "1 row(s) affected") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	if _, err := runLearner(t, "", "--offline", "sql", "SELECT 1"); err == nil {
		t.Fatalf("expected missing --schema-file error")
	}
}

func TestProgressAndReset(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "progress.db")
	total := len(lessons.MustBuiltin().Lessons())

	if _, err := runLearner(t, "", offlineArgs(t, dbPath, "run", "select-all", "SELECT * FROM users")...); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	out, err := runLearner(t, "", offlineArgs(t, dbPath, "progress")...)
	if err != nil {
		t.Fatalf("progress failed: %v", err)
	}
	if !strings.Contains(out, fmt.Sprintf("1/%d lessons completed", total)) || !strings.Contains(out, "select-all") {
		t.Fatalf("unexpected progress output:\n%s", out)
	}

	out, err = runLearner(t, "maybe\nno\n", offlineArgs(t, dbPath, "reset")...)
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if !strings.Contains(out, "Please answer yes or no.") || !strings.Contains(out, "Progress kept.") {
		t.Fatalf("unexpected reset output:\n%s", out)
	}
	if !isCompleted(t, dbPath, "select-all") {
		t.Fatalf("declined reset cleared progress")
	}

	if _, err := runLearner(t, "", offlineArgs(t, dbPath, "reset", "--yes")...); err != nil {
		t.Fatalf("reset --yes failed: %v", err)
	}
	if isCompleted(t, dbPath, "select-all") {
		t.Fatalf("reset kept progress")
	}
}

func TestPlaySession(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "progress.db")
	input := strings.Join([]string{
		"hint",
		"tables",
		"SELECT * FROM users LIMIT 2",
		"run SELECT * FROM users",
		"use count",
		"SELECT COUNT(*) AS total_users FROM users",
		"bogus-command-ish",
		"exit",
	}, "\n") + "\n"

	out, err := runLearner(t, input, offlineArgs(t, dbPath, "play")...)
	if err != nil {
		t.Fatalf("play failed: %v\n%s", err, out)
	}
	for _, want := range []string{
		"[select-all]>",
		"Hint: Use SELECT *",
		"users(",
		"Not quite: expected 10 row(s), got 2",
		"Correct! Lesson select-all completed.",
		"[count]>",
		"Correct! Lesson count completed.",
		"error: ",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if !isCompleted(t, dbPath, "select-all") || !isCompleted(t, dbPath, "count") {
		t.Fatalf("play session did not record completions")
	}
}

func TestPlayStartsAtFirstIncompleteLesson(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "progress.db")
	if _, err := runLearner(t, "", offlineArgs(t, dbPath, "run", "select-all", "SELECT * FROM users")...); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	out, err := runLearner(t, "", offlineArgs(t, dbPath, "play")...)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if !strings.Contains(out, "[select-columns]>") {
		t.Fatalf("play did not start at select-columns:\n%s", out)
	}
}

func TestRunAgainstService(t *testing.T) {
	server := httptest.NewServer(httpapi.NewRouter(sqlrun.NewService(), lessons.MustBuiltin(), nil, httpapi.Options{}))
	defer server.Close()
	dbPath := filepath.Join(t.TempDir(), "progress.db")

	out, err := runLearner(t, "", "--server", server.URL, "--progress-db", dbPath, "run", "count", "SELECT COUNT(*) AS total_users FROM users")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "10") || !strings.Contains(out, "Correct!") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = runLearner(t, "", "--server", server.URL, "--progress-db", dbPath, "show", "inner-join")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out, "orders(") {
		t.Fatalf("tables missing from service-backed show:\n%s", out)
	}
}

func TestUnavailableServiceMentionsOffline(t *testing.T) {
	server := httptest.NewServer(nil)
	url := server.URL
	server.Close()

	dbPath := filepath.Join(t.TempDir(), "progress.db")
	_, err := runLearner(t, "", "--server", url, "--progress-db", dbPath, "run", "count", "SELECT 1")
	if err == nil || !strings.Contains(err.Error(), "--offline") {
		t.Fatalf("err = %v, want unavailable hint", err)
	}
}

func TestResolveServerURL(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv(serverEnvKey, "")

	got, err := resolveServerURL("")
	if err != nil || got != client.DefaultServerURL {
		t.Fatalf("default = (%q, %v)", got, err)
	}

	configPath := filepath.Join(configHome, "sqlquest", clientConfigFile)
	if err := os.WriteFile(configPath, []byte("server_url: http://lessons.internal:9000\n"), 0o600); err != nil {
		t.Fatalf("write client config: %v", err)
	}
	if got, _ := resolveServerURL(""); got != "http://lessons.internal:9000" {
		t.Fatalf("config file value = %q", got)
	}

	t.Setenv(serverEnvKey, "http://env:1234")
	if got, _ := resolveServerURL(""); got != "http://env:1234" {
		t.Fatalf("env value = %q", got)
	}
	if got, _ := resolveServerURL("http://flag:1"); got != "http://flag:1" {
		t.Fatalf("flag value = %q", got)
	}

	if err := os.WriteFile(configPath, []byte("server_url: [\n"), 0o600); err != nil {
		t.Fatalf("write client config: %v", err)
	}
	t.Setenv(serverEnvKey, "")
	if _, err := resolveServerURL(""); err == nil {
		t.Fatalf("expected parse error for malformed client.yaml")
	}
}
