package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sqlquest/internal/client"
	"sqlquest/internal/grading"
	"sqlquest/internal/lessons"
	"sqlquest/internal/progress"
	"sqlquest/internal/sqlrun"
	"sqlquest/internal/xdg"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	serverEnvKey       = "SQLQUEST_SERVER"
	clientConfigFile   = "client.yaml"
)

// Runner executes a query against a schema. Both the HTTP client and the
// in-process sqlrun.Service satisfy it.
type Runner interface {
	Run(ctx context.Context, query, schema string) (sqlrun.Result, error)
}

type learnerOptions struct {
	server     string
	timeout    time.Duration
	offline    bool
	progressDB string
	driver     string
}

type clientConfig struct {
	ServerURL string `yaml:"server_url"`
}

// session is what a learner command works against: the local catalog, a
// runner and, for commands that track completion, the progress store.
type session struct {
	catalog  *lessons.Catalog
	runner   Runner
	tables   func(ctx context.Context, lesson lessons.Lesson) ([]sqlrun.TableInfo, error)
	progress *progress.Store
	target   string
}

func (s *session) Close() error {
	if s.progress == nil {
		return nil
	}
	return s.progress.Close()
}

func (s *session) describeError(err error) error {
	if errors.Is(err, client.ErrServiceUnavailable) {
		return fmt.Errorf("sqlquest service unavailable at %s (start sqlquest-service or pass --offline)", s.target)
	}
	return err
}

func (s *session) completedSet(ctx context.Context) (map[string]bool, error) {
	if s.progress == nil {
		return map[string]bool{}, nil
	}
	return s.progress.CompletedSet(ctx)
}

// NewLearnerCommand builds the sqlquest root command.
func NewLearnerCommand(in io.Reader, out io.Writer) *cobra.Command {
	opts := &learnerOptions{}

	root := &cobra.Command{
		Use:           "sqlquest",
		Short:         "Learn SQL one lesson at a time",
		Long:          `sqlquest walks through SQL lessons. Queries run against a fresh copy of each lesson's database, either on a sqlquest-service or in-process with --offline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.server, "server", "", "sqlquest-service base URL (default $SQLQUEST_SERVER, client.yaml or "+client.DefaultServerURL+")")
	flags.DurationVar(&opts.timeout, "timeout", defaultHTTPTimeout, "request timeout")
	flags.BoolVar(&opts.offline, "offline", false, "run queries in-process instead of calling the service")
	flags.StringVar(&opts.progressDB, "progress-db", "", "progress database path (default $XDG_STATE_HOME/sqlquest/progress.db)")
	flags.StringVar(&opts.driver, "driver", sqlrun.DefaultDriver, "SQL driver used with --offline (sqlite3 or sqlite)")

	root.AddCommand(
		newLessonsCommand(opts),
		newShowCommand(opts),
		newRunCommand(opts),
		newSQLCommand(opts),
		newProgressCommand(opts),
		newResetCommand(opts),
		newPlayCommand(opts),
	)
	return root
}

func openSession(opts *learnerOptions, withProgress bool) (*session, error) {
	catalog, err := lessons.Builtin()
	if err != nil {
		return nil, err
	}

	s := &session{catalog: catalog}
	if opts.offline {
		if !sqlrun.SupportedDriver(opts.driver) {
			return nil, fmt.Errorf("unsupported driver %q", opts.driver)
		}
		service := sqlrun.NewService(sqlrun.WithDriver(opts.driver), sqlrun.WithTimeout(opts.timeout))
		s.runner = service
		s.tables = func(ctx context.Context, lesson lessons.Lesson) ([]sqlrun.TableInfo, error) {
			return service.DescribeSchema(ctx, lesson.Schema)
		}
		s.target = "offline (" + service.Driver() + ")"
	} else {
		serverURL, err := resolveServerURL(opts.server)
		if err != nil {
			return nil, err
		}
		httpClient := client.NewHTTPClient(serverURL, &http.Client{Timeout: opts.timeout})
		s.runner = httpClient
		s.tables = func(ctx context.Context, lesson lessons.Lesson) ([]sqlrun.TableInfo, error) {
			return httpClient.Tables(ctx, lesson.ID)
		}
		s.target = httpClient.BaseURL()
	}

	if withProgress {
		store, err := progress.Open(opts.progressDB)
		if err != nil {
			return nil, fmt.Errorf("open progress: %w", err)
		}
		s.progress = store
	}
	return s, nil
}

// resolveServerURL picks the flag value, then $SQLQUEST_SERVER, then
// server_url from client.yaml in the config dir.
func resolveServerURL(flagValue string) (string, error) {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(os.Getenv(serverEnvKey)); v != "" {
		return v, nil
	}

	dir, err := xdg.ConfigDir()
	if err != nil {
		return client.DefaultServerURL, nil
	}
	cfg, err := loadClientConfig(filepath.Join(dir, clientConfigFile))
	if err != nil {
		return "", err
	}
	if v := strings.TrimSpace(cfg.ServerURL); v != "" {
		return v, nil
	}
	return client.DefaultServerURL, nil
}

func loadClientConfig(path string) (clientConfig, error) {
	var cfg clientConfig
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func lookupLesson(catalog *lessons.Catalog, id string) (lessons.Lesson, error) {
	lesson, ok := catalog.LessonByID(strings.TrimSpace(id))
	if !ok {
		return lessons.Lesson{}, fmt.Errorf("unknown lesson %q", id)
	}
	return lesson, nil
}

func newLessonsCommand(opts *learnerOptions) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "lessons",
		Short: "List lessons by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(opts, true)
			if err != nil {
				return err
			}
			defer s.Close()

			categories := s.catalog.Categories()
			if category != "" {
				found, ok := s.catalog.CategoryByID(category)
				if !ok {
					return fmt.Errorf("unknown category %q", category)
				}
				categories = []lessons.Category{found}
			}

			completed, err := s.completedSet(cmd.Context())
			if err != nil {
				return err
			}
			return renderLessonList(cmd.OutOrStdout(), s.catalog, categories, completed)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list lessons in this category")
	return cmd
}

func newShowCommand(opts *learnerOptions) *cobra.Command {
	var showHint, showSchema bool

	cmd := &cobra.Command{
		Use:   "show <lesson-id>",
		Short: "Show a lesson's task, tables and expected output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts, true)
			if err != nil {
				return err
			}
			defer s.Close()

			lesson, err := lookupLesson(s.catalog, args[0])
			if err != nil {
				return err
			}
			return showLesson(cmd.Context(), cmd.OutOrStdout(), s, lesson, showHint, showSchema)
		},
	}
	cmd.Flags().BoolVar(&showHint, "hint", false, "include the hint")
	cmd.Flags().BoolVar(&showSchema, "schema", false, "include the schema DDL")
	return cmd
}

func showLesson(ctx context.Context, out io.Writer, s *session, lesson lessons.Lesson, showHint, showSchema bool) error {
	category, _ := s.catalog.CategoryByID(lesson.Category)
	completed, err := s.completedSet(ctx)
	if err != nil {
		return err
	}
	tables, err := s.tables(ctx, lesson)
	if err != nil {
		return s.describeError(err)
	}
	return renderLesson(out, lessonView{
		Lesson:     lesson,
		Category:   category,
		Completed:  completed[lesson.ID],
		Tables:     tables,
		ShowHint:   showHint,
		ShowSchema: showSchema,
	})
}

func newRunCommand(opts *learnerOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <lesson-id> <query>",
		Short: "Run a query against a lesson's database and check it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts, true)
			if err != nil {
				return err
			}
			defer s.Close()

			lesson, err := lookupLesson(s.catalog, args[0])
			if err != nil {
				return err
			}
			_, err = attemptLesson(cmd.Context(), cmd.OutOrStdout(), s, lesson, strings.Join(args[1:], " "))
			return err
		},
	}
}

// attemptLesson runs query for lesson, renders the result and verdict and
// records a completion when the verdict is correct.
func attemptLesson(ctx context.Context, out io.Writer, s *session, lesson lessons.Lesson, query string) (grading.Verdict, error) {
	result, err := s.runner.Run(ctx, query, lesson.Schema)
	if err != nil {
		return grading.Verdict{}, s.describeError(err)
	}
	if err := renderResult(out, result); err != nil {
		return grading.Verdict{}, err
	}

	verdict := grading.Grade(lesson, query, &result)
	renderVerdict(out, lesson, verdict, &result)
	if !verdict.Correct || s.progress == nil {
		return verdict, nil
	}

	added, err := s.progress.MarkCompleted(ctx, lesson.ID, query, time.Now())
	if err != nil {
		return verdict, fmt.Errorf("save progress: %w", err)
	}
	if added {
		if next, ok := s.catalog.Next(lesson.ID); ok {
			fmt.Fprintf(out, "Next lesson: %s (%s)\n", next.ID, next.Title)
		}
	}
	return verdict, nil
}

func newSQLCommand(opts *learnerOptions) *cobra.Command {
	var schemaFile string

	cmd := &cobra.Command{
		Use:   "sql --schema-file <file> <query>",
		Short: "Run a query against a schema file without grading",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := os.ReadFile(schemaFile)
			if err != nil {
				return err
			}

			s, err := openSession(opts, false)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.runner.Run(cmd.Context(), strings.Join(args, " "), string(schema))
			if err != nil {
				return s.describeError(err)
			}
			return renderResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&schemaFile, "schema-file", "", "file holding the schema DDL and seed statements")
	_ = cmd.MarkFlagRequired("schema-file")
	return cmd
}

func newProgressCommand(opts *learnerOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show completed lessons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(opts, true)
			if err != nil {
				return err
			}
			defer s.Close()
			return renderProgress(cmd.Context(), cmd.OutOrStdout(), s)
		},
	}
}

func renderProgress(ctx context.Context, out io.Writer, s *session) error {
	completions, err := s.progress.Completed(ctx)
	if err != nil {
		return err
	}

	total := len(s.catalog.Lessons())
	fmt.Fprintf(out, "%d/%d lessons completed\n", len(completions), total)
	if len(completions) == 0 {
		return nil
	}

	data := [][]string{{"ID", "Title", "Completed"}}
	for _, completion := range completions {
		title := ""
		if lesson, ok := s.catalog.LessonByID(completion.LessonID); ok {
			title = lesson.Title
		}
		data = append(data, []string{completion.LessonID, title, completion.CompletedAt.Local().Format(time.DateTime)})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, table)
	return nil
}

func newResetCommand(opts *learnerOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget all completed lessons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if !yes {
				confirmed, err := promptYesNo(bufio.NewReader(cmd.InOrStdin()), out, "Reset all progress? (yes/no): ")
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(out, "Progress kept.")
					return nil
				}
			}

			s, err := openSession(opts, true)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.progress.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(out, pterm.Success.Sprint("Progress reset."))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func promptYesNo(reader *bufio.Reader, out io.Writer, prompt string) (bool, error) {
	for {
		fmt.Fprint(out, prompt)
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		switch answer {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(out, "Please answer yes or no.")
		}
	}
}
