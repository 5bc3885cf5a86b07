package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"sqlquest/internal/lessons"
)

func newPlayCommand(opts *learnerOptions) *cobra.Command {
	var start string

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Work through lessons interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(opts, true)
			if err != nil {
				return err
			}
			defer s.Close()
			return play(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), s, start)
		},
	}
	cmd.Flags().StringVar(&start, "lesson", "", "lesson to start on (default: first incomplete lesson)")
	return cmd
}

func play(ctx context.Context, in io.Reader, out io.Writer, s *session, start string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	reader := bufio.NewReader(in)

	current, err := startingLesson(ctx, s, start)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "sqlquest\nserver=%s\n\n", s.target)
	printPlayHelp(out)
	fmt.Fprintln(out)
	if err := showLesson(ctx, out, s, current, false, false); err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
	}

	for {
		fmt.Fprintf(out, "\n[%s]> ", current.ID)
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && strings.TrimSpace(line) != "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		command, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch strings.ToLower(command) {
		case "help":
			printPlayHelp(out)
		case "exit", "quit":
			return nil
		case "lessons":
			completed, err := s.completedSet(ctx)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			if err := renderLessonList(out, s.catalog, s.catalog.Categories(), completed); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "use", "show":
			if rest != "" {
				lesson, err := lookupLesson(s.catalog, rest)
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
				current = lesson
			}
			if err := showLesson(ctx, out, s, current, false, false); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "hint":
			if current.Hint == "" {
				fmt.Fprintln(out, "No hint for this lesson.")
				continue
			}
			fmt.Fprintln(out, "Hint: "+current.Hint)
		case "schema":
			fmt.Fprintln(out, strings.TrimSpace(current.Schema))
		case "tables":
			tables, err := s.tables(ctx, current)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", s.describeError(err))
				continue
			}
			renderTables(out, tables)
		case "run":
			if rest == "" {
				fmt.Fprintln(out, "usage: run <query>")
				continue
			}
			if _, err := attemptLesson(ctx, out, s, current, rest); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "next":
			next, ok := s.catalog.Next(current.ID)
			if !ok {
				fmt.Fprintln(out, "This is the last lesson.")
				continue
			}
			current = next
			if err := showLesson(ctx, out, s, current, false, false); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "progress":
			if err := renderProgress(ctx, out, s); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		default:
			// Anything else is taken as SQL for the current lesson.
			if _, err := attemptLesson(ctx, out, s, current, line); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}
}

// startingLesson is the requested lesson, or the first one not yet
// completed, or the first lesson when everything is done.
func startingLesson(ctx context.Context, s *session, requested string) (lessons.Lesson, error) {
	if strings.TrimSpace(requested) != "" {
		return lookupLesson(s.catalog, requested)
	}

	all := s.catalog.Lessons()
	if len(all) == 0 {
		return lessons.Lesson{}, errors.New("catalog has no lessons")
	}
	completed, err := s.completedSet(ctx)
	if err != nil {
		return lessons.Lesson{}, err
	}
	for _, lesson := range all {
		if !completed[lesson.ID] {
			return lesson, nil
		}
	}
	return all[0], nil
}

func printPlayHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  help")
	fmt.Fprintln(out, "  lessons")
	fmt.Fprintln(out, "  use <lesson_id>")
	fmt.Fprintln(out, "  show")
	fmt.Fprintln(out, "  hint")
	fmt.Fprintln(out, "  tables")
	fmt.Fprintln(out, "  schema")
	fmt.Fprintln(out, "  run <query>   (or type the query directly)")
	fmt.Fprintln(out, "  next")
	fmt.Fprintln(out, "  progress")
	fmt.Fprintln(out, "  exit")
}
