package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"clarvis-be/pkg/client"
	"clarvis-be/pkg/client/store"
	"clarvis-be/pkg/studymaterial"

	"github.com/spf13/cobra"
)

func newGenerateCommand(a *app) *cobra.Command {
	var (
		page       pageFlags
		difficulty string
		types      []string
		userId     string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate study materials for the current conversation's page",
		Long: `Generate study materials for the page of the current conversation.

If a generation for the conversation is already in flight, the command
re-attaches to it instead of starting another. Interrupting the command
leaves the generation running; "clarvis resume" picks it up again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			pc, err := page.load(ctx, out)
			if err != nil {
				return err
			}
			conv, err := a.store.EnsureCurrent(ctx, pc)
			if err != nil {
				return err
			}
			if pc == nil {
				pc = conv.PageContext
			}
			if pc == nil {
				return errors.New("no page context: pass --page-file or --page-url")
			}

			opts := client.GenerateOptions{UserId: userId, Difficulty: difficulty, MaterialTypes: types}
			material, err := a.coordinator().Generate(ctx, conv.Id, *pc, opts, progressPrinter(out))
			return reportGeneration(out, material, err)
		},
	}
	page.register(cmd)
	cmd.Flags().StringVar(&difficulty, "difficulty", studymaterial.DifficultyIntermediate, "beginner, intermediate or advanced")
	cmd.Flags().StringSliceVar(&types, "types", nil, "Material types (summary,questions,flashcards,practice,key_concepts)")
	cmd.Flags().StringVar(&userId, "user", "", "User id sent with the request")
	return cmd
}

func newResumeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Re-attach to generations started by earlier invocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			found := false
			err := a.coordinator().ResumePending(cmd.Context(),
				func(ps *store.PollState, text string) {
					found = true
					fmt.Fprintf(out, "%s %s\n", gray(ps.InstanceId), cyan(text))
				},
				func(ps *store.PollState, material *studymaterial.StudyMaterial, err error) {
					found = true
					if reportErr := reportGeneration(out, material, err); reportErr != nil {
						fmt.Fprintf(out, "%s %v\n", red("✗"), reportErr)
					}
				})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err == nil && !found {
				fmt.Fprintln(out, gray("No generation in progress."))
			}
			return err
		},
	}
}

func progressPrinter(out io.Writer) func(string) {
	last := ""
	return func(text string) {
		if text == last {
			return
		}
		last = text
		fmt.Fprintln(out, cyan("… "+text))
	}
}

func reportGeneration(out io.Writer, material *studymaterial.StudyMaterial, err error) error {
	var failed *client.WorkflowFailedError
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(out, yellow("Stopped watching; the generation continues. Run \"clarvis resume\" to re-attach."))
		return nil
	case errors.As(err, &failed):
		return fmt.Errorf("generation failed: %s", failed.Message)
	case errors.Is(err, client.ErrWorkflowTimeout):
		return fmt.Errorf("gave up waiting for the generation: %w", err)
	case err != nil:
		return err
	}

	fmt.Fprintln(out, green(bold("✓ Study materials generated successfully!")))
	printMaterial(out, material)
	return nil
}

func printMaterial(out io.Writer, m *studymaterial.StudyMaterial) {
	fmt.Fprintf(out, "\n%s %s\n", bold("Page:"), m.Metadata.PageTitle)
	fmt.Fprintf(out, "%s %s\n", bold("Estimated study time:"), m.EstimatedStudyTime)
	fmt.Fprintf(out, "\n%s\n%s\n", bold("Summary"), m.Summary)

	if len(m.LearningObjectives) > 0 {
		fmt.Fprintf(out, "\n%s\n", bold("Learning objectives"))
		for _, o := range m.LearningObjectives {
			fmt.Fprintf(out, "  • %s\n", o)
		}
	}
	if len(m.KeyConcepts) > 0 {
		fmt.Fprintf(out, "\n%s\n", bold("Key concepts"))
		for _, c := range m.KeyConcepts {
			fmt.Fprintf(out, "  • %s: %s\n", cyan(c.Concept), c.Explanation)
		}
	}
	if len(m.StudyQuestions) > 0 {
		fmt.Fprintf(out, "\n%s\n", bold("Study questions"))
		for i, q := range m.StudyQuestions {
			fmt.Fprintf(out, "  %d. %s %s\n", i+1, q.Question, gray("("+q.Difficulty+")"))
		}
	}
	if len(m.Flashcards) > 0 {
		fmt.Fprintf(out, "\n%s %d\n", bold("Flashcards:"), len(m.Flashcards))
	}
	if len(m.PracticeProblems) > 0 {
		fmt.Fprintf(out, "%s %d\n", bold("Practice problems:"), len(m.PracticeProblems))
	}
	fmt.Fprintln(out, strings.Repeat("─", 40))
}
