/*
Copyright © 2025 Ambor <saltbo@foxmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eslsoft/salita/internal/app"
	"github.com/eslsoft/salita/internal/entity"
	"github.com/eslsoft/salita/internal/usecase"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Take a lesson in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		dialectID, _ := cmd.Flags().GetString("dialect")
		number, _ := cmd.Flags().GetInt("lesson")

		container, cleanup, err := app.Initialize()
		if err != nil {
			return fmt.Errorf("initialize app: %w", err)
		}
		defer cleanup()

		return runPlay(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), container.Learning, userID, dialectID, number)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().String("user", "local", "learner id")
	playCmd.Flags().String("dialect", "hiligaynon", "dialect id")
	playCmd.Flags().Int("lesson", 1, "lesson number")
}

type terminal struct {
	in  *bufio.Scanner
	out io.Writer
}

func (t *terminal) ask(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	if !t.in.Scan() {
		if err := t.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(t.in.Text()), nil
}

func runPlay(ctx context.Context, in io.Reader, out io.Writer, uc usecase.LearningUsecase, userID, dialectID string, number int) error {
	term := &terminal{in: bufio.NewScanner(in), out: out}

	view, err := uc.StartLesson(ctx, userID, dialectID, number)
	if err != nil {
		return err
	}
	handle := view.Handle
	defer func() { _ = uc.CloseSession(ctx, userID, handle) }()

	fmt.Fprintf(out, "%s · Lesson %d: %s\n", view.Dialect.Name, view.Lesson.Number, view.Lesson.Title)
	for {
		switch view.Step {
		case usecase.StepObjectives:
			fmt.Fprintln(out, "\nIn this lesson you will:")
			for _, o := range view.Lesson.Objectives {
				fmt.Fprintf(out, "  - %s\n", o)
			}
		case usecase.StepVocabulary:
			fmt.Fprintln(out, "\nVocabulary:")
			for _, v := range view.Lesson.Vocabulary {
				fmt.Fprintf(out, "  %-20s %s\n", v.Word, v.Translation)
			}
		case usecase.StepContent:
			fmt.Fprintf(out, "\n%s\n", view.Lesson.Content)
			if view.Lesson.CulturalNote != "" {
				fmt.Fprintf(out, "\nCultural note: %s\n", view.Lesson.CulturalNote)
			}
		case usecase.StepQuiz:
			if view, err = playQuiz(ctx, term, uc, userID, view); err != nil {
				return err
			}
			continue
		case usecase.StepResults:
			done, next, err := playResults(ctx, term, uc, userID, view)
			if err != nil || done {
				return err
			}
			view = next
			continue
		}

		if _, err := term.ask("\n[Enter] to continue "); err != nil {
			return err
		}
		if view, err = uc.Advance(ctx, userID, view.Handle); err != nil {
			return err
		}
	}
}

func playQuiz(ctx context.Context, term *terminal, uc usecase.LearningUsecase, userID string, view *usecase.LessonView) (*usecase.LessonView, error) {
	fmt.Fprintf(term.out, "\nQuiz (attempt %d)\n", view.Attempt)
	for i, q := range view.Questions {
		fmt.Fprintf(term.out, "\n%d/%d  %s\n", i+1, len(view.Questions), q.Prompt)
		for j, opt := range q.Options {
			fmt.Fprintf(term.out, "  %d) %s\n", j+1, opt)
		}
		for {
			answer, err := term.ask("> ")
			if err != nil {
				return nil, err
			}
			choice, convErr := strconv.Atoi(answer)
			if convErr != nil || choice < 1 || choice > len(q.Options) {
				fmt.Fprintf(term.out, "enter a number from 1 to %d\n", len(q.Options))
				continue
			}
			if _, err := uc.SelectAnswer(ctx, userID, view.Handle, q.ID, choice-1); err != nil {
				return nil, err
			}
			break
		}
	}
	if _, err := uc.SubmitQuiz(ctx, userID, view.Handle); err != nil {
		return nil, err
	}
	return uc.GetSession(ctx, userID, view.Handle)
}

// playResults prints the graded quiz and asks whether to complete or retake.
// It reports done once the lesson is saved or the learner quits.
func playResults(ctx context.Context, term *terminal, uc usecase.LearningUsecase, userID string, view *usecase.LessonView) (bool, *usecase.LessonView, error) {
	outcome := view.Outcome
	fmt.Fprintf(term.out, "\nScore: %d/%d (%d%%)\n", outcome.Score, outcome.TotalPossible, outcome.Percent())
	correct := make(map[string]bool, len(outcome.Results))
	for _, r := range outcome.Results {
		correct[r.QuestionID] = r.Correct
	}
	for _, q := range view.Questions {
		mark := "✗"
		if correct[q.ID] {
			mark = "✓"
		}
		answer := ""
		if q.Correct != nil {
			answer = q.Options[*q.Correct]
		}
		fmt.Fprintf(term.out, "  %s %s: %s\n", mark, q.Prompt, answer)
	}
	for _, a := range outcome.NewAchievements {
		fmt.Fprintf(term.out, "  ★ %s %s (+%d)\n", a.Icon, a.Title, a.Points)
	}

	for {
		prompt := "\n[c]omplete lesson, [q]uit "
		if view.RemainingAttempts > 0 {
			prompt = fmt.Sprintf("\n[c]omplete lesson, [r]etake (%d left), [q]uit ", view.RemainingAttempts)
		}
		choice, err := term.ask(prompt)
		if err != nil {
			return false, nil, err
		}
		switch strings.ToLower(choice) {
		case "c":
			receipt, err := uc.CompleteLesson(ctx, userID, view.Handle)
			if err != nil {
				return false, nil, err
			}
			if !receipt.Saved {
				fmt.Fprintln(term.out, receipt.Notice)
				continue
			}
			printReceipt(term.out, receipt)
			return true, nil, nil
		case "r":
			next, err := uc.Retake(ctx, userID, view.Handle)
			if errors.Is(err, entity.ErrAttemptLimitReached) {
				fmt.Fprintln(term.out, err)
				continue
			}
			if err != nil {
				return false, nil, err
			}
			return false, next, nil
		case "q":
			return true, nil, nil
		}
	}
}

func printReceipt(out io.Writer, receipt *usecase.CompletionReceipt) {
	fmt.Fprintf(out, "\nLesson complete! Progress: %d%% (%d lessons)\n", receipt.Progress.Progress, receipt.Progress.LessonsCompleted)
	for _, a := range receipt.Awarded {
		fmt.Fprintf(out, "  ★ %s %s (+%d)\n", a.Icon, a.Title, a.Points)
	}
	if receipt.NextLesson != nil {
		fmt.Fprintf(out, "Next up: Lesson %d: %s\n", receipt.NextLesson.Number, receipt.NextLesson.Title)
	}
}
