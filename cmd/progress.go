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
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eslsoft/salita/internal/app"
	"github.com/eslsoft/salita/internal/entity"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Inspect or reset learner progress",
}

var progressShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a learner's progress and achievements",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetString("user")

		container, cleanup, err := app.Initialize()
		if err != nil {
			return fmt.Errorf("initialize app: %w", err)
		}
		defer cleanup()

		progress, err := container.Learning.ListProgress(ctx, userID)
		if err != nil {
			return fmt.Errorf("list progress: %w", err)
		}
		achievements, err := container.Learning.ListAchievements(ctx, userID)
		if err != nil {
			return fmt.Errorf("list achievements: %w", err)
		}
		printProgressReport(cmd.OutOrStdout(), progress, achievements)
		return nil
	},
}

var progressResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear a learner's completed lessons in one dialect",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetString("user")
		dialectID, _ := cmd.Flags().GetString("dialect")

		container, cleanup, err := app.Initialize()
		if err != nil {
			return fmt.Errorf("initialize app: %w", err)
		}
		defer cleanup()

		if err := container.Learning.ResetProgress(ctx, userID, dialectID); err != nil {
			return fmt.Errorf("reset progress: %w", err)
		}
		cmd.Printf("progress reset: %s in %s\n", userID, dialectID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(progressCmd)
	progressCmd.AddCommand(progressShowCmd, progressResetCmd)

	progressCmd.PersistentFlags().String("user", "", "learner id")
	_ = progressCmd.MarkPersistentFlagRequired("user")
	progressResetCmd.Flags().String("dialect", "", "dialect id")
	_ = progressResetCmd.MarkFlagRequired("dialect")
}

func printProgressReport(out io.Writer, progress []entity.UserProgress, achievements []entity.Achievement) {
	if len(progress) == 0 {
		fmt.Fprintln(out, "no lessons completed yet")
	} else {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DIALECT\tLESSONS\tPROGRESS\tLAST STUDIED")
		for _, p := range progress {
			fmt.Fprintf(tw, "%s\t%d\t%d%%\t%s\n", p.DialectID, p.LessonsCompleted, p.Progress, p.LastStudiedAt.Format("2006-01-02 15:04"))
		}
		_ = tw.Flush()
	}

	total := 0
	for _, a := range achievements {
		total += a.Points
	}
	fmt.Fprintf(out, "\n%d achievements, %d points\n", len(achievements), total)
	for _, a := range achievements {
		fmt.Fprintf(out, "  %s %s (+%d) %s\n", a.Icon, a.Title, a.Points, a.EarnedAt.Format("2006-01-02"))
	}
}
