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
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eslsoft/salita/internal/app"
	"github.com/eslsoft/salita/internal/content"
	"github.com/eslsoft/salita/internal/infrastructure/config"
	"github.com/eslsoft/salita/internal/infrastructure/server"
)

const contentStrictKey = "content.strict"

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Inspect lesson content",
}

var contentValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate lesson content and achievement definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err := server.NewLogger(cfg)
		if err != nil {
			return err
		}

		catalog, err := app.ProvideCatalog(cfg, logger)
		if err != nil {
			return err
		}
		if _, err := app.ProvideAchievementEvaluator(cfg, catalog); err != nil {
			return fmt.Errorf("compile achievements: %w", err)
		}
		printCatalog(cmd.OutOrStdout(), catalog)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(contentCmd)
	contentCmd.AddCommand(contentValidateCmd)

	contentValidateCmd.Flags().Bool("strict", true, "fail on malformed quiz questions instead of skipping them")
	bindFlagToViper(contentStrictKey, contentValidateCmd.Flags().Lookup("strict"))
}

func printCatalog(out io.Writer, catalog *content.Catalog) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DIALECT\tREGION\tLESSONS\tPLANNED\tQUESTIONS")
	for _, d := range catalog.Dialects() {
		lessons := catalog.Lessons(d.ID)
		questions := 0
		for _, l := range lessons {
			questions += len(l.Quiz)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", d.ID, d.Region, len(lessons), d.TotalLessons, questions)
	}
	_ = tw.Flush()

	dialects, lessons, questions, achievements := catalog.Stats()
	fmt.Fprintf(out, "ok: %d dialects, %d lessons, %d questions, %d achievements\n", dialects, lessons, questions, achievements)
	if unreachable := catalog.Unreachable(); len(unreachable) > 0 {
		fmt.Fprintf(out, "unreachable with this content: %s\n", strings.Join(unreachable, ", "))
	}
}
