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
	"os"

	"github.com/spf13/cobra"
)

const (
	logLevelKey       = "log.level"
	databaseDriverKey = "database.driver"
	contentDirKey     = "content.dir"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "salita",
	Short: "Filipino dialect lessons, quizzes and achievements",
	Long: `salita serves Hiligaynon, Waray, Ilocano and Bikol lessons with
randomized quizzes, gated lesson unlocking and achievements.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db-driver", "", "progress store driver (postgres, sqlite3, memory)")
	rootCmd.PersistentFlags().String("content-dir", "", "load lesson content from this directory instead of the bundled content")

	bindFlagToViper(logLevelKey, rootCmd.PersistentFlags().Lookup("log-level"))
	bindFlagToViper(databaseDriverKey, rootCmd.PersistentFlags().Lookup("db-driver"))
	bindFlagToViper(contentDirKey, rootCmd.PersistentFlags().Lookup("content-dir"))
}
