package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"document-qa/internal/helper"
	"document-qa/internal/rag"
)

var (
	askStart int
	askEnd   int
)

var askCmd = &cobra.Command{
	Use:   "ask FILE QUESTION...",
	Short: "Answer one question about a document",
	Long: `The 'ask' command ingests FILE and answers QUESTION using only its pages.
Use --start and --end (1-based, inclusive) to restrict the pages searched.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args[1:], " "))

		a, err := newApp(getConfig())
		if err != nil {
			return err
		}
		sess, err := a.openDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer sess.Close()

		if askStart > 0 || askEnd > 0 {
			info, _ := sess.Info()
			start, end := askStart, askEnd
			if start == 0 {
				start = 1
			}
			if end == 0 {
				end = info.Pages
			}
			if err := sess.SetRange1Based(start, end); err != nil {
				return fmt.Errorf("invalid page range: %w", err)
			}
		}

		ans, err := sess.Ask(cmd.Context(), query)
		if err != nil {
			return err
		}
		if jsonOutput {
			return helper.PrettyPrint(cmd.OutOrStdout(), ans)
		}
		fmt.Fprintln(cmd.OutOrStdout(), rag.FormatMessage(ans))
		return nil
	},
}

func init() {
	askCmd.Flags().IntVar(&askStart, "start", 0, "first page to search (1-based)")
	askCmd.Flags().IntVar(&askEnd, "end", 0, "last page to search (1-based)")
	rootCmd.AddCommand(askCmd)
}
