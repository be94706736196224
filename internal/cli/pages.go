package cli

import (
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"document-qa/internal/helper"
	"document-qa/internal/models"
	"document-qa/internal/parser"
)

type pageSummary struct {
	Page  int `json:"page"`
	Chars int `json:"chars"`
}

type pagesReport struct {
	File      string        `json:"file"`
	Pages     int           `json:"pages"`
	TextPages []pageSummary `json:"text_pages"`
}

var pagesCmd = &cobra.Command{
	Use:   "pages FILE",
	Short: "Count a document's pages and list those with extractable text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, name, err := helper.ReadDocument(args[0])
		if err != nil {
			return err
		}
		total := parser.CountPages(raw, name)
		if total == 0 {
			return fmt.Errorf("%s: %w", name, models.ErrExtractionFailure)
		}

		report := pagesReport{File: name, Pages: total, TextPages: []pageSummary{}}
		for _, u := range parser.Segment(raw, name) {
			report.TextPages = append(report.TextPages, pageSummary{Page: u.PageNumber(), Chars: utf8.RuneCountInString(u.Content)})
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return helper.PrettyPrint(out, report)
		}
		fmt.Fprintf(out, "%s: %d pages, %d with text\n", report.File, report.Pages, len(report.TextPages))
		for _, p := range report.TextPages {
			fmt.Fprintf(out, "  page %d: %d chars\n", p.Page, p.Chars)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pagesCmd)
}
