package cli

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"document-qa/internal/logger"
	"document-qa/internal/tui"
)

var (
	chatName    string
	chatLogFile string
)

var chatCmd = &cobra.Command{
	Use:   "chat FILE",
	Short: "Start an interactive chat about a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		// the TUI owns the terminal, so logs go to a file or nowhere
		var out io.Writer = io.Discard
		if chatLogFile != "" {
			f, err := os.OpenFile(chatLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer f.Close()
			out = f
		}
		logger.Init(logger.Config{Level: cfg.Log.Level, Output: out})

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		sess, err := a.openDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer sess.Close()

		if chatName != "" {
			if _, err := sess.Welcome(chatName); err != nil {
				return err
			}
		}

		_, err = tea.NewProgram(tui.New(cmd.Context(), sess), tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatName, "name", "", "your name, used in the welcome message")
	chatCmd.Flags().StringVar(&chatLogFile, "log-file", "", "write logs to this file while chatting")
	rootCmd.AddCommand(chatCmd)
}
