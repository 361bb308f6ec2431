// Package cmd provides the pdfagentctl commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:8000"

type rootOptions struct {
	apiURL  string
	timeout time.Duration
}

func (o *rootOptions) client() *apiClient {
	return newAPIClient(o.apiURL, o.timeout)
}

// NewRootCmd creates the root command for the pdfagentctl CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pdfagentctl",
		Short:         "Upload PDFs to a pdfagent API and ask questions about them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	apiURL := os.Getenv("PDFAGENT_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api", apiURL, "Base URL of the pdfagent API")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Request timeout")

	cmd.AddCommand(
		newHealthCmd(opts),
		newStatusCmd(opts),
		newIndexCmd(opts),
		newAskCmd(opts),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := opts.client().health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out["status"])
			return nil
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active collection, document and session count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := opts.client().status(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "index <file.pdf>",
		Short: "Upload and index a PDF",
		Long: `Upload a PDF and index it.
  --mode replace  clears the existing index first (default)
  --mode add      appends to the existing index`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != "replace" && mode != "add" {
				return fmt.Errorf("--mode must be 'replace' or 'add', got %q", mode)
			}
			out, err := opts.client().index(cmd.Context(), args[0], mode)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d pages, %d chunks)\n", out.Message, out.Pages, out.Chunks)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "replace", "Indexing mode: replace or add")
	return cmd
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the indexed document",
		Long: `Ask a question. Pass --session to continue a conversation; without it a
new session id is generated and printed so later calls can reuse it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				sessionID = uuid.NewString()
				fmt.Fprintln(cmd.ErrOrStderr(), "session:", sessionID)
			}
			answer, err := opts.client().query(cmd.Context(), strings.Join(args, " "), sessionID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id to continue")
	return cmd
}
