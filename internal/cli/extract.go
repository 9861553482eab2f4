package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/taskmaster-ai/taskmaster/internal/documents"
)

func newExtractCmd(a *app) *cobra.Command {
	var sourceName string
	cmd := &cobra.Command{
		Use:   "extract [file|-]",
		Short: "Extract action items from a file or stdin and save them",
		Long:  "Reads a .txt, .md or .pdf file (or stdin with -), asks the agent for the action items in it and stores them. Text that was already processed is reported as a duplicate.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			content, name, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			if sourceName != "" {
				name = sourceName
			}

			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.Tasks.ExtractAndSave(cmd.Context(), name, content)
			if err != nil {
				return err
			}
			if !a.text() {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			for _, item := range res.Items {
				fmt.Fprintf(cmd.OutOrStdout(), "  #%d %s\n", item.ID, item.Task.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&sourceName, "name", "n", "", "Source name to record (default: file name or pasted_text)")
	return cmd
}

// readInput returns the text of path, or of stdin when path is "-".
func readInput(stdin io.Reader, path string) (content, name string, err error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(b), "pasted_text", nil
	}
	content, err = documents.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return content, filepath.Base(path), nil
}
