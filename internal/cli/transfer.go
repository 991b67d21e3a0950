package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"noteenvelope-sync/internal/domain"

	"github.com/spf13/cobra"
)

func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write all notes, envelopes and labels as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			n, err := openNode(ctx, rootOpts.Config, rootOpts.Logger)
			if err != nil {
				return err
			}
			defer n.run(ctx)()

			data, err := n.transfer.Export(ctx)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if len(args) == 1 {
				f, err := os.Create(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		},
	}
}

func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge an export into the local store",
		Long: `Merge an export into the local store. Every record goes through the
same conflict resolution as records received from peers, so importing an
older export never overwrites newer local edits.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var data domain.ExportData
			if err := json.Unmarshal(raw, &data); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			ctx := cmd.Context()
			n, err := openNode(ctx, rootOpts.Config, rootOpts.Logger)
			if err != nil {
				return err
			}
			defer n.run(ctx)()

			result, err := n.transfer.Import(ctx, &data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "adopted %d, updated %d, unchanged %d, rejected %d\n",
				result.Adopted, result.Updated, result.Unchanged, result.Rejected)
			return nil
		},
	}
}
