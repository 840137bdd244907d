package daemon

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/blobsense/internal/domain/blobs"
	"github.com/bryanwahyu/blobsense/internal/middleware"
)

func installClassifyCmd(a *App) {
	cmd := &cobra.Command{
		Use:   "classify NAME",
		Short: "Dispatch one object by name and print the outcome",
		Long: `Dispatch one existing object of the configured bucket as if it had just been created.
The outcome is printed as JSON. Analyzer failures are reported in the outcome, not as an exit code.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := middleware.ValidateObjectName(args[0]); err != nil {
				return err
			}
			return a.classify(cmd, blobs.Object{Name: args[0], Size: a.config.Size})
		},
	}
	cmd.Flags().Int64Var(&a.config.Size, "size", 0, "object size in bytes, only used for logging")
	a.cmd.AddCommand(cmd)
}

func (a *App) classify(cmd *cobra.Command, obj blobs.Object) error {
	w, err := a.wire(a.ctx, nil)
	if err != nil {
		return err
	}
	defer w.close()

	out := w.svc.Handle(a.ctx, obj)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
