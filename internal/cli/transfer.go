package cli

import (
	"os"

	"github.com/spf13/cobra"

	"netinventory/internal/codec"
	"netinventory/internal/service"
)

func newExportCommand(a *app) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the inventory as json, yaml or an Ansible inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := codec.LookupExporter(format)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return a.svc.Export(cmd.Context(), exp, out(cmd))
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := a.svc.Export(cmd.Context(), exp, f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			printf(cmd, "exported %s to %s\n", exp.Format(), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json, yaml or ansible")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCommand(a *app) *cobra.Command {
	var format, strategy string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load devices from a json or yaml document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imp, err := codec.LookupImporter(format)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := a.svc.Import(cmd.Context(), imp, f, strategy)
			if err != nil {
				return err
			}
			printf(cmd, "%s import: %d added, %d skipped, %d conflicts\n",
				result.Strategy, result.Added, len(result.Skipped), len(result.Conflicts))
			for _, name := range result.Skipped {
				printf(cmd, "  skipped %s: unknown type\n", name)
			}
			for _, c := range result.Conflicts {
				printf(cmd, "  conflict: %s\n", c)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json or yaml")
	cmd.Flags().StringVar(&strategy, "strategy", service.StrategyReplace, "replace or merge")
	return cmd
}
