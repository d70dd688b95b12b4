package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"llmed/internal/catalog"
	"llmed/pkg/types"
)

func newModelsCmd(o *options) *cobra.Command {
	var asJSON, withInfo bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models in the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.resolve(cmd)
			if err != nil {
				return err
			}
			list, err := catalog.Load(cfg.Manifest)
			if err != nil {
				return err
			}
			return printModels(cmd.OutOrStdout(), list, asJSON, withInfo)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.Flags().BoolVar(&withInfo, "info", false, "Read GGUF metadata for each entry")
	return cmd
}

type modelRow struct {
	types.ModelDescriptor
	Info *types.ModelInfo `json:"info,omitempty"`
}

func printModels(w io.Writer, list []types.ModelDescriptor, asJSON, withInfo bool) error {
	rows := make([]modelRow, len(list))
	for i, d := range list {
		rows[i].ModelDescriptor = d
		if withInfo {
			if info, err := catalog.Inspect(d.WeightsPath); err == nil {
				rows[i].Info = &info
			}
		}
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tWEIGHTS\tARCH\tPARAMS")
	for _, r := range rows {
		arch, params := "-", "-"
		if r.Info != nil {
			arch, params = r.Info.Architecture, r.Info.Parameters
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.Kind, r.WeightsPath, arch, params)
	}
	return tw.Flush()
}
