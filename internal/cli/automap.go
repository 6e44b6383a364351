package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/payimport/internal/config"
	"github.com/JonMunkholm/payimport/internal/core"
	"github.com/JonMunkholm/payimport/internal/tabular"
)

func newAutoMapCommand(opts *options) *cobra.Command {
	var (
		file    string
		outPath string
		perStep int
	)
	cmd := &cobra.Command{
		Use:   "automap",
		Short: "Suggest a YAML mapping for a file's header row",
		Long: `Automap matches the header row of --file against the canonical field
names and aliases and prints the suggested mapping as YAML, ready for
run --mapping. Unmatched columns are listed on stderr.`,
		Example: `  payimport automap --file orders.csv > shop.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := tabular.ReadFile(file)
			if err != nil {
				return err
			}
			mapping := core.AutoMap(table.Headers)

			name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			mf := config.NewMappingFile(name, mapping)
			mf.PerStep = perStep

			for _, h := range unmappedHeaders(table.Headers, mapping) {
				fmt.Fprintf(opts.errOut, "unmapped column: %s\n", h)
			}

			if outPath != "" {
				if err := config.WriteMappingFile(outPath, mf); err != nil {
					return err
				}
				fmt.Fprintf(opts.errOut, "wrote %s (%d fields)\n", outPath, len(mf.Fields))
				return nil
			}
			data, err := mf.Marshal()
			if err != nil {
				return err
			}
			_, err = opts.out.Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV or XLSX file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the mapping here instead of stdout")
	cmd.Flags().IntVar(&perStep, "per-step", 0, "per_step to record in the mapping")
	cmd.MarkFlagRequired("file")
	return cmd
}

func unmappedHeaders(headers []string, mapping core.FieldMapping) []string {
	used := make(map[string]bool, len(mapping))
	for _, col := range mapping {
		used[col] = true
	}
	var out []string
	for _, h := range headers {
		if !used[h] {
			out = append(out, h)
		}
	}
	return out
}
