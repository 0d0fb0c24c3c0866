package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/quidome/carvtrainer-go/pkg/jsontext"
)

func newNormalizeCmd() *cobra.Command {
	var check bool

	normalizeCmd := &cobra.Command{
		Use:   "normalize [file|-]",
		Short: "Strip markdown fences and prose from a model reply",
		Long:  "Print the JSON candidate extracted from a model reply read from a file or stdin. With --check the command fails unless the result is valid JSON.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if len(args) == 0 || args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			if check {
				var v any
				if err := jsontext.Decode(string(raw), &v); err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			}

			cmd.Println(jsontext.Normalize(string(raw)))
			return nil
		},
	}

	normalizeCmd.Flags().BoolVar(&check, "check", false, "decode the result and pretty-print it")

	return normalizeCmd
}
