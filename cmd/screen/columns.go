package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newColumnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "columns",
		Short: "Print the columns the loaded classifier was trained on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			res := app.Resources
			fmt.Fprintf(cmd.OutOrStdout(), "# %s variant, %s alignment, %s classifier, %d columns\n",
				app.Config.Model.Variant, res.Aligner.Strategy(), res.Classifier.Kind(), res.Columns.Len())
			for _, name := range res.Columns.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
