package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/pinboard/pkg/api"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, most recently updated first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		nb := newNotebook()
		ctx, cancel := requestContext()
		defer cancel()

		if err := nb.Refresh(ctx); err != nil {
			failed(nb, err)
		}
		notes := nb.Notes()

		if listJSON {
			out := make([]api.Note, 0, len(notes))
			for _, n := range notes {
				out = append(out, api.ToExternal(n))
			}
			printJSON(out)
			return
		}
		renderTable(os.Stdout, notes)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
}
