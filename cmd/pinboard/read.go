package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/pinboard/pkg/api"
)

var readJSON bool

var readCmd = &cobra.Command{
	Use:   "read [id]",
	Short: "Show a single note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		nb := newNotebook()
		ctx, cancel := requestContext()
		defer cancel()

		n, err := nb.Fetch(ctx, args[0])
		if err != nil {
			failed(nb, err)
		}
		if readJSON {
			printJSON(api.ToExternal(n))
			return
		}
		renderNote(os.Stdout, n)
	},
}

func init() {
	rootCmd.AddCommand(readCmd)
	readCmd.Flags().BoolVar(&readJSON, "json", false, "Output in JSON format")
}
