package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/pinboard/pkg/core"
)

var (
	createTitle   string
	createContent string
	createColor   string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a note",
	Long:  `Create posts a new note. Title, content and a palette color are required.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		in := core.NoteInput{Title: createTitle, Content: createContent, Color: createColor}
		if err := core.ValidateInput(in); err != nil {
			fatal("Error", err)
		}
		if err := checkFields(map[string]*string{"title": &in.Title, "content": &in.Content, "color": &in.Color}); err != nil {
			fatal("Error", err)
		}

		nb := newNotebook()
		ctx, cancel := requestContext()
		defer cancel()

		n, err := nb.Create(ctx, in)
		if err != nil {
			failed(nb, err)
		}
		fmt.Printf("Note created: %s\n", n.ID)
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVarP(&createTitle, "title", "t", "", "Note title")
	createCmd.Flags().StringVarP(&createContent, "content", "c", "", "Note content")
	createCmd.Flags().StringVar(&createColor, "color", "yellow", "Palette color")
}
