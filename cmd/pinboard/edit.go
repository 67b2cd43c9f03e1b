package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/pinboard/pkg/core"
)

var (
	editTitle   string
	editContent string
	editColor   string
)

var editCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Change the title, content or color of a note",
	Long:  `Edit sends only the flags you pass. Fields you omit keep their current value.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var p core.Patch
		if cmd.Flags().Changed("title") {
			p.Title = &editTitle
		}
		if cmd.Flags().Changed("content") {
			p.Content = &editContent
		}
		if cmd.Flags().Changed("color") {
			p.Color = &editColor
		}
		if p.Empty() {
			fatal("Error", errors.New("nothing to change: pass --title, --content or --color"))
		}
		if err := checkFields(map[string]*string{"title": p.Title, "content": p.Content, "color": p.Color}); err != nil {
			fatal("Error", err)
		}

		nb := newNotebook()
		ctx, cancel := requestContext()
		defer cancel()

		n, err := nb.Update(ctx, args[0], p)
		if err != nil {
			failed(nb, err)
		}
		fmt.Printf("Note updated: %s (%v)\n", n.ID, p.Fields())
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringVarP(&editTitle, "title", "t", "", "New title")
	editCmd.Flags().StringVarP(&editContent, "content", "c", "", "New content")
	editCmd.Flags().StringVar(&editColor, "color", "", "New palette color")
}
