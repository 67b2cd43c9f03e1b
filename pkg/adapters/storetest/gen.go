package storetest

import (
	"errors"

	"pgregory.net/rapid"

	"github.com/aretw0/pinboard/pkg/core"
)

func textGen() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Za-z0-9 .,!?]{1,60}`)
}

func colorGen() *rapid.Generator[string] {
	return rapid.SampledFrom(core.Palette)
}

func inputGen() *rapid.Generator[core.NoteInput] {
	return rapid.Custom(func(t *rapid.T) core.NoteInput {
		return core.NoteInput{
			Title:   textGen().Draw(t, "title"),
			Content: textGen().Draw(t, "content"),
			Color:   colorGen().Draw(t, "color"),
		}
	})
}

// patchGen draws a non-empty patch.
func patchGen() *rapid.Generator[core.Patch] {
	return rapid.Custom(func(t *rapid.T) core.Patch {
		var p core.Patch
		for p.Empty() {
			if rapid.Bool().Draw(t, "setTitle") {
				p.Title = strPtr(textGen().Draw(t, "title"))
			}
			if rapid.Bool().Draw(t, "setContent") {
				p.Content = strPtr(textGen().Draw(t, "content"))
			}
			if rapid.Bool().Draw(t, "setColor") {
				p.Color = strPtr(colorGen().Draw(t, "color"))
			}
		}
		return p
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound) && !errors.Is(err, core.ErrStorage)
}
