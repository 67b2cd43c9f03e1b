package pinboard_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/pinboard"
	"github.com/aretw0/pinboard/pkg/core"
)

// Example_basic opens an in-memory store, creates a note and patches it.
func Example_basic() {
	ctx := context.Background()

	store, err := pinboard.Open(ctx, "")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	note, err := store.Service.Create(ctx, pinboard.NoteInput{Title: "Groceries", Content: "milk, eggs", Color: "green"})
	if err != nil {
		log.Fatal(err)
	}

	title := "Shopping"
	updated, err := store.Service.Update(ctx, note.ID, pinboard.Patch{Title: &title})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(updated.Title, updated.Content, updated.UpdatedAt.After(note.UpdatedAt))
	// Output:
	// Shopping milk, eggs true
}

// Example_fs stores notes as Markdown files without Git history.
func Example_fs() {
	tmpDir, err := os.MkdirTemp("", "pinboard-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()
	store, err := pinboard.Open(ctx, tmpDir,
		pinboard.WithAdapter("fs"),
		pinboard.WithAutoInit(true),
		pinboard.WithVersioning(false),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if _, err := store.Service.Create(ctx, pinboard.NoteInput{Title: "Hello", Content: "first note", Color: "yellow"}); err != nil {
		log.Fatal(err)
	}

	notes, _ := store.Service.List(ctx)
	fmt.Printf("%d note(s), first: %s\n", len(notes), notes[0].Title)
	// Output:
	// 1 note(s), first: Hello
}

// Example_notFound shows how missing notes are reported.
func Example_notFound() {
	svc, err := pinboard.New("")
	if err != nil {
		log.Fatal(err)
	}

	_, err = svc.Get(context.Background(), "ghost")
	fmt.Println(errors.Is(err, core.ErrNotFound))
	// Output:
	// true
}
