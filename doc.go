// Package pinboard is the composition root of the pinboard notes service.
//
// It connects the note domain (pkg/core) with the storage adapters
// (memory, fs, mongo, rest) and the event publishers, using the
// hexagonal layout: the core never imports an adapter.
//
// Features:
//
//   - **One Store Contract**: every backend passes the same contract suite.
//   - **Millisecond Timestamps**: UpdatedAt strictly increases across updates.
//   - **Structured Errors**: validation, not-found and storage failures are distinct kinds.
//   - **Durable Local Mode**: Markdown files with YAML frontmatter, optionally versioned in Git.
//   - **Change Events**: mutations are published to Prometheus counters and NATS.
//
// Usage:
//
//	store, err := pinboard.Open(ctx, "./notes",
//		pinboard.WithAdapter("fs"),
//		pinboard.WithAutoInit(true),
//	)
//	defer store.Close()
//
//	note, err := store.Service.Create(ctx, pinboard.NoteInput{
//		Title: "Groceries", Content: "milk, eggs", Color: "green",
//	})
package pinboard
