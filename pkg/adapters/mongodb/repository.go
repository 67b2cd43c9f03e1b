// Package mongodb implements the note store on a MongoDB collection.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/introspection"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aretw0/pinboard/pkg/core"
)

// Config holds connection settings.
type Config struct {
	URI             string
	Database        string        // defaults to "pinboard"
	NotesCollection string        // defaults to "notes"
	UsersCollection string        // defaults to "users"
	Timeout         time.Duration // per-operation deadline, defaults to 10s
	Logger          *slog.Logger
}

func (c *Config) setDefaults() {
	if c.Database == "" {
		c.Database = "pinboard"
	}
	if c.NotesCollection == "" {
		c.NotesCollection = "notes"
	}
	if c.UsersCollection == "" {
		c.UsersCollection = "users"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Repository implements core.Repository and core.UserRepository.
type Repository struct {
	client *mongo.Client
	notes  *mongo.Collection
	users  *mongo.Collection
	config Config
}

// Connect dials the server described by cfg.URI.
func Connect(ctx context.Context, cfg Config) (*Repository, error) {
	cfg.setDefaults()
	if cfg.URI == "" {
		return nil, errors.New("mongodb: uri is required")
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	return New(client, cfg), nil
}

// New wraps an existing client.
func New(client *mongo.Client, cfg Config) *Repository {
	cfg.setDefaults()
	db := client.Database(cfg.Database)
	return &Repository{
		client: client,
		notes:  db.Collection(cfg.NotesCollection),
		users:  db.Collection(cfg.UsersCollection),
		config: cfg,
	}
}

// Initialize verifies connectivity and creates the indexes the queries rely on.
func (r *Repository) Initialize(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.client.Ping(ctx, nil); err != nil {
		return core.NewStorageError("ping", err)
	}

	if _, err := r.notes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: -1}},
	}); err != nil {
		return core.NewStorageError("create notes index", err)
	}
	if _, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return core.NewStorageError("create users index", err)
	}
	return nil
}

// List returns all notes, most recently updated first.
func (r *Repository) List(ctx context.Context) ([]core.Note, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := r.notes.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, core.NewStorageError("find notes", err)
	}

	var records []noteRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, core.NewStorageError("decode notes", err)
	}

	notes := make([]core.Note, 0, len(records))
	for _, rec := range records {
		notes = append(notes, rec.toNote())
	}
	return notes, nil
}

// Get retrieves a note by ID.
func (r *Repository) Get(ctx context.Context, id string) (core.Note, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rec noteRecord
	err := r.notes.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Note{}, core.NotFound(id)
	}
	if err != nil {
		return core.Note{}, core.NewStorageError("find note", err)
	}
	return rec.toNote(), nil
}

// Insert stores n.
func (r *Repository) Insert(ctx context.Context, n core.Note) (core.Note, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if _, err := r.notes.InsertOne(ctx, fromNote(n)); err != nil {
		return core.Note{}, core.NewStorageError("insert note", err)
	}
	return n, nil
}

// Update applies p atomically and returns the document after the update.
func (r *Repository) Update(ctx context.Context, id string, p core.Patch, updatedAt time.Time) (core.Note, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var rec noteRecord
	err := r.notes.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": patchSet(p, updatedAt)},
		opts,
	).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Note{}, core.NotFound(id)
	}
	if err != nil {
		return core.Note{}, core.NewStorageError("update note", err)
	}
	return rec.toNote(), nil
}

// Delete removes a note.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.notes.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return core.NewStorageError("delete note", err)
	}
	if res.DeletedCount == 0 {
		return core.NotFound(id)
	}
	return nil
}

// EnsureUser upserts on email with $setOnInsert, so an existing account is never modified.
func (r *Repository) EnsureUser(ctx context.Context, u core.User) (core.User, bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.users.UpdateOne(ctx,
		bson.M{"email": u.Email},
		bson.M{"$setOnInsert": fromUser(u)},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return core.User{}, false, core.NewStorageError("upsert user", err)
	}
	if err == nil && res.UpsertedCount > 0 {
		return u, true, nil
	}

	var rec userRecord
	if err := r.users.FindOne(ctx, bson.M{"email": u.Email}).Decode(&rec); err != nil {
		return core.User{}, false, core.NewStorageError("find user", err)
	}
	return rec.toUser(), false, nil
}

// Close disconnects the client.
func (r *Repository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.Timeout)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.config.Timeout)
}

// RepositoryState exposes connection details for observability.
type RepositoryState struct {
	Database   string `json:"database"`
	Collection string `json:"collection"`
	Timeout    string `json:"timeout"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	return RepositoryState{
		Database:   r.config.Database,
		Collection: r.config.NotesCollection,
		Timeout:    r.config.Timeout.String(),
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "mongodb-repository"
}

var (
	_ core.Repository              = (*Repository)(nil)
	_ core.UserRepository          = (*Repository)(nil)
	_ introspection.Introspectable = (*Repository)(nil)
	_ introspection.Component      = (*Repository)(nil)
)
