package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/pinboard/pkg/adapters/memory"
	"github.com/aretw0/pinboard/pkg/api"
	"github.com/aretw0/pinboard/pkg/client"
	"github.com/aretw0/pinboard/pkg/core"
)

func TestClient_ReservedCharactersInID(t *testing.T) {
	repo := memory.NewRepository()
	svc := core.NewService(repo)
	srv := httptest.NewServer(api.NewServer(svc).Handler())
	t.Cleanup(srv.Close)
	c := client.New(srv.URL)
	ctx := context.Background()

	n, err := svc.Create(ctx, core.NoteInput{Title: "keep", Content: "c", Color: "red"})
	require.NoError(t, err)

	for _, ghost := range []string{n.ID + "?ghost", n.ID + "#x", n.ID + "/x", "a b%2F"} {
		_, err := c.Get(ctx, ghost)
		assert.True(t, client.IsNotFound(err), "get %q: %v", ghost, err)

		title := "changed"
		_, err = c.Update(ctx, ghost, core.Patch{Title: &title})
		assert.True(t, client.IsNotFound(err), "update %q: %v", ghost, err)

		err = c.Delete(ctx, ghost)
		assert.True(t, client.IsNotFound(err), "delete %q: %v", ghost, err)
	}

	got, err := svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep", got.Title)
	assert.Equal(t, 1, repo.Len())

	var apiErr *client.APIError
	_, err = c.Get(ctx, n.ID+"?ghost")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
