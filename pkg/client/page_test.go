package client_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"clarvis-be/pkg/client"
	"clarvis-be/pkg/studymaterial"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestrictedPagesAreInaccessible(t *testing.T) {
	for _, url := range []string{"chrome://settings", "chrome-extension://abc/popup.html", "edge://flags", ""} {
		t.Run(url, func(t *testing.T) {
			_, err := client.StaticPage{Context: studymaterial.PageContext{URL: url}}.Page(context.Background())
			assert.ErrorIs(t, err, client.ErrPageInaccessible)

			var inaccessible *client.PageInaccessibleError
			require.ErrorAs(t, err, &inaccessible)
			assert.Equal(t, "Restricted Page", inaccessible.Context.Title)
			assert.Equal(t, "Content cannot be extracted from this page.", inaccessible.Context.MainContent)
		})
	}
}

func TestStaticPageStampsTimestamp(t *testing.T) {
	pc, err := client.StaticPage{Context: pageFixture()}.Page(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Raft", pc.Title)
	assert.NotEmpty(t, pc.Timestamp)
}

func TestFilePage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"title":"Paxos","url":"https://example.com/paxos","text":"made simple"}`), 0o600))

	pc, err := client.FilePage{Path: path}.Page(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Paxos", pc.Title)
	assert.Equal(t, "made simple", pc.Body())

	_, err = client.FilePage{Path: filepath.Join(t.TempDir(), "missing.json")}.Page(context.Background())
	assert.Error(t, err)
}
