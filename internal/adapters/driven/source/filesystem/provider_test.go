package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDetect_TextFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.md", "# Notes\n\nHello.")
	writeFile(t, dir, "readme.txt", "plain text")
	writeFile(t, dir, "image.png", "not text")

	provider := New(dir)
	defer provider.Close()

	descs, err := provider.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 2, "unsupported file types are skipped")

	byTitle := map[string]domain.SourceDescriptor{}
	for _, d := range descs {
		byTitle[d.Title] = d
	}
	notes := byTitle["notes.md"]
	assert.Equal(t, "# Notes\n\nHello.", notes.Content)
	assert.False(t, notes.IsTabular())
	assert.Contains(t, byTitle["readme.txt"].URL, "file://")
}

func TestDetect_CSVBecomesTabular(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sales.csv", "region,revenue\nnorth,100\nsouth,200\n")

	provider := New(dir)
	defer provider.Close()

	descs, err := provider.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 1)

	desc := descs[0]
	assert.True(t, desc.IsTabular())
	require.Len(t, desc.Rows, 3)
	assert.Equal(t, []string{"region", "revenue"}, desc.Rows[0])
	assert.Equal(t, []string{"south", "200"}, desc.Rows[2])
	assert.Empty(t, desc.Content)
}

func TestDetect_RecursesIntoSubdirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("a", "b", "deep.txt"), "deep content")

	provider := New(dir)
	defer provider.Close()

	descs, err := provider.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "deep.txt", descs[0].Title)
}

func TestDetect_SkipsHiddenFilesAndDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".hidden.txt", "secret")
	writeFile(t, dir, filepath.Join(".git", "config.txt"), "git stuff")
	writeFile(t, dir, "visible.txt", "hello")

	provider := New(dir)
	defer provider.Close()

	descs, err := provider.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "visible.txt", descs[0].Title)
}

func TestDetect_MultipleRoots(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeFile(t, dirA, "a.txt", "from a")
	writeFile(t, dirB, "b.txt", "from b")

	provider := New(dirA, dirB)
	defer provider.Close()

	descs, err := provider.Detect(context.Background())
	require.NoError(t, err)
	assert.Len(t, descs, 2)
}

func TestDetect_StableIDs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.txt", "v1")

	provider := New(dir)
	defer provider.Close()

	first, err := provider.Detect(context.Background())
	require.NoError(t, err)

	writeFile(t, dir, "doc.txt", "v2")
	second, err := provider.Detect(context.Background())
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID, "same path yields the same source ID")
	assert.NotEqual(t, first[0].ContentHash(), second[0].ContentHash())
}

func TestDetect_MissingRoot(t *testing.T) {
	provider := New(filepath.Join(t.TempDir(), "does-not-exist"))
	defer provider.Close()

	_, err := provider.Detect(context.Background())
	assert.Error(t, err)
}

func TestWatch_DeliversWrites(t *testing.T) {
	dir := t.TempDir()
	provider := New(dir)
	defer provider.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	descCh, errCh := provider.Watch(ctx)

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, dir, "new.txt", "fresh content")

	select {
	case desc := <-descCh:
		assert.Equal(t, "new.txt", desc.Title)
		assert.Equal(t, "fresh content", desc.Content)
	case err := <-errCh:
		t.Fatalf("unexpected watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}

func TestWatch_IgnoresUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	provider := New(dir)
	defer provider.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	descCh, _ := provider.Watch(ctx)

	time.Sleep(50 * time.Millisecond)
	writeFile(t, dir, "binary.png", "not text")
	writeFile(t, dir, "wanted.txt", "text")

	select {
	case desc := <-descCh:
		assert.Equal(t, "wanted.txt", desc.Title)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}

func TestWatch_ClosesOnCancel(t *testing.T) {
	dir := t.TempDir()
	provider := New(dir)
	defer provider.Close()

	ctx, cancel := context.WithCancel(context.Background())
	descCh, errCh := provider.Watch(ctx)

	cancel()

	select {
	case _, ok := <-descCh:
		assert.False(t, ok, "descriptor channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("descriptor channel not closed after cancel")
	}
	select {
	case _, ok := <-errCh:
		assert.False(t, ok, "error channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("error channel not closed after cancel")
	}
}
