package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type widget struct {
	ID    string `yaml:"id"`
	Count int    `yaml:"count"`
}

func (w *widget) RecordID() string { return w.ID }

func TestSetSaveGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := New[*widget](dir)

	c.Set("a", &widget{ID: "a", Count: 1})
	require.NoError(t, c.Save())

	got, err := c.Get("a")
	require.NoError(t, err)
	require.Equal(t, 1, got.Count)

	require.FileExists(t, filepath.Join(dir, "a.yml"))
}

func TestGetNotFound(t *testing.T) {
	c := New[*widget](t.TempDir())
	_, err := c.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTombstonesUntilSave(t *testing.T) {
	dir := t.TempDir()
	c := New[*widget](dir)
	c.Set("a", &widget{ID: "a", Count: 1})
	require.NoError(t, c.Save())

	c.Delete("a")
	_, err := c.Get("a")
	require.ErrorIs(t, err, ErrNotFound, "delete takes immediate in-memory effect")
	require.FileExists(t, filepath.Join(dir, "a.yml"), "file still exists until Save")

	require.NoError(t, c.Save())
	require.NoFileExists(t, filepath.Join(dir, "a.yml"))
}

func TestSaveIdempotentNoMtimeChurn(t *testing.T) {
	dir := t.TempDir()
	c := New[*widget](dir)
	c.Set("a", &widget{ID: "a", Count: 1})
	require.NoError(t, c.Save())

	info, err := os.Stat(filepath.Join(dir, "a.yml"))
	require.NoError(t, err)
	mtime := info.ModTime()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, c.Save())

	info2, err := os.Stat(filepath.Join(dir, "a.yml"))
	require.NoError(t, err)
	require.Equal(t, mtime, info2.ModTime(), "repeated Save with no Set/Delete must not touch the file")
}

func TestGetRefreshesOnExternalMtimeBump(t *testing.T) {
	dir := t.TempDir()
	c := New[*widget](dir)
	c.Set("a", &widget{ID: "a", Count: 1})
	require.NoError(t, c.Save())

	_, err := c.Get("a")
	require.NoError(t, err)

	// Simulate an external process (e.g. the child) rewriting the file.
	time.Sleep(10 * time.Millisecond)
	raw := "id: a\ncount: 99\n"
	future := time.Now().Add(time.Second)
	path := filepath.Join(dir, "a.yml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	require.NoError(t, os.Chtimes(path, future, future))

	got, err := c.Get("a")
	require.NoError(t, err)
	require.Equal(t, 99, got.Count, "Get must observe the external rewrite without an explicit invalidation")
}

func TestListIsAuthoritativeEvenForUnloadedIds(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "external.yml"), []byte("id: external\ncount: 5\n"), 0o644))

	c := New[*widget](dir)
	ids, err := c.List()
	require.NoError(t, err)
	require.Contains(t, ids, "external")

	got, err := c.Get("external")
	require.NoError(t, err)
	require.Equal(t, 5, got.Count)
}

func TestParseErrorTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"), []byte("not: [valid yaml"), 0o644))

	c := New[*widget](dir)
	_, err := c.Get("bad")
	require.Error(t, err)
}
