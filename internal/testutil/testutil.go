// Package testutil provides shared test helpers for databases and inboxes.
package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/starford/smartmarks/internal/storage"
	"github.com/starford/smartmarks/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "smartmarks-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestInbox creates a temporary import inbox with a storage.Provider.
func TestInbox(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// Eventually polls cond until it holds or the timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
