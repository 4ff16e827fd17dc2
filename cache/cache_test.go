package cache

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "cache.db"))

	entry := &Entry{
		ClassName:  "A",
		Namespace:  0,
		MethodName: "m",
		InVersion:  "v1",
		OutVersion: "3",
		Body:       []byte{0x01, 0x02},
	}
	if err := store.Put(entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get("A", 0, "m", "v1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OutVersion != "3" || string(got.Body) != string(entry.Body) {
		t.Errorf("Get = %+v, want stored entry", got)
	}
}

func TestGetMissesOnVersionChange(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "cache.db"))

	entry := &Entry{ClassName: "A", MethodName: "m", InVersion: "v1", OutVersion: "1", Body: []byte{1}}
	if err := store.Put(entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, err := store.Get("A", 0, "m", "v2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get with changed version: err = %v, want ErrNotFound", err)
	}
	if _, err := store.Get("A", 0, "m", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get with empty version: err = %v, want ErrNotFound", err)
	}
	if _, err := store.Get("B", 0, "m", "v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get of unknown method: err = %v, want ErrNotFound", err)
	}
}

func TestPutReplacesExisting(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "cache.db"))

	put := func(inVersion, outVersion string) {
		t.Helper()
		err := store.Put(&Entry{
			ClassName: "A", MethodName: "m",
			InVersion: inVersion, OutVersion: outVersion, Body: []byte(outVersion),
		})
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	put("v1", "1")
	put("v2", "2")

	if n, err := store.Count(); err != nil || n != 1 {
		t.Errorf("Count = %d (%v), want 1", n, err)
	}
	got, err := store.Get("A", 0, "m", "v2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OutVersion != "2" {
		t.Errorf("OutVersion = %q, want 2", got.OutVersion)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = store.Put(&Entry{ClassName: "A", MethodName: "m", InVersion: "v1", OutVersion: "1", Body: []byte{1}})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openTestStore(t, path)
	if _, err := reopened.Get("A", 0, "m", "v1"); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}
