package localstore

import (
	"errors"
	"path/filepath"
	"testing"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()

	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	ss, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	return map[string]Store{"file": fs, "sqlite": ss}
}

func TestStoreSetGetDelete(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			key := "klinecharts-pro-overlays-AAPL"

			if _, err := store.Get(key); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
			}

			if err := store.Set(key, []byte(`[{"id":"o1"}]`)); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, err := store.Get(key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if string(got) != `[{"id":"o1"}]` {
				t.Fatalf("Get() = %s", got)
			}

			if err := store.Set(key, []byte(`[]`)); err != nil {
				t.Fatalf("Set(overwrite) error = %v", err)
			}
			got, _ = store.Get(key)
			if string(got) != `[]` {
				t.Fatalf("Get() after overwrite = %s", got)
			}

			if err := store.Delete(key); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := store.Get(key); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
			}

			// Deleting an absent key is not an error.
			if err := store.Delete(key); err != nil {
				t.Fatalf("Delete(missing) error = %v", err)
			}
		})
	}
}

func TestStoreKeysAreIndependent(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Set("k1", []byte("a")); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := store.Set("k2", []byte("b")); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := store.Delete("k1"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			got, err := store.Get("k2")
			if err != nil || string(got) != "b" {
				t.Fatalf("Get(k2) = %s, %v", got, err)
			}
		})
	}
}

func TestFileStoreSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	key := "klinecharts-pro-overlays-BTC/USDT"
	if err := fs.Set(key, []byte("x")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("files in store dir = %v, want exactly one", matches)
	}

	got, err := fs.Get(key)
	if err != nil || string(got) != "x" {
		t.Fatalf("Get() = %s, %v", got, err)
	}
}
