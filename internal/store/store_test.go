package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/thirtythreehz/crates/internal/shared"
)

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// backends returns a fresh instance of every backend that runs without
// external services.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(":memory:", 0, 0)
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips a document", func(t *testing.T) {
		for name, s := range backends(t) {
			t.Run(name, func(t *testing.T) {
				want := testDoc{Name: "snapshot", Count: 3}
				if err := s.Put(ctx, "collection:alice", want, 0); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}

				var got testDoc
				ok, err := s.Get(ctx, "collection:alice", &got)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if !ok {
					t.Fatal("expected entry to exist")
				}
				if got != want {
					t.Errorf("got %+v, want %+v", got, want)
				}
			})
		}
	})

	t.Run("reports missing keys", func(t *testing.T) {
		for name, s := range backends(t) {
			t.Run(name, func(t *testing.T) {
				var got testDoc
				ok, err := s.Get(ctx, "collection:nobody", &got)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if ok {
					t.Error("expected entry to be absent")
				}
			})
		}
	})

	t.Run("replaces existing values", func(t *testing.T) {
		for name, s := range backends(t) {
			t.Run(name, func(t *testing.T) {
				if err := s.Put(ctx, "k", testDoc{Count: 1}, 0); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if err := s.Put(ctx, "k", testDoc{Count: 2}, 0); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}

				var got testDoc
				if _, err := s.Get(ctx, "k", &got); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if got.Count != 2 {
					t.Errorf("Count = %d, want 2", got.Count)
				}
			})
		}
	})

	t.Run("expired entries read as absent", func(t *testing.T) {
		for name, s := range backends(t) {
			t.Run(name, func(t *testing.T) {
				if err := s.Put(ctx, "fleeting", testDoc{Count: 1}, 10*time.Millisecond); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				time.Sleep(25 * time.Millisecond)

				var got testDoc
				ok, err := s.Get(ctx, "fleeting", &got)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if ok {
					t.Error("expected expired entry to be absent")
				}
			})
		}
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		for name, s := range backends(t) {
			t.Run(name, func(t *testing.T) {
				if err := s.Put(ctx, "durable", testDoc{Count: 1}, 0); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				time.Sleep(15 * time.Millisecond)

				var got testDoc
				ok, err := s.Get(ctx, "durable", &got)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if !ok {
					t.Error("expected entry to survive")
				}
			})
		}
	})

	t.Run("delete", func(t *testing.T) {
		for name, s := range backends(t) {
			t.Run(name, func(t *testing.T) {
				if err := s.Put(ctx, "gone", testDoc{Count: 1}, 0); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if err := s.Delete(ctx, "gone"); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}

				var got testDoc
				if ok, _ := s.Get(ctx, "gone", &got); ok {
					t.Error("expected entry to be deleted")
				}

				// deleting again is not an error
				if err := s.Delete(ctx, "gone"); err != nil {
					t.Errorf("expected no error deleting absent key, got %v", err)
				}
			})
		}
	})

	t.Run("PutIfAbsent", func(t *testing.T) {
		for name, s := range backends(t) {
			t.Run(name, func(t *testing.T) {
				won, err := s.PutIfAbsent(ctx, "lease", testDoc{Name: "run-1"}, 0)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if !won {
					t.Fatal("expected first claim to win")
				}

				won, err = s.PutIfAbsent(ctx, "lease", testDoc{Name: "run-2"}, 0)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if won {
					t.Error("expected second claim to lose")
				}

				var got testDoc
				if _, err := s.Get(ctx, "lease", &got); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if got.Name != "run-1" {
					t.Errorf("Name = %q, want the original claimant kept", got.Name)
				}

				if err := s.Delete(ctx, "lease"); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				won, err = s.PutIfAbsent(ctx, "lease", testDoc{Name: "run-3"}, 0)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if !won {
					t.Error("expected claim after release to win")
				}
			})
		}
	})

	t.Run("PutIfAbsent after expiry", func(t *testing.T) {
		for name, s := range backends(t) {
			t.Run(name, func(t *testing.T) {
				won, err := s.PutIfAbsent(ctx, "lease", testDoc{Name: "run-1"}, 10*time.Millisecond)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if !won {
					t.Fatal("expected first claim to win")
				}
				time.Sleep(25 * time.Millisecond)

				won, err = s.PutIfAbsent(ctx, "lease", testDoc{Name: "run-2"}, 0)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if !won {
					t.Error("expected claim on expired lease to win")
				}
			})
		}
	})
}

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"collection", CollectionKey("alice"), "collection:alice"},
		{"master", MasterKey(40723), "master:40723"},
		{"progress", ProgressKey("alice"), "enrichment:progress:alice"},
		{"lease", SyncLeaseKey("alice"), "sync:lease:alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory backend", func(t *testing.T) {
		s, err := Open(ctx, shared.StorageConfig{Backend: "memory"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer s.Close()

		if _, ok := s.(*MemoryStore); !ok {
			t.Errorf("expected MemoryStore, got %T", s)
		}
	})

	t.Run("sqlite is the default backend", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "crates.db")
		s, err := Open(ctx, shared.StorageConfig{Path: path})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer s.Close()

		if _, ok := s.(*SQLiteStore); !ok {
			t.Errorf("expected SQLiteStore, got %T", s)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open(ctx, shared.StorageConfig{Backend: "etcd"})
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
