package shared

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	if a == "" || b == "" {
		t.Fatal("GenerateID() returned empty string")
	}

	if a == b {
		t.Errorf("GenerateID() returned duplicate ids: %s", a)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	logger.Info("hello")

	if buf.Len() == 0 {
		t.Error("expected log output, got none")
	}

	if logger = NewLogger(nil); logger == nil {
		t.Error("NewLogger(nil) should fall back to stderr, not return nil")
	}
}

func TestLoadOrCreateKey(t *testing.T) {
	tmpDir := t.TempDir()
	keyPath := filepath.Join(tmpDir, "nested", "crates.key")

	key, err := LoadOrCreateKey(keyPath)
	if err != nil {
		t.Fatalf("failed to create key: %v", err)
	}

	if len(key) != KeySize {
		t.Fatalf("expected %d byte key, got %d", KeySize, len(key))
	}

	again, err := LoadOrCreateKey(keyPath)
	if err != nil {
		t.Fatalf("failed to load existing key: %v", err)
	}

	if !bytes.Equal(key, again) {
		t.Error("loading an existing key file should return the same key")
	}
}
