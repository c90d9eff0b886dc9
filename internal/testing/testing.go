// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/thirtythreehz/crates/internal/discogs"
)

// MockCatalog is a test double for the catalog operations the sync and
// enrichment engines consume. Unknown pages error, unknown masters answer
// 404 like the live API does.
type MockCatalog struct {
	Pages       map[int]*discogs.CollectionPage
	PageErr     map[int]error
	Masters     map[int64]*discogs.Master
	MasterErr   map[int64]error
	PageCalls   []int
	MasterCalls []int64
}

func (m *MockCatalog) Collection(ctx context.Context, username string, page, perPage int) (*discogs.CollectionPage, error) {
	m.PageCalls = append(m.PageCalls, page)
	if err, ok := m.PageErr[page]; ok {
		return nil, err
	}
	if p, ok := m.Pages[page]; ok {
		return p, nil
	}
	return nil, errors.New("no such page")
}

func (m *MockCatalog) Master(ctx context.Context, id int64) (*discogs.Master, error) {
	m.MasterCalls = append(m.MasterCalls, id)
	if err, ok := m.MasterErr[id]; ok {
		return nil, err
	}
	if master, ok := m.Masters[id]; ok {
		return master, nil
	}
	return nil, &discogs.APIError{Status: http.StatusNotFound, Body: `{"message": "Master Release not found."}`}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
