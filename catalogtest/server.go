package catalogtest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Server is a fixture CDN serving documents from memory and counting
// requests per path.
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
}

// NewServer starts a fixture CDN that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		files: make(map[string][]byte),
		hits:  make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Put publishes data at relPath (relative to the server root).
func (s *Server) Put(relPath string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[strings.TrimPrefix(relPath, "/")] = data
}

// Hits returns how many times relPath was requested.
func (s *Server) Hits(relPath string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hits[strings.TrimPrefix(relPath, "/")]
}

// BaseURL returns the server root with a trailing slash.
func (s *Server) BaseURL() string {
	return s.URL + "/"
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")

	s.mu.Lock()
	s.hits[key]++
	data, ok := s.files[key]
	s.mu.Unlock()

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(data)
}
