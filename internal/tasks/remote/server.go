package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/tasksync/tasks/internal/tasks/schema"
)

// Server is a small in-memory document store that speaks the same REST
// contract as the hosted store. It backs `tasks remote serve` and the tests.
// PUT bodies must match schema.DocumentSchema; Seed stores anything.
type Server struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage

	router   *mux.Router
	server   *http.Server
	listener net.Listener
	logger   *log.Logger
	wg       sync.WaitGroup
}

// NewServer creates an empty document store.
// If logger is nil, log.Default() is used.
func NewServer(logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		docs:   make(map[string]json.RawMessage),
		logger: logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/.json", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/{key}.json", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/{key}.json", s.handlePut).Methods(http.MethodPut)
	r.HandleFunc("/{key}.json", s.handleDelete).Methods(http.MethodDelete)
	r.Use(s.logRequests)
	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Document store listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.wg.Wait()
	return nil
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Len returns the number of stored documents.
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Seed stores raw documents by key, replacing any existing ones.
// It accepts arbitrary JSON so tests can plant malformed entries.
func (s *Server) Seed(docs map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document %s: %w", key, err)
		}
		s.docs[key] = data
	}
	return nil
}

// Document returns the decoded representation stored at key.
func (s *Server) Document(key string) (*schema.Representation, bool) {
	s.mu.RLock()
	data, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	var rep schema.Representation
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, false
	}
	return &rep, true
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if len(s.docs) == 0 {
		_, _ = io.WriteString(w, "null")
		return
	}

	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		name, _ := json.Marshal(k)
		b.Write(name)
		b.WriteByte(':')
		b.Write(s.docs[k])
	}
	b.WriteByte('}')
	_, _ = io.WriteString(w, b.String())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	s.mu.RLock()
	data, ok := s.docs[key]
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		_, _ = io.WriteString(w, "null")
		return
	}
	_, _ = w.Write(data)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
		return
	}
	if err := schema.ValidateDocument(body); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.docs[key] = json.RawMessage(body)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	s.mu.Lock()
	delete(s.docs, key)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, "null")
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Printf("%s %s %d", r.Method, r.URL.Path, rec.status)
	})
}
