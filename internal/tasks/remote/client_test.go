package remote

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/tasksync/tasks/internal/tasks/schema"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// newTestStore starts a document store and a client pointed at it.
func newTestStore(t *testing.T) (*Server, *Client) {
	t.Helper()

	srv := NewServer(quietLogger())
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	client, err := NewClient(Config{BaseURL: ts.URL + "/", Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	return srv, client
}

// newStubClient returns a client for a server that always runs handler.
func newStubClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := NewClient(Config{BaseURL: ts.URL + "/", Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	return client
}

func TestNewClient_InvalidURL(t *testing.T) {
	tests := []string{"ftp://example.com/", "://bad"}
	for _, raw := range tests {
		if _, err := NewClient(Config{BaseURL: raw}); err == nil {
			t.Errorf("NewClient(%q) expected error", raw)
		}
	}
}

func TestNewClient_Default(t *testing.T) {
	client, err := NewClient(Config{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	if client.BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), DefaultBaseURL)
	}
}

func TestClient_URLs(t *testing.T) {
	id := uuid.MustParse("6f1e2d3c-4b5a-4978-8695-a4b3c2d1e0f9")

	tests := []struct {
		base         string
		wantSnapshot string
		wantDocument string
	}{
		{
			base:         "https://tasks.example.com/",
			wantSnapshot: "https://tasks.example.com/.json",
			wantDocument: "https://tasks.example.com/6F1E2D3C-4B5A-4978-8695-A4B3C2D1E0F9.json",
		},
		{
			base:         "https://tasks.example.com/lists/home",
			wantSnapshot: "https://tasks.example.com/lists/home.json",
			wantDocument: "https://tasks.example.com/lists/home/6F1E2D3C-4B5A-4978-8695-A4B3C2D1E0F9.json",
		},
	}

	for _, tt := range tests {
		client, err := NewClient(Config{BaseURL: tt.base, Logger: quietLogger()})
		if err != nil {
			t.Fatalf("NewClient(%q) failed: %v", tt.base, err)
		}
		if got := client.snapshotURL(); got != tt.wantSnapshot {
			t.Errorf("snapshotURL() = %q, want %q", got, tt.wantSnapshot)
		}
		if got := client.documentURL(id); got != tt.wantDocument {
			t.Errorf("documentURL() = %q, want %q", got, tt.wantDocument)
		}
	}
}

func TestClient_PutFetchDelete(t *testing.T) {
	srv, client := newTestStore(t)
	ctx := context.Background()

	task := schema.NewTask("Buy milk")
	task.Priority = schema.PriorityHigh
	task.SetNotes("2%")

	if err := client.Put(ctx, task); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if srv.Len() != 1 {
		t.Fatalf("server holds %d documents, want 1", srv.Len())
	}

	snapshot, err := client.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}
	rep, ok := snapshot[schema.FormatID(task.ID)]
	if !ok {
		t.Fatalf("snapshot missing %s: %v", task.ID, snapshot)
	}
	back, err := schema.FromRepresentation(rep)
	if err != nil {
		t.Fatalf("FromRepresentation() failed: %v", err)
	}
	if !back.SameFields(task) {
		t.Errorf("fetched task = %+v, want %+v", back, task)
	}

	if err := client.Delete(ctx, task.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if srv.Len() != 0 {
		t.Errorf("server holds %d documents after delete, want 0", srv.Len())
	}
}

func TestClient_FetchAll_EmptyStore(t *testing.T) {
	_, client := newTestStore(t)

	snapshot, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() on empty store failed: %v", err)
	}
	if len(snapshot) != 0 {
		t.Errorf("expected empty snapshot, got %d entries", len(snapshot))
	}
}

func TestClient_FetchAll_Failures(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind Kind
	}{
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			wantKind: KindEmptyResponse,
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"a": [`)
			},
			wantKind: KindDecode,
		},
		{
			name: "wrong shape",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `["not", "an", "object"]`)
			},
			wantKind: KindDecode,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantKind: KindTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newStubClient(t, tt.handler)

			_, err := client.FetchAll(context.Background())
			if err == nil {
				t.Fatal("FetchAll() expected error")
			}
			if got := KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf() = %s, want %s (err=%v)", got, tt.wantKind, err)
			}
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL + "/"
	ts.Close() // nothing is listening any more

	client, err := NewClient(Config{BaseURL: base, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	ctx := context.Background()

	if _, err := client.FetchAll(ctx); KindOf(err) != KindTransport {
		t.Errorf("FetchAll() kind = %s, want transport (err=%v)", KindOf(err), err)
	}
	if err := client.Put(ctx, schema.NewTask("x")); KindOf(err) != KindTransport {
		t.Errorf("Put() kind = %s, want transport (err=%v)", KindOf(err), err)
	}
	if err := client.Delete(ctx, uuid.New()); KindOf(err) != KindTransport {
		t.Errorf("Delete() kind = %s, want transport (err=%v)", KindOf(err), err)
	}
}

func TestClient_Put_Validation(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})
	ctx := context.Background()

	if err := client.Put(ctx, &schema.Task{Name: "x", Priority: schema.PriorityLow}); KindOf(err) != KindMissingIdentifier {
		t.Errorf("Put(no id) kind = %s, want missing identifier", KindOf(err))
	}
	if err := client.Put(ctx, nil); KindOf(err) != KindMissingIdentifier {
		t.Errorf("Put(nil) kind = %s, want missing identifier", KindOf(err))
	}
	if err := client.Put(ctx, &schema.Task{ID: uuid.New(), Priority: schema.PriorityLow}); KindOf(err) != KindRepresentation {
		t.Errorf("Put(no name) kind = %s, want representation failure", KindOf(err))
	}
	if err := client.Delete(ctx, uuid.Nil); KindOf(err) != KindMissingIdentifier {
		t.Errorf("Delete(nil id) kind = %s, want missing identifier", KindOf(err))
	}
}

func TestClient_Delete_NonOKIsNotFailure(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	if err := client.Delete(context.Background(), uuid.New()); err != nil {
		t.Errorf("Delete() with 404 returned %v, want nil", err)
	}
}

func TestError_Is(t *testing.T) {
	err := newError("fetch", KindDecode, errors.New("bad"))

	if !errors.Is(err, &Error{Kind: KindDecode}) {
		t.Error("errors.Is should match on Kind")
	}
	if errors.Is(err, &Error{Kind: KindTransport}) {
		t.Error("errors.Is should not match a different Kind")
	}
	if errors.Is(err, &Error{Kind: KindDecode, Op: "put"}) {
		t.Error("errors.Is should not match a different Op")
	}
	if KindOf(errors.New("other")) != KindUnknown {
		t.Error("KindOf(foreign error) should be unknown")
	}
}
