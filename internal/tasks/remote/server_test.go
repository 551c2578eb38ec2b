package remote

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestServer_PutValidatesDocuments(t *testing.T) {
	srv := NewServer(quietLogger())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"complete":false,"identifier":"A","name":"Buy milk","notes":null,"priority":"low"}`, http.StatusOK},
		{"bad priority", `{"complete":false,"identifier":"A","name":"Buy milk","priority":"urgent"}`, http.StatusBadRequest},
		{"missing fields", `{"name":"Buy milk"}`, http.StatusBadRequest},
		{"not JSON", `{nope`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPut, ts.URL+"/A.json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("NewRequest() failed: %v", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("PUT failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				body, _ := io.ReadAll(resp.Body)
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, body)
			}
			if tt.wantStatus == http.StatusBadRequest {
				var payload map[string]string
				if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload["error"] == "" {
					t.Errorf("error body = %v, %v", payload, err)
				}
			}
		})
	}

	if srv.Len() != 1 {
		t.Errorf("Len() = %d, want only the valid document stored", srv.Len())
	}
}

func TestServer_SnapshotAndRoutes(t *testing.T) {
	srv := NewServer(quietLogger())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	if status, body := get("/.json"); status != http.StatusOK || body != "null" {
		t.Errorf("empty snapshot = %d %q", status, body)
	}

	if err := srv.Seed(map[string]any{"b": map[string]any{"x": 1}, "a": "junk"}); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	if _, body := get("/.json"); body != `{"a":"junk","b":{"x":1}}` {
		t.Errorf("snapshot = %q", body)
	}
	if _, body := get("/missing.json"); body != "null" {
		t.Errorf("missing document = %q", body)
	}
	if _, ok := srv.Document("a"); ok {
		t.Error("Document() decoded a non-object")
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/a.json", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", resp.StatusCode)
	}
}

func TestServer_StartStop(t *testing.T) {
	srv := NewServer(quietLogger())
	if err := srv.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if srv.Addr() == "" {
		t.Error("Addr() empty after Start")
	}
	if err := srv.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}
