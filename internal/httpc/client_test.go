package httpc

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count":2}`))
	}))
	defer srv.Close()

	var out struct {
		Count int `json:"count"`
	}
	if err := GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Count != 2 {
		t.Errorf("Count = %d, want 2", out.Count)
	}
}

func TestGetJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "hand not found", http.StatusNotFound)
	}))
	defer srv.Close()

	var out map[string]any
	err := GetJSON(context.Background(), srv.URL, &out)

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", se.Status)
	}
}

func TestGetJSON_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	var out map[string]any
	if err := GetJSON(context.Background(), srv.URL, &out); err == nil {
		t.Error("expected decode error")
	}
}

func TestAPI_PutAndGet(t *testing.T) {
	var stored string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
			}
			b, _ := io.ReadAll(r.Body)
			stored = string(b)
			w.Write(b)
		case http.MethodGet:
			if r.URL.Path != "/api/hands/right/config" {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(stored))
		}
	}))
	defer srv.Close()

	api := NewAPI(srv.URL + "/")
	in := map[string]string{"handedness": "left"}
	var out map[string]string
	if err := api.Put(context.Background(), "/api/hands/right/config", in, &out); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if out["handedness"] != "left" {
		t.Errorf("Put response = %v", out)
	}

	out = nil
	if err := api.Get(context.Background(), "/api/hands/right/config", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out["handedness"] != "left" {
		t.Errorf("Get response = %v", out)
	}

	err := api.Get(context.Background(), "/api/hands/left/config", &out)
	var se *StatusError
	if !errors.As(err, &se) || se.Method != http.MethodGet || se.Status != 404 {
		t.Errorf("missing path = %v", err)
	}
}

func TestNewClient_Timeout(t *testing.T) {
	c := NewClient(3 * time.Second)
	if c.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v", c.Timeout)
	}
	if c.Transport == http.DefaultTransport {
		t.Error("client should not share the default transport")
	}
}
