package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func sseHandler(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, l := range lines {
			io.WriteString(w, l)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

func TestClientStream(t *testing.T) {
	var gotContentType, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		sseHandler(deltaLine("Hel"), deltaLine("lo"), "data: [DONE]\n")(w, r)
	}))
	defer srv.Close()

	var snapshots []string
	c := NewClient(srv.URL+"/", srv.Client())
	text, err := c.Stream(context.Background(), "/api/chat/stream", map[string]string{"q": "hi"}, func(s string) {
		snapshots = append(snapshots, s)
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if text != "Hello" {
		t.Errorf("text = %q, want Hello", text)
	}
	if len(snapshots) != 2 || snapshots[0] != "Hel" || snapshots[1] != "Hello" {
		t.Errorf("snapshots = %q", snapshots)
	}
	if gotContentType != "application/json" || gotAccept != "text/event-stream" {
		t.Errorf("headers: content-type %q accept %q", gotContentType, gotAccept)
	}
}

func TestClientStreamStatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"json error body", http.StatusBadRequest, `{"error":"messages are required"}`, "messages are required"},
		{"plain body", http.StatusInternalServerError, "boom", "Error 500"},
		{"empty error field", http.StatusBadGateway, `{"error":""}`, "Error 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			called := false
			_, err := NewClient(srv.URL, srv.Client()).Stream(context.Background(), "/x", nil, func(string) { called = true })

			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("error = %v, want *RequestError", err)
			}
			if reqErr.Status != tt.status || reqErr.Message != tt.wantMsg {
				t.Errorf("got status %d message %q, want %d %q", reqErr.Status, reqErr.Message, tt.status, tt.wantMsg)
			}
			if called {
				t.Error("sink must not be called on request failure")
			}
		})
	}
}

func TestClientStreamTransportFailure(t *testing.T) {
	hc := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}
	_, err := NewClient("http://notebook.invalid", hc).Stream(context.Background(), "/x", nil, nil)

	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Status != 0 {
		t.Fatalf("error = %v, want transport RequestError", err)
	}
}

func TestClientStreamBodyUnavailable(t *testing.T) {
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{},
			Body:       http.NoBody,
			Request:    r,
		}, nil
	})}
	_, err := NewClient("http://notebook.invalid", hc).Stream(context.Background(), "/x", nil, nil)
	if !errors.Is(err, ErrBodyUnavailable) {
		t.Fatalf("error = %v, want ErrBodyUnavailable", err)
	}
}

func TestClientStreamServerErrorEvent(t *testing.T) {
	srv := httptest.NewServer(sseHandler(
		deltaLine("partial"),
		"event: error\n",
		`data: {"error":"model unavailable"}`+"\n\n",
		"data: [DONE]\n",
	))
	defer srv.Close()

	text, err := NewClient(srv.URL, srv.Client()).Stream(context.Background(), "/x", nil, nil)
	var serverErr *ServerError
	if !errors.As(err, &serverErr) || serverErr.Message != "model unavailable" {
		t.Fatalf("error = %v, want ServerError", err)
	}
	if text != "partial" {
		t.Errorf("text = %q, want partial", text)
	}
}

func TestClientStreamClosedWithoutDone(t *testing.T) {
	srv := httptest.NewServer(sseHandler(deltaLine("no "), deltaLine("sentinel")))
	defer srv.Close()

	text, err := NewClient(srv.URL, srv.Client()).Stream(context.Background(), "/x", nil, nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if text != "no sentinel" {
		t.Errorf("text = %q", text)
	}
}

func TestClientGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/presentations/p1" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"not found"}`)
			return
		}
		io.WriteString(w, `{"id":"p1","title":"Deck"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	var out struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if err := c.GetJSON(context.Background(), "/api/presentations/p1", &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.ID != "p1" || out.Title != "Deck" {
		t.Errorf("decoded %+v", out)
	}

	err := c.GetJSON(context.Background(), "/api/presentations/missing", &out)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Message != "not found" {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestConversationCancelsPreviousStream(t *testing.T) {
	release := make(chan struct{})
	firstStarted := make(chan struct{})
	var once sync.Once

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Slow") == "" {
			sseHandler(deltaLine("second"), "data: [DONE]\n")(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, deltaLine("first"))
		w.(http.Flusher).Flush()
		once.Do(func() { close(firstStarted) })
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	hc := srv.Client()
	slow := true
	var slowMu sync.Mutex
	base := hc.Transport
	hc.Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		slowMu.Lock()
		if slow {
			r.Header.Set("X-Slow", "1")
			slow = false
		}
		slowMu.Unlock()
		return base.RoundTrip(r)
	})

	conv := NewConversation(NewClient(srv.URL, hc), "/api/chat/stream")

	var mu sync.Mutex
	var firstSnapshots []string
	firstDone := make(chan error, 1)
	go func() {
		_, err := conv.Send(context.Background(), nil, func(s string) {
			mu.Lock()
			firstSnapshots = append(firstSnapshots, s)
			mu.Unlock()
		})
		firstDone <- err
	}()

	select {
	case <-firstStarted:
	case <-time.After(5 * time.Second):
		t.Fatal("first stream never started")
	}

	text, err := conv.Send(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("second Send() error = %v", err)
	}
	if text != "second" {
		t.Errorf("second text = %q", text)
	}

	select {
	case err := <-firstDone:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("first Send() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first stream was not cancelled")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, s := range firstSnapshots {
		if strings.Contains(s, "second") {
			t.Errorf("first sink saw a snapshot from the second stream: %q", s)
		}
	}
}

func TestConversationSinkMayCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, deltaLine("stop ")+deltaLine("here"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()

	conv := NewConversation(NewClient(srv.URL, srv.Client()), "/api/chat/stream")

	var snapshots []string
	done := make(chan error, 1)
	go func() {
		_, err := conv.Send(context.Background(), nil, func(s string) {
			snapshots = append(snapshots, s)
			conv.Cancel()
		})
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Send() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Send did not return after the sink cancelled it")
	}
	if len(snapshots) != 1 || snapshots[0] != "stop " {
		t.Errorf("snapshots = %q, want only the first", snapshots)
	}
}
