package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"notebook-backend/internal/config"
	"notebook-backend/internal/live"
	"notebook-backend/internal/model"
	"notebook-backend/internal/service"
	"notebook-backend/internal/storage"
	"notebook-backend/internal/stream"
)

type fakeModel struct {
	mu        sync.Mutex
	chunks    []string
	streamErr error
	startErr  error
	reply     string
	calls     int
}

func (m *fakeModel) Generate(_ context.Context, _ []*schema.Message, _ ...einoModel.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.startErr != nil {
		return nil, m.startErr
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeModel) Stream(_ context.Context, _ []*schema.Message, _ ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.startErr != nil {
		return nil, m.startErr
	}
	sr, sw := schema.Pipe[*schema.Message](len(m.chunks) + 1)
	go func() {
		defer sw.Close()
		for _, c := range m.chunks {
			if sw.Send(schema.AssistantMessage(c, nil), nil) {
				return
			}
		}
		if m.streamErr != nil {
			sw.Send(nil, m.streamErr)
		}
	}()
	return sr, nil
}

type testServer struct {
	router    *gin.Engine
	model     *fakeModel
	notebooks *service.NotebookService
	store     storage.Storage
}

func newTestServer(m *fakeModel) *testServer {
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStorage()
	notebooks := service.NewNotebookService(store)
	gen := config.GenerationConfig{MaxSourceChars: 1000, MaxHistoryMessages: 10}
	chat := service.NewChatService(m, notebooks, gen)
	presentations := service.NewPresentationService(m, notebooks, store, gen)

	router := gin.New()
	api := router.Group("/api")
	NewChatHandler(chat, config.ServerConfig{StreamTimeout: time.Minute}).Register(api)
	NewNotebookHandler(notebooks).Register(api)
	NewPresentationHandler(presentations, config.PlayerConfig{}, []string{"*"}).Register(api)

	return &testServer{router: router, model: m, notebooks: notebooks, store: store}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func chatBody(sources ...model.SourceDocument) model.ChatRequest {
	return model.ChatRequest{
		Messages: []model.ChatMessage{{Role: model.RoleUser, Content: "Explain"}},
		Sources:  sources,
	}
}

var doc = model.SourceDocument{Name: "notes.md", Content: "Photosynthesis turns light into sugar."}

func TestStreamChatRoundTrip(t *testing.T) {
	ts := newTestServer(&fakeModel{chunks: []string{"Light ", "becomes ", "sugar."}})

	w := ts.do(t, http.MethodPost, "/api/chat/stream", chatBody(doc))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := w.Body.String()
	var snapshots []string
	text, err := stream.Read(context.Background(), strings.NewReader(body), func(s string) { snapshots = append(snapshots, s) })
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if text != "Light becomes sugar." {
		t.Errorf("text = %q", text)
	}
	if len(snapshots) != 3 || snapshots[0] != "Light " {
		t.Errorf("snapshots = %q", snapshots)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("body does not end with [DONE]: %q", body)
	}
}

func TestStreamChatErrors(t *testing.T) {
	tests := []struct {
		name   string
		model  *fakeModel
		body   any
		status int
	}{
		{"malformed body", &fakeModel{}, map[string]any{"messages": "nope"}, http.StatusBadRequest},
		{"no messages", &fakeModel{}, model.ChatRequest{}, http.StatusBadRequest},
		{"bad role", &fakeModel{}, model.ChatRequest{Messages: []model.ChatMessage{{Role: "system", Content: "x"}}}, http.StatusBadRequest},
		{"unknown notebook", &fakeModel{}, model.ChatRequest{Messages: []model.ChatMessage{{Role: model.RoleUser, Content: "x"}}, NotebookID: "missing"}, http.StatusNotFound},
		{"model start failure", &fakeModel{startErr: errors.New("upstream down")}, chatBody(doc), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(tt.model)
			w := ts.do(t, http.MethodPost, "/api/chat/stream", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.status, w.Body)
			}
			var resp model.ErrorResponse
			decodeJSON(t, w, &resp)
			if resp.Error == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestStreamChatMidStreamError(t *testing.T) {
	ts := newTestServer(&fakeModel{chunks: []string{"partial"}, streamErr: errors.New("connection reset")})

	w := ts.do(t, http.MethodPost, "/api/chat/stream", chatBody(doc))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	text, err := stream.Read(context.Background(), w.Body, nil)
	var serverErr *stream.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("Read() error = %v, want ServerError", err)
	}
	if text != "partial" {
		t.Errorf("text = %q", text)
	}
}

func TestStreamChatEmptyAnswer(t *testing.T) {
	ts := newTestServer(&fakeModel{})

	w := ts.do(t, http.MethodPost, "/api/chat/stream", chatBody(doc))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "data: [DONE]\n\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestStreamChatRecordsToNotebook(t *testing.T) {
	ts := newTestServer(&fakeModel{chunks: []string{"Sure."}})

	nb, err := ts.notebooks.CreateNotebook("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ts.notebooks.AddSource(nb.ID, model.AddSourceRequest{Name: doc.Name, Content: doc.Content}); err != nil {
		t.Fatal(err)
	}

	req := chatBody()
	req.NotebookID = nb.ID
	w := ts.do(t, http.MethodPost, "/api/chat/stream", req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}

	w = ts.do(t, http.MethodGet, "/api/notebooks/"+nb.ID+"/messages", nil)
	var resp struct {
		Messages []model.Message `json:"messages"`
	}
	decodeJSON(t, w, &resp)
	if len(resp.Messages) != 2 || resp.Messages[1].Content != "Sure." {
		t.Errorf("messages = %+v", resp.Messages)
	}
}

func TestStreamContent(t *testing.T) {
	tests := []struct {
		name   string
		kind   string
		body   any
		status int
		calls  int
	}{
		{"summary", "summary", model.ContentRequest{Sources: []model.SourceDocument{doc}}, http.StatusOK, 1},
		{"study guide", "study_guide", model.ContentRequest{Sources: []model.SourceDocument{doc}}, http.StatusOK, 1},
		{"no sources", "faq", model.ContentRequest{}, http.StatusBadRequest, 0},
		{"empty body", "briefing", nil, http.StatusBadRequest, 0},
		{"unknown kind", "poem", model.ContentRequest{Sources: []model.SourceDocument{doc}}, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(&fakeModel{chunks: []string{"# Summary"}})
			w := ts.do(t, http.MethodPost, "/api/generate/"+tt.kind+"/stream", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.status, w.Body)
			}
			if ts.model.calls != tt.calls {
				t.Errorf("model calls = %d, want %d", ts.model.calls, tt.calls)
			}
		})
	}
}

func TestNotebookCRUD(t *testing.T) {
	ts := newTestServer(&fakeModel{})

	w := ts.do(t, http.MethodPost, "/api/notebooks", model.CreateNotebookRequest{Title: "Biology"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	var nb model.Notebook
	decodeJSON(t, w, &nb)

	w = ts.do(t, http.MethodPost, "/api/notebooks/"+nb.ID+"/sources", model.AddSourceRequest{Name: "a.txt", Content: "text"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add source status = %d, body = %s", w.Code, w.Body)
	}
	var src model.Source
	decodeJSON(t, w, &src)

	w = ts.do(t, http.MethodPost, "/api/notebooks/"+nb.ID+"/sources", map[string]string{"name": "missing content"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid source status = %d", w.Code)
	}

	w = ts.do(t, http.MethodPut, "/api/notebooks/"+nb.ID, model.UpdateNotebookRequest{Title: "Cells"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename status = %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/api/notebooks", nil)
	var list struct {
		Notebooks []model.NotebookResponse `json:"notebooks"`
	}
	decodeJSON(t, w, &list)
	if len(list.Notebooks) != 1 || list.Notebooks[0].Title != "Cells" || list.Notebooks[0].SourceCount != 1 {
		t.Errorf("list = %+v", list.Notebooks)
	}

	w = ts.do(t, http.MethodDelete, "/api/notebooks/"+nb.ID+"/sources/"+src.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("remove source status = %d", w.Code)
	}
	w = ts.do(t, http.MethodDelete, "/api/notebooks/"+nb.ID+"/sources/"+src.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second remove status = %d, want 404", w.Code)
	}

	w = ts.do(t, http.MethodDelete, "/api/notebooks/"+nb.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("delete status = %d", w.Code)
	}
	w = ts.do(t, http.MethodGet, "/api/notebooks/"+nb.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", w.Code)
	}
}

const deck = `{"title":"Light","slides":[
{"title":"Intro","points":["Plants"],"narration":"Plants make sugar.","color":"green"},
{"title":"Outro","points":["Done"],"narration":"That is all.","color":"nope"}]}`

func TestPresentationLifecycle(t *testing.T) {
	ts := newTestServer(&fakeModel{reply: "```json\n" + deck + "\n```"})

	w := ts.do(t, http.MethodPost, "/api/presentations", model.PresentationRequest{Sources: []model.SourceDocument{doc}})
	if w.Code != http.StatusCreated {
		t.Fatalf("generate status = %d, body = %s", w.Code, w.Body)
	}
	var p model.Presentation
	decodeJSON(t, w, &p)
	if p.ID == "" || len(p.Slides) != 2 || !p.Slides[1].Color.Valid() {
		t.Fatalf("presentation = %+v", p)
	}

	w = ts.do(t, http.MethodGet, "/api/presentations/"+p.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get status = %d", w.Code)
	}
	w = ts.do(t, http.MethodGet, "/api/presentations/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get missing status = %d", w.Code)
	}
}

func TestPresentationErrors(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		body   model.PresentationRequest
		status int
	}{
		{"no sources", deck, model.PresentationRequest{}, http.StatusBadRequest},
		{"unusable output", "I cannot do that", model.PresentationRequest{Sources: []model.SourceDocument{doc}}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(&fakeModel{reply: tt.reply})
			w := ts.do(t, http.MethodPost, "/api/presentations", tt.body)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.status, w.Body)
			}
		})
	}
}

func TestPresentationLive(t *testing.T) {
	ts := newTestServer(&fakeModel{reply: deck})
	p, err := service.NewPresentationService(ts.model, ts.notebooks, ts.store, config.GenerationConfig{}).
		Generate(context.Background(), model.PresentationRequest{Sources: []model.SourceDocument{doc}})
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(ts.router)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	if _, resp, err := websocket.DefaultDialer.Dial(base+"/api/presentations/missing/live", nil); err == nil {
		t.Fatal("dial to missing presentation succeeded")
	} else if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing presentation response = %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(base+"/api/presentations/"+p.ID+"/live?muted=true", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg live.ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != live.MsgState || !msg.State.IsMuted || msg.State.SlideCount != 2 {
		t.Errorf("first message = %+v", msg)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if !check(req) {
		t.Error("request without Origin should pass")
	}
	req.Header.Set("Origin", "https://app.example")
	if !check(req) {
		t.Error("allowed origin rejected")
	}
	req.Header.Set("Origin", "https://evil.example")
	if check(req) {
		t.Error("foreign origin accepted")
	}
	if !originChecker(nil)(req) || !originChecker([]string{"*"})(req) {
		t.Error("wildcard should accept any origin")
	}
}
