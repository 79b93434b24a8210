package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"

	"github.com/mattjoyce/convrelay/internal/events"
	"github.com/mattjoyce/convrelay/internal/store"
	"github.com/mattjoyce/convrelay/internal/store/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(st store.Store) *Server {
	return New(Config{Listen: "127.0.0.1:0"}, st, nil, nil, testLogger())
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(store.NewMemStore())

	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.OK {
		t.Error("ok = false, want true")
	}
}

func TestHandleListConversations(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := mocks.NewMockStore(ctrl)
	mockStore.EXPECT().ListLatest(gomock.Any(), ListPageSize).Return([]json.RawMessage{
		json.RawMessage(`{"event_timestamp":300}`),
		json.RawMessage(`{"event_timestamp":200}`),
	}, nil)

	s := newTestServer(mockStore)
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, httptest.NewRequest("GET", "/conversations", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp ListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(resp.Items))
	}
	if string(resp.Items[0]) != `{"event_timestamp":300}` {
		t.Errorf("items[0] = %s, want newest first", resp.Items[0])
	}
}

func TestHandleListConversations_Empty(t *testing.T) {
	s := newTestServer(store.NewMemStore())

	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, httptest.NewRequest("GET", "/conversations", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	// Empty listing must serialize as [], not null.
	if body := rec.Body.String(); body != "{\"items\":[]}\n" {
		t.Errorf("body = %q", body)
	}
}

func TestHandleListConversations_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := mocks.NewMockStore(ctrl)
	mockStore.EXPECT().ListLatest(gomock.Any(), ListPageSize).Return(nil, errors.New("disk on fire"))

	s := newTestServer(mockStore)
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, httptest.NewRequest("GET", "/conversations", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHandleGetConversation(t *testing.T) {
	payload := json.RawMessage(`{"type":"post_call_transcription","data":{"conversation_id":"abc123"}}`)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := mocks.NewMockStore(ctrl)
	mockStore.EXPECT().GetByID(gomock.Any(), "abc123").Return(payload, nil)

	s := newTestServer(mockStore)
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, httptest.NewRequest("GET", "/conversations/abc123", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != string(payload) {
		t.Errorf("body = %s, want verbatim payload", rec.Body)
	}
}

func TestHandleGetConversation_NotFound(t *testing.T) {
	s := newTestServer(store.NewMemStore())

	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, httptest.NewRequest("GET", "/conversations/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "Not found" {
		t.Errorf("error = %q, want 'Not found'", resp.Error)
	}
}

func TestHandleGetConversation_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := mocks.NewMockStore(ctrl)
	mockStore.EXPECT().GetByID(gomock.Any(), "abc123").Return(nil, errors.New("disk on fire"))

	s := newTestServer(mockStore)
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, httptest.NewRequest("GET", "/conversations/abc123", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	s := New(Config{
		Listen:         "127.0.0.1:0",
		AllowedOrigins: []string{"http://localhost:3000"},
	}, store.NewMemStore(), nil, nil, testLogger())

	req := httptest.NewRequest("GET", "/conversations", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestHandleEvents_ReplaysSnapshot(t *testing.T) {
	hub := events.NewHub(8)
	hub.Publish("payload.stored", map[string]string{"conversation_id": "abc"})

	s := New(Config{Listen: "127.0.0.1:0"}, store.NewMemStore(), nil, hub, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // return right after the snapshot is written

	req := httptest.NewRequest("GET", "/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, req)

	body := rec.Body.String()
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("content-type = %q", rec.Header().Get("Content-Type"))
	}
	if want := "event: payload.stored"; !strings.Contains(body, want) {
		t.Errorf("body %q missing %q", body, want)
	}
	if want := `"conversation_id":"abc"`; !strings.Contains(body, want) {
		t.Errorf("body %q missing %q", body, want)
	}
}
