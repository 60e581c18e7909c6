package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/shareactivities/internal/auth"
	"example.com/shareactivities/internal/chat"
	"example.com/shareactivities/internal/domain"
	"example.com/shareactivities/internal/notify"
	"example.com/shareactivities/internal/persistence/memory"
	"example.com/shareactivities/internal/push"
)

type nopTransport struct{}

func (nopTransport) Send(context.Context, string, string, string) (push.Receipt, error) {
	return push.Receipt{StatusCode: http.StatusOK}, nil
}

func newTestMux(t *testing.T) (*http.ServeMux, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.PutUser(domain.User{ID: "u1", Name: "Ana", Email: "ana@example.com"})
	store.PutFamily(domain.Family{ID: "fam-1", Name: "Casa"})
	store.PutActivity(domain.Activity{
		ID:        "act-1",
		Name:      "Lavar louça",
		Status:    domain.StatusPending,
		OwnerID:   "u1",
		FamilyID:  "fam-1",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	store.PutActivity(domain.Activity{
		ID:        "act-2",
		Name:      "Pagar conta de luz",
		Status:    domain.StatusPending,
		OwnerID:   "u1",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err := store.Chat().Save(context.Background(), domain.ChatMessage{
		ID: "m1", Content: "oi", SenderID: "u1", RoomID: "fam-1", CreatedAt: time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("seed chat: %v", err)
	}

	chatService := chat.NewService(chat.NewRegistry(), store.Chat(), store.Users(), store.Families(),
		notify.NewResolver(store.Families(), store.Users()), notify.NewSink(store.Users(), nopTransport{}))
	handler := NewHandler(domain.NewService(store.Activities()), chatService)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return mux, store
}

func withScopes(req *http.Request, scopes ...string) *http.Request {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	claims := &auth.Claims{Subject: "u1", Email: "ana@example.com", Scopes: set, ExpiresAt: time.Now().Add(time.Hour)}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func TestChangeStatus(t *testing.T) {
	mux, store := newTestMux(t)

	req := httptest.NewRequest(http.MethodPatch, "/v1/activities/act-1/status", strings.NewReader(`{"status":"done"}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, withScopes(req, auth.ScopeActivitiesWrite))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var view ActivityView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if view.Status != "done" {
		t.Fatalf("expected status done got %s", view.Status)
	}

	stored, err := store.Activities().FindByID(context.Background(), "act-1")
	if err != nil || stored.Status != domain.StatusDone {
		t.Fatalf("activity not updated: %+v %v", stored, err)
	}
}

func TestChangeStatusValidation(t *testing.T) {
	mux, _ := newTestMux(t)

	cases := []struct {
		name   string
		path   string
		body   string
		scopes []string
		want   int
	}{
		{"unknown status", "/v1/activities/act-1/status", `{"status":"archived"}`, []string{auth.ScopeActivitiesWrite}, http.StatusBadRequest},
		{"unknown activity", "/v1/activities/nope/status", `{"status":"done"}`, []string{auth.ScopeActivitiesWrite}, http.StatusNotFound},
		{"missing scope", "/v1/activities/act-1/status", `{"status":"done"}`, []string{auth.ScopeChatRead}, http.StatusForbidden},
		{"bad body", "/v1/activities/act-1/status", `{`, []string{auth.ScopeActivitiesWrite}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPatch, tc.path, strings.NewReader(tc.body))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, withScopes(req, tc.scopes...))
		if rr.Code != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.name, tc.want, rr.Code)
		}
	}
}

func TestGetActivity(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/activities/act-1", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, withScopes(req, auth.ScopeActivitiesRead))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/activities/act-1", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims got %d", rr.Code)
	}
}

func TestDeleteActivity(t *testing.T) {
	mux, store := newTestMux(t)

	req := httptest.NewRequest(http.MethodDelete, "/v1/activities/act-1", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, withScopes(req, auth.ScopeActivitiesRead))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with read scope got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/activities/act-1", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, withScopes(req, auth.ScopeActivitiesWrite))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d: %s", rr.Code, rr.Body.String())
	}
	if exists, _ := store.Activities().ExistsByID(context.Background(), "act-1"); exists {
		t.Fatalf("activity still stored after delete")
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/activities/act-1", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, withScopes(req, auth.ScopeActivitiesWrite))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete got %d", rr.Code)
	}
}

func TestActivityListings(t *testing.T) {
	mux, _ := newTestMux(t)

	cases := []struct {
		name string
		path string
		want string
	}{
		{"family", "/v1/families/fam-1/activities", "act-1"},
		{"personal", "/v1/me/activities", "act-2"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, withScopes(req, auth.ScopeActivitiesRead))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d: %s", tc.name, rr.Code, rr.Body.String())
		}
		var resp ActivitiesResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: failed to decode response: %v", tc.name, err)
		}
		if len(resp.Items) != 1 || resp.Items[0].ActivityID != tc.want {
			t.Fatalf("%s: unexpected listing %+v", tc.name, resp.Items)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/families/fam-1/members", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, withScopes(req, auth.ScopeActivitiesRead))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestRoomMessages(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/rooms/fam-1/messages", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, withScopes(req, auth.ScopeChatRead))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp MessagesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Content != "oi" {
		t.Fatalf("unexpected history %+v", resp.Items)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/rooms/fam-1/members", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, withScopes(req, auth.ScopeChatRead))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	mux, _ := newTestMux(t)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected healthz response %d %q", rr.Code, rr.Body.String())
	}
}
