package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/api/internal/export"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

func newTestHTTP(t *testing.T) (http.Handler, *Service, *memStore) {
	t.Helper()
	svc, ms := newTestService(t)
	logger, _ := test.NewNullLogger()
	return NewHTTPServer(svc, "*", "/metrics", logger).Handler(), svc, ms
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func loginAs(t *testing.T, svc *Service, name, email string) Session {
	t.Helper()
	session, err := svc.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: "secret-pass"})
	require.NoError(t, err)
	return session
}

func TestHealthAndPreflight(t *testing.T) {
	h, _, ms := newTestHTTP(t)

	rec, _ := doJSON(t, h, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, _ = doJSON(t, h, http.MethodOptions, "/api/cards/anything/move", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	ms.pingErr = errors.New("connection refused")
	rec, _ = doJSON(t, h, http.MethodGet, "/api/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnknownRouteAndMissingToken(t *testing.T) {
	h, _, _ := newTestHTTP(t)

	rec, env := doJSON(t, h, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)

	rec, env = doJSON(t, h, http.MethodGet, "/api/boards", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Code)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/boards", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthEndpoints(t *testing.T) {
	h, _, _ := newTestHTTP(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "A", "email": "not-an-email", "password": "123",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)
	var details []fieldError
	require.NoError(t, json.Unmarshal(env.Errors, &details))
	assert.Len(t, details, 3)

	rec, env = doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Avery", "email": "avery@example.com", "password": "secret-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tokens))

	rec, env = doJSON(t, h, http.MethodGet, "/api/auth/me", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "avery@example.com", me["email"])

	rec, _ = doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "avery@example.com", "password": "nope-nope",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, h, http.MethodPost, "/api/auth/refresh", "", map[string]any{"refreshToken": tokens.RefreshToken})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, h, http.MethodPost, "/api/auth/logout", tokens.AccessToken, map[string]any{})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/auth/me", tokens.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBoardListCardFlow(t *testing.T) {
	h, svc, ms := newTestHTTP(t)
	owner := loginAs(t, svc, "Avery", "avery@example.com")

	rec, env := doJSON(t, h, http.MethodPost, "/api/boards", owner.Token, map[string]any{"title": "Launch"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var board struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &board))

	listIDs := []string{}
	for _, title := range []string{"Todo", "Doing"} {
		rec, env = doJSON(t, h, http.MethodPost, "/api/lists", owner.Token, map[string]any{"boardId": board.ID, "title": title})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var list struct {
			ID       string `json:"id"`
			Position int    `json:"position"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &list))
		assert.Equal(t, len(listIDs)+1, list.Position)
		listIDs = append(listIDs, list.ID)
	}

	cardIDs := []string{}
	for _, title := range []string{"one", "two", "three"} {
		rec, env = doJSON(t, h, http.MethodPost, "/api/cards", owner.Token, map[string]any{"listId": listIDs[0], "title": title})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var card struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &card))
		cardIDs = append(cardIDs, card.ID)
	}

	rec, env = doJSON(t, h, http.MethodPut, "/api/cards/"+cardIDs[2]+"/move", owner.Token, map[string]any{"listId": listIDs[1], "position": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var moved struct {
		ListID   string `json:"listId"`
		Position int    `json:"position"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &moved))
	assert.Equal(t, listIDs[1], moved.ListID)
	assert.Equal(t, 1, moved.Position)

	rec, env = doJSON(t, h, http.MethodPut, "/api/lists/"+listIDs[1]+"/move", owner.Token, map[string]any{"position": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var lists []struct {
		ID        string `json:"id"`
		Position  int    `json:"position"`
		CardCount int    `json:"cardCount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &lists))
	require.Len(t, lists, 2)
	assert.Equal(t, listIDs[1], lists[0].ID)
	assert.Equal(t, 1, lists[0].CardCount)
	assert.Equal(t, 2, lists[1].CardCount)

	rec, env = doJSON(t, h, http.MethodGet, "/api/boards/"+board.ID, owner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Lists []struct {
			ID    string `json:"id"`
			Cards []struct {
				ID string `json:"id"`
			} `json:"cards"`
		} `json:"lists"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	require.Len(t, detail.Lists, 2)
	assert.Equal(t, cardIDs[2], detail.Lists[0].Cards[0].ID)
	assert.Len(t, detail.Lists[1].Cards, 2)

	rec, _ = doJSON(t, h, http.MethodPut, "/api/cards/"+cardIDs[0]+"/complete", owner.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ms.cards[cardIDs[0]].IsCompleted)

	rec, _ = doJSON(t, h, http.MethodDelete, "/api/cards/"+cardIDs[0], owner.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	requireConsistent(t, ms)
}

func TestErrorStatusMapping(t *testing.T) {
	h, svc, ms := newTestHTTP(t)
	owner := loginAs(t, svc, "Avery", "avery@example.com")
	other := loginAs(t, svc, "Blake", "blake@example.com")
	seedBoard(ms, "brd_a", owner.UserID, listSeed{"lst_a", []string{"c1", "c2"}})
	seedBoard(ms, "brd_b", owner.UserID, listSeed{"lst_b", nil})

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"forbidden card", http.MethodGet, "/api/cards/c1", other.Token, nil, http.StatusForbidden, "FORBIDDEN"},
		{"missing card", http.MethodGet, "/api/cards/nope", owner.Token, nil, http.StatusNotFound, "NOT_FOUND"},
		{"foreign board hidden", http.MethodGet, "/api/boards/brd_a", other.Token, nil, http.StatusNotFound, "NOT_FOUND"},
		{"cross board move", http.MethodPut, "/api/cards/c1/move", owner.Token, map[string]any{"listId": "lst_b", "position": 1}, http.StatusBadRequest, "INVALID_OPERATION"},
		{"zero position", http.MethodPut, "/api/cards/c1/move", owner.Token, map[string]any{"listId": "lst_a", "position": 0}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad color", http.MethodPut, "/api/boards/brd_a", owner.Token, map[string]any{"backgroundColor": "#12345"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"lists need board", http.MethodGet, "/api/lists", owner.Token, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad export format", http.MethodPost, "/api/boards/brd_a/export?format=pdf", owner.Token, nil, http.StatusBadRequest, "UNSUPPORTED_FORMAT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := doJSON(t, h, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, env.Code)
			assert.False(t, env.Success)
		})
	}
	assert.Equal(t, []string{"c1", "c2"}, cardOrder(ms, "lst_a"))
}

func TestConflictMapsTo409(t *testing.T) {
	h, svc, ms := newTestHTTP(t)
	owner := loginAs(t, svc, "Avery", "avery@example.com")
	seedBoard(ms, "brd_a", owner.UserID, listSeed{"l1", []string{"c1", "c2"}}, listSeed{"l2", nil})
	ms.beforeMove = func(m *memStore) {
		c := m.cards["c1"]
		c.ListID = "l2"
		m.cards["c1"] = c
	}

	rec, env := doJSON(t, h, http.MethodPut, "/api/cards/c1/move", owner.Token, map[string]any{"listId": "l1", "position": 2})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", env.Code)
}

type inlineExporter struct{}

func (inlineExporter) Export(context.Context, export.Request) (*export.Result, error) {
	return &export.Result{Data: []byte("# Board\n"), Filename: "board.md", MimeType: "text/markdown; charset=utf-8"}, nil
}

type failingExporter struct{}

func (failingExporter) Export(context.Context, export.Request) (*export.Result, error) {
	return nil, errors.New("get board detail: connection reset by peer")
}

func TestExportEndpoint(t *testing.T) {
	h, svc, ms := newTestHTTP(t)
	owner := loginAs(t, svc, "Avery", "avery@example.com")
	seedBoard(ms, "brd_a", owner.UserID)

	svc.exporter = inlineExporter{}
	rec, _ := doJSON(t, h, http.MethodPost, "/api/boards/brd_a/export?format=markdown", owner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# Board\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "board.md")

	svc.exporter = failingExporter{}
	rec, env := doJSON(t, h, http.MethodPost, "/api/boards/brd_a/export", owner.Token, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "STORE_FAILURE", env.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _, _ := newTestHTTP(t)
	doJSON(t, h, http.MethodGet, "/api/health", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `taskboard_http_requests_total{method="GET",route="/api/health",status="200"}`)
}
