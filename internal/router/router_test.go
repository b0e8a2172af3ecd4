package router_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/monocle-dev/staffing/db"
	"github.com/monocle-dev/staffing/internal/assignments"
	"github.com/monocle-dev/staffing/internal/attrs"
	"github.com/monocle-dev/staffing/internal/auth"
	"github.com/monocle-dev/staffing/internal/config"
	"github.com/monocle-dev/staffing/internal/dbtest"
	"github.com/monocle-dev/staffing/internal/handlers"
	"github.com/monocle-dev/staffing/internal/models"
	"github.com/monocle-dev/staffing/internal/router"
	"github.com/monocle-dev/staffing/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type api struct {
	t      *testing.T
	engine *gin.Engine
	conn   *gorm.DB
	token  string
}

func newAPI(t *testing.T) *api {
	t.Helper()

	conn := dbtest.ConnectForTests(t)
	db.DB = conn

	sqlDB, err := conn.DB()
	require.NoError(t, err)

	cfg := &config.Config{}
	hub := handlers.NewHub(cfg.Origins())
	repo := assignments.New(conn,
		assignments.WithPivot(attrs.AssignedBy, attrs.AssignedAt, attrs.Role, attrs.DeletedAt),
		assignments.WithTimestamps(),
	)

	engine := router.NewRouter(router.Dependencies{
		Config:      cfg,
		Pinger:      sqlDB,
		Assignments: services.NewAssignmentService(conn, repo, hub),
		Hub:         hub,
	})

	require.NoError(t, auth.InitJWTSecret("router-secret"))
	token, err := auth.GenerateJWT("u-1", "Kohaku", time.Hour)
	require.NoError(t, err)

	return &api{t: t, engine: engine, conn: conn, token: token}
}

func (a *api) do(method, path string, body any, authed bool) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthCheck(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	engine := router.NewRouter(router.Dependencies{
		Config: &config.Config{},
		Pinger: sqlDB,
		Hub:    handlers.NewHub(nil),
	})

	mock.ExpectPing()
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, w)["status"])

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unavailable", decode[map[string]any](t, w)["status"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectsCRUD(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/api/projects", gin.H{"name": "Mercury"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(http.MethodPost, "/api/projects", gin.H{}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, name := range []string{"Mercury", "Venus", "Earth"} {
		w = a.do(http.MethodPost, "/api/projects", gin.H{"name": name}, true)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	page := decode[handlers.PageResponse[models.Project]](t, a.do(http.MethodGet, "/api/projects?page=2&page_size=2", nil, false))
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Earth", page.Items[0].Name)

	id := page.Items[0].ID
	path := fmt.Sprintf("/api/projects/%d", id)

	w = a.do(http.MethodPatch, path, gin.H{"name": "Terra"}, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Terra", decode[models.Project](t, w).Name)

	assert.Equal(t, "Terra", decode[models.Project](t, a.do(http.MethodGet, path, nil, false)).Name)

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, path, nil, true).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, path, nil, false).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/projects/abc", nil, false).Code)
}

func TestMembersCRUD(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/api/members", gin.H{"name": "Yuzu"}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	member := decode[models.Member](t, w)

	path := fmt.Sprintf("/api/members/%d", member.ID)

	w = a.do(http.MethodPatch, path, gin.H{"name": "Yuzuki"}, true)
	require.Equal(t, http.StatusOK, w.Code)

	page := decode[handlers.PageResponse[models.Member]](t, a.do(http.MethodGet, "/api/members", nil, false))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Yuzuki", page.Items[0].Name)

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, path, nil, true).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, path, nil, false).Code)
}

func TestAssignmentEndpoints(t *testing.T) {
	a := newAPI(t)

	project := dbtest.CreateProjects(t, a.conn, models.Project{Name: "Apollo"})[0]
	members := dbtest.CreateMembers(t, a.conn,
		models.Member{Name: "Alpha"},
		models.Member{Name: "Bravo"},
		models.Member{Name: "Charlie"},
	)
	alpha, bravo, charlie := members[0], members[1], members[2]

	base := fmt.Sprintf("/api/projects/%d/members", project.ID)
	pair := func(m models.Member) string { return fmt.Sprintf("%s/%d", base, m.ID) }

	t.Run("attach", func(t *testing.T) {
		w := a.do(http.MethodPost, base, gin.H{"member_id": alpha.ID, "role": "Engineer"}, true)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		pivot := decode[assignments.Pivot](t, w)
		assert.Equal(t, alpha.ID, pivot.MemberID)
		assert.Equal(t, "Engineer", *pivot.Role)
		assert.Equal(t, "Kohaku", *pivot.AssignedBy)
		assert.NotNil(t, pivot.AssignedAt)
		assert.Nil(t, pivot.DeletedAt)
	})

	t.Run("attach failures", func(t *testing.T) {
		for _, scenario := range []struct {
			Name   string
			Body   gin.H
			Status int
		}{
			{Name: "live duplicate", Body: gin.H{"member_id": alpha.ID}, Status: http.StatusConflict},
			{Name: "missing member id", Body: gin.H{"role": "Engineer"}, Status: http.StatusUnprocessableEntity},
			{Name: "member id as string", Body: gin.H{"member_id": "2"}, Status: http.StatusUnprocessableEntity},
			{Name: "role as number", Body: gin.H{"member_id": bravo.ID, "role": 3}, Status: http.StatusUnprocessableEntity},
			{Name: "tombstone on attach", Body: gin.H{"member_id": bravo.ID, "deleted_at": nil}, Status: http.StatusUnprocessableEntity},
			{Name: "unknown member", Body: gin.H{"member_id": 999}, Status: http.StatusNotFound},
		} {
			t.Run(scenario.Name, func(t *testing.T) {
				w := a.do(http.MethodPost, base, scenario.Body, true)
				assert.Equal(t, scenario.Status, w.Code, w.Body.String())
			})
		}

		w := a.do(http.MethodPost, "/api/projects/999/members", gin.H{"member_id": alpha.ID}, true)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("sync", func(t *testing.T) {
		w := a.do(http.MethodPut, base, gin.H{"members": gin.H{
			fmt.Sprint(bravo.ID):   gin.H{"role": "Manager"},
			fmt.Sprint(charlie.ID): gin.H{"role": "Lead"},
		}}, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		changes := decode[assignments.Changes](t, w)
		assert.Equal(t, []uint{bravo.ID, charlie.ID}, changes.Attached)
		assert.Equal(t, []uint{alpha.ID}, changes.Detached)
		assert.Empty(t, changes.Updated)

		w = a.do(http.MethodPut, base, gin.H{"detaching": false, "members": gin.H{
			fmt.Sprint(bravo.ID): gin.H{"role": nil},
		}}, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		changes = decode[assignments.Changes](t, w)
		assert.Equal(t, []uint{bravo.ID}, changes.Updated)
		assert.Empty(t, changes.Detached)

		w = a.do(http.MethodPut, base, gin.H{"members": gin.H{"abc": gin.H{}}}, true)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		live := decode[[]assignments.AssignedMember](t, a.do(http.MethodGet, base, nil, false))
		require.Len(t, live, 2)
		assert.Equal(t, "Bravo", live[0].Name)
		assert.Nil(t, live[0].Pivot.Role)
		assert.Equal(t, "Lead", *live[1].Pivot.Role)

		all := decode[[]assignments.AssignedMember](t, a.do(http.MethodGet, base+"?with_trashed=true", nil, false))
		require.Len(t, all, 3)
		assert.Equal(t, "Alpha", all[0].Name)
		assert.NotNil(t, all[0].Pivot.DeletedAt)
		assert.Equal(t, "Engineer", *all[0].Pivot.Role)

		assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, base+"?with_trashed=maybe", nil, false).Code)

		projects := decode[[]assignments.AssignedProject](t, a.do(http.MethodGet, fmt.Sprintf("/api/members/%d/projects", charlie.ID), nil, false))
		require.Len(t, projects, 1)
		assert.Equal(t, "Apollo", projects[0].Name)
	})

	t.Run("trashed pair stays readable and can be restored", func(t *testing.T) {
		w := a.do(http.MethodGet, pair(alpha), nil, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, decode[assignments.Pivot](t, w).IsLive())

		w = a.do(http.MethodPost, pair(alpha)+"/restore", nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		restored := decode[assignments.Pivot](t, w)
		assert.True(t, restored.IsLive())
		assert.Equal(t, "Engineer", *restored.Role)
	})

	t.Run("update pivot", func(t *testing.T) {
		w := a.do(http.MethodPatch, pair(charlie), gin.H{"role": "Director"}, true)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Director", *decode[assignments.Pivot](t, w).Role)

		w = a.do(http.MethodPatch, pair(charlie), gin.H{"deleted_at": "2025-05-15T08:43:08Z"}, true)
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, decode[assignments.Pivot](t, w).IsLive())

		w = a.do(http.MethodPatch, pair(charlie), gin.H{"deleted_at": "soon"}, true)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("detach", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, pair(bravo), nil, true).Code)
		assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, pair(bravo), nil, true).Code, "already trashed")

		other := dbtest.CreateMembers(t, a.conn, models.Member{})[0]
		assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, pair(other), nil, true).Code)
		assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, pair(other), nil, false).Code)

		var count int64
		require.NoError(t, a.conn.Unscoped().Model(&models.MemberProject{}).Count(&count).Error)
		assert.EqualValues(t, 3, count)
	})

	t.Run("mutations require a token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPut, base, gin.H{"members": gin.H{}}, false).Code)
		assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodDelete, pair(alpha), nil, false).Code)
	})
}

func TestWebSocketFeed(t *testing.T) {
	a := newAPI(t)

	project := dbtest.CreateProjects(t, a.conn, models.Project{Name: "Apollo"})[0]
	member := dbtest.CreateMembers(t, a.conn, models.Member{})[0]

	server := httptest.NewServer(a.engine)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + fmt.Sprintf("/api/ws/%d", project.ID)

	t.Run("rejects unknown origins", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://evil.example"}})
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://localhost:3000"}})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var welcome map[string]any
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "connected", welcome["type"])

	body, err := json.Marshal(gin.H{"member_id": member.ID})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/api/projects/%d/members", server.URL, project.ID), bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var message struct {
		Type   string `json:"type"`
		Change struct {
			Kind        string `json:"kind"`
			ProjectName string `json:"project_name"`
			Attached    []uint `json:"attached"`
			Actor       string `json:"actor"`
		} `json:"change"`
	}
	require.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, "assignments", message.Type)
	assert.Equal(t, "attached", message.Change.Kind)
	assert.Equal(t, "Apollo", message.Change.ProjectName)
	assert.Equal(t, []uint{member.ID}, message.Change.Attached)
	assert.Equal(t, "Kohaku", message.Change.Actor)
}
