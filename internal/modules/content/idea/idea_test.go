package idea

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/middleware"
	"github.com/ideaflow/server/internal/models"
	"github.com/ideaflow/server/internal/modules/gateway/events"
	"github.com/ideaflow/server/internal/modules/processing/ai"
	"github.com/ideaflow/server/internal/pkg/pagination"
	"github.com/ideaflow/server/internal/pkg/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

type fixedTitler string

func (f fixedTitler) Title(context.Context, string) string { return string(f) }

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func newService(t *testing.T) (*Service, *gorm.DB, *recorder) {
	db := testdb.Open(t)
	rec := &recorder{}
	svc := NewService(db, fixedTitler("早起的好处"), rec, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return svc, db, rec
}

func TestCreateStampsTitle(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()

	idea, err := svc.Create(ctx, "u1", "  早起让我更专注，也更有时间思考  ")
	require.NoError(t, err)
	assert.Equal(t, "20240501-0930-早起的好处", idea.Title)
	assert.Equal(t, "早起让我更专注，也更有时间思考", idea.Content)
	assert.Equal(t, models.IdeaStatusInbox, idea.Status)
	assert.NotEmpty(t, idea.ID)
	assert.Equal(t, []string{events.TypeIdeaCreated}, rec.types())

	_, err = svc.Create(ctx, "u1", "   ")
	assert.ErrorIs(t, err, ai.ErrInvalidInput)
	_, err = svc.Create(ctx, "u1", strings.Repeat("想", 5001))
	assert.ErrorIs(t, err, ai.ErrInvalidInput)
}

func TestCreateFallsBackWithoutCompleter(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db, nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }

	idea, err := svc.Create(context.Background(), "u1", "Read more, sleep more")
	require.NoError(t, err)
	assert.Equal(t, "20240501-0930-Readmoresleepmore", idea.Title)
}

func TestOwnershipIsolation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	idea, err := svc.Create(ctx, "u1", "只属于我的想法")
	require.NoError(t, err)

	_, err = svc.Get(ctx, "u2", idea.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "u2", idea.ID), ErrNotFound)
	assert.ErrorIs(t, svc.SetStatus(ctx, "u2", idea.ID, models.IdeaStatusArchived), ErrNotFound)

	items, _, err := svc.List(ctx, "u2", "", pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListFiltersByStatus(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "u1", "第一个")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u1", "第二个")
	require.NoError(t, err)
	require.NoError(t, svc.SetStatus(ctx, "u1", a.ID, models.IdeaStatusArchived))

	items, pag, err := svc.List(ctx, "u1", "inbox", pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "第二个", items[0].Content)
	assert.EqualValues(t, 1, pag.Total)

	items, _, err = svc.List(ctx, "u1", "", pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, _, err = svc.List(ctx, "u1", "bogus", pagination.Query{Page: 1, Size: 10})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateValidatesPatch(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	idea, err := svc.Create(ctx, "u1", "原始内容")
	require.NoError(t, err)

	_, err = svc.Update(ctx, "u1", idea.ID, UpdateIdeaDTO{})
	assert.ErrorIs(t, err, ErrEmptyPatch)

	blank := "  "
	_, err = svc.Update(ctx, "u1", idea.ID, UpdateIdeaDTO{Title: &blank})
	assert.ErrorIs(t, err, ErrEmptyTitle)

	bad := models.IdeaStatus("done")
	_, err = svc.Update(ctx, "u1", idea.ID, UpdateIdeaDTO{Status: &bad})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	title, status := "新标题", models.IdeaStatusNotebook
	updated, err := svc.Update(ctx, "u1", idea.ID, UpdateIdeaDTO{Title: &title, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "新标题", updated.Title)
	assert.Equal(t, models.IdeaStatusNotebook, updated.Status)
	assert.Equal(t, "原始内容", updated.Content)
}

func TestDeleteCascadesTranscriptAndDetachesNotes(t *testing.T) {
	svc, db, rec := newService(t)
	ctx := context.Background()
	idea, err := svc.Create(ctx, "u1", "要删除的想法")
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.ConversationTurn{
		IdeaID: idea.ID, Role: models.RoleUser, Content: "hi", Timestamp: time.Now(),
	}).Error)
	note := models.NoteModel{OwnedBase: models.OwnedBase{UserID: "u1"}, IdeaID: &idea.ID, Title: "笔记"}
	require.NoError(t, db.Create(&note).Error)

	require.NoError(t, svc.Delete(ctx, "u1", idea.ID))

	var turns int64
	require.NoError(t, db.Model(&models.ConversationTurn{}).Where("idea_id = ?", idea.ID).Count(&turns).Error)
	assert.Zero(t, turns)

	var kept models.NoteModel
	require.NoError(t, db.First(&kept, "id = ?", note.ID).Error)
	assert.Nil(t, kept.IdeaID)

	_, err = svc.Get(ctx, "u1", idea.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, rec.types(), events.TypeIdeaDeleted)
}

func newRouter(svc *Service) *gin.Engine {
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"), func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, "u1")
	})
	return r
}

func do(r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/api/v1"+path, nil)
	} else {
		req = httptest.NewRequest(method, "/api/v1"+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestIdeaEndpoints(t *testing.T) {
	svc, _, _ := newService(t)
	r := newRouter(svc)

	w, body := do(r, http.MethodPost, "/ideas", `{"content":"早起让我更专注"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := body["id"].(string)
	assert.Equal(t, "inbox", body["status"])

	w, body = do(r, http.MethodPost, "/ideas", `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "内容不能为空", body["message"])

	w, body = do(r, http.MethodGet, "/ideas?page=1&size=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["ideas"], 1)
	assert.EqualValues(t, 1, body["pagination"].(map[string]any)["total"])

	w, body = do(r, http.MethodPatch, "/ideas/"+id, `{"status":"archived"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "archived", body["status"])

	w, _ = do(r, http.MethodPatch, "/ideas/"+id, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = do(r, http.MethodDelete, "/ideas/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])

	w, body = do(r, http.MethodGet, "/ideas/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "想法不存在", body["message"])
}
