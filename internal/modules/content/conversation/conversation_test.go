package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/middleware"
	"github.com/ideaflow/server/internal/models"
	"github.com/ideaflow/server/internal/modules/content/idea"
	"github.com/ideaflow/server/internal/pkg/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type namer struct{}

func (namer) Title(context.Context, string) string { return "标题" }

func setup(t *testing.T) (*Service, *models.IdeaModel) {
	db := testdb.Open(t)
	ideas := idea.NewService(db, namer{}, nil, nil)
	it, err := ideas.Create(context.Background(), "u1", "我想换职业")
	require.NoError(t, err)
	return NewService(db, ideas, nil, nil), it
}

func TestAppendKeepsOrderWithinSameInstant(t *testing.T) {
	svc, it := setup(t)
	ctx := context.Background()
	frozen := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return frozen }

	for _, c := range []string{"一", "二", "三"} {
		_, err := svc.Append(ctx, "u1", it.ID, models.RoleUser, c, models.TurnMetadata{})
		require.NoError(t, err)
	}
	turns, err := svc.List(ctx, "u1", it.ID)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "一", turns[0].Content)
	assert.Equal(t, "三", turns[2].Content)
	assert.True(t, turns[2].Timestamp.After(turns[1].Timestamp))
}

func TestAppendValidates(t *testing.T) {
	svc, it := setup(t)
	ctx := context.Background()

	_, err := svc.Append(ctx, "u1", it.ID, models.TurnRole("bot"), "hi", models.TurnMetadata{})
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = svc.Append(ctx, "u1", "", models.RoleUser, "hi", models.TurnMetadata{})
	assert.ErrorIs(t, err, ErrMissingFields)
	_, err = svc.Append(ctx, "u2", it.ID, models.RoleUser, "hi", models.TurnMetadata{})
	assert.ErrorIs(t, err, idea.ErrNotFound)
}

func TestMetadataRoundTrip(t *testing.T) {
	svc, it := setup(t)
	ctx := context.Background()
	meta := models.TurnMetadata{Direction: "motivation", DirectionStatus: "incomplete", QuotedText: "换职业"}

	_, err := svc.Append(ctx, "u1", it.ID, models.RoleAssistant, "为什么？", meta)
	require.NoError(t, err)
	turns, err := svc.Transcript(ctx, it.ID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, meta, turns[0].Metadata)
}

func TestConversationEndpoints(t *testing.T) {
	svc, it := setup(t)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"), func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, "u1")
	})

	call := func(method, path, body string) (int, map[string]any) {
		req := httptest.NewRequest(method, "/api/v1"+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var out map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &out)
		return w.Code, out
	}

	code, body := call(http.MethodGet, "/conversations", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "缺少 idea_id 参数", body["message"])

	code, _ = call(http.MethodPost, "/conversations",
		`{"idea_id":"`+it.ID+`","role":"user","content":"因为太累","metadata":{"quotedText":"换职业"}}`)
	require.Equal(t, http.StatusCreated, code)

	code, body = call(http.MethodPost, "/conversations", `{"idea_id":"`+it.ID+`","role":"user"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "缺少必要参数", body["message"])

	code, body = call(http.MethodGet, "/conversations?idea_id="+it.ID, "")
	require.Equal(t, http.StatusOK, code)
	turns := body["conversations"].([]any)
	require.Len(t, turns, 1)
	assert.Equal(t, "换职业", turns[0].(map[string]any)["metadata"].(map[string]any)["quotedText"])

	code, _ = call(http.MethodGet, "/conversations?idea_id=missing", "")
	assert.Equal(t, http.StatusNotFound, code)
}
