package organize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/middleware"
	"github.com/ideaflow/server/internal/models"
	"github.com/ideaflow/server/internal/modules/content/conversation"
	"github.com/ideaflow/server/internal/modules/content/idea"
	"github.com/ideaflow/server/internal/modules/content/note"
	"github.com/ideaflow/server/internal/modules/processing/ai"
	"github.com/ideaflow/server/internal/modules/processing/completion"
	"github.com/ideaflow/server/internal/pkg/testdb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

const allComplete = `{"progress":{"dimensions":[
{"id":"concept-clarity","status":"complete"},
{"id":"motivation","status":"complete"},
{"id":"evidence","status":"complete"},
{"id":"application","status":"complete"},
{"id":"consistency","status":"complete"},
{"id":"logical-coherence","status":"complete"}]},
"question":"","target_dimension":"confirm-note","ready_for_note":false}`

const draft = "```json\n" + `{"title":"换职业","core_content":"现在的工作太累，想换一个职业","supporting_reasons":["工作太累"],"importance":"关系到长期状态","applications":"规划转行","source":"日常反思","tags":["职业"]}` + "\n```"

type queue struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (q *queue) Complete(context.Context, []completion.Message, completion.Options) (*completion.Completion, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if len(q.replies) == 0 {
		return nil, completion.ErrUpstreamUnavailable
	}
	reply := q.replies[0]
	q.replies = q.replies[1:]
	return &completion.Completion{Text: reply, TokensUsed: 10}, nil
}

// governor allows while allow is set and, when limit is positive, fewer
// than limit requests were recorded.
type governor struct {
	mu      sync.Mutex
	allow   bool
	limit   int
	records []int
}

func (g *governor) Allow(context.Context, string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.allow && (g.limit <= 0 || len(g.records) < g.limit)
}

func (g *governor) Record(_ context.Context, _ string, tokens int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = append(g.records, tokens)
}

type fixture struct {
	svc   *Service
	turns *conversation.Service
	ideas *idea.Service
	notes *note.Service
	llm   *queue
	gov   *governor
	idea  *models.IdeaModel
}

func newFixture(t *testing.T, replies ...string) *fixture {
	return newFixtureWith(t, ai.PhraseDetector{}, replies...)
}

func newFixtureWith(t *testing.T, intent ai.SaveIntentDetector, replies ...string) *fixture {
	db := testdb.Open(t)
	llm := &queue{replies: replies}
	gov := &governor{allow: true}

	ideas := idea.NewService(db, nil, nil, nil)
	turns := conversation.NewService(db, ideas, nil, nil)
	notes := note.NewService(db, ideas, nil, nil)
	aiSvc := ai.NewService(ai.Completers{Dialogue: llm, Synthesis: llm}, gov, intent, nil, nil)

	it, err := ideas.Create(context.Background(), "u1", "我想换一个职业，因为现在的工作太累")
	require.NoError(t, err)
	return &fixture{
		svc:   NewService(ideas, turns, notes, aiSvc, nil),
		turns: turns,
		ideas: ideas,
		notes: notes,
		llm:   llm,
		gov:   gov,
		idea:  it,
	}
}

func TestFullOrganizeFlow(t *testing.T) {
	f := newFixture(t, "你想换职业，是因为工作太累。", allComplete, draft)
	ctx := context.Background()

	session, err := f.svc.Start(ctx, "u1", f.idea.ID)
	require.NoError(t, err)
	assert.Equal(t, ai.StateClarifying, session.State)
	require.Len(t, session.Transcript, 1)
	assert.Equal(t, models.RoleAssistant, session.Transcript[0].Role)

	again, err := f.svc.Start(ctx, "u1", f.idea.ID)
	require.NoError(t, err)
	assert.Len(t, again.Transcript, 1)
	assert.Equal(t, 1, f.llm.calls, "reflection runs once")

	res, err := f.svc.Turn(ctx, "u1", f.idea.ID, "每天加班到很晚，我想做设计", models.TurnMetadata{})
	require.NoError(t, err)
	assert.Nil(t, res.Note)
	assert.Equal(t, ai.TargetConfirm, res.AssistantTurn.Metadata.Direction)
	assert.Equal(t, "complete", res.AssistantTurn.Metadata.DirectionStatus)
	assert.Contains(t, res.AssistantTurn.Content, "生成笔记")

	res, err = f.svc.Turn(ctx, "u1", f.idea.ID, "好的", models.TurnMetadata{})
	require.NoError(t, err)
	require.NotNil(t, res.Note)
	assert.Equal(t, "换职业", res.Note.Title)
	assert.Equal(t, ai.DirectionReady, res.AssistantTurn.Metadata.DirectionStatus)
	assert.Equal(t, 3, f.llm.calls, "save intent needs no clarify call")
	assert.Equal(t, []int{10, 10, 10}, f.gov.records)

	got, err := f.ideas.Get(ctx, "u1", f.idea.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IdeaStatusCompleted, got.Status)
	require.NotNil(t, res.Note.IdeaID)
	assert.Equal(t, f.idea.ID, *res.Note.IdeaID)

	_, err = f.svc.Turn(ctx, "u1", f.idea.ID, "再补充一点", models.TurnMetadata{})
	assert.ErrorIs(t, err, ErrCompleted)
}

func TestSaveRetriesFailedSynthesis(t *testing.T) {
	f := newFixture(t, "复述", allComplete, "这不是笔记", draft)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "u1", f.idea.ID)
	require.NoError(t, err)
	_, err = f.svc.Save(ctx, "u1", f.idea.ID)
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = f.svc.Turn(ctx, "u1", f.idea.ID, "因为太累", models.TurnMetadata{})
	require.NoError(t, err)
	res, err := f.svc.Turn(ctx, "u1", f.idea.ID, "生成吧", models.TurnMetadata{})
	assert.ErrorIs(t, err, ai.ErrSynthesisFailure)
	require.NotNil(t, res)
	assert.Nil(t, res.Note)

	got, err := f.ideas.Get(ctx, "u1", f.idea.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.IdeaStatusCompleted, got.Status)

	n, err := f.svc.Save(ctx, "u1", f.idea.ID)
	require.NoError(t, err)
	assert.Equal(t, "换职业", n.Title)
}

func TestTurnChecksQuotaBeforeWriting(t *testing.T) {
	f := newFixture(t)
	f.gov.allow = false

	_, err := f.svc.Turn(context.Background(), "u1", f.idea.ID, "你好", models.TurnMetadata{})
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)

	session, err := f.svc.Start(context.Background(), "u1", f.idea.ID)
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)
	assert.Nil(t, session)
	assert.Zero(t, f.llm.calls)
}

func TestTurnRequiresReflection(t *testing.T) {
	f := newFixture(t, allComplete)
	ctx := context.Background()

	_, err := f.svc.Turn(ctx, "u1", f.idea.ID, "因为太累", models.TurnMetadata{})
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.Zero(t, f.llm.calls)

	rows, err := f.turns.Transcript(ctx, f.idea.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSynthesisChecksQuotaAgain(t *testing.T) {
	ready := `{"question":"好的，马上生成。","ready_for_note":true}`
	f := newFixtureWith(t, ai.ModelJudged{}, "复述", allComplete, ready, draft)
	f.gov.limit = 3
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "u1", f.idea.ID)
	require.NoError(t, err)
	_, err = f.svc.Turn(ctx, "u1", f.idea.ID, "因为太累", models.TurnMetadata{})
	require.NoError(t, err)

	res, err := f.svc.Turn(ctx, "u1", f.idea.ID, "好的", models.TurnMetadata{})
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)
	require.NotNil(t, res)
	assert.Nil(t, res.Note)
	assert.Equal(t, ai.DirectionReady, res.AssistantTurn.Metadata.DirectionStatus)
	assert.Equal(t, 3, f.llm.calls, "synthesis was not attempted")

	got, err := f.ideas.Get(ctx, "u1", f.idea.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.IdeaStatusCompleted, got.Status)

	f.gov.limit = 0
	n, err := f.svc.Save(ctx, "u1", f.idea.ID)
	require.NoError(t, err)
	assert.Equal(t, "换职业", n.Title)
}

func TestOrganizeRoutesAllowRepeats(t *testing.T) {
	const question = `{"progress":{"dimensions":[{"id":"concept-clarity","status":"complete"}]},"question":"还有别的原因吗？"}`
	f := newFixture(t, "复述", question, question, question)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	NewHandler(f.svc).RegisterRoutes(r.Group("/api/v1"), func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, "u1")
	}, middleware.HeaderIdempotence(rdb))
	call := func(path, body, key string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/organize/"+f.idea.ID+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set("x-idempotence", key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("/start", "", ""))
	assert.Equal(t, http.StatusOK, call("/start", "", ""), "reopening reports the state")
	assert.Equal(t, http.StatusOK, call("/turns", `{"content":"是的"}`, ""))
	assert.Equal(t, http.StatusOK, call("/turns", `{"content":"是的"}`, ""), "same reply to the next question")
	assert.Equal(t, 3, f.llm.calls)

	assert.Equal(t, http.StatusOK, call("/turns", `{"content":"对"}`, "turn-3"))
	assert.Equal(t, http.StatusConflict, call("/turns", `{"content":"对"}`, "turn-3"), "client retry of the same turn")
	assert.Equal(t, 4, f.llm.calls)
}

func TestOrganizeEndpoints(t *testing.T) {
	f := newFixture(t, "复述", allComplete, draft)
	r := gin.New()
	NewHandler(f.svc).RegisterRoutes(r.Group("/api/v1"), func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, "u1")
	})
	call := func(path, body string) (int, map[string]any) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/organize/"+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var out map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &out)
		return w.Code, out
	}

	code, body := call(f.idea.ID+"/turns", `{"content":"因为太累"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, ErrNotStarted.Error(), body["message"])

	code, body = call(f.idea.ID+"/start", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "clarifying", body["state"])

	code, body = call(f.idea.ID+"/turns", `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "内容不能为空", body["message"])

	code, body = call(f.idea.ID+"/turns", `{"content":"因为太累"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "confirm-note", body["target_dimension"])
	assert.Len(t, body["progress"].(map[string]any)["dimensions"], 6)

	code, body = call(f.idea.ID+"/turns", `{"content":"好的"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["state"])
	assert.Equal(t, "换职业", body["note"].(map[string]any)["title"])

	code, body = call(f.idea.ID+"/turns", `{"content":"还有"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "该想法已整理完成", body["message"])

	code, _ = call("missing/start", "")
	assert.Equal(t, http.StatusNotFound, code)
}
