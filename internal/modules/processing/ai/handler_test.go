package ai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/middleware"
	"github.com/ideaflow/server/internal/modules/processing/completion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func newTestRouter(stub completion.Completer, gov *stubGovernor) *gin.Engine {
	svc := NewService(Completers{Title: stub, Dialogue: stub, Synthesis: stub}, gov, PhraseDetector{}, nil, nil)
	r := gin.New()
	fakeAuth := func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": 0, "code": 401, "message": "未授权"})
			return
		}
		c.Set(middleware.ContextKeyUserID, "user-1")
		c.Next()
	}
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"), fakeAuth)
	return r
}

func post(r *gin.Engine, path, body string, authed bool) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1"+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer t")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestReflectEndpoint(t *testing.T) {
	gov := &stubGovernor{allow: true}
	r := newTestRouter(&scripted{replies: []string{"让我复述一下"}}, gov)

	w, body := post(r, "/ai/reflect", `{"content":"我想换职业"}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "让我复述一下", body["reflection"])
	assert.EqualValues(t, 42, body["tokensUsed"])
	assert.Equal(t, []int{42}, gov.records)

	w, body = post(r, "/ai/reflect", `{"content":"   "}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgEmptyContent, body["message"])

	w, body = post(r, "/ai/reflect", `{"content":"`+strings.Repeat("想", 5001)+`"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgContentTooLong, body["message"])

	w, _ = post(r, "/ai/reflect", `{"content":"x"}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestQuotaIsCheckedBeforeValidation(t *testing.T) {
	gov := &stubGovernor{allow: false}
	stub := &scripted{replies: []string{"x"}}
	r := newTestRouter(stub, gov)

	for _, path := range []string{"/ai/reflect", "/ai/clarify", "/ai/synthesize"} {
		w, body := post(r, path, `{}`, true)
		assert.Equal(t, http.StatusTooManyRequests, w.Code, path)
		assert.Equal(t, "今日额度已用完，请明天再试", body["message"])
	}
	assert.Zero(t, stub.callCount())
	assert.Empty(t, gov.records)
}

func TestClarifyEndpoint(t *testing.T) {
	gov := &stubGovernor{allow: true}
	stub := &scripted{replies: []string{
		envelope(t, "这个想法对你意味着什么？", "动机明确", false, DimConceptClarity),
		"我没能理解，可以再说说吗？",
	}}
	r := newTestRouter(stub, gov)

	convs := `[{"role":"assistant","content":"让我复述一下"},{"role":"user","content":"对"}]`
	w, body := post(r, "/ai/clarify", `{"ideaContent":"我想换职业","conversations":`+convs+`}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "这个想法对你意味着什么？", body["question"])
	assert.Equal(t, "motivation", body["target_dimension"])
	progress := body["progress"].(map[string]any)
	dims := progress["dimensions"].([]any)
	require.Len(t, dims, 6)
	first := dims[0].(map[string]any)
	assert.Equal(t, "概念清晰", first["name"])
	assert.Equal(t, "complete", first["status"])
	assert.Equal(t, IconComplete, first["icon"])
	readiness := body["readiness"].(map[string]any)
	assert.Equal(t, false, readiness["ready"])

	w, body = post(r, "/ai/clarify", `{"ideaContent":"我想换职业","conversations":`+convs+`}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["progress"])
	assert.Equal(t, "我没能理解，可以再说说吗？", body["question"])
	assert.Len(t, gov.records, 2)

	w, body = post(r, "/ai/clarify", `{"ideaContent":"我想换职业","conversations":"nope"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgBadTranscript, body["message"])

	w, body = post(r, "/ai/clarify", `{"conversations":[]}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgMissingIdeaSource, body["message"])

	w, _ = post(r, "/ai/clarify", `{"ideaContent":"x","conversations":[{"role":"robot","content":"hi"}]}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClarifySaveIntentDoesNotRecordUsage(t *testing.T) {
	gov := &stubGovernor{allow: true}
	stub := &scripted{}
	r := newTestRouter(stub, gov)

	convs := `[{"role":"assistant","content":"` + offerQuestion + `"},{"role":"user","content":"好"}]`
	w, body := post(r, "/ai/clarify", `{"ideaContent":"我想换职业","conversations":`+convs+`}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	readiness := body["readiness"].(map[string]any)
	assert.Equal(t, true, readiness["ready"])
	assert.Equal(t, TargetGenerate, readiness["reason"])
	assert.Zero(t, stub.callCount())
	assert.Empty(t, gov.records)
}

func TestSynthesizeEndpoint(t *testing.T) {
	gov := &stubGovernor{allow: true}
	stub := &scripted{replies: []string{
		`{"title":"换职业","core_content":"想换职业","supporting_reasons":["没有成长"],"tags":["职业"]}`,
		"not json",
	}}
	r := newTestRouter(stub, gov)

	convs := `[{"role":"user","content":"想换职业，没有成长"}]`
	w, body := post(r, "/ai/synthesize", `{"conversations":`+convs+`}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	note := body["note"].(map[string]any)
	assert.Equal(t, "换职业", note["title"])
	assert.Equal(t, []int{42}, gov.records)

	w, body = post(r, "/ai/synthesize", `{"conversations":`+convs+`}`, true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "笔记生成失败，请重试", body["message"])
	assert.Len(t, gov.records, 1)
}

func TestUpstreamFailureMessage(t *testing.T) {
	gov := &stubGovernor{allow: true}
	r := newTestRouter(&scripted{err: completion.ErrUpstreamUnavailable}, gov)

	w, body := post(r, "/ai/reflect", `{"content":"想法"}`, true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "AI 服务暂时不可用，请稍后再试", body["message"])
	assert.Empty(t, gov.records)
}
