package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	appcfg "github.com/ideaflow/server/internal/config"
	"github.com/ideaflow/server/internal/pkg/tokenizer"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	"google.golang.org/genai"
)

const (
	typeDeepSeek         = "deepseek"
	typeOpenAI           = "openai"
	typeOpenAICompatible = "openai-compatible"
	typeQwen             = "qwen"
	typeAnthropic        = "anthropic"
	typeGemini           = "gemini"

	defaultDeepSeekEndpoint = "https://api.deepseek.com"
	defaultQwenEndpoint     = "https://dashscope.aliyuncs.com"
	qwenGenerationPath      = "/api/v1/services/aigc/text-generation/generation"
)

var defaultModels = map[string]string{
	typeDeepSeek:         "deepseek-chat",
	typeOpenAI:           "gpt-4o-mini",
	typeOpenAICompatible: "gpt-4o-mini",
	typeQwen:             "qwen-plus",
	typeAnthropic:        "claude-haiku-4-5-20251001",
	typeGemini:           "gemini-2.0-flash",
}

var errEmptyResponse = errors.New("empty response from AI")

func normalizeProviderType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "")
	switch t {
	case "openaicompatible":
		return typeOpenAICompatible
	case "dashscope", "tongyi":
		return typeQwen
	case "google":
		return typeGemini
	}
	return t
}

func defaultModelFor(providerType string) string {
	return defaultModels[normalizeProviderType(providerType)]
}

func newBackend(provider appcfg.AIProvider, timeout time.Duration) (backend, error) {
	apiKey := strings.TrimSpace(provider.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("AI provider %q api key is empty", provider.ID)
	}
	endpoint := strings.TrimSpace(provider.Endpoint)
	httpClient := &http.Client{Timeout: timeout}

	switch normalizeProviderType(provider.Type) {
	case typeDeepSeek:
		if endpoint == "" {
			endpoint = defaultDeepSeekEndpoint
		}
		return newOpenAIBackend(apiKey, endpoint, httpClient), nil
	case typeOpenAI:
		return newOpenAIBackend(apiKey, endpoint, httpClient), nil
	case typeOpenAICompatible:
		return &compatibleBackend{apiKey: apiKey, endpoint: normalizeOpenAICompatibleEndpoint(endpoint), client: httpClient}, nil
	case typeQwen:
		if endpoint == "" {
			endpoint = defaultQwenEndpoint
		}
		return &qwenBackend{apiKey: apiKey, endpoint: strings.TrimRight(endpoint, "/"), client: httpClient}, nil
	case typeAnthropic:
		return newAnthropicBackend(apiKey, endpoint), nil
	case typeGemini:
		return newGeminiBackend(apiKey, endpoint, httpClient)
	default:
		return nil, fmt.Errorf("unsupported AI provider type %q", provider.Type)
	}
}

// openAIBackend serves OpenAI and DeepSeek through the official SDK.
type openAIBackend struct {
	client openaiclient.Client
}

func newOpenAIBackend(apiKey, endpoint string, httpClient *http.Client) *openAIBackend {
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
		openaioption.WithHTTPClient(httpClient),
	}
	if normalized := normalizeOpenAIBaseURL(endpoint); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized+"/"))
	}
	return &openAIBackend{client: openaiclient.NewClient(opts...)}
}

func (b *openAIBackend) complete(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int) (string, int, error) {
	params := openaiclient.ChatCompletionNewParams{
		Model:       openaiclient.ChatModel(model),
		Messages:    make([]openaiclient.ChatCompletionMessageParamUnion, 0, len(messages)),
		Temperature: openaiclient.Float(temperature),
		MaxTokens:   openaiclient.Int(int64(maxTokens)),
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openaiclient.SystemMessage(m.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openaiclient.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openaiclient.UserMessage(m.Content))
		}
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", 0, err
	}
	if len(resp.Choices) == 0 {
		return "", 0, errEmptyResponse
	}
	return resp.Choices[0].Message.Content, int(resp.Usage.TotalTokens), nil
}

// compatibleBackend posts to any /v1/chat/completions endpoint.
type compatibleBackend struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func (b *compatibleBackend) complete(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int) (string, int, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"model":       model,
		"messages":    wireMessages(messages),
		"temperature": temperature,
		"max_tokens":  maxTokens,
	})

	respBody, err := postJSON(ctx, b.client, b.endpoint+"/v1/chat/completions", b.apiKey, body)
	if err != nil {
		return "", 0, fmt.Errorf("openai-compatible error: %w", err)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", 0, err
	}
	if result.Error != nil && strings.TrimSpace(result.Error.Message) != "" {
		return "", 0, fmt.Errorf("openai-compatible error: %s", result.Error.Message)
	}
	if strings.TrimSpace(result.Message) != "" && len(result.Choices) == 0 {
		return "", 0, fmt.Errorf("openai-compatible error: %s", result.Message)
	}
	if len(result.Choices) == 0 {
		return "", 0, errEmptyResponse
	}
	return result.Choices[0].Message.Content, result.Usage.TotalTokens, nil
}

// qwenBackend calls the DashScope native generation API.
type qwenBackend struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func (b *qwenBackend) complete(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int) (string, int, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"model": model,
		"input": map[string]interface{}{
			"messages": wireMessages(messages),
		},
		"parameters": map[string]interface{}{
			"temperature":   temperature,
			"max_tokens":    maxTokens,
			"result_format": "message",
		},
	})

	respBody, err := postJSON(ctx, b.client, b.endpoint+qwenGenerationPath, b.apiKey, body)
	if err != nil {
		return "", 0, fmt.Errorf("dashscope error: %w", err)
	}

	var result struct {
		Output struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"output"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", 0, err
	}
	if len(result.Output.Choices) == 0 {
		if result.Code != "" || result.Message != "" {
			return "", 0, fmt.Errorf("dashscope error: %s %s", result.Code, result.Message)
		}
		return "", 0, errEmptyResponse
	}
	return result.Output.Choices[0].Message.Content, result.Usage.TotalTokens, nil
}

// anthropicBackend runs the jetify language model on the Anthropic SDK client.
// Usage is estimated locally.
type anthropicBackend struct {
	client anthropicclient.Client
}

func newAnthropicBackend(apiKey, endpoint string) *anthropicBackend {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithMaxRetries(0),
	}
	if endpoint != "" {
		opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
	}
	return &anthropicBackend{client: anthropicclient.NewClient(opts...)}
}

func (b *anthropicBackend) complete(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int) (string, int, error) {
	lm := jetanthropic.NewLanguageModel(model, jetanthropic.WithClient(b.client))
	resp, err := jetai.GenerateText(
		ctx,
		buildAIPromptMessages(messages),
		jetai.WithModel(lm),
		jetai.WithMaxOutputTokens(maxTokens),
		jetai.WithTemperature(temperature),
	)
	if err != nil {
		return "", 0, err
	}
	text, err := extractTextFromAIResponse(resp)
	if err != nil {
		return "", 0, err
	}
	return text, 0, nil
}

func buildAIPromptMessages(messages []Message) []jetapi.Message {
	out := make([]jetapi.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, &jetapi.SystemMessage{Content: m.Content})
		case RoleAssistant:
			out = append(out, &jetapi.AssistantMessage{Content: jetapi.ContentFromText(m.Content)})
		default:
			out = append(out, &jetapi.UserMessage{Content: jetapi.ContentFromText(m.Content)})
		}
	}
	return out
}

func extractTextFromAIResponse(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", errEmptyResponse
	}

	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}
	return full.String(), nil
}

// geminiBackend uses the Gen AI SDK against the Gemini API.
type geminiBackend struct {
	client *genai.Client
}

func newGeminiBackend(apiKey, endpoint string, httpClient *http.Client) (*geminiBackend, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(endpoint, "/") + "/"}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiBackend{client: client}, nil
}

func (b *geminiBackend) complete(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int) (string, int, error) {
	system, rest := splitSystem(messages)
	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: int32(maxTokens),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := b.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", 0, err
	}
	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return resp.Text(), tokens, nil
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func wireMessages(messages []Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, wireMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}

	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		if path == "" {
			path = "/v1"
		} else {
			path += "/v1"
		}
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}

func normalizeOpenAICompatibleEndpoint(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return "https://api.openai.com"
	}

	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimSuffix(strings.TrimRight(base, "/"), "/v1")
	}

	parsed.Path = strings.TrimSuffix(strings.TrimRight(parsed.Path, "/"), "/v1")
	return strings.TrimRight(parsed.String(), "/")
}

// estimateTokens approximates usage for backends that do not report it.
func estimateTokens(messages []Message, reply string) int {
	total := tokenizer.Count(reply)
	for _, m := range messages {
		total += tokenizer.Count(m.Content)
	}
	return total
}
