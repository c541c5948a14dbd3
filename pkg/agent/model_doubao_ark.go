package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// 火山方舟 OpenAI 兼容接口
	defaultArkAPIBaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	defaultArkModelName  = "doubao-1-5-thinking-pro-250415"
)

// DoubaoArkChatModel 实现了 model.ChatModel 和 model.ToolCallingChatModel 接口，
// 用于与火山方舟(豆包)大模型交互。
type DoubaoArkChatModel struct {
	apiKey      string
	modelName   string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// ArkModelOption DoubaoArkChatModel 的配置选项
type ArkModelOption func(*DoubaoArkChatModel)

// WithTemperature 设置采样温度，简历抽取场景建议低温(0.1)保证输出稳定
func WithTemperature(t float64) ArkModelOption {
	return func(m *DoubaoArkChatModel) {
		m.temperature = t
	}
}

// WithMaxTokens 设置最大生成token数
func WithMaxTokens(n int) ArkModelOption {
	return func(m *DoubaoArkChatModel) {
		m.maxTokens = n
	}
}

// WithHTTPTimeout 设置底层HTTP客户端超时
func WithHTTPTimeout(d time.Duration) ArkModelOption {
	return func(m *DoubaoArkChatModel) {
		m.httpClient.Timeout = d
	}
}

// NewDoubaoArkChatModel 创建一个新的 DoubaoArkChatModel 实例。
func NewDoubaoArkChatModel(apiKey string, modelName string, baseURL string, options ...ArkModelOption) (*DoubaoArkChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	mn := modelName
	if strings.TrimSpace(mn) == "" {
		mn = defaultArkModelName
	}

	base := strings.TrimSuffix(baseURL, "/")
	if strings.TrimSpace(base) == "" {
		base = defaultArkAPIBaseURL
	}

	m := &DoubaoArkChatModel{
		apiKey:      apiKey,
		modelName:   mn,
		baseURL:     base,
		temperature: 0.1,
		maxTokens:   4000,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range options {
		opt(m)
	}

	log.Printf("使用火山方舟 LLM 客户端，BaseURL: %s, 模型: %s", m.baseURL, m.modelName)
	return m, nil
}

// --- OpenAI 兼容请求/响应结构 ---

type arkChatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"` // eino 的 schema.Message 与 OpenAI 的 role/content 字段兼容
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

type arkMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type arkChatChoice struct {
	Index        int        `json:"index"`
	Message      arkMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type arkCompletionResponse struct {
	Id      string          `json:"id"`
	Object  string          `json:"object"`
	Created int64           `json:"created"`
	Model   string          `json:"model"`
	Choices []arkChatChoice `json:"choices"`
}

// Generate 实现 model.ChatModel 接口
func (m *DoubaoArkChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	for _, opt := range options {
		_ = opt // 通用选项暂不处理，模型参数在构造时固定
	}

	reqPayload := arkChatCompletionRequest{
		Model:       m.modelName,
		Messages:    messages,
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	url := m.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, string(bodyBytes))
	}

	var arkResp arkCompletionResponse
	if err := json.Unmarshal(bodyBytes, &arkResp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w。响应体: %s", err, string(bodyBytes))
	}

	if len(arkResp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", string(bodyBytes))
	}

	apiMessage := arkResp.Choices[0].Message
	responseContent := ""
	if apiMessage.Content != nil {
		responseContent = *apiMessage.Content
	}

	resultMessage := &schema.Message{
		Role:    schema.RoleType(apiMessage.Role),
		Content: responseContent,
	}
	if resultMessage.Role == "" {
		resultMessage.Role = schema.RoleType("assistant")
	}

	return resultMessage, nil
}

// Stream 实现 model.ChatModel 接口
// 抽取流程只需要完整的JSON响应，流式输出没有使用场景
func (m *DoubaoArkChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("DoubaoArkChatModel 的 Stream 方法未实现")
}

// BindTools 实现 model.ChatModel 接口
// 简历字段抽取不使用工具调用，保留空实现以满足接口
func (m *DoubaoArkChatModel) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) > 0 {
		log.Printf("[豆包模型] BindTools 被调用(%d个工具)，当前模型不使用工具调用，忽略。", len(tools))
	}
	return nil
}

// WithTools 满足 model.ToolCallingChatModel 接口
func (m *DoubaoArkChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if err := m.BindTools(tools); err != nil {
		return nil, err
	}
	return m, nil
}

var _ model.ChatModel = (*DoubaoArkChatModel)(nil)
var _ model.ToolCallingChatModel = (*DoubaoArkChatModel)(nil)
