package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"hr-agent-go/internal/types"
)

const defaultExtractPromptTemplate = `你是一个专业的简历信息抽取助手。请从下面的简历文本中抽取候选人信息，并严格按照JSON格式输出。

要求：
1. 只输出一个JSON对象，不要输出任何解释性文字
2. 文本中不存在的信息一律留空（字符串留"", 数字填0, 数组填[]），严禁编造
3. degree字段只能取"博士"、"硕士"、"本科"、"专科"之一，多个学历取最高
4. phone为11位手机号，email必须是合法邮箱
5. skills为技能名称数组，去除重复项

输出JSON结构：
{
  "name": "姓名",
  "gender": "性别",
  "age": 0,
  "phone": "",
  "email": "",
  "degree": "",
  "school": "",
  "major": "",
  "workYears": 0,
  "company": "",
  "position": "",
  "skills": []
}

简历文本：
%s`

// LLMExtractor 模型辅助的字段抽取器
// 将简历文本送入大模型，解析其返回的JSON；解析失败时由上层回退到规则抽取
type LLMExtractor struct {
	llmModel       model.ToolCallingChatModel
	logger         *log.Logger
	promptTemplate string
	maxInputChars  int
	maxRetries     int
	retryDelay     time.Duration
	callTimeout    time.Duration
}

// LLMExtractorOption LLMExtractor 的配置选项
type LLMExtractorOption func(*LLMExtractor)

// WithExtractorLogger 配置自定义日志记录器
func WithExtractorLogger(logger *log.Logger) LLMExtractorOption {
	return func(e *LLMExtractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCustomPromptTemplate 覆盖默认的抽取提示模板，模板需含一个%s占位简历文本
func WithCustomPromptTemplate(tpl string) LLMExtractorOption {
	return func(e *LLMExtractor) {
		if tpl != "" {
			e.promptTemplate = tpl
		}
	}
}

// WithMaxInputChars 设置送入模型的文本截断长度
func WithMaxInputChars(n int) LLMExtractorOption {
	return func(e *LLMExtractor) {
		if n > 0 {
			e.maxInputChars = n
		}
	}
}

// WithCallTimeout 设置单次模型调用超时
func WithCallTimeout(d time.Duration) LLMExtractorOption {
	return func(e *LLMExtractor) {
		if d > 0 {
			e.callTimeout = d
		}
	}
}

// NewLLMExtractor 创建模型辅助抽取器
func NewLLMExtractor(llmModel model.ToolCallingChatModel, options ...LLMExtractorOption) *LLMExtractor {
	e := &LLMExtractor{
		llmModel:       llmModel,
		logger:         log.New(io.Discard, "", 0),
		promptTemplate: defaultExtractPromptTemplate,
		maxInputChars:  10000,
		maxRetries:     2,
		retryDelay:     2 * time.Second,
		callTimeout:    120 * time.Second,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Extract 调用大模型抽取字段
func (e *LLMExtractor) Extract(ctx context.Context, text string) (*types.ResumeFields, error) {
	if e.llmModel == nil {
		return nil, fmt.Errorf("LLM模型未配置")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("简历文本为空")
	}

	// 超长文本截断，避免超出模型上下文
	runes := []rune(text)
	if len(runes) > e.maxInputChars {
		e.logger.Printf("简历文本过长(%d字符)，截断到%d字符", len(runes), e.maxInputChars)
		text = string(runes[:e.maxInputChars])
	}

	prompt := fmt.Sprintf(e.promptTemplate, text)

	response, err := e.callLLM(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("调用LLM失败: %w", err)
	}

	fields, err := e.parseResponse(response)
	if err != nil {
		return nil, fmt.Errorf("解析LLM响应失败: %w", err)
	}

	fields.Method = MethodLLM
	CleanFields(fields)
	return fields, nil
}

// callLLM 带重试地调用大模型
func (e *LLMExtractor) callLLM(ctx context.Context, prompt string) (string, error) {
	messages := []*schema.Message{
		schema.UserMessage(prompt),
	}

	var lastErr error
	retryDelay := e.retryDelay
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			e.logger.Printf("LLM调用重试 %d/%d，等待 %v", attempt, e.maxRetries, retryDelay)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		resp, err := e.llmModel.Generate(callCtx, messages)
		cancel()

		if err == nil {
			return resp.Content, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}
	return "", lastErr
}

// isRetryableError 判断错误是否值得重试（超时/限流/临时网络错误）
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	retryableSubstrings := []string{
		"timeout", "deadline exceeded", "connection refused", "connection reset",
		"rate limit", "too many requests", "429", "503", "502",
	}
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

var jsonFenceRegexp = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// extractJSON 从模型输出中提取JSON文本
// 先找markdown代码块，找不到再做大括号配对
func extractJSON(response string) string {
	if m := jsonFenceRegexp.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}

	// 大括号配对，取第一个完整的顶层JSON对象
	start := strings.Index(response, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return response[start : i+1]
				}
			}
		}
	}
	return ""
}

// parseResponse 解析模型返回的JSON并反序列化成字段结构
func (e *LLMExtractor) parseResponse(response string) (*types.ResumeFields, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return nil, fmt.Errorf("响应中未找到JSON内容")
	}

	var fields types.ResumeFields
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		return nil, fmt.Errorf("JSON反序列化失败: %w", err)
	}

	return &fields, nil
}

var _ FieldExtractor = (*LLMExtractor)(nil)
