package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-agent-go/pkg/agent"
)

const validLLMResponse = "```json\n" + `{
  "name": "王芳",
  "gender": "女",
  "age": 26,
  "phone": "138-1234-5678",
  "email": "wangfang@test.com",
  "degree": "硕士",
  "school": "北京大学",
  "major": "软件工程",
  "workYears": 3,
  "company": "腾讯科技有限公司",
  "position": "前端开发工程师",
  "skills": ["Vue", "JavaScript", "Vue"]
}` + "\n```"

// TestLLMExtractorValidResponse 模型返回合法JSON时的抽取与清洗
func TestLLMExtractorValidResponse(t *testing.T) {
	mockClient := agent.NewMockChatClient(validLLMResponse, nil)
	e := NewLLMExtractor(mockClient)

	fields, err := e.Extract(context.Background(), "王芳的简历原文...")
	require.NoError(t, err)
	require.NotNil(t, fields)

	assert.Equal(t, "王芳", fields.Name)
	assert.Equal(t, "13812345678", fields.Phone, "手机号应被清洗成纯数字11位")
	assert.Equal(t, "硕士", fields.Degree)
	assert.Equal(t, []string{"Vue", "JavaScript"}, fields.Skills, "技能应去重")
	assert.Equal(t, MethodLLM, fields.Method)
}

// TestLLMExtractorInvalidJSON 模型输出不是JSON时应返回错误（由上层触发回退）
func TestLLMExtractorInvalidJSON(t *testing.T) {
	mockClient := agent.NewMockChatClient("抱歉，我无法解析这份简历。", nil)
	e := NewLLMExtractor(mockClient)

	_, err := e.Extract(context.Background(), "简历文本")
	require.Error(t, err, "非JSON输出应报错")
}

// TestLLMExtractorModelError 模型调用失败时应返回错误
func TestLLMExtractorModelError(t *testing.T) {
	mockClient := agent.NewMockChatClient("", errors.New("invalid api key"))
	e := NewLLMExtractor(mockClient)

	_, err := e.Extract(context.Background(), "简历文本")
	require.Error(t, err)
}

// TestLLMExtractorEmptyInput 空文本直接报错，不浪费一次模型调用
func TestLLMExtractorEmptyInput(t *testing.T) {
	mockClient := agent.NewMockChatClient(validLLMResponse, nil)
	e := NewLLMExtractor(mockClient)

	_, err := e.Extract(context.Background(), "   ")
	require.Error(t, err)
	assert.Empty(t, mockClient.GetReceivedMessages(), "空输入不应触发模型调用")
}

// TestExtractJSON JSON提取的两种路径
func TestExtractJSON(t *testing.T) {
	t.Run("markdown代码块", func(t *testing.T) {
		got := extractJSON("前置说明\n```json\n{\"a\":1}\n```\n后置说明")
		assert.JSONEq(t, `{"a":1}`, got)
	})

	t.Run("无代码块时大括号配对", func(t *testing.T) {
		got := extractJSON(`结果是 {"a":{"b":"}"},"c":2} 以上`)
		assert.JSONEq(t, `{"a":{"b":"}"},"c":2}`, got)
	})

	t.Run("无JSON内容", func(t *testing.T) {
		assert.Empty(t, extractJSON("没有任何结构化内容"))
	})
}

// TestFallbackExtractor 模型路径失败时静默回退到规则抽取
func TestFallbackExtractor(t *testing.T) {
	t.Run("模型失败回退规则", func(t *testing.T) {
		mockClient := agent.NewMockChatClient("不是JSON的输出", nil)
		f := NewFallbackExtractor(NewLLMExtractor(mockClient), NewPatternExtractor())

		fields, err := f.Extract(context.Background(), sampleResumeText)
		require.NoError(t, err, "回退路径不应把主路径的错误暴露给调用方")
		assert.Equal(t, MethodPattern, fields.Method, "应标记为规则抽取")
		assert.Equal(t, "李明", fields.Name, "回退结果仍应抽出字段")
	})

	t.Run("模型成功时不回退", func(t *testing.T) {
		mockClient := agent.NewMockChatClient(validLLMResponse, nil)
		f := NewFallbackExtractor(NewLLMExtractor(mockClient), NewPatternExtractor())

		fields, err := f.Extract(context.Background(), "任意文本")
		require.NoError(t, err)
		assert.Equal(t, MethodLLM, fields.Method)
		assert.Equal(t, "王芳", fields.Name)
	})

	t.Run("无模型时直接规则抽取", func(t *testing.T) {
		f := NewFallbackExtractor(nil, NewPatternExtractor())
		fields, err := f.Extract(context.Background(), sampleResumeText)
		require.NoError(t, err)
		assert.Equal(t, MethodPattern, fields.Method)
	})
}
