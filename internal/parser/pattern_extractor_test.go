package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-agent-go/internal/types"
)

const sampleResumeText = `姓名：李明
性别：男  28岁
电话：13912345678  邮箱：liming@example.com
教育经历：
2016-2019 清华大学 计算机科学与技术专业 硕士
2012-2016 武汉大学 软件工程专业 本科
工作经历：
2019-2023 字节跳动科技有限公司 后端开发工程师
5年工作经验
技能：Java, Python, SQL, Redis, Docker, Python`

// TestPatternExtractorFullResume 完整简历文本的规则抽取
func TestPatternExtractorFullResume(t *testing.T) {
	p := NewPatternExtractor()
	fields, err := p.Extract(context.Background(), sampleResumeText)
	require.NoError(t, err)
	require.NotNil(t, fields)

	assert.Equal(t, "李明", fields.Name)
	assert.Equal(t, "男", fields.Gender)
	assert.Equal(t, 28, fields.Age)
	assert.Equal(t, "13912345678", fields.Phone)
	assert.Equal(t, "liming@example.com", fields.Email)
	assert.Equal(t, "硕士", fields.Degree, "同时出现本科与硕士时应取最高学历")
	assert.Equal(t, "清华大学", fields.School)
	assert.Equal(t, 5, fields.WorkYears)
	assert.Contains(t, fields.Company, "公司")
	assert.Equal(t, MethodPattern, fields.Method)

	// 技能去重：Python只应出现一次
	assert.Contains(t, fields.Skills, "Java")
	assert.Contains(t, fields.Skills, "Python")
	count := 0
	for _, s := range fields.Skills {
		if s == "Python" {
			count++
		}
	}
	assert.Equal(t, 1, count, "技能列表应去重")
}

// TestPatternExtractorNoFabrication 规则未命中时字段保持零值
func TestPatternExtractorNoFabrication(t *testing.T) {
	p := NewPatternExtractor()
	fields, err := p.Extract(context.Background(), "这是一段与简历完全无关的文字。")
	require.NoError(t, err)

	assert.Empty(t, fields.Name, "不应编造姓名")
	assert.Empty(t, fields.Phone, "不应编造电话")
	assert.Empty(t, fields.Email, "不应编造邮箱")
	assert.Empty(t, fields.Degree, "不应编造学历")
	assert.Empty(t, fields.Skills, "不应编造技能")
	assert.Zero(t, fields.WorkYears)
}

// TestPatternExtractorDegreeNormalization 大专应归一化为专科
func TestPatternExtractorDegreeNormalization(t *testing.T) {
	p := NewPatternExtractor()
	fields, err := p.Extract(context.Background(), "2015年毕业于某职业技术学院，大专学历")
	require.NoError(t, err)
	assert.Equal(t, "专科", fields.Degree)
}

// TestCleanFields 字段清洗规则
func TestCleanFields(t *testing.T) {
	t.Run("非法手机号被清空", func(t *testing.T) {
		f := &types.ResumeFields{Phone: "1391234"}
		CleanFields(f)
		assert.Empty(t, f.Phone)
	})

	t.Run("手机号去掉分隔符后保留", func(t *testing.T) {
		f := &types.ResumeFields{Phone: "139-1234-5678"}
		CleanFields(f)
		assert.Equal(t, "13912345678", f.Phone)
	})

	t.Run("缺少@的邮箱被清空", func(t *testing.T) {
		f := &types.ResumeFields{Email: "liming.example.com"}
		CleanFields(f)
		assert.Empty(t, f.Email)
	})

	t.Run("技能去重保持顺序", func(t *testing.T) {
		f := &types.ResumeFields{Skills: []string{" Java ", "SQL", "java", "", "SQL"}}
		CleanFields(f)
		assert.Equal(t, []string{"Java", "SQL"}, f.Skills)
	})

	t.Run("离谱年龄被清零", func(t *testing.T) {
		f := &types.ResumeFields{Age: 220}
		CleanFields(f)
		assert.Zero(t, f.Age)
	})
}

// TestHigherDegree 学历高低比较
func TestHigherDegree(t *testing.T) {
	assert.Equal(t, "博士", HigherDegree("博士", "硕士"))
	assert.Equal(t, "硕士", HigherDegree("本科", "硕士"))
	assert.Equal(t, "本科", HigherDegree("本科", "专科"))
	assert.Equal(t, "本科", HigherDegree("", "本科"))
}
