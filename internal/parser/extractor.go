package parser

import (
	"context"
	"strings"

	"hr-agent-go/internal/types"
)

// 抽取方式标识
const (
	MethodPattern = "pattern"
	MethodLLM     = "llm"
)

// FieldExtractor 从简历纯文本中抽取结构化字段
// 实现约定：文本中不存在的信息保持零值，绝不编造
type FieldExtractor interface {
	Extract(ctx context.Context, text string) (*types.ResumeFields, error)
}

// CleanFields 对抽取结果做统一清洗，两种抽取路径共用
//   - 手机号去掉所有非数字后必须恰好11位，否则清空
//   - 邮箱必须包含@，否则清空
//   - 技能去除首尾空白并按原始顺序去重
func CleanFields(f *types.ResumeFields) {
	if f == nil {
		return
	}

	// 手机号
	var digits strings.Builder
	for _, r := range f.Phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 11 {
		f.Phone = digits.String()
	} else {
		f.Phone = ""
	}

	// 邮箱
	if !strings.Contains(f.Email, "@") {
		f.Email = ""
	} else {
		f.Email = strings.TrimSpace(f.Email)
	}

	// 技能去重，保持出现顺序
	if len(f.Skills) > 0 {
		seen := make(map[string]struct{}, len(f.Skills))
		cleaned := make([]string, 0, len(f.Skills))
		for _, s := range f.Skills {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			key := strings.ToLower(s)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			cleaned = append(cleaned, s)
		}
		f.Skills = cleaned
	}

	// 学历归一化：大专与专科同级
	if f.Degree == "大专" {
		f.Degree = "专科"
	}

	f.Name = strings.TrimSpace(f.Name)
	f.School = strings.TrimSpace(f.School)
	f.Major = strings.TrimSpace(f.Major)
	f.Company = strings.TrimSpace(f.Company)
	f.Position = strings.TrimSpace(f.Position)

	if f.Age < 0 || f.Age > 120 {
		f.Age = 0
	}
	if f.WorkYears < 0 {
		f.WorkYears = 0
	}
}

// degreeRank 学历排序，数值越大学历越高
var degreeRank = map[string]int{
	"博士": 4,
	"硕士": 3,
	"本科": 2,
	"专科": 1,
	"大专": 1,
}

// HigherDegree 返回两个学历中更高的一个，用于多处匹配时取最高学历
func HigherDegree(a, b string) string {
	if degreeRank[a] >= degreeRank[b] {
		return a
	}
	return b
}
