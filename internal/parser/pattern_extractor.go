package parser

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"hr-agent-go/internal/types"
)

// 正则规则表，针对中文简历的常见书写习惯
var (
	reName    = regexp.MustCompile(`姓名[：:]\s*(\S{1,10})`)
	reGender  = regexp.MustCompile(`性别[：:]\s*([男女])`)
	reAge     = regexp.MustCompile(`(\d{1,2})\s*岁`)
	rePhone   = regexp.MustCompile(`1[3-9]\d{9}`)
	reEmail   = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)
	reDegree  = regexp.MustCompile(`博士|硕士|本科|专科|大专`)
	reSchool  = regexp.MustCompile(`\p{Han}{2,15}(?:大学|学院|学校)`)
	reMajor   = regexp.MustCompile(`(?:专业[：:]\s*(\S{2,20}))|(\p{Han}{2,12})专业`)
	reYears   = regexp.MustCompile(`(\d{1,2})\s*年.{0,6}?经验`)
	reCompany = regexp.MustCompile(`[\p{Han}A-Za-z0-9]{2,20}(?:公司|企业|集团)`)
	rePost    = regexp.MustCompile(`[\p{Han}A-Za-z]{0,10}(?:工程师|经理|主管|专员)|\p{Han}{0,8}开发`)
)

// skillKeywords 技能关键词表，按出现顺序收集
var skillKeywords = []string{
	"Java", "Python", "JavaScript", "TypeScript", "C++", "C#", "Go", "PHP",
	"SQL", "MySQL", "PostgreSQL", "Oracle", "Redis", "MongoDB",
	"React", "Vue", "Angular", "Node.js", "Spring", "Django",
	"Docker", "Kubernetes", "Linux", "Git", "Nginx", "Kafka",
	"机器学习", "深度学习", "数据分析", "产品设计", "项目管理",
}

// PatternExtractor 基于正则规则的字段抽取器，不依赖任何外部服务
type PatternExtractor struct{}

// NewPatternExtractor 创建规则抽取器
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

// Extract 从简历文本中按规则抽取字段
// 规则未命中的字段保持零值，从不编造
func (p *PatternExtractor) Extract(ctx context.Context, text string) (*types.ResumeFields, error) {
	fields := &types.ResumeFields{Method: MethodPattern}

	if m := reName.FindStringSubmatch(text); m != nil {
		fields.Name = m[1]
	}
	if m := reGender.FindStringSubmatch(text); m != nil {
		fields.Gender = m[1]
	}
	if m := reAge.FindStringSubmatch(text); m != nil {
		if age, err := strconv.Atoi(m[1]); err == nil {
			fields.Age = age
		}
	}
	fields.Phone = rePhone.FindString(text)
	fields.Email = reEmail.FindString(text)

	// 学历可能出现多处（教育经历、期望等），取最高的一个
	for _, d := range reDegree.FindAllString(text, -1) {
		fields.Degree = HigherDegree(fields.Degree, d)
	}

	fields.School = reSchool.FindString(text)

	if m := reMajor.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			fields.Major = m[1]
		} else if m[2] != "" {
			fields.Major = m[2]
		}
	}

	if m := reYears.FindStringSubmatch(text); m != nil {
		if years, err := strconv.Atoi(m[1]); err == nil {
			fields.WorkYears = years
		}
	}

	// 公司取首个匹配，段数用于稳定性评分
	companies := reCompany.FindAllString(text, -1)
	if len(companies) > 0 {
		fields.Company = companies[0]
		fields.JobChanges = countDistinct(companies)
	}
	fields.Position = strings.TrimSpace(rePost.FindString(text))

	// 技能关键词扫描
	lowerText := strings.ToLower(text)
	for _, kw := range skillKeywords {
		if strings.Contains(lowerText, strings.ToLower(kw)) {
			fields.Skills = append(fields.Skills, kw)
		}
	}

	CleanFields(fields)
	return fields, nil
}

// countDistinct 统计去重后的数量
func countDistinct(items []string) int {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		seen[it] = struct{}{}
	}
	return len(seen)
}
