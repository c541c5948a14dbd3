package scorer

import (
	"math"

	"hr-agent-go/internal/types"
)

// degreeScores 学历分数表
var degreeScores = map[string]int{
	"博士": 100,
	"硕士": 85,
	"本科": 70,
	"专科": 50,
}

// defaultDegreeScore 学历缺失或无法识别时的保底分
const defaultDegreeScore = 30

// Scorer 候选人评分器
// 纯函数实现：无I/O、无时钟、无随机性，相同输入必然得到相同输出
type Scorer struct {
	universityBonus bool
}

// Option Scorer 的配置选项
type Option func(*Scorer)

// WithUniversityBonus 启用985/211院校加成（985加10分，211加5分，上限100）
// 默认关闭，开启后学历分不再与学历分数表严格一致
func WithUniversityBonus() Option {
	return func(s *Scorer) {
		s.universityBonus = true
	}
}

// New 创建评分器
func New(options ...Option) *Scorer {
	s := &Scorer{}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Score 对抽取出的字段计算五维分数与加权总分
// 总分 = round(Σ 权重*分项)，并截断到[0,100]
func (s *Scorer) Score(fields *types.ResumeFields, weights types.ScoreWeights) types.ScoreReport {
	if fields == nil {
		fields = &types.ResumeFields{}
	}

	report := types.ScoreReport{
		EducationScore:  s.educationScore(fields),
		ExperienceScore: experienceScore(fields.WorkYears),
		SkillScore:      skillScore(len(fields.Skills)),
		StabilityScore:  stabilityScore(fields.JobChanges),
		GrowthScore:     growthScore(fields),
	}

	total := weights.Education*float64(report.EducationScore) +
		weights.Experience*float64(report.ExperienceScore) +
		weights.Skill*float64(report.SkillScore) +
		weights.Stability*float64(report.StabilityScore) +
		weights.Growth*float64(report.GrowthScore)

	report.TotalScore = clamp(int(math.Round(total)), 0, 100)
	return report
}

// educationScore 学历分：博士100 硕士85 本科70 专科50 其他30
func (s *Scorer) educationScore(fields *types.ResumeFields) int {
	score, ok := degreeScores[fields.Degree]
	if !ok {
		score = defaultDegreeScore
	}

	if s.universityBonus && fields.School != "" {
		if info, found := LookupUniversity(fields.School); found {
			switch {
			case info.Is985:
				score += 10
			case info.Is211:
				score += 5
			}
		}
	}

	return clamp(score, 0, 100)
}

// experienceScore 经验分：每年10分，上限100
func experienceScore(years int) int {
	if years < 0 {
		years = 0
	}
	return clamp(years*10, 0, 100)
}

// skillScore 技能分：每项8分，上限100
func skillScore(count int) int {
	if count < 0 {
		count = 0
	}
	return clamp(count*8, 0, 100)
}

// stabilityScore 稳定性分：以工作经历段数衡量跳槽频率
// 未识别出任何经历时给中间值60；每多一段经历扣15分
func stabilityScore(jobChanges int) int {
	if jobChanges <= 0 {
		return 60
	}
	return clamp(100-(jobChanges-1)*15, 0, 100)
}

// growthScore 成长性分：学历基础分的一半加上经验年限的贡献（每年5分，上限50）
func growthScore(fields *types.ResumeFields) int {
	base, ok := degreeScores[fields.Degree]
	if !ok {
		base = defaultDegreeScore
	}
	years := fields.WorkYears
	if years < 0 {
		years = 0
	}
	yearPart := years * 5
	if yearPart > 50 {
		yearPart = 50
	}
	return clamp(base/2+yearPart, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
