package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-agent-go/internal/types"
)

// TestScoreMasterScenario 硕士+清华大学+两项技能的基准场景
// 默认路径下学历分必须精确等于85，不受院校影响
func TestScoreMasterScenario(t *testing.T) {
	s := New()
	fields := &types.ResumeFields{
		Name:      "李明",
		Degree:    "硕士",
		School:    "清华大学",
		Skills:    []string{"Python", "SQL"},
		WorkYears: 3,
	}

	report := s.Score(fields, types.DefaultScoreWeights())

	assert.Equal(t, 85, report.EducationScore, "硕士学历分应精确为85")
	assert.Equal(t, 30, report.ExperienceScore, "3年经验应为30分")
	assert.Equal(t, 16, report.SkillScore, "2项技能应为16分")

	// 0.3*85 + 0.4*30 + 0.3*16 = 25.5 + 12 + 4.8 = 42.3 → 42
	assert.Equal(t, 42, report.TotalScore)
}

// TestScoreDegreeTable 学历分数表
func TestScoreDegreeTable(t *testing.T) {
	s := New()
	cases := []struct {
		degree string
		want   int
	}{
		{"博士", 100},
		{"硕士", 85},
		{"本科", 70},
		{"专科", 50},
		{"", 30},
		{"高中", 30},
	}
	for _, tc := range cases {
		report := s.Score(&types.ResumeFields{Degree: tc.degree}, types.DefaultScoreWeights())
		assert.Equal(t, tc.want, report.EducationScore, "学历 %q 的分数与预期不符", tc.degree)
	}
}

// TestScoreCaps 经验分与技能分的上限
func TestScoreCaps(t *testing.T) {
	s := New()

	report := s.Score(&types.ResumeFields{WorkYears: 15}, types.DefaultScoreWeights())
	assert.Equal(t, 100, report.ExperienceScore, "15年经验应封顶100")

	manySkills := make([]string, 20)
	for i := range manySkills {
		manySkills[i] = string(rune('A' + i))
	}
	report = s.Score(&types.ResumeFields{Skills: manySkills}, types.DefaultScoreWeights())
	assert.Equal(t, 100, report.SkillScore, "20项技能应封顶100")
}

// TestScoreDeterministic 相同输入必须产生相同输出
func TestScoreDeterministic(t *testing.T) {
	s := New()
	fields := &types.ResumeFields{
		Degree: "本科", WorkYears: 7, Skills: []string{"Go", "MySQL", "Redis"},
		JobChanges: 2,
	}
	w := types.ScoreWeights{Education: 0.2, Experience: 0.25, Skill: 0.35, Stability: 0.1, Growth: 0.1}

	first := s.Score(fields, w)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Score(fields, w), "评分必须是确定性的")
	}
}

// TestScoreBounds 各分项与总分都必须落在[0,100]
func TestScoreBounds(t *testing.T) {
	s := New()
	extremes := []*types.ResumeFields{
		nil,
		{},
		{Degree: "博士", WorkYears: 99, Skills: make([]string, 99), JobChanges: 99},
		{WorkYears: -5, JobChanges: -1},
	}
	weightSets := []types.ScoreWeights{
		types.DefaultScoreWeights(),
		{Education: 1, Experience: 1, Skill: 1, Stability: 1, Growth: 1}, // 权重和>1也不能越界
		{},
	}

	for _, fields := range extremes {
		for _, w := range weightSets {
			r := s.Score(fields, w)
			for name, v := range map[string]int{
				"education": r.EducationScore, "experience": r.ExperienceScore,
				"skill": r.SkillScore, "stability": r.StabilityScore,
				"growth": r.GrowthScore, "total": r.TotalScore,
			} {
				assert.GreaterOrEqual(t, v, 0, "%s 分不应小于0", name)
				assert.LessOrEqual(t, v, 100, "%s 分不应大于100", name)
			}
		}
	}
}

// TestUniversityBonus 院校加成仅在显式开启时生效
func TestUniversityBonus(t *testing.T) {
	fields := &types.ResumeFields{Degree: "硕士", School: "清华大学"}

	plain := New().Score(fields, types.DefaultScoreWeights())
	assert.Equal(t, 85, plain.EducationScore, "默认不加成")

	boosted := New(WithUniversityBonus()).Score(fields, types.DefaultScoreWeights())
	assert.Equal(t, 95, boosted.EducationScore, "985院校加10分")

	fields211 := &types.ResumeFields{Degree: "本科", School: "北京邮电大学"}
	boosted211 := New(WithUniversityBonus()).Score(fields211, types.DefaultScoreWeights())
	assert.Equal(t, 75, boosted211.EducationScore, "211院校加5分")

	// 博士+985也不能超过100
	capped := New(WithUniversityBonus()).Score(&types.ResumeFields{Degree: "博士", School: "北京大学"}, types.DefaultScoreWeights())
	assert.Equal(t, 100, capped.EducationScore)
}

// TestLookupUniversity 院校查询支持带院系后缀
func TestLookupUniversity(t *testing.T) {
	info, ok := LookupUniversity("清华大学")
	require.True(t, ok)
	assert.True(t, info.Is985)
	assert.True(t, info.Is211, "985院校应同时是211")

	info, ok = LookupUniversity("武汉大学计算机学院")
	require.True(t, ok, "带后缀的院校名应能前缀匹配")
	assert.True(t, info.Is985)

	_, ok = LookupUniversity("不存在的大学")
	assert.False(t, ok)
}

// TestPresetTemplates 内置模板可按ID取出且权重和为1
func TestPresetTemplates(t *testing.T) {
	tpl, ok := TemplateByID("t1")
	require.True(t, ok)
	sum := tpl.Weights.Education + tpl.Weights.Experience + tpl.Weights.Skill +
		tpl.Weights.Stability + tpl.Weights.Growth
	assert.InDelta(t, 1.0, sum, 1e-9, "模板权重和应为1")

	_, ok = TemplateByID("nope")
	assert.False(t, ok)
}
