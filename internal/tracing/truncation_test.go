package tracing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMaskPII 个人信息掩码：长度不同掩码策略不同
func TestMaskPII(t *testing.T) {
	assert.Equal(t, "", MaskPII(""))
	assert.Equal(t, "*", MaskPII("张"))
	assert.Equal(t, "张*", MaskPII("张三"), "两字姓名应只保留姓")
	assert.Equal(t, "王*明", MaskPII("王小明"))
	assert.Equal(t, "13*******78", MaskPII("13812345678"), "手机号应保留首尾各2位")
}

// TestTruncateString 超长字符串应截断并保留首尾
func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 100), "未超长不应截断")

	long := strings.Repeat("a", 300)
	truncated := TruncateString(long, 20)
	assert.LessOrEqual(t, len([]rune(truncated)), 20)
	assert.Contains(t, truncated, "...", "截断结果应包含省略号")
}

// TestSafeAttributeValue 敏感属性名触发掩码，普通属性只做截断
func TestSafeAttributeValue(t *testing.T) {
	masked := SafeAttributeValue("candidate_phone", "13812345678", DefaultMaxLength)
	assert.Equal(t, "13*******78", masked, "phone属性应掩码")

	masked = SafeAttributeValue("姓名", "王小明", DefaultMaxLength)
	assert.Equal(t, "王*明", masked)

	plain := SafeAttributeValue("db.statement", "SELECT 1", DefaultMaxLength)
	assert.Equal(t, "SELECT 1", plain, "非敏感属性不应掩码")
}

// TestSafeSQL SQL应按上限截断
func TestSafeSQL(t *testing.T) {
	long := "SELECT * FROM resumes WHERE skills_text LIKE '%" + strings.Repeat("x", 600) + "%'"
	safe := SafeSQL(long)
	assert.LessOrEqual(t, len([]rune(safe)), MaxSQLLength)
}
