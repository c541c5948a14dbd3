package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigFromFile 验证YAML配置文件能否被正确加载
func TestLoadConfigFromFile(t *testing.T) {
	yamlContent := `
ocr:
  api_url: "https://gjbsb.market.alicloudapi.com/ocrservice/advanced"
  timeout_seconds: 15
  quota_max: 300
ark:
  model: "doubao-1-5-thinking-pro-250415"
  temperature: 0.1
scorer:
  weights:
    education: 0.2
    experience: 0.25
    skill: 0.35
    stability: 0.1
    growth: 0.1
server:
  address: ":9090"
`
	// 创建一个临时目录来存放配置文件
	tmpDir, err := os.MkdirTemp("", "config-test")
	require.NoError(t, err, "无法创建临时目录")
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err, "无法写入临时配置文件")

	config, err := LoadConfig(configPath)
	require.NoError(t, err, "加载合法配置不应返回错误")
	require.NotNil(t, config, "配置对象不应为 nil")

	assert.Equal(t, 15, config.OCR.TimeoutSeconds, "OCR超时与预期不符")
	assert.Equal(t, 300, config.OCR.QuotaMax, "OCR配额上限与预期不符")
	assert.Equal(t, ":9090", config.Server.Address, "服务器地址与预期不符")
	assert.Equal(t, 0.35, config.Scorer.Weights.Skill, "技能权重与预期不符")
	assert.Equal(t, 0.1, config.Scorer.Weights.Growth, "成长性权重与预期不符")
}

// TestLoadConfigDefaults 验证缺省字段会被补上默认值
func TestLoadConfigDefaults(t *testing.T) {
	yamlContent := `
server:
  address: ""
`
	tmpDir, err := os.MkdirTemp("", "config-test-defaults")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, ":8080", config.Server.Address, "缺省服务器地址应为:8080")
	assert.Equal(t, 500, config.OCR.QuotaMax, "缺省OCR配额上限应为500")
	assert.Equal(t, 30, config.OCR.TimeoutSeconds, "缺省OCR超时应为30秒")
	assert.Equal(t, 2.0, config.Rasterizer.Scale, "缺省光栅化倍数应为2.0")
	assert.Equal(t, 0.4, config.Scorer.Weights.Experience, "缺省经验权重应为0.4")
}

// TestLoadConfigMissingFileInTest 测试环境下找不到配置文件时应返回默认配置
func TestLoadConfigMissingFileInTest(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "no-such-config.yaml"))
	require.NoError(t, err, "测试环境中缺少配置文件不应报错")
	require.NotNil(t, config)
	assert.Equal(t, 500, config.OCR.QuotaMax)
}

// TestGetDuration 验证时长解析工具函数
func TestGetDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, GetDuration("5s", 0), "合法时长应被解析")
	assert.Equal(t, 3*time.Second, GetDuration("", 3*time.Second), "空字符串应返回默认值")
	assert.Equal(t, 3*time.Second, GetDuration("bogus", 3*time.Second), "非法字符串应返回默认值")
}
