// resumetool 本地简历处理工具：不依赖任何外部服务，
// 对单个文件执行 文本层提取/光栅化 -> 正则抽取 -> 评分，结果以JSON输出。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hr-agent-go/internal/parser"
	"hr-agent-go/internal/rasterizer"
	"hr-agent-go/internal/scorer"
	"hr-agent-go/internal/types"

	"github.com/spf13/pflag"
)

var (
	filePath   = pflag.StringP("file", "f", "", "简历文件路径 (必填)")
	command    = pflag.StringP("cmd", "c", "process", "执行的命令: text=仅提取文本, raster=仅光栅化统计, process=抽取并评分")
	templateID = pflag.StringP("template", "t", "", "评分模板ID (t1/t2/t3)，为空时用默认权重")
	maxLen     = pflag.Int("maxlen", 1000, "显示的文本最大长度，设为-1显示全部")
	bonus      = pflag.Bool("university-bonus", false, "启用985/211院校加成")
)

func main() {
	pflag.Parse()

	if *filePath == "" {
		fmt.Println("错误: 必须提供文件路径，使用 -f 参数。")
		pflag.Usage()
		os.Exit(1)
	}

	absPath, err := filepath.Abs(*filePath)
	if err != nil {
		fatalf("无法获取文件的绝对路径: %v", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		fatalf("读取文件失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch *command {
	case "text":
		handleTextCommand(ctx, absPath, data)
	case "raster":
		handleRasterCommand(ctx, data)
	case "process":
		handleProcessCommand(ctx, absPath, data)
	default:
		fmt.Printf("错误: 未知命令 '%s'。支持的命令: text, raster, process\n", *command)
		pflag.Usage()
		os.Exit(1)
	}
}

// extractText 本地文本获取：PDF走文本层，其他格式无法离线识别
func extractText(ctx context.Context, path string, data []byte) (string, error) {
	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return "", fmt.Errorf("离线模式仅支持PDF文本层提取，图片请使用服务端OCR")
	}
	extractor, err := parser.NewTextLayerExtractor(ctx)
	if err != nil {
		return "", fmt.Errorf("创建文本层提取器失败: %w", err)
	}
	text, ok, err := extractor.ExtractFromBytes(ctx, data, path)
	if err != nil {
		return "", fmt.Errorf("提取文本失败: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("该PDF没有可用文本层(可能为扫描件)，请使用服务端OCR")
	}
	return text, nil
}

func handleTextCommand(ctx context.Context, path string, data []byte) {
	start := time.Now()
	text, err := extractText(ctx, path, data)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("提取完成! 耗时: %v\n", time.Since(start))
	fmt.Printf("\n===== 提取的文本 (总计 %d 字符) =====\n", len(text))
	if *maxLen >= 0 && len(text) > *maxLen {
		fmt.Println(text[:*maxLen])
		fmt.Printf("...(截断，剩余 %d 字符)\n", len(text)-*maxLen)
	} else {
		fmt.Println(text)
	}
}

func handleRasterCommand(ctx context.Context, data []byte) {
	r := rasterizer.New()
	start := time.Now()
	pages, err := r.Rasterize(ctx, data)
	if err != nil {
		fatalf("光栅化失败: %v", err)
	}
	fmt.Printf("光栅化完成! 耗时: %v, 共 %d 页\n", time.Since(start), len(pages))
	for _, p := range pages {
		fmt.Printf("  第%d页: %dx%d %s (%d 字节)\n", p.PageNumber, p.Width, p.Height, p.Format, len(p.Data))
	}
}

func handleProcessCommand(ctx context.Context, path string, data []byte) {
	text, err := extractText(ctx, path, data)
	if err != nil {
		fatalf("%v", err)
	}

	fields, err := parser.NewPatternExtractor().Extract(ctx, text)
	if err != nil {
		fatalf("字段抽取失败: %v", err)
	}

	weights := types.DefaultScoreWeights()
	if *templateID != "" {
		tpl, ok := scorer.TemplateByID(*templateID)
		if !ok {
			fatalf("评分模板 %s 不存在", *templateID)
		}
		weights = tpl.Weights
	}

	var opts []scorer.Option
	if *bonus {
		opts = append(opts, scorer.WithUniversityBonus())
	}
	report := scorer.New(opts...).Score(fields, weights)

	out := struct {
		Fields  *types.ResumeFields `json:"fields"`
		Weights types.ScoreWeights  `json:"weights"`
		Scores  types.ScoreReport   `json:"scores"`
	}{fields, weights, report}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fatalf("序列化结果失败: %v", err)
	}
	fmt.Println(string(encoded))
}

func fatalf(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}
