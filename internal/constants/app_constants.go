package constants

import "time"

const (
	// DefaultParserVer 当前抽取流程版本，落库时写入parser_version字段
	DefaultParserVer = "1.0"

	// PageBreakMarker 多页识别文本的拼接分隔符
	PageBreakMarker = "\n\n=== 分页 ===\n\n"

	// DefaultOCRQuotaMax OCR接口默认调用配额上限
	DefaultOCRQuotaMax = 500

	// DefaultOCRTimeout 单次OCR调用超时
	DefaultOCRTimeout = 30 * time.Second

	// DefaultRasterScale PDF光栅化缩放倍数（2.0倍，对应144 DPI）
	DefaultRasterScale = 2.0

	// DefaultMaxPages 单份简历最多渲染的页数，超出部分截断并记日志
	DefaultMaxPages = 20

	// RawFileMD5SetKey 原始文件MD5去重集合（Redis SET）
	RawFileMD5SetKey = "resumes:file_md5s"
)
