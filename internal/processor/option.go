package processor

import (
	"io"
	"log"

	"hr-agent-go/internal/storage"
	"hr-agent-go/internal/types"
)

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// ----- 组件选项 -----

// WithcompRasterizer 设置光栅化组件
func WithcompRasterizer(r PageRasterizer) ComponentOpt {
	return func(c *Components) {
		c.Rasterizer = r
	}
}

// WithcompRecognizer 设置文字识别组件
func WithcompRecognizer(r DocumentRecognizer) ComponentOpt {
	return func(c *Components) {
		c.Recognizer = r
	}
}

// WithcompTextlayer 设置PDF文本层抽取组件
func WithcompTextlayer(t TextLayerExtractor) ComponentOpt {
	return func(c *Components) {
		c.TextLayer = t
	}
}

// WithcompExtractor 设置字段抽取组件
func WithcompExtractor(e FieldExtractor) ComponentOpt {
	return func(c *Components) {
		c.Extractor = e
	}
}

// WithcompScorer 设置评分组件
func WithcompScorer(s CandidateScorer) ComponentOpt {
	return func(c *Components) {
		c.Scorer = s
	}
}

// WithcompStorage 设置存储组件
func WithcompStorage(s *storage.Storage) ComponentOpt {
	return func(c *Components) {
		c.Storage = s
	}
}

// ----- 设置选项 -----

// WithsetWeights 设置评分权重
func WithsetWeights(w types.ScoreWeights) SettingOpt {
	return func(s *Settings) {
		s.Weights = w
	}
}

// WithsetParallelism 设置批处理并发度，<=1时顺序处理
func WithsetParallelism(n int) SettingOpt {
	return func(s *Settings) {
		s.Parallelism = n
	}
}

// WithsetParserversion 设置解析器版本标记
func WithsetParserversion(v string) SettingOpt {
	return func(s *Settings) {
		s.ParserVersion = v
	}
}

// WithsetDebug 设置调试模式
func WithsetDebug(debug bool) SettingOpt {
	return func(s *Settings) {
		s.Debug = debug
	}
}

// WithsetLogger 设置日志记录器
func WithsetLogger(logger *log.Logger) SettingOpt {
	return func(s *Settings) {
		if logger != nil {
			s.Logger = logger
		} else {
			// 提供一个 discard logger 以防万一
			s.Logger = log.New(io.Discard, "", 0)
		}
	}
}

// ----- 日志包装方法 -----

// logDebug 记录调试级别日志
func (p *Pipeline) logDebug(format string, args ...interface{}) {
	if p.Settings.Debug && p.Settings.Logger != nil {
		p.Settings.Logger.Printf(format, args...)
	}
}

// logInfo 记录信息级别日志
func (p *Pipeline) logInfo(format string, args ...interface{}) {
	if p.Settings.Logger != nil {
		p.Settings.Logger.Printf(format, args...)
	}
}

// logWarn 记录警告级别日志
func (p *Pipeline) logWarn(format string, args ...interface{}) {
	if p.Settings.Logger != nil {
		p.Settings.Logger.Printf("[WARN] "+format, args...)
	}
}
