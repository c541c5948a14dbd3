package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hr-agent-go/internal/api/handler"
	"hr-agent-go/internal/api/router"
	"hr-agent-go/internal/config"
	appCoreLogger "hr-agent-go/internal/logger"
	"hr-agent-go/internal/ocr"
	"hr-agent-go/internal/outbox"
	"hr-agent-go/internal/parser"
	"hr-agent-go/internal/processor"
	"hr-agent-go/internal/rasterizer"
	"hr-agent-go/internal/scorer"
	"hr-agent-go/internal/storage"
	"hr-agent-go/internal/tracing"
	"hr-agent-go/pkg/agent"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

var serviceName = "hr-agent-go" //nolint:gochecknoglobals

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	initLogger(cfg)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 链路追踪
	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.InitTracerProvider(ctx, tracing.Config{
			ServiceName:  serviceName,
			OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
			SampleRatio:  cfg.Tracing.SampleRatio,
		})
		if err != nil {
			glog.Warnf("初始化链路追踪失败，将在无追踪模式下运行: %v", err)
		} else {
			defer func() {
				shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
				defer c()
				if err := shutdownTracing(shutdownCtx); err != nil {
					glog.Warnf("关闭TracerProvider失败: %v", err)
				}
			}()
			glog.Info("链路追踪初始化成功")
		}
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	// 消息中继：把outbox表的归档事件发布到RabbitMQ
	var messageRelay *outbox.MessageRelay
	if storageManager.MySQL != nil && storageManager.RabbitMQ != nil {
		relayLogger := log.New(appCoreLogger.Logger, "[MessageRelay] ", log.LstdFlags|log.Lshortfile)
		messageRelay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ, relayLogger)
		messageRelay.Start()
		glog.Info("消息中继服务已启动")
	} else {
		glog.Warn("MySQL或RabbitMQ不可用，消息中继未启动")
	}

	// 消费归档事件：目前仅记录日志，后续可在这里接通知渠道
	if storageManager.RabbitMQ != nil {
		_, err := storageManager.RabbitMQ.StartConsumer(cfg.RabbitMQ.CommittedQueue, cfg.RabbitMQ.PrefetchCount, func(data []byte) bool {
			var event storage.CandidateCommittedEvent
			if err := json.Unmarshal(data, &event); err != nil {
				glog.Warnf("解析归档事件失败: %v", err)
				return false
			}
			glog.Infof("候选人归档: %s (uuid=%s, 文件=%s, 总分=%d)",
				event.CandidateName, event.SubmissionUUID, event.FileName, event.TotalScore)
			return true
		})
		if err != nil {
			glog.Warnf("启动归档事件消费者失败: %v", err)
		}
	}

	pipeline, quota, err := buildPipeline(ctx, cfg, storageManager)
	if err != nil {
		glog.Fatalf("初始化处理流水线失败: %v", err)
	}
	glog.Info("处理流水线初始化成功")

	resumeHandler := handler.NewResumeHandler(cfg, storageManager, pipeline, quota)
	if storageManager.MySQL != nil {
		if err := resumeHandler.SeedPresetTemplates(ctx); err != nil {
			glog.Warnf("写入内置评分模板失败: %v", err)
		}
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, resumeHandler, cfg.Server.APIKey)
	glog.Info("HTTP路由注册成功")

	go func() {
		glog.Infof("HTTP服务器启动中，监听地址: %s", cfg.Server.Address)
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	if messageRelay != nil {
		messageRelay.Stop()
		glog.Info("消息中继服务已停止")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化zerolog并接管Hertz的全局日志
func initLogger(cfg *config.Config) {
	appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	appCoreLogger.Logger = appCoreLogger.Logger.With().
		Str("app", serviceName).
		Logger()

	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	if cfg.Logger.Level == "debug" {
		glog.SetLevel(glog.LevelDebug)
	} else {
		glog.SetLevel(glog.LevelInfo)
	}
}

// buildPipeline 按配置组装流水线的全部组件
func buildPipeline(ctx context.Context, cfg *config.Config, storageManager *storage.Storage) (*processor.Pipeline, ocr.QuotaStore, error) {
	// 配额存储：Redis可用时用Redis，否则退回内存实现
	var quota ocr.QuotaStore
	if storageManager.Redis != nil {
		quota = storage.NewRedisQuotaStore(storageManager.Redis, cfg.OCR.QuotaMax)
		glog.Info("使用Redis配额存储")
	} else {
		quota = ocr.NewMemoryQuotaStore(cfg.OCR.QuotaMax)
		glog.Warn("Redis不可用，OCR配额退回内存存储，重启后清零")
	}

	ocrClient, err := ocr.NewClient(cfg.OCR.APIURL, cfg.OCR.AppCode, quota,
		ocr.WithTimeout(time.Duration(cfg.OCR.TimeoutSeconds)*time.Second),
	)
	if err != nil {
		return nil, nil, err
	}

	raster := rasterizer.New(
		rasterizer.WithScale(cfg.Rasterizer.Scale),
		rasterizer.WithMaxPages(cfg.Rasterizer.MaxPages),
	)

	// PDF文本层快速通道，初始化失败时仅降级不阻断
	var textLayer processor.TextLayerExtractor
	if tl, err := parser.NewTextLayerExtractor(ctx); err != nil {
		glog.Warnf("初始化PDF文本层抽取器失败，全部文件将走OCR: %v", err)
	} else {
		textLayer = tl
	}

	// 字段抽取：配置了Ark密钥时LLM优先、正则兜底，否则纯正则
	var extractor processor.FieldExtractor
	patternExtractor := parser.NewPatternExtractor()
	if cfg.Ark.APIKey != "" {
		arkModel, err := agent.NewDoubaoArkChatModel(cfg.Ark.APIKey, cfg.Ark.Model, cfg.Ark.BaseURL,
			agent.WithTemperature(cfg.Ark.Temperature),
			agent.WithMaxTokens(cfg.Ark.MaxTokens),
		)
		if err != nil {
			glog.Warnf("初始化豆包模型失败，退回正则抽取: %v", err)
			extractor = patternExtractor
		} else {
			llmExtractor := parser.NewLLMExtractor(arkModel,
				parser.WithMaxInputChars(cfg.Ark.MaxInputChars),
				parser.WithCallTimeout(time.Duration(cfg.Ark.TimeoutSeconds)*time.Second),
			)
			extractor = parser.NewFallbackExtractor(llmExtractor, patternExtractor)
			glog.Info("使用LLM抽取器，正则兜底")
		}
	} else {
		extractor = patternExtractor
		glog.Info("未配置ARK_API_KEY，使用正则抽取器")
	}

	var scorerOpts []scorer.Option
	if cfg.Scorer.UniversityBonus {
		scorerOpts = append(scorerOpts, scorer.WithUniversityBonus())
	}
	candidateScorer := scorer.New(scorerOpts...)

	// 权重解析：优先启用的模板，其次配置权重
	weights := cfg.Scorer.Weights
	if cfg.Scorer.ActiveTemplateID != "" {
		if tpl, ok := scorer.TemplateByID(cfg.Scorer.ActiveTemplateID); ok {
			weights = tpl.Weights
			glog.Infof("启用评分模板: %s (%s)", tpl.ID, tpl.Name)
		} else {
			glog.Warnf("评分模板 %s 不存在，使用配置权重", cfg.Scorer.ActiveTemplateID)
		}
	}

	pipelineLogger := log.New(appCoreLogger.Logger, "[Pipeline] ", log.LstdFlags|log.Lshortfile)
	pipeline := processor.NewPipeline(
		&processor.Components{
			Rasterizer: raster,
			Recognizer: ocrClient,
			TextLayer:  textLayer,
			Extractor:  extractor,
			Scorer:     candidateScorer,
			Storage:    storageManager,
		},
		&processor.Settings{
			Weights:       weights,
			ParserVersion: cfg.ActiveParserVersion,
			Parallelism:   cfg.BatchParallelism,
			Debug:         cfg.Logger.Level == "debug",
			Logger:        pipelineLogger,
		},
	)
	return pipeline, quota, nil
}
