// Package router 注册简历服务的HTTP路由
package router

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"hr-agent-go/internal/api/handler"
	"hr-agent-go/internal/processor"
	"hr-agent-go/internal/storage"
	"hr-agent-go/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

// RegisterRoutes 注册 API 路由
// apiKey 非空时，写操作路由启用 keyauth 鉴权
func RegisterRoutes(h *server.Hertz, resumeHandler *handler.ResumeHandler, apiKey string) {
	api := h.Group("/api/v1")

	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	// 只读路由
	api.GET("/resumes", func(c context.Context, ctx *app.RequestContext) {
		page := queryInt(ctx, "page", 1)
		size := queryInt(ctx, "size", 20)
		resp, err := resumeHandler.ListResumes(c, page, size)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.GET("/resumes/search", func(c context.Context, ctx *app.RequestContext) {
		keyword := ctx.Query("keyword")
		page := queryInt(ctx, "page", 1)
		size := queryInt(ctx, "size", 20)
		resp, err := resumeHandler.SearchResumes(c, keyword, page, size)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.GET("/resumes/:uuid", func(c context.Context, ctx *app.RequestContext) {
		resume, err := resumeHandler.GetResume(c, ctx.Param("uuid"))
		if err != nil {
			writeLookupError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, resume)
	})

	api.GET("/resumes/:uuid/file-url", func(c context.Context, ctx *app.RequestContext) {
		url, err := resumeHandler.GetResumeFileURL(c, ctx.Param("uuid"))
		if err != nil {
			writeLookupError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"url": url, "expires_in_seconds": int((15 * time.Minute).Seconds())})
	})

	api.GET("/resumes/:uuid/text", func(c context.Context, ctx *app.RequestContext) {
		text, err := resumeHandler.GetRecognizedText(c, ctx.Param("uuid"))
		if err != nil {
			writeLookupError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"text": text})
	})

	api.GET("/candidates/:id", func(c context.Context, ctx *app.RequestContext) {
		candidate, err := resumeHandler.GetCandidate(c, ctx.Param("id"))
		if err != nil {
			writeLookupError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, candidate)
	})

	api.GET("/candidates/:id/interviews", func(c context.Context, ctx *app.RequestContext) {
		interviews, err := resumeHandler.ListInterviews(c, ctx.Param("id"))
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"interviews": interviews})
	})

	api.GET("/candidates/:id/communications", func(c context.Context, ctx *app.RequestContext) {
		comms, err := resumeHandler.ListCommunications(c, ctx.Param("id"))
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"communications": comms})
	})

	api.GET("/ocr/usage", func(c context.Context, ctx *app.RequestContext) {
		usage, err := resumeHandler.GetOCRUsage(c)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, usage)
	})

	api.GET("/scoring-templates", func(c context.Context, ctx *app.RequestContext) {
		templates, err := resumeHandler.ListScoringTemplates(c)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"templates": templates})
	})

	api.GET("/scoring-templates/:id", func(c context.Context, ctx *app.RequestContext) {
		tpl, err := resumeHandler.GetScoringTemplate(c, ctx.Param("id"))
		if err != nil {
			writeLookupError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, tpl)
	})

	// 写操作路由，配置了api key时启用鉴权
	mutating := api.Group("/")
	if apiKey != "" {
		mutating.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
			keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
				return key == apiKey, nil
			}),
		))
	}

	mutating.POST("/resumes/upload", func(c context.Context, ctx *app.RequestContext) {
		form, err := ctx.MultipartForm()
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "解析multipart表单失败"})
			return
		}
		fileHeaders := form.File["files"]
		if len(fileHeaders) == 0 {
			// 兼容单文件字段名
			if fh, err := ctx.FormFile("file"); err == nil {
				fileHeaders = append(fileHeaders, fh)
			}
		}
		if len(fileHeaders) == 0 {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
			return
		}

		var files []processor.BatchFile
		for _, fh := range fileHeaders {
			f, err := fh.Open()
			if err != nil {
				ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败: " + fh.Filename})
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取文件失败: " + fh.Filename})
				return
			}
			files = append(files, processor.BatchFile{FileName: fh.Filename, Data: data})
		}

		resp, err := resumeHandler.HandleUpload(c, files)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	mutating.DELETE("/candidates/:id", func(c context.Context, ctx *app.RequestContext) {
		if err := resumeHandler.DeleteCandidate(c, ctx.Param("id")); err != nil {
			writeLookupError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"deleted": true})
	})

	mutating.POST("/candidates/:id/interviews", func(c context.Context, ctx *app.RequestContext) {
		var interview models.Interview
		if err := ctx.BindJSON(&interview); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
			return
		}
		interview.CandidateID = ctx.Param("id")
		if err := resumeHandler.CreateInterview(c, &interview); err != nil {
			writeLookupError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, interview)
	})

	mutating.POST("/candidates/:id/communications", func(c context.Context, ctx *app.RequestContext) {
		var comm models.Communication
		if err := ctx.BindJSON(&comm); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
			return
		}
		comm.CandidateID = ctx.Param("id")
		if err := resumeHandler.CreateCommunication(c, &comm); err != nil {
			writeLookupError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, comm)
	})

	mutating.PUT("/scoring-templates/:id", func(c context.Context, ctx *app.RequestContext) {
		var tpl models.ScoringTemplate
		if err := ctx.BindJSON(&tpl); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
			return
		}
		tpl.TemplateID = ctx.Param("id")
		if err := resumeHandler.UpsertScoringTemplate(c, &tpl); err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, tpl)
	})
}

// writeLookupError 把存储层的NotFound错误映射为404，其余为500
func writeLookupError(ctx *app.RequestContext, err error) {
	if errors.Is(err, storage.ErrResumeNotFound) ||
		errors.Is(err, storage.ErrCandidateNotFound) ||
		errors.Is(err, storage.ErrTemplateNotFound) {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
}

func queryInt(ctx *app.RequestContext, key string, def int) int {
	v := ctx.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
