package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/aihub/knowledge-go/internal/services"
)

// knowledgeService 由启动时注入，beego每个请求新建controller实例
var knowledgeService *services.KnowledgeService

// SetKnowledgeService 注入知识库服务实例
func SetKnowledgeService(svc *services.KnowledgeService) {
	knowledgeService = svc
}

// KnowledgeController 知识库REST接口
type KnowledgeController struct {
	BaseController
}

// GET /api/v1/knowledge-bases
func (c *KnowledgeController) List() {
	bases, err := knowledgeService.ListKnowledgeBases(c.Ctx.Request.Context())
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"knowledge_bases": bases,
		"total":           len(bases),
	})
}

// GET /api/v1/knowledge-bases/:id
func (c *KnowledgeController) Get() {
	kb, err := knowledgeService.GetKnowledgeBase(c.Ctx.Request.Context(), c.Ctx.Input.Param(":id"))
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(kb)
}

// POST /api/v1/knowledge-bases
func (c *KnowledgeController) Create() {
	var req services.CreateKnowledgeBaseRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSONError(http.StatusBadRequest, err.Error())
		return
	}

	kb, err := knowledgeService.CreateKnowledgeBase(c.Ctx.Request.Context(), req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(kb)
}

// PUT /api/v1/knowledge-bases/:id
func (c *KnowledgeController) Update() {
	var req services.UpdateKnowledgeBaseRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	kb, err := knowledgeService.UpdateKnowledgeBase(c.Ctx.Request.Context(), c.Ctx.Input.Param(":id"), req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(kb)
}

// DELETE /api/v1/knowledge-bases/:id
func (c *KnowledgeController) Delete() {
	if err := knowledgeService.DeleteKnowledgeBase(c.Ctx.Request.Context(), c.Ctx.Input.Param(":id")); err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"deleted": true})
}

// addDocumentRequest 文档入库请求体
type addDocumentRequest struct {
	Content  string `json:"content" validate:"required"`
	Source   string `json:"source"`
	FileName string `json:"file_name"`
}

// POST /api/v1/knowledge-bases/:id/documents
func (c *KnowledgeController) AddDocument() {
	var req addDocumentRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSONError(http.StatusBadRequest, err.Error())
		return
	}

	chunks, err := knowledgeService.AddDocument(
		c.Ctx.Request.Context(),
		c.Ctx.Input.Param(":id"),
		req.Content,
		services.SourceMeta{Source: req.Source, FileName: req.FileName},
	)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	degraded := 0
	for _, chunk := range chunks {
		if chunk.Degraded {
			degraded++
		}
	}
	c.JSONSuccess(map[string]interface{}{
		"chunks_added": len(chunks),
		"degraded":     degraded,
	})
}

// POST /api/v1/knowledge-bases/:id/search
func (c *KnowledgeController) Search() {
	var req services.SearchRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}
	req.KnowledgeBaseID = c.Ctx.Input.Param(":id")
	if err := validate.Struct(req); err != nil {
		c.JSONError(http.StatusBadRequest, err.Error())
		return
	}

	results, err := knowledgeService.Search(c.Ctx.Request.Context(), req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"results": results,
		"total":   len(results),
	})
}

// DELETE /api/v1/knowledge-bases/:id/chunks/:chunkID
func (c *KnowledgeController) DeleteChunk() {
	deleted, err := knowledgeService.DeleteChunk(
		c.Ctx.Request.Context(),
		c.Ctx.Input.Param(":id"),
		c.Ctx.Input.Param(":chunkID"),
	)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"deleted": deleted})
}
