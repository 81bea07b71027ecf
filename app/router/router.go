package router

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aihub/knowledge-go/app/controllers"
)

// Init 注册所有路由，必须在服务注入完成后调用
func Init() {
	web.Router("/health", &controllers.HealthController{}, "get:Health")
	web.Handler("/metrics", promhttp.Handler())

	kc := &controllers.KnowledgeController{}
	web.Router("/api/v1/knowledge-bases", kc, "get:List;post:Create")
	web.Router("/api/v1/knowledge-bases/:id", kc, "get:Get;put:Update;delete:Delete")
	web.Router("/api/v1/knowledge-bases/:id/documents", kc, "post:AddDocument")
	web.Router("/api/v1/knowledge-bases/:id/search", kc, "post:Search")
	web.Router("/api/v1/knowledge-bases/:id/chunks/:chunkID", kc, "delete:DeleteChunk")
}
