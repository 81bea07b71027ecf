package controllers

// HealthController 健康检查
type HealthController struct {
	BaseController
}

// GET /health
func (c *HealthController) Health() {
	c.JSONSuccess(map[string]interface{}{
		"status": "ok",
	})
}
