package v1

import (
	"github.com/gin-gonic/gin"
)

// LineItemRouteHandler defines the line item endpoints.
type LineItemRouteHandler interface {
	Get(c *gin.Context)
	Assignments(c *gin.Context)
	History(c *gin.Context)
	AssignTechnicians(c *gin.Context)
	AssignSales(c *gin.Context)
	SetStatus(c *gin.Context)
	Start(c *gin.Context)
	Complete(c *gin.Context)
}

// OrderRouteHandler defines the order endpoints.
type OrderRouteHandler interface {
	Evaluate(c *gin.Context)
	Completion(c *gin.Context)
	RecordCommissions(c *gin.Context)
	ListCommissions(c *gin.Context)
}

// RegisterLineItemRoutes wires line item routes under rg.
func RegisterLineItemRoutes(rg *gin.RouterGroup, h LineItemRouteHandler) {
	rg.GET("/:id", h.Get)
	rg.GET("/:id/assignments", h.Assignments)
	rg.GET("/:id/history", h.History)
	rg.PATCH("/:id/assign", h.AssignTechnicians)
	rg.PATCH("/:id/assign-sale", h.AssignSales)
	rg.PATCH("/:id/status", h.SetStatus)
	rg.PATCH("/:id/start", h.Start)
	rg.PATCH("/:id/complete", h.Complete)
}

// RegisterOrderRoutes wires order routes under rg.
func RegisterOrderRoutes(rg *gin.RouterGroup, h OrderRouteHandler) {
	rg.POST("/:id/evaluate", h.Evaluate)
	rg.GET("/:id/completion", h.Completion)
	rg.POST("/:id/commissions", h.RecordCommissions)
	rg.GET("/:id/commissions", h.ListCommissions)
}
