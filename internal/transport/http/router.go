package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"forexjoey/internal/agent"
	"forexjoey/internal/logger"
	"forexjoey/internal/market"
	"forexjoey/internal/report"
	"forexjoey/internal/signal"
	"forexjoey/internal/transport/ws"
)

// 中文说明：
// HTTP API。路径里的货币对用 6 位裸写法（EURUSD），请求体里两种写法都收。

// Router 注册分析/信号/绩效路由。
type Router struct {
	svc *agent.Service
	hub *ws.Hub
}

func NewRouter(svc *agent.Service, hub *ws.Hub) *Router {
	return &Router{svc: svc, hub: hub}
}

// Register 挂载全部路由。
func (r *Router) Register(engine *gin.Engine) {
	if engine == nil {
		return
	}
	api := engine.Group("/api/v1")
	api.POST("/analysis", r.handleAnalyze)
	api.GET("/signals", r.handleListSignals)
	api.GET("/signals/:id", r.handleGetSignal)
	api.POST("/signals/:id/outcome", r.handleOutcome)
	api.GET("/performance/:pair/:timeframe", r.handlePerformance)
	api.GET("/performance/:pair/:timeframe/chart", r.handlePerformanceChart)

	if r.hub != nil {
		engine.GET("/ws", func(c *gin.Context) {
			r.hub.HandleUpgrade(c.Writer, c.Request)
		})
	}
}

func (r *Router) handleAnalyze(c *gin.Context) {
	var req agent.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	res, err := r.svc.Analyze(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, market.ErrInvalidPairFormat) {
			status = http.StatusBadRequest
		}
		logger.Errorf("[api] analysis failed: %v", err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleListSignals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	pair := c.Query("pair")
	if pair != "" {
		p, err := market.ParsePair(pair)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		pair = p.String()
	}
	signals, err := r.svc.Store.ListSignals(c.Request.Context(), pair, limit)
	if err != nil {
		logger.Errorf("[api] list signals failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals})
}

func (r *Router) handleGetSignal(c *gin.Context) {
	sig, outcome, err := r.svc.Store.GetSignal(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, signal.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "信号不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signal": sig, "outcome": outcome})
}

type outcomeRequest struct {
	ExitPrice float64 `json:"exit_price" binding:"required"`
}

func (r *Router) handleOutcome(c *gin.Context) {
	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	res, err := r.svc.CloseSignal(c.Request.Context(), c.Param("id"), req.ExitPrice)
	if err != nil {
		switch {
		case errors.Is(err, signal.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "信号不存在"})
		case errors.Is(err, signal.ErrAlreadyClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "信号已平仓"})
		default:
			logger.Errorf("[api] close signal failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handlePerformance(c *gin.Context) {
	bucket, err := r.svc.Performance(c.Param("pair"), c.Param("timeframe"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, market.ErrInvalidPairFormat) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bucket)
}

func (r *Router) handlePerformanceChart(c *gin.Context) {
	bucket, err := r.svc.Performance(c.Param("pair"), c.Param("timeframe"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, market.ErrInvalidPairFormat) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderPerformancePage(c.Writer, bucket); err != nil {
		logger.Errorf("[api] render performance chart failed: %v", err)
	}
}
