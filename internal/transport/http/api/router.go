// Package apihttp 暴露账本与决策日志的只读 HTTP 接口。
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"magpie/internal/engine"
	"magpie/internal/ledger"
	"magpie/internal/logger"
	"magpie/internal/store/journal"

	"github.com/gin-gonic/gin"
)

// PositionReader 读取账本快照。
type PositionReader interface {
	Positions() ledger.Document
	Position(id string) ledger.Position
}

// RunReader 读取决策日志。
type RunReader interface {
	LatestRun(ctx context.Context) (journal.Run, []journal.Entry, error)
	History(ctx context.Context, code string, limit int) ([]journal.Entry, error)
}

// SummaryReader 返回进程内最近一轮结果，日志库未启用时使用。
type SummaryReader interface {
	Last() (engine.Summary, bool)
}

// Router 注册 /api 下的查询接口。
type Router struct {
	positions PositionReader
	runs      RunReader
	summaries SummaryReader
}

func NewRouter(positions PositionReader, runs RunReader, summaries SummaryReader) *Router {
	return &Router{positions: positions, runs: runs, summaries: summaries}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/positions", r.handlePositions)
	group.GET("/positions/:code", r.handlePosition)
	group.GET("/runs/latest", r.handleLatestRun)
}

type positionView struct {
	Code string `json:"code"`
	ledger.Position
}

func (r *Router) handlePositions(c *gin.Context) {
	doc := r.positions.Positions()
	out := make([]positionView, 0, len(doc))
	for code, pos := range doc {
		out = append(out, positionView{Code: code, Position: pos})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	c.JSON(http.StatusOK, gin.H{"positions": out})
}

func (r *Router) handlePosition(c *gin.Context) {
	code := c.Param("code")
	if _, ok := r.positions.Positions()[code]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "position not found"})
		return
	}
	resp := gin.H{"code": code, "position": r.positions.Position(code)}
	if r.runs != nil {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
		hist, err := r.runs.History(c.Request.Context(), code, limit)
		if err != nil {
			logger.Warnf("HTTP 查询 %s 决策历史失败: %v", code, err)
		} else {
			resp["decisions"] = hist
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleLatestRun(c *gin.Context) {
	if r.runs != nil {
		run, entries, err := r.runs.LatestRun(c.Request.Context())
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"run": run, "decisions": entries})
			return
		case !errors.Is(err, journal.ErrNoRuns):
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if r.summaries != nil {
		if s, ok := r.summaries.Last(); ok {
			c.JSON(http.StatusOK, gin.H{"summary": s})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "no runs yet"})
}
