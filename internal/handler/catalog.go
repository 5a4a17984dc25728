package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pmcatalog/internal/service"
)

type CatalogHandler struct {
	Sync        *service.CatalogSyncService
	Query       *service.CatalogQueryService
	SyncOptions service.SyncOptions
	Logger      *zap.Logger
}

func (h *CatalogHandler) Register(r *gin.Engine) {
	group := r.Group("/api/polymarket")
	group.POST("/sync", h.runSync)
	group.GET("/events", h.listEvents)
	group.GET("/markets", h.listMarkets)
	group.GET("/price", h.getLivePrices)
	group.GET("/orderbook", h.getOrderbooks)
}

// @Summary Trigger a catalog reconciliation run
// @Tags polymarket
// @Success 200 {object} apiResponse
// @Router /api/polymarket/sync [post]
func (h *CatalogHandler) runSync(c *gin.Context) {
	if h.Sync == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	result, err := h.Sync.RunReconciliation(c.Request.Context(), h.SyncOptions)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("catalog sync failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

// @Summary List persisted events
// @Tags polymarket
// @Param date query string false "start date (YYYY-MM-DD)"
// @Param search query string false "match against title or slug"
// @Param page query int false "page number"
// @Param pageSize query int false "page size (max 200)"
// @Success 200 {object} apiResponse
// @Router /api/polymarket/events [get]
func (h *CatalogHandler) listEvents(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	page, err := h.Query.ListEvents(c.Request.Context(), service.ListEventsQuery{
		Date:     strings.TrimSpace(c.Query("date")),
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     intQuery(c, "page", 0),
		PageSize: intQuery(c, "pageSize", 0),
	})
	if err != nil {
		h.fail(c, "list events failed", err)
		return
	}
	Ok(c, page.Items, paginationMeta(page.Page, page.PageSize, page.Total))
}

// @Summary List persisted markets
// @Tags polymarket
// @Param date query string false "event start or market end date (YYYY-MM-DD)"
// @Param search query string false "match against question, title, slug or event title"
// @Param eventId query int false "restrict to one event"
// @Param page query int false "page number"
// @Param pageSize query int false "page size (max 200)"
// @Success 200 {object} apiResponse
// @Router /api/polymarket/markets [get]
func (h *CatalogHandler) listMarkets(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	page, err := h.Query.ListMarkets(c.Request.Context(), service.ListMarketsQuery{
		Date:     strings.TrimSpace(c.Query("date")),
		Search:   strings.TrimSpace(c.Query("search")),
		EventID:  uintQueryPtr(c, "eventId"),
		Page:     intQuery(c, "page", 0),
		PageSize: intQuery(c, "pageSize", 0),
	})
	if err != nil {
		h.fail(c, "list markets failed", err)
		return
	}
	Ok(c, page.Items, paginationMeta(page.Page, page.PageSize, page.Total))
}

// @Summary Get live prices for a token or the tokens of one or more markets
// @Tags polymarket
// @Param tokenId query string false "CLOB token id"
// @Param marketId query string false "market id, repeatable or comma-separated"
// @Param side query string false "buy|sell (default buy)"
// @Success 200 {object} apiResponse
// @Router /api/polymarket/price [get]
func (h *CatalogHandler) getLivePrices(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	result, err := h.Query.GetLivePrices(c.Request.Context(), service.LiveQuery{
		TokenID:   strings.TrimSpace(c.Query("tokenId")),
		MarketIDs: int64QueryList(c, "marketId"),
		Side:      c.Query("side"),
	})
	if err != nil {
		h.fail(c, "live prices failed", err)
		return
	}
	Ok(c, result, nil)
}

// @Summary Get order books for a token or the tokens of one or more markets
// @Tags polymarket
// @Param tokenId query string false "CLOB token id"
// @Param marketId query string false "market id, repeatable or comma-separated"
// @Success 200 {object} apiResponse
// @Router /api/polymarket/orderbook [get]
func (h *CatalogHandler) getOrderbooks(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	result, err := h.Query.GetOrderbooks(c.Request.Context(), service.LiveQuery{
		TokenID:   strings.TrimSpace(c.Query("tokenId")),
		MarketIDs: int64QueryList(c, "marketId"),
	})
	if err != nil {
		h.fail(c, "orderbooks failed", err)
		return
	}
	Ok(c, result, nil)
}

func (h *CatalogHandler) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrBadRequest):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	default:
		if h.Logger != nil {
			h.Logger.Warn(msg, zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func uintQueryPtr(c *gin.Context, key string) *uint {
	if val := c.Query(key); val != "" {
		if i, err := strconv.ParseUint(val, 10, 64); err == nil {
			out := uint(i)
			return &out
		}
	}
	return nil
}

// int64QueryList accepts both repeated keys and comma-separated values.
func int64QueryList(c *gin.Context, key string) []int64 {
	out := make([]int64, 0)
	for _, raw := range c.QueryArray(key) {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if v, err := strconv.ParseInt(part, 10, 64); err == nil {
				out = append(out, v)
			}
		}
	}
	return out
}
