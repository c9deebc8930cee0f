package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/grocery-feed/app/cart"
	"github.com/lysyi3m/grocery-feed/app/catalog"
	"github.com/lysyi3m/grocery-feed/app/database"
	"github.com/lysyi3m/grocery-feed/app/feed"
	"github.com/lysyi3m/grocery-feed/app/source"
)

func NewHandler(engine FeedEngine, shoppingCart *cart.Cart, orders database.OrderRepository,
	products ProductCreator, catalogConfig *catalog.Config, version string) *Handler {
	return &Handler{
		engine:        engine,
		cart:          shoppingCart,
		orders:        orders,
		products:      products,
		catalogConfig: catalogConfig,
		version:       version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	state := h.engine.State()

	health := map[string]interface{}{
		"timestamp":  time.Now().In(time.Local).Format(time.RFC3339),
		"version":    h.version,
		"generation": state.Generation,
		"products":   state.Products,
		"cart_items": h.cart.Count(),
	}

	if orderCount, err := h.orders.GetOrderCount(c.Request.Context()); err == nil {
		health["orders"] = orderCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetCategories(c *gin.Context) {
	categories := make([]catalog.Category, 0, len(h.catalogConfig.Categories)+1)
	categories = append(categories, catalog.Category{Key: catalog.AllCategories, Name: "All"})
	categories = append(categories, h.catalogConfig.Categories...)

	c.JSON(http.StatusOK, map[string]interface{}{
		"categories": categories,
		"total":      len(categories),
	})
}

func (h *Handler) GetFeed(c *gin.Context) {
	visible, state := h.engine.View()

	c.JSON(http.StatusOK, feedResponse{
		Featured: visible.Featured,
		Products: visible.Products,
		State:    state,
	})
}

func (h *Handler) SetFilters(c *gin.Context) {
	var req filtersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	dispatch, err := h.engine.SetFilters(feed.Filters{
		Search:   req.Search,
		Category: req.Category,
		Sort:     catalog.SortKey(req.Sort),
	})
	if err != nil {
		h.respondEngineError(c, "set_filters", err)
		return
	}

	h.respondDispatch(c, dispatch)
}

func (h *Handler) ViewportNearEnd(c *gin.Context) {
	dispatch := h.engine.OnViewportNearEnd()
	if dispatch == nil {
		c.Status(http.StatusNoContent)
		return
	}

	h.respondDispatch(c, dispatch)
}

func (h *Handler) RequestNextPage(c *gin.Context) {
	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing generation"})
		return
	}

	dispatch, err := h.engine.RequestNextPage(req.Generation)
	if err != nil {
		h.respondEngineError(c, "request_next_page", err)
		return
	}

	h.respondDispatch(c, dispatch)
}

func (h *Handler) GetCart(c *gin.Context) {
	c.JSON(http.StatusOK, h.cartView())
}

func (h *Handler) AddToCart(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing product_id"})
		return
	}

	product, ok := h.engine.Product(req.ProductID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found in feed"})
		return
	}

	h.cart.Add(product)

	c.JSON(http.StatusOK, h.cartView())
}

func (h *Handler) Checkout(c *gin.Context) {
	ctx := c.Request.Context()

	order, err := h.cart.Checkout(func(order *cart.Order) error {
		return h.orders.SaveOrder(ctx, order)
	})
	if errors.Is(err, cart.ErrEmptyCart) {
		c.JSON(http.StatusConflict, gin.H{"error": "Cart is empty"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "save_order", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusCreated, newOrderResponse(order))
}

func (h *Handler) GetOrder(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing order id parameter"})
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_order", "order_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, newOrderResponse(order))
}

func (h *Handler) APICreateProduct(c *gin.Context) {
	var req catalog.NewProduct
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	product, err := h.products.CreateProduct(c.Request.Context(), req)
	if errors.Is(err, source.ErrInvalidProduct) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		slog.Error("Product submission failed", "name", req.Name, "error", err)

		body := gin.H{"error": "Feed source rejected the product"}
		var statusErr *source.StatusError
		if errors.As(err, &statusErr) {
			body["status"] = statusErr.StatusCode
		}
		c.JSON(http.StatusBadGateway, body)
		return
	}

	slog.Info("Product submitted", "id", product.ID, "name", product.Name, "category", product.Category)

	c.JSON(http.StatusCreated, product)
}

func (h *Handler) cartView() cartResponse {
	total := h.cart.Total()

	return cartResponse{
		Items:          h.cart.Items(),
		Count:          h.cart.Count(),
		Total:          total,
		FormattedTotal: cart.FormatAmount(total),
	}
}

// respondDispatch answers 202 with the dispatched page. With ?wait=true it
// blocks until the fetch resolves and answers 200 with the outcome.
func (h *Handler) respondDispatch(c *gin.Context, dispatch *feed.Dispatch) {
	body := gin.H{
		"generation": dispatch.Generation,
		"page":       dispatch.Page,
	}

	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, body)
		return
	}

	result, err := dispatch.Wait(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusAccepted, body)
		return
	}

	body["outcome"] = result.Outcome
	body["added"] = result.Added
	body["duplicates"] = result.Duplicates
	body["exhausted"] = result.Exhausted
	if result.Err != nil {
		body["error"] = result.Err.Error()
	}

	c.JSON(http.StatusOK, body)
}

func (h *Handler) respondEngineError(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, feed.ErrInvalidFilter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, feed.ErrStaleGeneration),
		errors.Is(err, feed.ErrInFlight),
		errors.Is(err, feed.ErrExhausted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": h.engine.State()})
	default:
		slog.Error("Feed engine error", "operation", operation, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	}
}
