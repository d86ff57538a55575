package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/vrushab-bit/mini-shop/middleware"
	"github.com/vrushab-bit/mini-shop/product-service/models"
	"github.com/vrushab-bit/mini-shop/product-service/store"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ProductHandler struct {
	store  *store.Store
	logger *zap.Logger
}

func NewProductHandler(s *store.Store, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{store: s, logger: logger}
}

func (h *ProductHandler) Register(r gin.IRouter) {
	r.GET("/products", h.GetProducts)
	r.GET("/products/:id", h.GetProduct)
	r.POST("/products", h.CreateProduct)
	r.PUT("/products/:id", h.UpdateProduct)
	r.DELETE("/products/:id", h.DeleteProduct)
}

func productID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return 0, false
	}
	return id, true
}

func (h *ProductHandler) GetProducts(c *gin.Context) {
	ctx, span := otel.Tracer("product-service").Start(c.Request.Context(), "GetProducts")
	defer span.End()

	products, err := h.store.List(ctx)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch products", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int("products.count", len(products)))
	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("product-service").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id, ok := productID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("product.id", id))

	product, err := h.store.Get(ctx, id)
	if err != nil {
		h.writeError(c, span.RecordError, err, "Failed to fetch product")
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("product-service").Start(c.Request.Context(), "CreateProduct")
	defer span.End()

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.store.Create(ctx, req)
	if err != nil {
		h.writeError(c, span.RecordError, err, "Failed to create product")
		return
	}

	span.SetAttributes(attribute.Int64("product.id", product.ID))
	h.logger.Info("Product created", zap.Int64("product_id", product.ID))
	c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("product-service").Start(c.Request.Context(), "UpdateProduct")
	defer span.End()

	id, ok := productID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("product.id", id))

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	product, err := h.store.Update(ctx, id, req)
	if err != nil {
		h.writeError(c, span.RecordError, err, "Failed to update product")
		return
	}

	h.logger.Info("Product updated", zap.Int64("product_id", id))
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	ctx, span := otel.Tracer("product-service").Start(c.Request.Context(), "DeleteProduct")
	defer span.End()

	id, ok := productID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("product.id", id))

	if err := h.store.Delete(ctx, id); err != nil {
		h.writeError(c, span.RecordError, err, "Failed to delete product")
		return
	}

	h.logger.Info("Product deleted", zap.Int64("product_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

func (h *ProductHandler) writeError(c *gin.Context, record func(error, ...trace.EventOption), err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	case errors.Is(err, store.ErrInvalidName), errors.Is(err, store.ErrNegativePrice), errors.Is(err, store.ErrPriceTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
	default:
		record(err)
		h.logger.Error(msg, zap.String("trace_id", middleware.GetTraceID(c.Request.Context())), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
