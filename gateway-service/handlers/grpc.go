// Package handlers serves the /api/grpc routes, which reach the user and
// product services over gRPC only.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/vrushab-bit/mini-shop/clients"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (clients.User, error)
	ListUsers(ctx context.Context) ([]clients.User, error)
	CreateUser(ctx context.Context, in clients.CreateUserInput) (clients.User, error)
}

type ProductCatalog interface {
	GetProduct(ctx context.Context, id int64) (clients.Product, error)
	ListProducts(ctx context.Context) ([]clients.Product, error)
	CreateProduct(ctx context.Context, in clients.CreateProductInput) (clients.Product, error)
}

type createUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

type createProductRequest struct {
	Name        string           `json:"name" binding:"required"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	Description string           `json:"description"`
}

type GRPCHandler struct {
	users    UserDirectory
	products ProductCatalog
	logger   *zap.Logger
}

func NewGRPCHandler(users UserDirectory, products ProductCatalog, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{users: users, products: products, logger: logger}
}

func (h *GRPCHandler) Register(r gin.IRouter) {
	g := r.Group("/api/grpc")
	g.GET("/users", h.ListUsers)
	g.GET("/users/:id", h.GetUser)
	g.POST("/users", h.CreateUser)
	g.GET("/products", h.ListProducts)
	g.GET("/products/:id", h.GetProduct)
	g.POST("/products", h.CreateProduct)
}

func (h *GRPCHandler) ListUsers(c *gin.Context) {
	ctx, span := otel.Tracer("gateway-service").Start(c.Request.Context(), "ListUsers_gRPC")
	defer span.End()

	users, err := h.users.ListUsers(ctx)
	if err != nil {
		span.RecordError(err)
		h.fail(c, "user", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *GRPCHandler) GetUser(c *gin.Context) {
	ctx, span := otel.Tracer("gateway-service").Start(c.Request.Context(), "GetUser_gRPC")
	defer span.End()

	id, ok := parseID(c, "Invalid user ID")
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("user.id", id))

	u, err := h.users.GetUser(ctx, id)
	if err != nil {
		span.RecordError(err)
		h.fail(c, "user", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *GRPCHandler) CreateUser(c *gin.Context) {
	ctx, span := otel.Tracer("gateway-service").Start(c.Request.Context(), "CreateUser_gRPC")
	defer span.End()

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.users.CreateUser(ctx, clients.CreateUserInput{Name: req.Name, Email: req.Email})
	if err != nil {
		span.RecordError(err)
		h.fail(c, "user", err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *GRPCHandler) ListProducts(c *gin.Context) {
	ctx, span := otel.Tracer("gateway-service").Start(c.Request.Context(), "ListProducts_gRPC")
	defer span.End()

	products, err := h.products.ListProducts(ctx)
	if err != nil {
		span.RecordError(err)
		h.fail(c, "product", err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *GRPCHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("gateway-service").Start(c.Request.Context(), "GetProduct_gRPC")
	defer span.End()

	id, ok := parseID(c, "Invalid product ID")
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("product.id", id))

	p, err := h.products.GetProduct(ctx, id)
	if err != nil {
		span.RecordError(err)
		h.fail(c, "product", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *GRPCHandler) CreateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("gateway-service").Start(c.Request.Context(), "CreateProduct_gRPC")
	defer span.End()

	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
		return
	}

	p, err := h.products.CreateProduct(ctx, clients.CreateProductInput{
		Name:        req.Name,
		Price:       *req.Price,
		Description: req.Description,
	})
	if err != nil {
		span.RecordError(err)
		h.fail(c, "product", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func parseID(c *gin.Context, msg string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return 0, false
	}
	return id, true
}

// fail maps a typed client outcome to a response. entity is "user" or
// "product".
func (h *GRPCHandler) fail(c *gin.Context, entity string, err error) {
	title := "User"
	if entity == "product" {
		title = "Product"
	}

	switch {
	case errors.Is(err, clients.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": title + " not found"})
	case errors.Is(err, clients.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": title + " already exists"})
	default:
		h.logger.Error("gRPC call failed",
			zap.String("entity", entity),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": title + " service unavailable"})
	}
}
