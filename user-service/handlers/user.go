package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/vrushab-bit/mini-shop/middleware"
	"github.com/vrushab-bit/mini-shop/user-service/models"
	"github.com/vrushab-bit/mini-shop/user-service/repository"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type UserHandler struct {
	repo   *repository.UserRepository
	logger *zap.Logger
}

func NewUserHandler(repo *repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, logger: logger}
}

func (h *UserHandler) Register(r gin.IRouter) {
	r.GET("/users", h.GetUsers)
	r.GET("/users/:id", h.GetUser)
	r.POST("/users", h.CreateUser)
	r.PUT("/users/:id", h.UpdateUser)
	r.DELETE("/users/:id", h.DeleteUser)
}

func userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return 0, false
	}
	return id, true
}

func (h *UserHandler) GetUsers(c *gin.Context) {
	ctx, span := otel.Tracer("user-service").Start(c.Request.Context(), "GetUsers")
	defer span.End()

	users, err := h.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch users", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int("users.count", len(users)))
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	ctx, span := otel.Tracer("user-service").Start(c.Request.Context(), "GetUser")
	defer span.End()

	id, ok := userID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("user.id", id))

	user, err := h.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch user", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	ctx, span := otel.Tracer("user-service").Start(c.Request.Context(), "CreateUser")
	defer span.End()

	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	user, err := h.repo.Create(ctx, name, req.Email)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create user", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	h.logger.Info("User created", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Int64("user_id", user.ID))
	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	ctx, span := otel.Tracer("user-service").Start(c.Request.Context(), "UpdateUser")
	defer span.End()

	id, ok := userID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("user.id", id))

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
			return
		}
		req.Name = &name
	}

	user, err := h.repo.Update(ctx, id, req)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	case errors.Is(err, repository.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
		return
	case err != nil:
		span.RecordError(err)
		h.logger.Error("Failed to update user", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("User updated", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Int64("user_id", id))
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	ctx, span := otel.Tracer("user-service").Start(c.Request.Context(), "DeleteUser")
	defer span.End()

	id, ok := userID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("user.id", id))

	err := h.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to delete user", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("User deleted", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Int64("user_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
