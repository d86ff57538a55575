package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vrushab-bit/mini-shop/proto/user"
	"github.com/vrushab-bit/mini-shop/user-service/models"
	"github.com/vrushab-bit/mini-shop/user-service/repository"

	"github.com/gin-gonic/gin/binding"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type UserGRPCServer struct {
	user.UnimplementedUserServiceServer
	repo   *repository.UserRepository
	logger *zap.Logger
}

func NewUserGRPCServer(repo *repository.UserRepository, logger *zap.Logger) *UserGRPCServer {
	return &UserGRPCServer{repo: repo, logger: logger}
}

func (s *UserGRPCServer) GetUser(ctx context.Context, req *user.GetUserRequest) (*user.UserResponse, error) {
	if req.UserId <= 0 {
		return nil, status.Error(codes.InvalidArgument, "user_id must be positive")
	}

	u, err := s.repo.Get(ctx, req.UserId)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, status.Errorf(codes.NotFound, "user %d not found", req.UserId)
	}
	if err != nil {
		s.logger.Error("Failed to fetch user", zap.Int64("user_id", req.UserId), zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return toUserResponse(u), nil
}

func (s *UserGRPCServer) GetUsers(ctx context.Context, _ *user.GetUsersRequest) (*user.UsersResponse, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch users", zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}

	return &user.UsersResponse{
		Users: lo.Map(users, func(u models.User, _ int) *user.UserResponse { return toUserResponse(u) }),
	}, nil
}

func (s *UserGRPCServer) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.UserResponse, error) {
	name := strings.TrimSpace(req.Name)
	in := models.CreateUserRequest{Name: name, Email: req.Email}
	if err := binding.Validator.ValidateStruct(&in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	u, err := s.repo.Create(ctx, name, req.Email)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, status.Error(codes.AlreadyExists, "user already exists")
	}
	if err != nil {
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}

	s.logger.Info("User created via gRPC", zap.Int64("user_id", u.ID))
	return toUserResponse(u), nil
}

// UpdateUser changes the non-empty fields of req.
func (s *UserGRPCServer) UpdateUser(ctx context.Context, req *user.UpdateUserRequest) (*user.UserResponse, error) {
	if req.UserId <= 0 {
		return nil, status.Error(codes.InvalidArgument, "user_id must be positive")
	}

	var in models.UpdateUserRequest
	if name := strings.TrimSpace(req.Name); name != "" {
		in.Name = &name
	}
	if req.Email != "" {
		in.Email = &req.Email
	}
	if err := binding.Validator.ValidateStruct(&in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	u, err := s.repo.Update(ctx, req.UserId, in)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, status.Errorf(codes.NotFound, "user %d not found", req.UserId)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return nil, status.Error(codes.AlreadyExists, "email already exists")
	case err != nil:
		s.logger.Error("Failed to update user", zap.Int64("user_id", req.UserId), zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}

	s.logger.Info("User updated via gRPC", zap.Int64("user_id", u.ID))
	return toUserResponse(u), nil
}

func (s *UserGRPCServer) DeleteUser(ctx context.Context, req *user.DeleteUserRequest) (*user.DeleteUserResponse, error) {
	if req.UserId <= 0 {
		return nil, status.Error(codes.InvalidArgument, "user_id must be positive")
	}

	err := s.repo.Delete(ctx, req.UserId)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, status.Errorf(codes.NotFound, "user %d not found", req.UserId)
	}
	if err != nil {
		s.logger.Error("Failed to delete user", zap.Int64("user_id", req.UserId), zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}

	s.logger.Info("User deleted via gRPC", zap.Int64("user_id", req.UserId))
	return &user.DeleteUserResponse{Success: true, Message: "User deleted successfully"}, nil
}

func toUserResponse(u models.User) *user.UserResponse {
	return &user.UserResponse{
		Id:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}
