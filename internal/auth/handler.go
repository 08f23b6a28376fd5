package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/models"
	"github.com/leadflow/crm/pkg/response"
	"github.com/leadflow/crm/pkg/utils"
)

// Store is the persistence the auth handler needs. *Repository implements it.
type Store interface {
	CreateIdentity(ctx context.Context, p NewIdentity) (*models.User, *models.Profile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// SignupRequest is the body for POST /auth/signup. Signups always create organizers.
type SignupRequest struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest is the body for POST /auth/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// SignupResponse adds the provisioned organization to TokenResponse.
type SignupResponse struct {
	TokenResponse
	Organization models.Profile `json:"organization"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	store  Store
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(store Store, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, jwt: jwt, logger: logger}
}

// Signup handles POST /auth/signup.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := apperr.Struct(req); err != nil {
		if ve, ok := apperr.AsValidation(err); ok {
			response.ValidationFailed(c, ve.Fields)
			return
		}
		response.BadRequest(c, err.Error())
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, profile, err := h.store.CreateIdentity(c.Request.Context(), NewIdentity{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         models.RoleOrganizer,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			response.Conflict(c, "username or email already registered")
			return
		}
		h.logger.Error("signup failed", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Username, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	h.logger.Info("organizer signed up", zap.String("user_id", user.ID.String()), zap.String("organization_id", profile.ID.String()))
	response.Created(c, SignupResponse{
		TokenResponse: TokenResponse{Token: token, User: user.ToPublic()},
		Organization:  *profile,
	})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := apperr.Struct(req); err != nil {
		response.BadRequest(c, "username and password required")
		return
	}

	user, err := h.store.GetByUsername(c.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			h.logger.Error("login lookup failed", zap.Error(err))
		}
		response.Unauthorized(c, "invalid username or password")
		return
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid username or password")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Username, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	user, err := h.store.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.Unauthorized(c, "account no longer exists")
			return
		}
		response.Internal(c, "failed to load user")
		return
	}
	response.OK(c, user.ToPublic())
}

// DeleteAccount handles DELETE /auth/account. Everything the identity owns is removed with it.
func (h *Handler) DeleteAccount(c *gin.Context) {
	userID, ok := UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	if err := h.store.Delete(c.Request.Context(), userID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.NotFound(c, "not found")
			return
		}
		h.logger.Error("delete account failed", zap.Error(err))
		response.Internal(c, "failed to delete account")
		return
	}
	h.logger.Info("account deleted", zap.String("user_id", userID.String()))
	response.NoContent(c)
}

// ChangePassword handles POST /auth/password. Agents use it to replace the temporary password from their invite.
func (h *Handler) ChangePassword(c *gin.Context) {
	userID, ok := UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := apperr.Struct(req); err != nil {
		if ve, ok := apperr.AsValidation(err); ok {
			response.ValidationFailed(c, ve.Fields)
			return
		}
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.store.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.Unauthorized(c, "account no longer exists")
			return
		}
		response.Internal(c, "failed to load user")
		return
	}
	if !utils.CheckPassword(req.CurrentPassword, user.Password) {
		response.ValidationFailed(c, map[string]string{"current_password": "your old password was entered incorrectly"})
		return
	}
	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	if err := h.store.SetPassword(c.Request.Context(), userID, hash); err != nil {
		h.logger.Error("change password failed", zap.Error(err))
		response.Internal(c, "failed to change password")
		return
	}
	response.NoContent(c)
}
