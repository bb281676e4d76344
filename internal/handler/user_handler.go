package handler

import (
	"net/http"
	"time"

	"socialprofiles/backend/internal/accounts"
	"socialprofiles/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// region --- DTOs ---

// RegisterInput defines the structure for user registration.
type RegisterInput struct {
	Username  string `json:"username" binding:"required,max=150" example:"testuser"`
	Email     string `json:"email" binding:"required,email" example:"test@example.com"`
	Password  string `json:"password" binding:"required,min=8" example:"password123"`
	FirstName string `json:"first_name" binding:"max=200" example:"Test"`
	LastName  string `json:"last_name" binding:"max=200" example:"User"`
}

// LoginInput defines the structure for user login.
type LoginInput struct {
	Login    string `json:"login" binding:"required" example:"testuser"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// TokenResponse is returned after a successful registration or login.
type TokenResponse struct {
	Token   string           `json:"token"`
	Profile *ProfileResponse `json:"profile,omitempty"`
}

// endregion

// AuthHandler serves registration and login.
type AuthHandler struct {
	accounts *accounts.Service
	secret   string
	tokenTTL time.Duration
	logger   *zap.Logger
}

// NewAuthHandler creates an AuthHandler issuing tokens signed with secret.
func NewAuthHandler(svc *accounts.Service, secret string, tokenTTL time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: svc, secret: secret, tokenTTL: tokenTTL, logger: logger}
}

// RegisterUser godoc
// @Summary      Register a new user
// @Description  Creates a new user together with their profile and returns an authentication token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body RegisterInput true "Registration Info"
// @Success      201  {object}  TokenResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) RegisterUser(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, profile, err := h.accounts.Register(c.Request.Context(), accounts.RegisterInput{
		Username:  input.Username,
		Email:     input.Email,
		Password:  input.Password,
		FirstName: input.FirstName,
		LastName:  input.LastName,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	token, err := jwt.GenerateToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := newProfileResponse(*profile)
	c.JSON(http.StatusCreated, TokenResponse{Token: token, Profile: &resp})
}

// LoginUser godoc
// @Summary      Log in a user
// @Description  Authenticates a user with username/email and password, and returns a new token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body LoginInput true "Login Info"
// @Success      200  {object}  TokenResponse
// @Failure      400  {object}  ErrorResponse "Invalid input"
// @Failure      401  {object}  ErrorResponse "Invalid credentials"
// @Failure      404  {object}  ErrorResponse "User not found"
// @Failure      500  {object}  ErrorResponse "Internal server error"
// @Router       /auth/login [post]
func (h *AuthHandler) LoginUser(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.accounts.Authenticate(c.Request.Context(), input.Login, input.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	token, err := jwt.GenerateToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, TokenResponse{Token: token})
}
