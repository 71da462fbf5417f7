package auth

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sidestreets/core/internal/pkg/jwt"
	"github.com/sidestreets/core/internal/pkg/response"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

type LoginDTO struct {
	Password string `json:"password" binding:"required"`
}

// Handler issues admin tokens. There is a single operator account whose
// bcrypt password hash comes from configuration; an empty hash disables
// login entirely.
type Handler struct {
	passwordHash string
}

func NewHandler(passwordHash string) *Handler {
	return &Handler{passwordHash: passwordHash}
}

func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/auth/login", h.login)
}

// POST /api/auth/login
func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "password is required")
		return
	}

	if h.passwordHash == "" {
		response.Unauthorized(c)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(dto.Password)); err != nil {
		response.Unauthorized(c)
		return
	}

	token, err := jwt.Sign("admin", tokenTTL)
	if err != nil {
		response.InternalError(c, "could not issue token")
		return
	}
	response.Data(c, gin.H{
		"token":      token,
		"expires_in": int(tokenTTL.Seconds()),
	})
}
