package contact

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sidestreets/core/internal/middleware"
	"github.com/sidestreets/core/internal/modules/subscription"
	"github.com/sidestreets/core/internal/pkg/captcha"
	"github.com/sidestreets/core/internal/pkg/mail"
	"github.com/sidestreets/core/internal/pkg/response"
	"go.uber.org/zap"
)

const maxMessageLength = 5000

// SubmitDTO is the contact form payload. Website is the honeypot.
type SubmitDTO struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
	CFToken string `json:"cfToken"`
	Website string `json:"website"`
}

// Validate normalizes the DTO in place and returns the first error per
// field, keyed by the JSON field name.
func (dto *SubmitDTO) Validate() map[string]string {
	details := make(map[string]string)

	dto.Name = strings.TrimSpace(dto.Name)
	dto.Email = strings.ToLower(strings.TrimSpace(dto.Email))
	dto.Message = strings.TrimSpace(dto.Message)

	if dto.Email == "" {
		details["email"] = "email is required"
	} else if !subscription.ValidEmail(dto.Email) {
		details["email"] = "not a valid email address"
	}

	if dto.Message == "" {
		details["message"] = "message is required"
	} else if len(dto.Message) > maxMessageLength {
		details["message"] = "message is too long"
	}

	if strings.TrimSpace(dto.CFToken) == "" {
		details["cfToken"] = "captcha token is required"
	}

	return details
}

var (
	ErrCaptchaFailed = errors.New("captcha verification failed")
	ErrDelivery      = errors.New("could not relay message")
)

// RelayMailer forwards a contact message to the site inbox.
type RelayMailer interface {
	SendContactRelay(to string, data mail.ContactData) error
}

type Service struct {
	verifier captcha.Verifier
	mailer   RelayMailer
	inbox    string
	log      *zap.Logger
}

func NewService(verifier captcha.Verifier, mailer RelayMailer, inbox string, log *zap.Logger) *Service {
	return &Service{verifier: verifier, mailer: mailer, inbox: inbox, log: log}
}

// Submit verifies the captcha then relays the message to the inbox.
func (s *Service) Submit(ctx context.Context, dto *SubmitDTO, clientIP string) error {
	if err := s.verifier.Verify(ctx, dto.CFToken, clientIP); err != nil {
		s.log.Info("captcha rejected", zap.String("email", dto.Email), zap.Error(err))
		return ErrCaptchaFailed
	}

	if err := s.mailer.SendContactRelay(s.inbox, mail.ContactData{
		Name:    dto.Name,
		Email:   dto.Email,
		Message: dto.Message,
	}); err != nil {
		s.log.Error("contact relay failed", zap.String("email", dto.Email), zap.Error(err))
		return ErrDelivery
	}
	return nil
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(api *gin.RouterGroup, limitMW gin.HandlerFunc) {
	api.POST("/contact", limitMW, h.submit)
}

// POST /api/contact
func (h *Handler) submit(c *gin.Context) {
	var dto SubmitDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	if details := dto.Validate(); len(details) > 0 {
		response.ValidationFailed(c, details)
		return
	}

	if dto.Website != "" {
		response.OK(c)
		return
	}

	err := h.svc.Submit(c.Request.Context(), &dto, middleware.ClientIP(c))
	switch {
	case err == nil:
		response.OK(c)
	case errors.Is(err, ErrCaptchaFailed):
		response.BadRequest(c, "captcha verification failed")
	default:
		response.InternalError(c, "could not send your message, please try again")
	}
}
