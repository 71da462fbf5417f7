package subscription

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sidestreets/core/internal/middleware"
	"github.com/sidestreets/core/internal/pkg/pagination"
	"github.com/sidestreets/core/internal/pkg/response"
)

type Handler struct {
	svc      *Service
	admin    *AdminService
	siteName string
}

func NewHandler(svc *Service, admin *AdminService, siteName string) *Handler {
	return &Handler{svc: svc, admin: admin, siteName: siteName}
}

// RegisterRoutes mounts the JSON API under api and the browser-facing
// token pages under pages (the site root).
func (h *Handler) RegisterRoutes(api, pages *gin.RouterGroup, limitMW, authMW gin.HandlerFunc) {
	api.POST("/subscribe", limitMW, h.subscribe)

	a := api.Group("/subscribers", authMW)
	a.GET("", h.list)
	a.DELETE("/:email", h.remove)

	pages.GET("/confirm", h.confirmPage)
	pages.GET("/unsubscribe", h.unsubscribePage)
}

// POST /api/subscribe
func (h *Handler) subscribe(c *gin.Context) {
	var dto SubmitDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	if details := dto.Validate(); len(details) > 0 {
		response.ValidationFailed(c, details)
		return
	}

	// Honeypot hit: answer like a success and do nothing, so the bot
	// cannot tell it was caught.
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
	case errors.Is(err, ErrDelivery):
		response.InternalError(c, "could not send confirmation email, please try again")
	default:
		response.InternalError(c, "could not process subscription, please try again")
	}
}

// GET /api/subscribers?page=&size=&confirmed=
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)

	var confirmedFilter *bool
	switch c.Query("confirmed") {
	case "true":
		v := true
		confirmedFilter = &v
	case "false":
		v := false
		confirmedFilter = &v
	}

	items, pag, err := h.admin.List(q, confirmedFilter)
	if err != nil {
		response.InternalError(c, "could not list subscribers")
		return
	}
	response.Paged(c, items, pag)
}

// DELETE /api/subscribers/:email
func (h *Handler) remove(c *gin.Context) {
	deleted, err := h.admin.Delete(c.Param("email"))
	if err != nil {
		response.InternalError(c, "could not delete subscriber")
		return
	}
	if !deleted {
		response.NotFound(c)
		return
	}
	response.OK(c)
}

// GET /confirm?email=&token=
func (h *Handler) confirmPage(c *gin.Context) {
	status := h.svc.Confirm(c.Query("email"), c.Query("token"))
	h.renderStatus(c, status, confirmCopy)
}

// GET /unsubscribe?token=
func (h *Handler) unsubscribePage(c *gin.Context) {
	status := h.svc.Unsubscribe(c.Query("token"))
	h.renderStatus(c, status, unsubscribeCopy)
}

type statusCopy struct {
	Title   string
	Message string
}

var confirmCopy = map[Status]statusCopy{
	StatusSuccess:          {"You're in!", "Your email is confirmed. Your first picks are on the way."},
	StatusAlreadyConfirmed: {"Already confirmed", "This email was confirmed earlier. Nothing more to do."},
	StatusInvalid:          {"Link not recognised", "This confirmation link is invalid or has expired. Try subscribing again to get a fresh one."},
	StatusError:            {"Something went wrong", "We couldn't confirm your email just now. Please try the link again in a minute."},
}

var unsubscribeCopy = map[Status]statusCopy{
	StatusSuccess:         {"You're unsubscribed", "Sorry to see you go. You won't hear from us again."},
	StatusAlreadyUnsubbed: {"Already unsubscribed", "This email was already unsubscribed. You won't receive anything further."},
	StatusInvalid:         {"Link not recognised", "This unsubscribe link is invalid."},
	StatusError:           {"Something went wrong", "We couldn't process your unsubscribe just now. Please try the link again in a minute."},
}

var statusPageTpl = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width,initial-scale=1">
  <title>{{.Title}} · {{.SiteName}}</title>
  <style>
    body{font-family:sans-serif;background:#f5f5f5;margin:0;padding:40px 20px}
    .card{max-width:480px;margin:0 auto;background:#fff;border-radius:8px;padding:32px;text-align:center}
    h1{font-size:22px;color:#333}
    p{color:#666;line-height:1.5}
  </style>
</head>
<body>
  <div class="card" data-status="{{.Status}}">
    <h1>{{.Title}}</h1>
    <p>{{.Message}}</p>
  </div>
</body>
</html>
`))

func (h *Handler) renderStatus(c *gin.Context, status Status, texts map[Status]statusCopy) {
	text, ok := texts[status]
	if !ok {
		text = texts[StatusError]
	}

	code := http.StatusOK
	if status == StatusInvalid {
		code = http.StatusBadRequest
	} else if status == StatusError {
		code = http.StatusInternalServerError
	}

	// Render to a buffer first so a template failure yields a clean
	// plain-text error instead of a truncated page.
	var buf bytes.Buffer
	err := statusPageTpl.Execute(&buf, gin.H{
		"SiteName": h.siteName,
		"Status":   string(status),
		"Title":    text.Title,
		"Message":  text.Message,
	})
	if err != nil {
		c.String(http.StatusInternalServerError, "something went wrong")
		return
	}
	c.Data(code, "text/html; charset=utf-8", buf.Bytes())
}
