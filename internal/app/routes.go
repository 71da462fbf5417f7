package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sidestreets/core/internal/middleware"
	"github.com/sidestreets/core/internal/modules/auth"
	"github.com/sidestreets/core/internal/modules/contact"
	"github.com/sidestreets/core/internal/modules/events"
	"github.com/sidestreets/core/internal/modules/health"
	"github.com/sidestreets/core/internal/modules/subscription"
	"github.com/sidestreets/core/internal/pkg/captcha"
	"github.com/sidestreets/core/internal/pkg/mail"
	pkgredis "github.com/sidestreets/core/internal/pkg/redis"
	"github.com/sidestreets/core/internal/pkg/response"
)

const rateLimitWindow = 10 * time.Minute

func (a *App) registerRoutes(rc *pkgredis.Client) {
	r := a.router
	cfg := a.cfg

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	mailer := mail.New(mail.Config{
		Enable:    cfg.Mail.Enable,
		Provider:  cfg.Mail.Provider,
		From:      cfg.SenderAddress(),
		ReplyTo:   cfg.Mail.ReplyTo,
		SMTPHost:  cfg.Mail.SMTP.Host,
		SMTPPort:  cfg.Mail.SMTP.Port,
		SMTPUser:  cfg.Mail.SMTP.User,
		SMTPPass:  cfg.Mail.SMTP.Pass,
		ResendKey: cfg.Mail.Resend.APIKey,
	})
	verifier := captcha.NewTurnstile(cfg.Turnstile.Secret)
	authMW := middleware.Auth()

	subscribeLimit := middleware.RateLimit(rc, middleware.RateLimitOptions{
		Prefix: "subscribe", Max: 5, Window: rateLimitWindow,
	})
	contactLimit := middleware.RateLimit(rc, middleware.RateLimitOptions{
		Prefix: "contact", Max: 3, Window: rateLimitWindow,
	})

	api := r.Group("/api")
	pages := r.Group("")

	subSvc := subscription.NewService(
		subscription.NewRepo(a.db), verifier, mailer,
		cfg.Site.BaseURL, cfg.Site.Name, a.logger,
	)
	subscription.NewHandler(subSvc, subscription.NewAdminService(a.db), cfg.Site.Name).
		RegisterRoutes(api, pages, subscribeLimit, authMW)

	contactSvc := contact.NewService(verifier, mailer, cfg.Mail.ContactTo, a.logger)
	contact.NewHandler(contactSvc).RegisterRoutes(api, contactLimit)

	events.NewHandler(events.NewService(a.db)).RegisterRoutes(api, authMW)

	auth.NewHandler(cfg.Admin.PasswordHash).RegisterRoutes(api)

	health.NewHandler(a.db, rc).RegisterRoutes(api)
}
