package subscription

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/sidestreets/core/internal/models"
	"github.com/sidestreets/core/internal/pkg/captcha"
	"github.com/sidestreets/core/internal/pkg/mail"
	"github.com/sidestreets/core/internal/pkg/pagination"
	"github.com/sidestreets/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Status is the outcome of a confirm or unsubscribe attempt. The token
// pages map each value onto its own copy so a repeat click reads
// differently from a bad link.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusAlreadyConfirmed Status = "already_confirmed"
	StatusAlreadyUnsubbed  Status = "already_unsubscribed"
	StatusInvalid          Status = "invalid"
	StatusError            Status = "error"
)

var (
	ErrCaptchaFailed = errors.New("captcha verification failed")
	ErrPersistence   = errors.New("could not store subscription")
	ErrDelivery      = errors.New("could not send confirmation email")
)

// Repo is the subscriber store as the service needs it. The GORM
// implementation backs production; tests swap in an in-memory fake.
type Repo interface {
	Upsert(sub *models.SubscriberModel) error
	MarkConfirmed(email, token string) (int64, error)
	IsConfirmed(email string) (bool, error)
	MarkUnsubscribed(token string) (int64, error)
	HasUnsubscribeToken(token string) (bool, error)
}

// ConfirmMailer sends the double-opt-in email.
type ConfirmMailer interface {
	SendConfirm(to, newsletter string, data mail.ConfirmData) error
}

type Service struct {
	repo     Repo
	verifier captcha.Verifier
	mailer   ConfirmMailer
	baseURL  string
	siteName string
	log      *zap.Logger
}

func NewService(repo Repo, verifier captcha.Verifier, mailer ConfirmMailer, baseURL, siteName string, log *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		verifier: verifier,
		mailer:   mailer,
		baseURL:  baseURL,
		siteName: siteName,
		log:      log,
	}
}

// Submit runs the post-validation half of a subscribe request: captcha,
// token minting, upsert, confirmation email. The DTO must already be
// validated and normalized.
//
// A re-submission for an existing email refreshes the profile fields and
// confirm token and drops back to unconfirmed, but the row's unsubscribe
// token survives so links in previously sent issues keep working.
func (s *Service) Submit(ctx context.Context, dto *SubmitDTO, clientIP string) error {
	if err := s.verifier.Verify(ctx, dto.CFToken, clientIP); err != nil {
		s.log.Info("captcha rejected", zap.String("email", dto.Email), zap.Error(err))
		return ErrCaptchaFailed
	}

	confirmToken, err := newToken()
	if err != nil {
		return fmt.Errorf("generate confirm token: %w", err)
	}
	unsubscribeToken, err := newToken()
	if err != nil {
		return fmt.Errorf("generate unsubscribe token: %w", err)
	}

	sub := &models.SubscriberModel{
		Email:            dto.Email,
		Postcode:         dto.Postcode,
		Interests:        models.StringArray(dto.Interests),
		Newsletter:       dto.Newsletter,
		ConfirmToken:     &confirmToken,
		UnsubscribeToken: unsubscribeToken,
		Confirmed:        false,
		Unsubscribed:     false,
	}
	if sub.Newsletter == "" {
		sub.Newsletter = mail.DefaultNewsletter
	}

	const maxUpsertRetries = 2
	for i := 0; i < maxUpsertRetries; i++ {
		err = s.repo.Upsert(sub)
		if err == nil {
			break
		}
		// A freshly minted unsubscribe token collided with an existing
		// row; mint another and retry.
		if isDuplicateTokenError(err) && i < maxUpsertRetries-1 {
			if unsubscribeToken, err = newToken(); err != nil {
				return fmt.Errorf("generate unsubscribe token: %w", err)
			}
			sub.UnsubscribeToken = unsubscribeToken
			continue
		}
		s.log.Error("subscriber upsert failed", zap.String("email", dto.Email), zap.Error(err))
		return ErrPersistence
	}

	if err := s.mailer.SendConfirm(dto.Email, sub.Newsletter, mail.ConfirmData{
		SiteName:   s.siteName,
		ConfirmURL: s.confirmURL(dto.Email, confirmToken),
		Interests:  dto.Interests,
	}); err != nil {
		// The row stays; the subscriber can retry and get a fresh token.
		s.log.Error("confirmation email failed", zap.String("email", dto.Email), zap.Error(err))
		return ErrDelivery
	}

	return nil
}

func (s *Service) confirmURL(email, token string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return s.baseURL + "/confirm?" + q.Encode()
}

// Confirm flips a subscriber to confirmed if the token matches. The
// update is a single compare-and-set so two concurrent clicks cannot
// both report success.
func (s *Service) Confirm(email, token string) Status {
	if email == "" || token == "" {
		return StatusInvalid
	}
	affected, err := s.repo.MarkConfirmed(email, token)
	if err != nil {
		s.log.Error("confirm update failed", zap.String("email", email), zap.Error(err))
		return StatusError
	}
	if affected > 0 {
		return StatusSuccess
	}
	// Nothing matched: either the token was already consumed by an
	// earlier confirm, or the link is bogus.
	confirmed, err := s.repo.IsConfirmed(email)
	if err != nil {
		s.log.Error("confirm lookup failed", zap.String("email", email), zap.Error(err))
		return StatusError
	}
	if confirmed {
		return StatusAlreadyConfirmed
	}
	return StatusInvalid
}

// Unsubscribe marks the owning subscriber as unsubscribed. The token is
// never rotated, so a second click lands on the already-unsubscribed
// branch instead of failing.
func (s *Service) Unsubscribe(token string) Status {
	if token == "" {
		return StatusInvalid
	}
	affected, err := s.repo.MarkUnsubscribed(token)
	if err != nil {
		s.log.Error("unsubscribe update failed", zap.Error(err))
		return StatusError
	}
	if affected > 0 {
		return StatusSuccess
	}
	exists, err := s.repo.HasUnsubscribeToken(token)
	if err != nil {
		s.log.Error("unsubscribe lookup failed", zap.Error(err))
		return StatusError
	}
	if exists {
		return StatusAlreadyUnsubbed
	}
	return StatusInvalid
}

func isDuplicateTokenError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062 &&
			strings.Contains(mysqlErr.Message, "unsubscribe_token")
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") && strings.Contains(msg, "unsubscribe_token")
}

// newToken returns 32 bytes of randomness as 64 hex characters.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// gormRepo is the production Repo backed by MySQL.
type gormRepo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) Repo { return &gormRepo{db: db} }

// subscriberUpsertClause resolves an email conflict by refreshing the
// profile and opt-in state. unsubscribe_token is deliberately absent
// from the update list: it is written once on first insert and kept for
// the row's lifetime.
func subscriberUpsertClause() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"postcode", "interests", "newsletter",
			"confirm_token", "confirmed", "unsubscribed", "updated_at",
		}),
	}
}

func (r *gormRepo) Upsert(sub *models.SubscriberModel) error {
	return r.db.Clauses(subscriberUpsertClause()).Create(sub).Error
}

func (r *gormRepo) MarkConfirmed(email, token string) (int64, error) {
	res := r.db.Model(&models.SubscriberModel{}).
		Where("email = ? AND confirm_token = ? AND confirmed = ?", email, token, false).
		Updates(map[string]interface{}{"confirmed": true, "confirm_token": nil})
	return res.RowsAffected, res.Error
}

func (r *gormRepo) IsConfirmed(email string) (bool, error) {
	var count int64
	err := r.db.Model(&models.SubscriberModel{}).
		Where("email = ? AND confirmed = ?", email, true).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepo) MarkUnsubscribed(token string) (int64, error) {
	res := r.db.Model(&models.SubscriberModel{}).
		Where("unsubscribe_token = ? AND unsubscribed = ?", token, false).
		Update("unsubscribed", true)
	return res.RowsAffected, res.Error
}

func (r *gormRepo) HasUnsubscribeToken(token string) (bool, error) {
	var count int64
	err := r.db.Model(&models.SubscriberModel{}).
		Where("unsubscribe_token = ?", token).
		Count(&count).Error
	return count > 0, err
}

// AdminService covers the operator-facing subscriber endpoints. It talks
// to GORM directly since nothing here needs mocking beyond the database.
type AdminService struct{ db *gorm.DB }

func NewAdminService(db *gorm.DB) *AdminService { return &AdminService{db: db} }

func (s *AdminService) List(q pagination.Query, confirmed *bool) ([]models.SubscriberModel, response.Pagination, error) {
	tx := s.db.Model(&models.SubscriberModel{}).Order("created_at DESC")
	if confirmed != nil {
		tx = tx.Where("confirmed = ?", *confirmed)
	}
	var items []models.SubscriberModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// Delete removes a subscriber outright. This is an operator action for
// GDPR-style erasure requests, so the row goes for real rather than
// being soft-deleted.
func (s *AdminService) Delete(email string) (bool, error) {
	res := s.db.Unscoped().Where("email = ?", email).Delete(&models.SubscriberModel{})
	return res.RowsAffected > 0, res.Error
}
