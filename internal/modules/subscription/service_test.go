package subscription

import (
	"context"
	"errors"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/sidestreets/core/internal/models"
	"github.com/sidestreets/core/internal/pkg/captcha"
	"github.com/sidestreets/core/internal/pkg/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	upserted  []*models.SubscriberModel
	upsertErr error

	confirmAffected int64
	confirmErr      error
	isConfirmed     bool
	isConfirmedErr  error

	unsubAffected  int64
	unsubErr       error
	tokenExists    bool
	tokenExistsErr error
}

func (f *fakeRepo) Upsert(sub *models.SubscriberModel) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, sub)
	return nil
}

func (f *fakeRepo) MarkConfirmed(email, token string) (int64, error) {
	return f.confirmAffected, f.confirmErr
}

func (f *fakeRepo) IsConfirmed(email string) (bool, error) {
	return f.isConfirmed, f.isConfirmedErr
}

func (f *fakeRepo) MarkUnsubscribed(token string) (int64, error) {
	return f.unsubAffected, f.unsubErr
}

func (f *fakeRepo) HasUnsubscribeToken(token string) (bool, error) {
	return f.tokenExists, f.tokenExistsErr
}

type fakeVerifier struct{ err error }

func (f *fakeVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	return f.err
}

type sentConfirm struct {
	to         string
	newsletter string
	data       mail.ConfirmData
}

type fakeMailer struct {
	sent []sentConfirm
	err  error
}

func (f *fakeMailer) SendConfirm(to, newsletter string, data mail.ConfirmData) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentConfirm{to: to, newsletter: newsletter, data: data})
	return nil
}

// memRepo applies the same conflict semantics as the production upsert:
// one row per email, profile and opt-in fields refreshed, unsubscribe
// token kept from the first insert.
type memRepo struct {
	fakeRepo
	rows map[string]*models.SubscriberModel
}

func (r *memRepo) Upsert(sub *models.SubscriberModel) error {
	if r.rows == nil {
		r.rows = make(map[string]*models.SubscriberModel)
	}
	existing, ok := r.rows[sub.Email]
	if !ok {
		cp := *sub
		r.rows[sub.Email] = &cp
		return nil
	}
	existing.Postcode = sub.Postcode
	existing.Interests = sub.Interests
	existing.Newsletter = sub.Newsletter
	existing.ConfirmToken = sub.ConfirmToken
	existing.Confirmed = sub.Confirmed
	existing.Unsubscribed = sub.Unsubscribed
	return nil
}

// dupOnceRepo fails the first upsert with a MySQL duplicate-key error on
// the unsubscribe token index.
type dupOnceRepo struct {
	fakeRepo
	calls int
}

func (r *dupOnceRepo) Upsert(sub *models.SubscriberModel) error {
	r.calls++
	if r.calls == 1 {
		return &mysqlDriver.MySQLError{
			Number:  1062,
			Message: "Duplicate entry 'abc' for key 'subscribers.idx_subscribers_unsubscribe_token'",
		}
	}
	return r.fakeRepo.Upsert(sub)
}

func newTestService(repo Repo, verifier *fakeVerifier, mailer *fakeMailer) *Service {
	return NewService(repo, verifier, mailer, "https://sidestreets.example", "Sidestreets", zap.NewNop())
}

func validDTO() *SubmitDTO {
	return &SubmitDTO{
		Email:     "jo@example.com",
		Postcode:  "SW1A1AA",
		Interests: []string{"Art"},
		CFToken:   "tok",
	}
}

func TestSubmit(t *testing.T) {
	t.Run("happy path upserts and emails", func(t *testing.T) {
		repo := &fakeRepo{}
		mailer := &fakeMailer{}
		svc := newTestService(repo, &fakeVerifier{}, mailer)

		err := svc.Submit(context.Background(), validDTO(), "203.0.113.9")
		require.NoError(t, err)

		require.Len(t, repo.upserted, 1)
		sub := repo.upserted[0]
		assert.Equal(t, "jo@example.com", sub.Email)
		assert.False(t, sub.Confirmed)
		assert.False(t, sub.Unsubscribed)
		require.NotNil(t, sub.ConfirmToken)
		assert.Len(t, *sub.ConfirmToken, 64)
		assert.Len(t, sub.UnsubscribeToken, 64)
		assert.NotEqual(t, *sub.ConfirmToken, sub.UnsubscribeToken)
		assert.Equal(t, mail.DefaultNewsletter, sub.Newsletter)

		require.Len(t, mailer.sent, 1)
		assert.Equal(t, "jo@example.com", mailer.sent[0].to)
		assert.Contains(t, mailer.sent[0].data.ConfirmURL, "https://sidestreets.example/confirm?")
		assert.Contains(t, mailer.sent[0].data.ConfirmURL, "email=jo%40example.com")
		assert.Contains(t, mailer.sent[0].data.ConfirmURL, "token="+*sub.ConfirmToken)
	})

	t.Run("re-subscribe keeps one row and the old unsubscribe token", func(t *testing.T) {
		repo := &memRepo{}
		svc := newTestService(repo, &fakeVerifier{}, &fakeMailer{})

		first := validDTO()
		require.NoError(t, svc.Submit(context.Background(), first, "203.0.113.9"))
		require.Len(t, repo.rows, 1)
		row := repo.rows["jo@example.com"]
		firstUnsubToken := row.UnsubscribeToken
		firstConfirmToken := *row.ConfirmToken
		row.Confirmed = true
		row.ConfirmToken = nil

		second := validDTO()
		second.Interests = []string{"Comedy", "Markets"}
		require.NoError(t, svc.Submit(context.Background(), second, "203.0.113.9"))

		require.Len(t, repo.rows, 1)
		row = repo.rows["jo@example.com"]
		assert.Equal(t, models.StringArray{"Comedy", "Markets"}, row.Interests)
		assert.False(t, row.Confirmed)
		require.NotNil(t, row.ConfirmToken)
		assert.NotEqual(t, firstConfirmToken, *row.ConfirmToken)
		assert.Equal(t, firstUnsubToken, row.UnsubscribeToken)
	})

	t.Run("unsubscribe token collision retried with a fresh token", func(t *testing.T) {
		repo := &dupOnceRepo{}
		svc := newTestService(repo, &fakeVerifier{}, &fakeMailer{})

		err := svc.Submit(context.Background(), validDTO(), "203.0.113.9")
		require.NoError(t, err)
		assert.Equal(t, 2, repo.calls)
		require.Len(t, repo.upserted, 1)
		assert.Len(t, repo.upserted[0].UnsubscribeToken, 64)
	})

	t.Run("captcha failure stops before the store", func(t *testing.T) {
		repo := &fakeRepo{}
		mailer := &fakeMailer{}
		svc := newTestService(repo, &fakeVerifier{err: captcha.ErrVerificationFailed}, mailer)

		err := svc.Submit(context.Background(), validDTO(), "203.0.113.9")
		assert.ErrorIs(t, err, ErrCaptchaFailed)
		assert.Empty(t, repo.upserted)
		assert.Empty(t, mailer.sent)
	})

	t.Run("store failure surfaces as persistence error", func(t *testing.T) {
		repo := &fakeRepo{upsertErr: errors.New("db gone")}
		svc := newTestService(repo, &fakeVerifier{}, &fakeMailer{})

		err := svc.Submit(context.Background(), validDTO(), "203.0.113.9")
		assert.ErrorIs(t, err, ErrPersistence)
	})

	t.Run("send failure keeps the row and reports delivery error", func(t *testing.T) {
		repo := &fakeRepo{}
		mailer := &fakeMailer{err: errors.New("smtp refused")}
		svc := newTestService(repo, &fakeVerifier{}, mailer)

		err := svc.Submit(context.Background(), validDTO(), "203.0.113.9")
		assert.ErrorIs(t, err, ErrDelivery)
		assert.Len(t, repo.upserted, 1)
	})
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name string
		repo *fakeRepo
		want Status
	}{
		{"token matches", &fakeRepo{confirmAffected: 1}, StatusSuccess},
		{"token consumed earlier", &fakeRepo{isConfirmed: true}, StatusAlreadyConfirmed},
		{"unknown email or token", &fakeRepo{}, StatusInvalid},
		{"store error", &fakeRepo{confirmErr: errors.New("db gone")}, StatusError},
		{"lookup error after no-op update", &fakeRepo{isConfirmedErr: errors.New("db gone")}, StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(tt.repo, &fakeVerifier{}, &fakeMailer{})
			got := svc.Confirm("jo@example.com", "token123")
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("blank params are invalid without touching the store", func(t *testing.T) {
		svc := newTestService(&fakeRepo{confirmErr: errors.New("must not be called")}, &fakeVerifier{}, &fakeMailer{})
		assert.Equal(t, StatusInvalid, svc.Confirm("", "token"))
		assert.Equal(t, StatusInvalid, svc.Confirm("jo@example.com", ""))
	})
}

func TestUnsubscribe(t *testing.T) {
	tests := []struct {
		name string
		repo *fakeRepo
		want Status
	}{
		{"first click", &fakeRepo{unsubAffected: 1}, StatusSuccess},
		{"second click", &fakeRepo{tokenExists: true}, StatusAlreadyUnsubbed},
		{"unknown token", &fakeRepo{}, StatusInvalid},
		{"store error", &fakeRepo{unsubErr: errors.New("db gone")}, StatusError},
		{"lookup error after no-op update", &fakeRepo{tokenExistsErr: errors.New("db gone")}, StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(tt.repo, &fakeVerifier{}, &fakeMailer{})
			assert.Equal(t, tt.want, svc.Unsubscribe("token123"))
		})
	}
}
