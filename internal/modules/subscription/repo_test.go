package subscription

import (
	"testing"

	"github.com/sidestreets/core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// newDryRunDB opens a GORM handle that only builds SQL; the connection
// is never dialed.
func newDryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "test:test@tcp(127.0.0.1:3306)/test?charset=utf8mb4&parseTime=True&loc=Local",
		SkipInitializeWithVersion: true,
		DefaultStringSize:         191,
	}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db
}

// A re-submission for an existing email must refresh the profile and
// opt-in fields but never touch the unsubscribe token, so links in
// previously sent issues keep working.
func TestSubscriberUpsertClause(t *testing.T) {
	c := subscriberUpsertClause()

	require.Len(t, c.Columns, 1)
	assert.Equal(t, "email", c.Columns[0].Name)

	updated := make([]string, 0, len(c.DoUpdates))
	for _, a := range c.DoUpdates {
		updated = append(updated, a.Column.Name)
	}
	assert.ElementsMatch(t, []string{
		"postcode", "interests", "newsletter",
		"confirm_token", "confirmed", "unsubscribed", "updated_at",
	}, updated)
	assert.NotContains(t, updated, "unsubscribe_token")
}

func TestSubscriberUpsertSQL(t *testing.T) {
	db := newDryRunDB(t)

	token := "deadbeef"
	tx := db.Clauses(subscriberUpsertClause()).Create(&models.SubscriberModel{
		Email:            "jo@example.com",
		Postcode:         "SW1A1AA",
		Interests:        models.StringArray{"Art"},
		Newsletter:       "sidestreets",
		ConfirmToken:     &token,
		UnsubscribeToken: "cafebabe",
	})
	require.NoError(t, tx.Error)

	sql := tx.Statement.SQL.String()
	require.Contains(t, sql, "ON DUPLICATE KEY UPDATE")

	for _, col := range []string{"postcode", "interests", "newsletter", "confirm_token", "confirmed", "unsubscribed"} {
		assert.Contains(t, sql, "VALUES(`"+col+"`)")
	}
	assert.NotContains(t, sql, "VALUES(`unsubscribe_token`)")
}
