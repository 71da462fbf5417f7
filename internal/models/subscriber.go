package models

// SubscriberModel is one newsletter subscriber, keyed by email.
//
// Confirmed and Unsubscribed are independent axes: a subscriber can be
// confirmed and later unsubscribed, and the unsubscribe link in old emails
// must keep working, so UnsubscribeToken is never rotated once issued.
// ConfirmToken is cleared on successful confirmation so the link cannot be
// replayed.
type SubscriberModel struct {
	Base
	Email            string      `json:"email"      gorm:"uniqueIndex;not null"`
	Postcode         string      `json:"postcode"   gorm:"not null"`
	Interests        StringArray `json:"interests"  gorm:"type:longtext"`
	Newsletter       string      `json:"newsletter" gorm:"default:''"`
	ConfirmToken     *string     `json:"-"          gorm:"index"`
	UnsubscribeToken string      `json:"-"          gorm:"uniqueIndex"`
	Confirmed        bool        `json:"confirmed"    gorm:"default:false"`
	Unsubscribed     bool        `json:"unsubscribed" gorm:"default:false"`
}

func (SubscriberModel) TableName() string { return "subscribers" }
