package models

import "time"

// EventModel is an event extracted by the offline scraping pipeline.
// This service only reads events; writes happen out of process.
type EventModel struct {
	Base
	Title                 string      `json:"title"                  gorm:"not null"`
	Summary               string      `json:"summary"                gorm:"type:longtext"`
	StartDate             time.Time   `json:"start_date"             gorm:"index;not null"`
	VenueName             string      `json:"venue_name"`
	LocationNeighbourhood string      `json:"location_neighbourhood" gorm:"index"`
	LocationBorough       string      `json:"location_borough"`
	VibesTags             StringArray `json:"vibes_tags"             gorm:"type:longtext"`
	EventTypes            StringArray `json:"event_types"            gorm:"type:longtext"`
	TargetAudiences       StringArray `json:"target_audiences"       gorm:"type:longtext"`
	EventURL              string      `json:"event_url"`
	BookingURL            string      `json:"booking_url"`
	CostAmount            *float64    `json:"cost_amount"`
	IsRecurring           bool        `json:"is_recurring" gorm:"default:false"`
}

func (EventModel) TableName() string { return "events" }
