package models

import "time"

// Contest groups problems and controls whether they accept runs.
type Contest struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:255;not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	Active      bool       `gorm:"not null;default:true" json:"active"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Problems    []Problem  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"problems,omitempty"`
}

// IsRunning reports whether the contest is active and inside its time window.
func (c Contest) IsRunning(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.StartTime != nil && now.Before(*c.StartTime) {
		return false
	}
	if c.EndTime != nil && now.After(*c.EndTime) {
		return false
	}
	return true
}
