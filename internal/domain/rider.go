package domain

import "time"

// daysPerYear accounts for leap years when deriving age.
const daysPerYear = 365.25

// Rider represents a person who books rides.
type Rider struct {
	ID            string
	Name          string
	Phone         string
	PhoneVerified bool
	DateOfBirth   *time.Time
	City          string
	CreatedAt     time.Time
}

// Age returns the rider's age in whole years, and false when date of birth is unknown.
func (r *Rider) Age(now time.Time) (int, bool) {
	if r.DateOfBirth == nil {
		return 0, false
	}
	years := now.Sub(*r.DateOfBirth).Hours() / 24 / daysPerYear
	return int(years), true
}
