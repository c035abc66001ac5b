package sharing

import (
	"time"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
)

// ExpirySelector is the owner-facing choice of how long a link lives.
type ExpirySelector string

const (
	ExpiryOneHour   ExpirySelector = "1-hour"
	ExpirySixHours  ExpirySelector = "6-hours"
	ExpiryOneDay    ExpirySelector = "1-day"
	ExpiryOneWeek   ExpirySelector = "1-week"
	ExpiryCustom    ExpirySelector = "custom"
	ExpiryPermanent ExpirySelector = "permanent"
)

// ExpiryUnit is the unit of a custom expiry magnitude.
type ExpiryUnit string

const (
	UnitMinutes ExpiryUnit = "minutes"
	UnitHours   ExpiryUnit = "hours"
	UnitDays    ExpiryUnit = "days"
	UnitWeeks   ExpiryUnit = "weeks"
)

const (
	// MaxCustomMagnitude bounds custom expiries, whatever the unit.
	MaxCustomMagnitude = 8760

	permanentYears = 10
)

// ExpirySelection is a selector plus, for ExpiryCustom, a magnitude and unit.
type ExpirySelection struct {
	Selector  ExpirySelector
	Magnitude int
	Unit      ExpiryUnit
}

// Validate rejects custom selections with a non-positive or oversized
// magnitude or an unknown unit. Other selectors are always valid.
func (s ExpirySelection) Validate() error {
	if s.Selector != ExpiryCustom {
		return nil
	}
	if s.Magnitude <= 0 {
		return invalid("custom_value", "must be a positive integer, got %d", s.Magnitude)
	}
	if s.Magnitude > MaxCustomMagnitude {
		return invalid("custom_value", "must be at most %d, got %d", MaxCustomMagnitude, s.Magnitude)
	}
	switch s.Unit {
	case UnitMinutes, UnitHours, UnitDays, UnitWeeks:
		return nil
	default:
		return invalid("custom_unit", "must be one of minutes, hours, days, weeks, got %q", s.Unit)
	}
}

// Type classifies the selection for the link record.
func (s ExpirySelection) Type() models.ExpiryType {
	switch s.Selector {
	case ExpiryPermanent:
		return models.ExpiryPermanent
	case ExpiryCustom:
		return models.ExpiryCustom
	default:
		return models.ExpiryPredefined
	}
}

// ExpiresAt computes the absolute expiry of a link issued at issuedAt.
// Unknown or empty selectors fall back to one hour. Permanent links get a
// ten year horizon so redemption only ever compares timestamps.
func ExpiresAt(sel ExpirySelection, issuedAt time.Time) (time.Time, error) {
	if err := sel.Validate(); err != nil {
		return time.Time{}, err
	}

	switch sel.Selector {
	case ExpiryPermanent:
		return issuedAt.AddDate(permanentYears, 0, 0), nil
	case ExpiryCustom:
		n := sel.Magnitude
		switch sel.Unit {
		case UnitMinutes:
			return issuedAt.Add(time.Duration(n) * time.Minute), nil
		case UnitHours:
			return issuedAt.Add(time.Duration(n) * time.Hour), nil
		case UnitDays:
			return issuedAt.AddDate(0, 0, n), nil
		default:
			return issuedAt.AddDate(0, 0, 7*n), nil
		}
	case ExpirySixHours:
		return issuedAt.Add(6 * time.Hour), nil
	case ExpiryOneDay:
		return issuedAt.AddDate(0, 0, 1), nil
	case ExpiryOneWeek:
		return issuedAt.AddDate(0, 0, 7), nil
	default:
		return issuedAt.Add(time.Hour), nil
	}
}
