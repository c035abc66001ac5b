package sharing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/sharing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var issuedAt = time.Date(2026, time.January, 31, 12, 0, 0, 0, time.UTC)

func TestExpiresAt(t *testing.T) {
	tests := []struct {
		name string
		sel  sharing.ExpirySelection
		want time.Time
	}{
		{"one hour", sharing.ExpirySelection{Selector: sharing.ExpiryOneHour}, issuedAt.Add(time.Hour)},
		{"six hours", sharing.ExpirySelection{Selector: sharing.ExpirySixHours}, issuedAt.Add(6 * time.Hour)},
		{"one day", sharing.ExpirySelection{Selector: sharing.ExpiryOneDay}, issuedAt.AddDate(0, 0, 1)},
		{"one week", sharing.ExpirySelection{Selector: sharing.ExpiryOneWeek}, issuedAt.AddDate(0, 0, 7)},
		{"permanent", sharing.ExpirySelection{Selector: sharing.ExpiryPermanent}, issuedAt.AddDate(10, 0, 0)},
		{"empty selector", sharing.ExpirySelection{}, issuedAt.Add(time.Hour)},
		{"unknown selector", sharing.ExpirySelection{Selector: "fortnight"}, issuedAt.Add(time.Hour)},
		{"custom minutes", sharing.ExpirySelection{Selector: sharing.ExpiryCustom, Magnitude: 30, Unit: sharing.UnitMinutes}, issuedAt.Add(30 * time.Minute)},
		{"custom hours", sharing.ExpirySelection{Selector: sharing.ExpiryCustom, Magnitude: 48, Unit: sharing.UnitHours}, issuedAt.Add(48 * time.Hour)},
		{"custom days across month end", sharing.ExpirySelection{Selector: sharing.ExpiryCustom, Magnitude: 1, Unit: sharing.UnitDays}, time.Date(2026, time.February, 1, 12, 0, 0, 0, time.UTC)},
		{"custom weeks", sharing.ExpirySelection{Selector: sharing.ExpiryCustom, Magnitude: 2, Unit: sharing.UnitWeeks}, issuedAt.AddDate(0, 0, 14)},
		{"custom max magnitude", sharing.ExpirySelection{Selector: sharing.ExpiryCustom, Magnitude: sharing.MaxCustomMagnitude, Unit: sharing.UnitHours}, issuedAt.Add(8760 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sharing.ExpiresAt(tt.sel, issuedAt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.After(issuedAt), "expiry must be strictly after issuance")
		})
	}
}

func TestExpiresAtRejectsInvalidCustom(t *testing.T) {
	tests := []struct {
		name  string
		sel   sharing.ExpirySelection
		field string
	}{
		{"zero magnitude", sharing.ExpirySelection{Selector: sharing.ExpiryCustom, Magnitude: 0, Unit: sharing.UnitHours}, "custom_value"},
		{"negative magnitude", sharing.ExpirySelection{Selector: sharing.ExpiryCustom, Magnitude: -3, Unit: sharing.UnitDays}, "custom_value"},
		{"oversized magnitude", sharing.ExpirySelection{Selector: sharing.ExpiryCustom, Magnitude: sharing.MaxCustomMagnitude + 1, Unit: sharing.UnitMinutes}, "custom_value"},
		{"unknown unit", sharing.ExpirySelection{Selector: sharing.ExpiryCustom, Magnitude: 5, Unit: "months"}, "custom_unit"},
		{"missing unit", sharing.ExpirySelection{Selector: sharing.ExpiryCustom, Magnitude: 5}, "custom_unit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sharing.ExpiresAt(tt.sel, issuedAt)
			require.Error(t, err)
			assert.True(t, errors.Is(err, sharing.ErrValidation))

			var verr *sharing.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestExpirySelectionType(t *testing.T) {
	assert.Equal(t, models.ExpiryPermanent, sharing.ExpirySelection{Selector: sharing.ExpiryPermanent}.Type())
	assert.Equal(t, models.ExpiryCustom, sharing.ExpirySelection{Selector: sharing.ExpiryCustom}.Type())
	assert.Equal(t, models.ExpiryPredefined, sharing.ExpirySelection{Selector: sharing.ExpiryOneWeek}.Type())
	assert.Equal(t, models.ExpiryPredefined, sharing.ExpirySelection{}.Type())
}
