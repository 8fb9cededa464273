package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecurrenceRule_Validate(t *testing.T) {
	tests := []struct {
		name string
		rule RecurrenceRule
		want error
	}{
		{"OK", RecurrenceRule{Title: "AZPL", DayOfWeek: 4, Time: "18:00"}, nil},
		{"NoTitle", RecurrenceRule{DayOfWeek: 4, Time: "18:00"}, ErrRuleTitle},
		{"DayTooLow", RecurrenceRule{Title: "X", DayOfWeek: -1, Time: "18:00"}, ErrRuleDayOfWeek},
		{"DayTooHigh", RecurrenceRule{Title: "X", DayOfWeek: 7, Time: "18:00"}, ErrRuleDayOfWeek},
		{"HourOutOfRange", RecurrenceRule{Title: "X", DayOfWeek: 1, Time: "24:00"}, ErrRuleTime},
		{"NotAClock", RecurrenceRule{Title: "X", DayOfWeek: 1, Time: "6pm"}, ErrRuleTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRecurrenceRule_Clock(t *testing.T) {
	h, m, err := RecurrenceRule{Time: "09:05"}.Clock()
	assert.NoError(t, err)
	assert.Equal(t, 9, h)
	assert.Equal(t, 5, m)

	assert.Equal(t, time.Saturday, RecurrenceRule{DayOfWeek: 6}.Weekday())
}

func TestSourceEntry_HasStart(t *testing.T) {
	assert.False(t, SourceEntry{}.HasStart())
	assert.True(t, SourceEntry{Start: time.Unix(0, 1)}.HasStart())
}
