package flights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validCriteria() SearchCriteria {
	return SearchCriteria{
		Origin:        "CGK",
		Destination:   "DPS",
		DepartureDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Passengers:    2,
	}
}

// TestCriteriaValidate covers the structural checks that gate dispatch.
func TestCriteriaValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, validCriteria().Validate())

	tests := []struct {
		name   string
		mutate func(*SearchCriteria)
		field  string
	}{
		{
			name:   "empty origin",
			mutate: func(c *SearchCriteria) { c.Origin = "  " },
			field:  "origin",
		},
		{
			name:   "empty destination",
			mutate: func(c *SearchCriteria) { c.Destination = "" },
			field:  "destination",
		},
		{
			name:   "origin equals destination",
			mutate: func(c *SearchCriteria) { c.Destination = "cgk" },
			field:  "destination",
		},
		{
			name:   "zero departure date",
			mutate: func(c *SearchCriteria) { c.DepartureDate = time.Time{} },
			field:  "departure_date",
		},
		{
			name: "return before departure",
			mutate: func(c *SearchCriteria) {
				ret := c.DepartureDate.AddDate(0, 0, -1)
				c.ReturnDate = &ret
			},
			field: "return_date",
		},
		{
			name:   "zero passengers",
			mutate: func(c *SearchCriteria) { c.Passengers = 0 },
			field:  "passengers",
		},
		{
			name:   "too many passengers",
			mutate: func(c *SearchCriteria) { c.Passengers = 10 },
			field:  "passengers",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := validCriteria()
			tc.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Equal(t, tc.field, vErr.Field)
		})
	}
}

// TestCriteriaReturnDateSameDayAllowed verifies a same-day round trip passes
// validation.
func TestCriteriaReturnDateSameDayAllowed(t *testing.T) {
	t.Parallel()

	c := validCriteria()
	ret := c.DepartureDate
	c.ReturnDate = &ret
	require.NoError(t, c.Validate())
}
