package survey

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/fleetdocs/internal/domain"
)

func TestParseWindowRule(t *testing.T) {
	tests := []struct {
		in   string
		want WindowRule
	}{
		{"±3M", WindowRule{Label: "±3M", Before: 3, After: 3}},
		{"+/-6M", WindowRule{Label: "±6M", Before: 6, After: 6}},
		{"+-6M", WindowRule{Label: "±6M", Before: 6, After: 6}},
		{"-3M", WindowRule{Label: "-3M", Before: 3}},
		{"+3M", WindowRule{Label: "+3M", After: 3}},
		{"-3M/+6M", WindowRule{Label: "-3M/+6M", Before: 3, After: 6}},
		{"-3m +6m", WindowRule{Label: "-3M/+6M", Before: 3, After: 6}},
		{"+6M/-3M", WindowRule{Label: "-3M/+6M", Before: 3, After: 6}},
		{"3M", WindowRule{Label: "±3M", Before: 3, After: 3}},
		{" ±3M ", WindowRule{Label: "±3M", Before: 3, After: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseWindowRule(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseWindowRule_Rejects(t *testing.T) {
	for _, in := range []string{"", "annual", "3", "-3M/-6M", "±3M/+3M", "13M", "-3M/x"} {
		t.Run(in, func(t *testing.T) {
			_, ok := ParseWindowRule(in)
			assert.False(t, ok)
		})
	}
}

func TestParseWindowRules(t *testing.T) {
	rules, err := ParseWindowRules("ISSC=-3M/+3M, mlc = ±3M,,IOPP=-3M")
	require.NoError(t, err)

	assert.Len(t, rules, 3)
	assert.Equal(t, WindowRule{Label: "±3M", Before: 3, After: 3}, rules["ISSC"])
	assert.Equal(t, WindowRule{Label: "±3M", Before: 3, After: 3}, rules["MLC"])
	assert.Equal(t, WindowRule{Label: "-3M", Before: 3}, rules["IOPP"])

	empty, err := ParseWindowRules("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseWindowRules("ISSC")
	assert.Error(t, err)

	_, err = ParseWindowRules("ISSC=soon")
	assert.Error(t, err)
}

func TestWindowRule_Resolution(t *testing.T) {
	calc, err := NewCalculator(Settings{WindowRules: map[string]WindowRule{
		"issc":                    {Before: 3},
		"INTERNATIONAL LOAD LINE": {Before: 3, After: 3},
	}})
	require.NoError(t, err)

	t.Run("annotation wins", func(t *testing.T) {
		rule := calc.windowRule(&domain.Certificate{Abbreviation: "ISSC", Annotation: "+/-6M"})
		assert.Equal(t, "±6M", rule.Label)
		assert.Equal(t, 6, rule.Before)
	})

	t.Run("abbreviation table", func(t *testing.T) {
		rule := calc.windowRule(&domain.Certificate{Abbreviation: "Issc"})
		assert.Equal(t, WindowRule{Label: "-3M", Before: 3}, rule)
	})

	t.Run("name table", func(t *testing.T) {
		rule := calc.windowRule(&domain.Certificate{Name: "International  Load Line"})
		assert.Equal(t, "±3M", rule.Label)
	})

	t.Run("unparseable annotation falls through", func(t *testing.T) {
		rule := calc.windowRule(&domain.Certificate{Annotation: "see remarks"})
		assert.Equal(t, WindowRule{Label: "-3M (default)", Before: 3, After: 3}, rule)
	})
}

func TestWindowRule_Window(t *testing.T) {
	anniversary := date(2025, 12, 20)

	w, err := WindowRule{Label: "±3M", Before: 3, After: 3}.window(anniversary)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 9, 20), w.Open)
	assert.Equal(t, date(2026, 3, 20), w.Close)

	w, err = WindowRule{Label: "-3M", Before: 3}.window(anniversary)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 9, 20), w.Open)
	assert.Equal(t, anniversary, w.Close)

	_, err = WindowRule{Before: 3}.window(civil.Date{Year: 2025, Month: time.February, Day: 30})
	assert.Error(t, err)
}
