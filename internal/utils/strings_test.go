package utils

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "only separators", input: " , ,", expected: nil},
		{name: "single value", input: "trade_closed", expected: []string{"trade_closed"}},
		{name: "trims and skips blanks", input: " trade_closed, ,cashflow_added ", expected: []string{"trade_closed", "cashflow_added"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCSV(tt.input))
		})
	}
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", FirstNonEmpty("", "  ", " b ", "c"))
	assert.Equal(t, "", FirstNonEmpty())
}

func TestTimer(t *testing.T) {
	d := NewTimer("op", zerolog.Nop()).Stop()
	assert.GreaterOrEqual(t, d, time.Duration(0))
	OperationTimer("op", zerolog.Nop())()
}
