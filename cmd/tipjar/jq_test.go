package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJQFilterMatching(t *testing.T) {
	account := accountOutput{
		Address:      "tipjar123",
		Initialized:  true,
		Owner:        "owner456",
		TotalTips:    800_000_000,
		TipCount:     3,
		Available:    500_000_000,
		AvailableSOL: "0.5000",
	}

	tests := []struct {
		name        string
		filter      string
		expectMatch bool
		expectErr   bool
	}{
		{
			name:        "tip count threshold",
			filter:      `.tip_count > 0`,
			expectMatch: true,
		},
		{
			name:        "tip count too low",
			filter:      `.tip_count > 5`,
			expectMatch: false,
		},
		{
			name:        "owner match",
			filter:      `.owner == "owner456"`,
			expectMatch: true,
		},
		{
			name:        "contains",
			filter:      `. | contains({initialized: true, address: "tipjar"})`,
			expectMatch: true,
		},
		{
			name:        "missing field is null",
			filter:      `.nope`,
			expectMatch: false,
		},
		{
			name:        "number is truthy",
			filter:      `.available`,
			expectMatch: true,
		},
		{
			name:        "runtime error",
			filter:      `.owner + 1`,
			expectMatch: false,
			expectErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checks, err := compileJQChecks([]string{tt.filter})
			require.NoError(t, err)

			err = mustMatch(checks, account)
			if tt.expectMatch {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.expectErr {
				assert.Contains(t, err.Error(), "jq error")
			} else {
				assert.Contains(t, err.Error(), tt.filter)
			}
		})
	}
}

func TestCompileJQ(t *testing.T) {
	code, err := compileJQ("")
	require.NoError(t, err)
	assert.Nil(t, code)

	_, err = compileJQ(".foo |||")
	assert.Error(t, err)

	checks, err := compileJQChecks([]string{"", ".a"})
	require.NoError(t, err)
	assert.Len(t, checks, 1)
}

func TestPrintJQ(t *testing.T) {
	code, err := compileJQ(`.available_sol, .tip_count, {owner}`)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printJQ(&buf, code, accountOutput{Owner: "o", TipCount: 2, AvailableSOL: "0.1000"}))
	assert.Equal(t, "0.1000\n2\n{\"owner\":\"o\"}\n", buf.String())
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.False(t, isTruthy(false))
	assert.True(t, isTruthy(true))
	assert.True(t, isTruthy(0))
	assert.True(t, isTruthy(""))
	assert.True(t, isTruthy([]interface{}{}))
}
