package subsystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_String(t *testing.T) {
	assert.Equal(t, "OK", ResultOK.String())
	assert.Equal(t, "InsufficientFunds", ResultInsufficientFunds.String())
	assert.Equal(t, "Result(999)", Result(999).String())
}

func TestParseResult(t *testing.T) {
	for code := range resultNames {
		got, err := ParseResult(code.String())
		require.NoError(t, err)
		assert.Equal(t, code, got)
	}

	_, err := ParseResult("Nope")
	assert.Error(t, err)
}
