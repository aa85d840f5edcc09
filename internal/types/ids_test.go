package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuleID(t *testing.T) {
	valid := string(NewRuleID())

	got, err := ParseRuleID(valid)
	require.NoError(t, err)
	assert.Equal(t, RuleID(valid), got)

	for _, in := range []string{"", "nonexistent", "not-a-uuid", "12345"} {
		_, err := ParseRuleID(in)
		assert.Error(t, err, in)
	}
}
