package apply

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Disabled(t *testing.T) {
	raw := map[string]any{"x": map[string]any{"kind": "expr", "code": "value"}}
	assert.NoError(t, Policy{}.Check(nil, raw))
}

func TestPolicy_DocumentExpressions(t *testing.T) {
	raw := playersPayload(true)
	doc := mustBuild(t, raw)

	err := Policy{DisallowExpressions: true}.Check(doc, raw)
	require.Error(t, err)
	assert.True(t, IsSecurityPolicy(err))
	assert.True(t, IsSecurityPolicy(fmt.Errorf("wrapped: %w", err)))

	var pe *SecurityPolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "document", pe.Source)
}

func TestPolicy_PayloadScan(t *testing.T) {
	raw := map[string]any{
		"resources": map[string]any{},
		"extra": []any{
			"plain",
			map[string]any{"nested": map[string]any{"kind": "expr", "code": "1"}},
		},
	}
	err := Policy{DisallowExpressions: true}.Check(nil, raw)
	require.Error(t, err)

	var pe *SecurityPolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "payload", pe.Source)
	assert.Equal(t, "extra[1].nested", pe.Path)
	assert.Contains(t, err.Error(), "extra[1].nested")
}

func TestPolicy_CleanPayload(t *testing.T) {
	raw := playersPayload(false)
	assert.NoError(t, Policy{DisallowExpressions: true}.Check(mustBuild(t, raw), raw))
}

func TestFindExpression_Root(t *testing.T) {
	path, ok := findExpression(map[string]any{"kind": "expr"}, "")
	assert.True(t, ok)
	assert.Equal(t, "$", path)

	_, ok = findExpression(map[string]any{"kind": "trim"}, "")
	assert.False(t, ok)
}
