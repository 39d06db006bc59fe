package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ingestlab/internal/ir"
)

func playersPayload() map[string]any {
	return map[string]any{
		"version": 1,
		"resources": map[string]any{
			"players": map[string]any{
				"kind":          "list",
				"selector":      "ul.players",
				"item_selector": "li",
				"fields": map[string]any{
					"name": ".name",
					"score": map[string]any{
						"selector":   ".score",
						"transforms": []any{"trim", "to_number"},
					},
				},
			},
			"standings": map[string]any{
				"kind":     "table",
				"selector": "table.standings",
				"columns":  []any{"team", "points"},
			},
		},
	}
}

func TestBuildBasic(t *testing.T) {
	doc, err := Build(playersPayload())
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Version())
	assert.False(t, doc.AllowExpressions())
	assert.Equal(t, []string{"players", "standings"}, doc.ResourceNames())

	res, ok := doc.Resource("players")
	require.True(t, ok)
	list, ok := res.(*ir.ListResource)
	require.True(t, ok)
	assert.Equal(t, "ul.players", list.Selector)
	assert.Equal(t, "li", list.ItemSelector)
	require.Len(t, list.Fields, 2)
	assert.Equal(t, "name", list.Fields[0].Name)
	assert.Empty(t, list.Fields[0].Transforms)
	assert.Equal(t, []ir.TransformStep{ir.Trim{}, ir.ToNumber{}}, list.Fields[1].Transforms)

	res, ok = doc.Resource("standings")
	require.True(t, ok)
	table, ok := res.(*ir.TableResource)
	require.True(t, ok)
	assert.Equal(t, []string{"team", "points"}, table.Columns)
}

func TestBuildDefaults(t *testing.T) {
	doc, err := Build(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, ir.RuleFormatVersion, doc.Version())
	assert.Empty(t, doc.Resources())
}

func TestBuildAcceptsJSONFloatVersion(t *testing.T) {
	doc, err := Build(map[string]any{"version": float64(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Version())
}

func TestBuildMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		code    string
	}{
		{"fractional version", map[string]any{"version": 1.5}, ErrMalformedDocument},
		{"string version", map[string]any{"version": "1"}, ErrMalformedDocument},
		{"zero version", map[string]any{"version": 0}, ErrMalformedDocument},
		{"allow_expressions not bool", map[string]any{"allow_expressions": "yes"}, ErrMalformedDocument},
		{"resources not map", map[string]any{"resources": []any{}}, ErrMalformedDocument},
		{"resource not map", map[string]any{"resources": map[string]any{"a": "x"}}, ErrMalformedDocument},
		{"missing kind", map[string]any{"resources": map[string]any{"a": map[string]any{"selector": "x"}}}, ErrUnknownKind},
		{"unknown kind", map[string]any{"resources": map[string]any{"a": map[string]any{"kind": "grid", "selector": "x"}}}, ErrUnknownKind},
		{"table without selector", map[string]any{"resources": map[string]any{
			"a": map[string]any{"kind": "table", "columns": []any{"x"}},
		}}, ErrMissingField},
		{"table without columns", map[string]any{"resources": map[string]any{
			"a": map[string]any{"kind": "table", "selector": "table"},
		}}, ErrMissingField},
		{"table with fields", map[string]any{"resources": map[string]any{
			"a": map[string]any{"kind": "table", "selector": "table", "columns": []any{"x"}, "fields": map[string]any{"y": "td"}},
		}}, ErrMalformedDocument},
		{"list without item_selector", map[string]any{"resources": map[string]any{
			"a": map[string]any{"kind": "list", "selector": "ul", "fields": map[string]any{"x": "span"}},
		}}, ErrMissingField},
		{"list without fields", map[string]any{"resources": map[string]any{
			"a": map[string]any{"kind": "list", "selector": "ul", "item_selector": "li"},
		}}, ErrMissingField},
		{"empty field selector", map[string]any{"resources": map[string]any{
			"a": map[string]any{"kind": "list", "selector": "ul", "item_selector": "li", "fields": map[string]any{"x": " "}},
		}}, ErrMissingField},
		{"blank column", map[string]any{"resources": map[string]any{
			"a": map[string]any{"kind": "table", "selector": "table", "columns": []any{"x", ""}},
		}}, ErrMalformedDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.payload)
			require.Error(t, err)
			se, ok := err.(*SchemaError)
			require.True(t, ok, "expected *SchemaError, got %T", err)
			assert.Equal(t, tt.code, se.Code, se.Error())
		})
	}
}

func TestBuildDuplicateColumns(t *testing.T) {
	_, err := Build(map[string]any{"resources": map[string]any{
		"t": map[string]any{"kind": "table", "selector": "table", "columns": []any{"a", "b", "a"}},
	}})
	require.Error(t, err)
	assert.True(t, IsDuplicateName(err))
	assert.Contains(t, err.Error(), `"a"`)
}

func TestBuildDuplicateFieldsAfterTrim(t *testing.T) {
	_, err := Build(map[string]any{"resources": map[string]any{
		"l": map[string]any{
			"kind": "list", "selector": "ul", "item_selector": "li",
			"fields": map[string]any{"name": ".a", " name ": ".b"},
		},
	}})
	require.Error(t, err)
	assert.True(t, IsDuplicateName(err))
}

func TestBuildTransforms(t *testing.T) {
	payload := map[string]any{
		"allow_expressions": true,
		"resources": map[string]any{
			"l": map[string]any{
				"kind": "list", "selector": "ul", "item_selector": "li",
				"fields": map[string]any{
					"when": map[string]any{
						"selector": ".date",
						"transforms": []any{
							map[string]any{"kind": "collapse_ws"},
							map[string]any{"kind": "parse_date", "formats": []any{"%d.%m.%Y", "%Y-%m-%d"}},
						},
					},
					"label": map[string]any{
						"selector":   ".label",
						"transforms": []any{map[string]any{"kind": "expr", "code": "upper(value)"}},
					},
				},
			},
		},
	}

	doc, err := Build(payload)
	require.NoError(t, err)
	res, _ := doc.Resource("l")
	list := res.(*ir.ListResource)

	label, ok := list.Field("label")
	require.True(t, ok)
	assert.Equal(t, []ir.TransformStep{ir.Expression{Code: "upper(value)"}}, label.Transforms)

	when, ok := list.Field("when")
	require.True(t, ok)
	assert.Equal(t, []ir.TransformStep{
		ir.CollapseWhitespace{},
		ir.ParseDate{Formats: []string{"%d.%m.%Y", "%Y-%m-%d"}},
	}, when.Transforms)
	assert.True(t, doc.HasExpressions())
}

func listWithTransforms(allowExpr bool, transforms ...any) map[string]any {
	return map[string]any{
		"allow_expressions": allowExpr,
		"resources": map[string]any{
			"l": map[string]any{
				"kind": "list", "selector": "ul", "item_selector": "li",
				"fields": map[string]any{
					"x": map[string]any{"selector": "span", "transforms": transforms},
				},
			},
		},
	}
}

func TestBuildRejectsExpressionsWhenDisabled(t *testing.T) {
	_, err := Build(listWithTransforms(false, map[string]any{"kind": "expr", "code": "value"}))
	require.Error(t, err)
	assert.True(t, IsExpressionDisabled(err))
	assert.Contains(t, err.Error(), "transforms[0]")
}

func TestBuildInvalidTransforms(t *testing.T) {
	tests := []struct {
		name string
		step any
	}{
		{"unknown simple", "uppercase"},
		{"empty simple", " "},
		{"unknown kind", map[string]any{"kind": "regex"}},
		{"parse_date without formats", map[string]any{"kind": "parse_date"}},
		{"parse_date empty formats", map[string]any{"kind": "parse_date", "formats": []any{}}},
		{"parse_date digit literal", map[string]any{"kind": "parse_date", "formats": []any{"%d/%m/2024"}}},
		{"expr without code", map[string]any{"kind": "expr"}},
		{"expr forbidden token", map[string]any{"kind": "expr", "code": "__import__('os')"}},
		{"expr syntax", map[string]any{"kind": "expr", "code": "value +"}},
		{"not a step", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(listWithTransforms(true, tt.step))
			require.Error(t, err)
			se, ok := err.(*SchemaError)
			require.True(t, ok, "got %T", err)
			assert.Equal(t, ErrInvalidTransform, se.Code)
			assert.Equal(t, "l", se.Resource)
		})
	}
}

func TestBuildTransformsNotList(t *testing.T) {
	payload := listWithTransforms(false)
	payload["resources"].(map[string]any)["l"].(map[string]any)["fields"] = map[string]any{
		"x": map[string]any{"selector": "span", "transforms": "trim"},
	}
	_, err := Build(payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrInvalidTransform)
}

func TestBuildQualityGates(t *testing.T) {
	payload := playersPayload()
	payload["quality_gates"] = map[string]any{
		"players.name": 1.0,
		"players":      map[string]any{"score": 0.5},
	}
	doc, err := Build(payload)
	require.NoError(t, err)
	assert.Equal(t, []ir.Gate{
		{Resource: "players", Field: "name", Threshold: 1},
		{Resource: "players", Field: "score", Threshold: 0.5},
	}, doc.Gates())
}
