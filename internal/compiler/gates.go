package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/ingestlab/internal/ir"
)

// ParseGates decodes quality gate thresholds. Both spellings are accepted and
// may be mixed:
//
//	{"players.name": 0.9}          flat
//	{"players": {"name": 0.9}}     nested
//
// Thresholds are ratios in [0, 1]. Gates are returned sorted by resource
// then field. When both spellings name the same gate, the nested one wins.
func ParseGates(v any) ([]ir.Gate, error) {
	m, ok := asMap(v)
	if !ok {
		return nil, schemaErr(ErrInvalidGate, "", keyQualityGates, "must be a mapping, got %T", v)
	}

	byKey := make(map[string]ir.Gate)
	var nestedKeys []string
	for key, raw := range m {
		if _, isMap := asMap(raw); isMap {
			nestedKeys = append(nestedKeys, key)
			continue
		}
		resource, field, found := strings.Cut(key, ".")
		if !found || resource == "" || field == "" {
			return nil, schemaErr(ErrInvalidGate, "", keyQualityGates, "gate %q must be resource.field", key)
		}
		g, err := newGate(resource, field, raw)
		if err != nil {
			return nil, err
		}
		byKey[g.Key()] = g
	}
	for _, resource := range nestedKeys {
		nested, _ := asMap(m[resource])
		for field, thr := range nested {
			g, err := newGate(resource, field, thr)
			if err != nil {
				return nil, err
			}
			byKey[g.Key()] = g
		}
	}

	gates := make([]ir.Gate, 0, len(byKey))
	for _, g := range byKey {
		gates = append(gates, g)
	}
	sort.Slice(gates, func(i, j int) bool {
		if gates[i].Resource != gates[j].Resource {
			return gates[i].Resource < gates[j].Resource
		}
		return gates[i].Field < gates[j].Field
	})
	return gates, nil
}

func newGate(resource, field string, v any) (ir.Gate, error) {
	var thr float64
	switch n := v.(type) {
	case float64:
		thr = n
	case int:
		thr = float64(n)
	case int64:
		thr = float64(n)
	default:
		return ir.Gate{}, schemaErr(ErrInvalidGate, resource, field, "threshold must be a number, got %T", v)
	}
	if thr < 0 || thr > 1 {
		return ir.Gate{}, schemaErr(ErrInvalidGate, resource, field, "threshold %s outside [0, 1]", fmt.Sprint(thr))
	}
	return ir.Gate{Resource: resource, Field: field, Threshold: thr}, nil
}
