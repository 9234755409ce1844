package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMeta_DropsReservedKeys(t *testing.T) {
	meta := map[string]any{
		"repoId":   "evil",
		"parentId": "also-evil",
		"env":      "prod",
	}

	clean, dropped := SanitizeMeta(meta)

	assert.Equal(t, map[string]any{"env": "prod"}, clean)
	assert.ElementsMatch(t, []string{"repoId", "parentId"}, dropped)
}

func TestSanitizeMeta_DropsNonPrimitives(t *testing.T) {
	meta := map[string]any{
		"tags":    []string{"a", "b"},
		"nested":  map[string]any{"x": 1},
		"nothing": nil,
		"count":   3,
		"ratio":   0.5,
		"flag":    true,
		"name":    "ok",
	}

	clean, dropped := SanitizeMeta(meta)

	assert.Equal(t, map[string]any{"count": 3, "ratio": 0.5, "flag": true, "name": "ok"}, clean)
	assert.ElementsMatch(t, []string{"tags", "nested", "nothing"}, dropped)
}

func TestSanitizeMeta_Empty(t *testing.T) {
	clean, dropped := SanitizeMeta(nil)
	assert.Empty(t, clean)
	assert.Empty(t, dropped)
}

func TestValidateMeta(t *testing.T) {
	assert.Empty(t, ValidateMeta(map[string]any{"env": "prod", "n": 1}))
	assert.ElementsMatch(t, []string{"bad"}, ValidateMeta(map[string]any{"bad": []int{1}, "ok": "x"}))
}

func TestResult_ParentID(t *testing.T) {
	assert.Equal(t, "src/a.ts", Result{Metadata: map[string]any{"parentId": "src/a.ts"}}.ParentID())
	assert.Empty(t, Result{Metadata: map[string]any{"parentId": 42}}.ParentID())
	assert.Empty(t, Result{}.ParentID())
}
