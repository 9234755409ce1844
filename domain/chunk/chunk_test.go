package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_PopulatesAccessors(t *testing.T) {
	c := New("src/auth.ts", "login", "method_definition", "login() {}", 12, 14)

	assert.Equal(t, "src/auth.ts:login:method_definition:L12", c.ID())
	assert.Equal(t, "src/auth.ts", c.FilePath())
	assert.Equal(t, "method_definition", c.NodeType())
	assert.Equal(t, "login", c.Name())
	assert.Equal(t, "login() {}", c.Content())
	assert.Equal(t, 12, c.StartLine())
	assert.Equal(t, 14, c.EndLine())
}

func TestNew_AnonymousName(t *testing.T) {
	c := New("a.js", "", "function_declaration", "function() {}", 1, 1)

	assert.Equal(t, AnonymousName, c.Name())
	assert.Equal(t, "a.js:anonymous:function_declaration:L1", c.ID())
}

func TestIsBlank(t *testing.T) {
	assert.True(t, New("a.go", "x", "type_spec", "  \n\t", 1, 2).IsBlank())
	assert.False(t, New("a.go", "x", "type_spec", "type x int", 1, 1).IsBlank())
}

func TestDuplicateIDs(t *testing.T) {
	a := New("a.go", "F", "function_declaration", "func F() {}", 1, 1)
	b := New("a.go", "G", "function_declaration", "func G() {}", 3, 3)

	assert.Nil(t, DuplicateIDs([]Chunk{a, b}))
	assert.Equal(t, []string{a.ID()}, DuplicateIDs([]Chunk{a, b, a, a}))
}
