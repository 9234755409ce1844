// Package chunk provides the code-chunk domain model emitted by syntax
// splitting.
package chunk

import (
	"fmt"
	"strings"
)

// AnonymousName is used when no identifier node attaches to a block.
const AnonymousName = "anonymous"

// Chunk is a contiguous, syntactically meaningful slice of source text:
// a function, class, method, interface, and so on. Chunks are ephemeral;
// they exist between splitting and vector upsert.
type Chunk struct {
	id        string
	filePath  string
	nodeType  string
	name      string
	content   string
	startLine int
	endLine   int
}

// New creates a Chunk. Line bounds are 1-indexed and inclusive. The id is
// derived from the file path, resolved name, grammar node type, and start
// line, which keeps it stable across re-ingestions of unchanged code.
func New(filePath, name, nodeType, content string, startLine, endLine int) Chunk {
	if name == "" {
		name = AnonymousName
	}
	return Chunk{
		id:        ID(filePath, name, nodeType, startLine),
		filePath:  filePath,
		nodeType:  nodeType,
		name:      name,
		content:   content,
		startLine: startLine,
		endLine:   endLine,
	}
}

// ID builds the canonical chunk identifier.
func ID(filePath, name, nodeType string, startLine int) string {
	return fmt.Sprintf("%s:%s:%s:L%d", filePath, name, nodeType, startLine)
}

// ID returns the canonical identifier.
func (c Chunk) ID() string { return c.id }

// FilePath returns the repo-relative path of the source file the chunk
// was cut from.
func (c Chunk) FilePath() string { return c.filePath }

// NodeType returns the grammar node type (function_declaration, class_declaration, ...).
func (c Chunk) NodeType() string { return c.nodeType }

// Name returns the resolved identifier, or "anonymous".
func (c Chunk) Name() string { return c.name }

// Content returns the chunk source text, including any leading
// comment/decorator chain.
func (c Chunk) Content() string { return c.content }

// StartLine returns the 1-indexed first line.
func (c Chunk) StartLine() int { return c.startLine }

// EndLine returns the 1-indexed last line (inclusive).
func (c Chunk) EndLine() int { return c.endLine }

// IsBlank reports whether the chunk content is empty or whitespace-only.
func (c Chunk) IsBlank() bool {
	return strings.TrimSpace(c.content) == ""
}

// Splitter decomposes one source file into chunks.
// Implementations return an empty slice for unsupported extensions and
// unparsable input; both are non-fatal.
type Splitter interface {
	Split(filePath string, source []byte) []Chunk
}

// DuplicateIDs returns the ids that occur more than once, in first-seen
// order. Duplicates indicate a grammar query bug and are rejected before
// upsert.
func DuplicateIDs(chunks []Chunk) []string {
	seen := make(map[string]int, len(chunks))
	var dupes []string
	for _, c := range chunks {
		seen[c.ID()]++
		if seen[c.ID()] == 2 {
			dupes = append(dupes, c.ID())
		}
	}
	return dupes
}
