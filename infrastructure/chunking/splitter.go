// Package chunking splits source files into semantic chunks using
// tree-sitter grammars.
package chunking

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/twodHQ/rephole/domain/chunk"
)

// contextNodeTypes are the node types pulled into a chunk when they
// immediately precede its block (doc comments, decorators, attributes).
var contextNodeTypes = map[string]struct{}{
	"comment":           {},
	"line_comment":      {},
	"block_comment":     {},
	"decorator":         {},
	"annotation":        {},
	"marker_annotation": {},
	"attribute_item":    {},
	"attribute":         {},
}

// Splitter parses source files and emits one chunk per captured block.
type Splitter struct {
	registry *Registry
	logger   *slog.Logger
}

// NewSplitter builds a Splitter over a grammar registry.
func NewSplitter(registry *Registry, logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{registry: registry, logger: logger}
}

// Supported reports whether the file's extension maps to a usable grammar.
func (s *Splitter) Supported(filePath string) bool {
	_, ok := s.registry.Lookup(strings.ToLower(filepath.Ext(filePath)))
	return ok
}

// Split parses source and returns its semantic chunks in source order.
// Unsupported extensions and parse failures yield no chunks; the file is
// skipped, never fatal.
func (s *Splitter) Split(filePath string, source []byte) []chunk.Chunk {
	lang, ok := s.registry.Lookup(strings.ToLower(filepath.Ext(filePath)))
	if !ok {
		return nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang.language)

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		s.logger.Warn("parse failed, skipping file",
			slog.String("file", filePath),
			slog.String("language", lang.name),
			slog.String("error", err.Error()),
		)
		return nil
	}
	defer tree.Close()

	blocks := s.collectBlocks(lang, tree.RootNode(), source)
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].node.StartByte() < blocks[j].node.StartByte()
	})

	chunks := make([]chunk.Chunk, 0, len(blocks))
	for _, b := range blocks {
		name := resolveName(b, source)
		start, startRow := expandContext(b.node, source)

		content := string(source[start:b.node.EndByte()])
		startLine := int(startRow) + 1
		endLine := int(b.node.EndPoint().Row) + 1

		c := chunk.New(filePath, name, b.node.Type(), content, startLine, endLine)
		if c.IsBlank() {
			continue
		}
		chunks = append(chunks, c)
	}

	if dups := chunk.DuplicateIDs(chunks); len(dups) > 0 {
		s.logger.Warn("duplicate chunk ids in file",
			slog.String("file", filePath),
			slog.Any("ids", dups),
		)
	}

	return chunks
}

// capturedBlock pairs a block node with the @name node captured by the
// same query match, when present.
type capturedBlock struct {
	node *sitter.Node
	name *sitter.Node
}

func (s *Splitter) collectBlocks(lang *compiledLanguage, root *sitter.Node, source []byte) []capturedBlock {
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(lang.query, root)

	var blocks []capturedBlock
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}

		var block, name *sitter.Node
		for _, capture := range match.Captures {
			switch lang.query.CaptureNameForId(capture.Index) {
			case "block":
				block = capture.Node
			case "name":
				name = capture.Node
			}
		}
		if block == nil {
			continue
		}
		blocks = append(blocks, capturedBlock{node: block, name: name})
	}
	return blocks
}

// resolveName picks the chunk name: the match's @name capture when it
// lies within the block, then the grammar's name field, then the first
// named child whose type mentions an identifier, then the anonymous
// placeholder.
func resolveName(b capturedBlock, source []byte) string {
	if b.name != nil &&
		b.name.StartByte() >= b.node.StartByte() &&
		b.name.EndByte() <= b.node.EndByte() {
		return b.name.Content(source)
	}

	if field := b.node.ChildByFieldName("name"); field != nil {
		return field.Content(source)
	}

	for i := 0; i < int(b.node.NamedChildCount()); i++ {
		child := b.node.NamedChild(i)
		if strings.Contains(child.Type(), "identifier") {
			return child.Content(source)
		}
	}

	return chunk.AnonymousName
}

// expandContext walks preceding siblings over comments and decorators so
// doc blocks travel with the code they describe. Returns the expanded
// start byte and its 0-indexed row, so chunk line bounds cover exactly
// the emitted content.
func expandContext(block *sitter.Node, source []byte) (uint32, uint32) {
	start := block.StartByte()
	row := block.StartPoint().Row
	for prev := block.PrevNamedSibling(); prev != nil; prev = prev.PrevNamedSibling() {
		if _, ok := contextNodeTypes[prev.Type()]; !ok {
			break
		}
		// Only absorb contiguous context: nothing but whitespace may sit
		// between the candidate and the current start.
		gap := source[prev.EndByte():start]
		if len(strings.TrimSpace(string(gap))) != 0 {
			break
		}
		start = prev.StartByte()
		row = prev.StartPoint().Row
	}
	return start, row
}

var _ chunk.Splitter = (*Splitter)(nil)
