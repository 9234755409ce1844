package search

// Reserved metadata keys. The pipeline controls these on every vector
// record; user-supplied meta can never override them.
const (
	KeyID           = "id"
	KeyCategory     = "category"
	KeyRepositoryID = "repositoryId"
	KeyRepoID       = "repoId"
	KeyWorkspaceID  = "workspaceId"
	KeyUserID       = "userId"
	KeyTimestamp    = "timestamp"
	KeyFilePath     = "filePath"
	KeyFileType     = "fileType"
	KeyChunkIndex   = "chunkIndex"
	KeyChunkType    = "chunkType"
	KeyParentID     = "parentId"
	KeyFunctionName = "functionName"
	KeyStartLine    = "startLine"
	KeyEndLine      = "endLine"
)

// CategoryRepository is the category value stamped on repository chunks.
const CategoryRepository = "repository"

// reservedKeys is the full reserved set.
var reservedKeys = map[string]struct{}{
	KeyID:           {},
	KeyCategory:     {},
	KeyRepositoryID: {},
	KeyRepoID:       {},
	KeyWorkspaceID:  {},
	KeyUserID:       {},
	KeyTimestamp:    {},
	KeyFilePath:     {},
	KeyFileType:     {},
	KeyChunkIndex:   {},
	KeyChunkType:    {},
	KeyParentID:     {},
	KeyFunctionName: {},
	KeyStartLine:    {},
	KeyEndLine:      {},
}

// IsReservedKey reports whether key belongs to the reserved set.
func IsReservedKey(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

// IsPrimitive reports whether v is a string, number, or boolean.
// Arrays, maps, and nil are not primitives.
func IsPrimitive(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// SanitizeMeta filters user-supplied metadata down to the entries that may
// be attached to records: reserved keys and non-primitive values are
// removed. The dropped key names are returned so callers can log them.
func SanitizeMeta(meta map[string]any) (map[string]any, []string) {
	if len(meta) == 0 {
		return map[string]any{}, nil
	}

	clean := make(map[string]any, len(meta))
	var dropped []string
	for k, v := range meta {
		if IsReservedKey(k) || !IsPrimitive(v) {
			dropped = append(dropped, k)
			continue
		}
		clean[k] = v
	}
	return clean, dropped
}

// ValidateMeta reports the keys whose values are not flat primitives.
// Used by the producer to reject requests before enqueueing.
func ValidateMeta(meta map[string]any) []string {
	var invalid []string
	for k, v := range meta {
		if !IsPrimitive(v) {
			invalid = append(invalid, k)
		}
	}
	return invalid
}
