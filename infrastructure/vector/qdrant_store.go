// Package vector provides the Qdrant-backed vector store.
package vector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/twodHQ/rephole/domain/search"
)

// payloadContentKey holds the chunk text inside the point payload. The
// canonical chunk ID is stored under "id" because Qdrant point IDs must
// be UUIDs or integers.
const payloadContentKey = "content"

// pointNamespace is the UUIDv5 namespace for mapping chunk IDs onto
// Qdrant point IDs. Derivation is deterministic so replays converge.
var pointNamespace = uuid.MustParse("9f2c1d5e-4b7a-4c1e-8f3d-6a0b2c9d7e41")

// Config carries Qdrant connection and collection settings.
type Config struct {
	Host           string
	Port           int
	UseTLS         bool
	CollectionName string
	BatchSize      int
	VectorSize     uint64
}

// QdrantStore implements search.VectorStore over a Qdrant collection.
// The collection is created lazily on first write.
type QdrantStore struct {
	client *qdrant.Client
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	ensured bool
}

// NewQdrantStore connects to Qdrant. The collection is not touched until
// the first operation needs it.
func NewQdrantStore(cfg Config, logger *slog.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg, logger: logger}, nil
}

// Close releases the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// ensureCollection creates the collection if it does not exist yet. dim
// is the vector dimension to create with; writes pass the dimension of
// their first record so the collection matches the embedding model.
func (s *QdrantStore) ensureCollection(ctx context.Context, dim uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, s.cfg.CollectionName)
	if err != nil {
		return fmt.Errorf("check collection %q: %w", s.cfg.CollectionName, err)
	}
	if !exists {
		if dim == 0 {
			dim = s.cfg.VectorSize
		}
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.cfg.CollectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     dim,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create collection %q: %w", s.cfg.CollectionName, err)
		}
		s.logger.Info("created vector collection",
			slog.String("collection", s.cfg.CollectionName),
			slog.Uint64("dimensions", dim),
		)
	}

	s.ensured = true
	return nil
}

// PointID derives the deterministic Qdrant point UUID for a chunk ID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// Upsert writes records in batches. Duplicate IDs within one batch are a
// caller bug and fail before any write.
func (s *QdrantStore) Upsert(ctx context.Context, records []search.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	if dups := duplicateRecordIDs(records); len(dups) > 0 {
		return &DuplicateIDError{IDs: dups}
	}

	if err := s.ensureCollection(ctx, uint64(len(records[0].Vector))); err != nil {
		return err
	}

	for start := 0; start < len(records); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(records))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, rec := range records[start:end] {
			payload := map[string]any{
				search.KeyID:      rec.ID,
				payloadContentKey: rec.Content,
			}
			for k, v := range rec.Metadata {
				if k == payloadContentKey {
					continue
				}
				payload[k] = v
			}

			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewID(PointID(rec.ID)),
				Vectors: qdrant.NewVectors(rec.Vector...),
				Payload: qdrant.NewValueMap(payload),
			})
		}

		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.cfg.CollectionName,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
	}

	return nil
}

// SimilaritySearch runs ANN search and maps cosine similarity onto the
// [0,1] score scale.
func (s *QdrantStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filter search.Filter) ([]search.Result, error) {
	if err := s.ensureCollection(ctx, 0); err != nil {
		return nil, err
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	results := make([]search.Result, 0, len(points))
	for _, p := range points {
		r := resultFromPayload(p.GetPayload())
		r.Score = clampScore(float64(p.GetScore()))
		results = append(results, r)
	}
	return results, nil
}

// GetByIDs fetches records by chunk ID. Missing ids are omitted.
func (s *QdrantStore) GetByIDs(ctx context.Context, ids []string) ([]search.Result, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if err := s.ensureCollection(ctx, 0); err != nil {
		return nil, err
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(PointID(id))
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.CollectionName,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get by ids: %w", err)
	}

	results := make([]search.Result, 0, len(points))
	for _, p := range points {
		results = append(results, resultFromPayload(p.GetPayload()))
	}
	return results, nil
}

// GetByFilePath scrolls all chunks of one file within one repository.
func (s *QdrantStore) GetByFilePath(ctx context.Context, repoID, path string) ([]search.Result, error) {
	if err := s.ensureCollection(ctx, 0); err != nil {
		return nil, err
	}

	filter := buildFilter(search.Filter{
		search.KeyRepoID:   repoID,
		search.KeyFilePath: path,
	})

	var results []search.Result
	var offset *qdrant.PointId
	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.cfg.CollectionName,
			Filter:         filter,
			Limit:          qdrant.PtrOf(uint32(256)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("scroll by file path: %w", err)
		}
		if len(points) == 0 {
			break
		}
		for _, p := range points {
			results = append(results, resultFromPayload(p.GetPayload()))
		}
		offset = points[len(points)-1].GetId()
		if len(points) < 256 {
			break
		}
	}
	return results, nil
}

// DeleteByIDs removes points by chunk ID. Unknown ids are a no-op.
func (s *QdrantStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, 0); err != nil {
		return err
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(PointID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.CollectionName,
		Points:         qdrant.NewPointsSelector(pointIDs...),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("delete by ids: %w", err)
	}
	return nil
}

// DeleteByFilter removes every point matching the metadata filter.
func (s *QdrantStore) DeleteByFilter(ctx context.Context, filter search.Filter) error {
	if len(filter) == 0 {
		return fmt.Errorf("delete by filter: refusing empty filter")
	}
	if err := s.ensureCollection(ctx, 0); err != nil {
		return err
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.CollectionName,
		Points:         qdrant.NewPointsSelectorFilter(buildFilter(filter)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("delete by filter: %w", err)
	}
	return nil
}

// buildFilter translates the flat equality filter into a Qdrant must
// conjunction. Nil when the filter is empty.
func buildFilter(filter search.Filter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}

	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		switch v := value.(type) {
		case string:
			conditions = append(conditions, qdrant.NewMatch(key, v))
		case bool:
			conditions = append(conditions, qdrant.NewMatchBool(key, v))
		case int:
			conditions = append(conditions, qdrant.NewMatchInt(key, int64(v)))
		case int32:
			conditions = append(conditions, qdrant.NewMatchInt(key, int64(v)))
		case int64:
			conditions = append(conditions, qdrant.NewMatchInt(key, v))
		case float64:
			// Qdrant match conditions are exact; floats come in via JSON
			// numbers that were integers upstream.
			conditions = append(conditions, qdrant.NewMatchInt(key, int64(v)))
		default:
			conditions = append(conditions, qdrant.NewMatch(key, fmt.Sprintf("%v", v)))
		}
	}
	return &qdrant.Filter{Must: conditions}
}

// resultFromPayload rebuilds a search.Result from a point payload. The
// canonical chunk ID and content are pulled out; everything else is
// metadata.
func resultFromPayload(payload map[string]*qdrant.Value) search.Result {
	var r search.Result
	r.Metadata = make(map[string]any, len(payload))

	for key, value := range payload {
		v := valueToAny(value)
		switch key {
		case search.KeyID:
			if s, ok := v.(string); ok {
				r.ID = s
			}
			r.Metadata[key] = v
		case payloadContentKey:
			if s, ok := v.(string); ok {
				r.Content = s
			}
		default:
			r.Metadata[key] = v
		}
	}
	return r
}

// valueToAny converts a Qdrant payload value to a plain Go value.
func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_NullValue:
		return nil
	default:
		return v.String()
	}
}

// clampScore bounds cosine similarity to [0,1]. Negative similarity maps
// to zero.
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// DuplicateIDError reports record ids that occur more than once in a
// single upsert batch.
type DuplicateIDError struct {
	IDs []string
}

func (e *DuplicateIDError) Error() string {
	return "duplicate record ids in upsert batch: " + strings.Join(e.IDs, ", ")
}

func duplicateRecordIDs(records []search.VectorRecord) []string {
	seen := make(map[string]struct{}, len(records))
	var dups []string
	for _, rec := range records {
		if _, ok := seen[rec.ID]; ok {
			dups = append(dups, rec.ID)
			continue
		}
		seen[rec.ID] = struct{}{}
	}
	return dups
}

var _ search.VectorStore = (*QdrantStore)(nil)
