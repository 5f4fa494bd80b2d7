package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/intellecta/rag/internal/security"
)

// DefaultCollection is the single collection all documents live in.
// Multi-tenancy is expressed through payload filters, not collections.
const DefaultCollection = "intellecta_documents"

// QdrantStore implements VectorStore using Qdrant.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStore creates a new Qdrant vector store client.
// url should be in format "host:port" (e.g., "localhost:6334").
func NewQdrantStore(ctx context.Context, url, collection string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	if collection == "" {
		collection = DefaultCollection
	}

	return &QdrantStore{client: client, collection: collection}, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// EnsureCollection creates the collection with cosine distance and keyword
// indexes on the filterable payload fields. Safe to call on every startup.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	for _, field := range []string{"doc_id", "security_level", "source"} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create payload index on %s: %w", field, err)
		}
	}

	return nil
}

// Upsert inserts or updates points.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, point := range points {
		p := point.Payload
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(point.ID),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: map[string]*qdrant.Value{
				"text":           qdrant.NewValueString(p.Text),
				"doc_id":         qdrant.NewValueString(p.DocID),
				"chunk_index":    qdrant.NewValueInt(int64(p.ChunkIndex)),
				"total_chunks":   qdrant.NewValueInt(int64(p.TotalChunks)),
				"security_level": qdrant.NewValueString(p.SecurityLevel.String()),
				"domain":         qdrant.NewValueString(p.Domain),
				"file_type":      qdrant.NewValueString(p.FileType),
				"filename":       qdrant.NewValueString(p.Filename),
				"source":         qdrant.NewValueString(p.Source),
			},
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// buildFilter converts a Filter into qdrant match conditions.
func buildFilter(filter Filter) *qdrant.Filter {
	var must []*qdrant.Condition
	if len(filter.DocIDs) > 0 {
		must = append(must, qdrant.NewMatchKeywords("doc_id", filter.DocIDs...))
	}
	if len(filter.SecurityLevels) > 0 {
		must = append(must, qdrant.NewMatchKeywords("security_level", filter.SecurityLevels...))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// Query returns the k nearest neighbors matching the filter.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, filter Filter, k int) ([]Result, error) {
	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         buildFilter(filter),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	results := make([]Result, 0, len(response))
	for _, point := range response {
		result := Result{
			ID:    point.Id.GetUuid(),
			Score: point.Score,
		}
		if payload := point.Payload; payload != nil {
			result.Payload = Payload{
				Text:          payload["text"].GetStringValue(),
				DocID:         payload["doc_id"].GetStringValue(),
				ChunkIndex:    int(payload["chunk_index"].GetIntegerValue()),
				TotalChunks:   int(payload["total_chunks"].GetIntegerValue()),
				SecurityLevel: security.ParseLevel(payload["security_level"].GetStringValue()),
				Domain:        payload["domain"].GetStringValue(),
				FileType:      payload["file_type"].GetStringValue(),
				Filename:      payload["filename"].GetStringValue(),
				Source:        payload["source"].GetStringValue(),
			}
		}
		results = append(results, result)
	}

	return results, nil
}

// DeleteByDocID removes every point belonging to a document.
func (s *QdrantStore) DeleteByDocID(ctx context.Context, docID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatch("doc_id", docID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete by doc ID: %w", err)
	}

	return nil
}

// Count returns the exact number of points matching the filter.
func (s *QdrantStore) Count(ctx context.Context, filter Filter) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         buildFilter(filter),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}

// CountByField tallies points per distinct string value of a payload field.
// Scrolls the whole collection, fetching only the requested field.
func (s *QdrantStore) CountByField(ctx context.Context, field string) (map[string]uint64, error) {
	counts := make(map[string]uint64)
	var offset *qdrant.PointId

	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Limit:          qdrant.PtrOf(uint32(256)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude(field),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}
		if len(points) == 0 {
			break
		}

		for _, point := range points {
			// The page offset is inclusive, so the first point of a
			// follow-up page repeats the previous page's last point.
			if offset != nil && point.Id.GetUuid() == offset.GetUuid() {
				continue
			}
			value := point.Payload[field].GetStringValue()
			if value == "" {
				value = "unknown"
			}
			counts[value]++
		}

		if len(points) < 256 {
			break
		}
		offset = points[len(points)-1].Id
	}

	return counts, nil
}

// Stats reports collection-level statistics.
func (s *QdrantStore) Stats(ctx context.Context) (CollectionStats, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return CollectionStats{}, fmt.Errorf("failed to get collection info: %w", err)
	}

	stats := CollectionStats{
		PointsCount:  info.GetPointsCount(),
		DistanceName: qdrant.Distance_Cosine.String(),
		CollectionOK: info.GetStatus() == qdrant.CollectionStatus_Green,
	}
	if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
		stats.VectorSize = int(params.GetSize())
	}
	return stats, nil
}

// Ensure QdrantStore implements VectorStore.
var _ VectorStore = (*QdrantStore)(nil)
