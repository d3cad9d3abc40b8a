// Package qdrant provides a SimilarityIndex implementation using Qdrant.
package qdrant

import (
	"context"
	"fmt"
	"strings"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/ports"
	"github.com/ersonp/session-core/internal/infrastructure/config"
)

// Repository implements the SimilarityIndex interface using Qdrant. Entity
// names are embedded on write and candidate retrieval is a vector search;
// duplicate scoring happens in the domain on top of the returned candidates.
type Repository struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	embedder   ports.Embedder
	collection string
	conn       *grpc.ClientConn
}

// NewRepository creates a new Qdrant repository.
func NewRepository(cfg config.QdrantConfig, embedder ports.Embedder) (*Repository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Repository{
		client:     pb.NewCollectionsClient(conn),
		points:     pb.NewPointsClient(conn),
		embedder:   embedder,
		collection: cfg.Collection,
		conn:       conn,
	}, nil
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection if it doesn't exist.
func (r *Repository) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err == nil {
		return nil
	}

	_, err = r.client.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	return nil
}

// entityText is the text embedded for an entity: its normalized name plus
// tags, so tagged variants of the same name land near each other.
func entityText(entity *entities.WorldEntity) string {
	parts := append([]string{entity.NormalizedName}, entity.Tags...)
	return strings.Join(parts, " ")
}

// IndexEntity makes an entity discoverable by similarity lookups.
func (r *Repository) IndexEntity(ctx context.Context, entity *entities.WorldEntity) error {
	vector, err := r.embedder.Embed(ctx, entityText(entity))
	if err != nil {
		return fmt.Errorf("embedding entity name: %w", err)
	}

	point := &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{
				Uuid: entity.ID,
			},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{
					Data: vector,
				},
			},
		},
		Payload: map[string]*pb.Value{
			"entity_id":  {Kind: &pb.Value_StringValue{StringValue: entity.ID}},
			"session_id": {Kind: &pb.Value_StringValue{StringValue: entity.SessionID}},
			"name":       {Kind: &pb.Value_StringValue{StringValue: entity.Name}},
			"type":       {Kind: &pb.Value_StringValue{StringValue: string(entity.Type)}},
		},
	}

	_, err = r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         []*pb.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("upserting point: %w", err)
	}

	return nil
}

// FindSimilar returns up to limit candidates of the given type whose names
// resemble the query name.
func (r *Repository) FindSimilar(ctx context.Context, name string, entityType entities.EntityType, limit int) ([]ports.SimilarEntity, error) {
	vector, err := r.embedder.Embed(ctx, entities.NormalizeName(name))
	if err != nil {
		return nil, fmt.Errorf("embedding query name: %w", err)
	}

	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		Filter: &pb.Filter{
			Must: []*pb.Condition{
				{
					ConditionOneOf: &pb.Condition_Field{
						Field: &pb.FieldCondition{
							Key: "type",
							Match: &pb.Match{
								MatchValue: &pb.Match_Keyword{
									Keyword: string(entityType),
								},
							},
						},
					},
				},
			},
		},
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	return scoredPointsToCandidates(resp.Result), nil
}

// RemoveSession drops all indexed entries for a session.
func (r *Repository) RemoveSession(ctx context.Context, sessionID string) error {
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						{
							ConditionOneOf: &pb.Condition_Field{
								Field: &pb.FieldCondition{
									Key: "session_id",
									Match: &pb.Match{
										MatchValue: &pb.Match_Keyword{
											Keyword: sessionID,
										},
									},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting points by session: %w", err)
	}

	return nil
}

// Count returns the total number of indexed entities.
func (r *Repository) Count(ctx context.Context) (uint64, error) {
	resp, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("getting collection info: %w", err)
	}

	if resp.Result.PointsCount == nil {
		return 0, nil
	}

	return *resp.Result.PointsCount, nil
}

// scoredPointsToCandidates converts scored points to similarity candidates.
func scoredPointsToCandidates(points []*pb.ScoredPoint) []ports.SimilarEntity {
	candidates := make([]ports.SimilarEntity, 0, len(points))

	for _, point := range points {
		id := ""
		if uuid := point.Id.GetUuid(); uuid != "" {
			id = uuid
		}

		payload := point.Payload
		candidates = append(candidates, ports.SimilarEntity{
			EntityID: id,
			Name:     getStringValue(payload, "name"),
			Type:     entities.EntityType(getStringValue(payload, "type")),
			Score:    float64(point.Score),
		})
	}

	return candidates
}

// getStringValue extracts a string payload field.
func getStringValue(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}
