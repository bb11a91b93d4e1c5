// Package semantic mirrors the fitted TF-IDF item vectors into a Qdrant
// collection so other services can run nearest-neighbour queries against the
// same term space the recommender uses.
package semantic

import (
	"context"
	"errors"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrDimensionMismatch means the collection exists with a different vector size.
var ErrDimensionMismatch = errors.New("semantic: collection vector size mismatch")

// DefaultBatchSize bounds the points sent in one upsert call.
const DefaultBatchSize = 256

// PointsAPI is the subset of pb.PointsClient the store uses.
type PointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// CollectionsAPI is the subset of pb.CollectionsClient the store uses.
type CollectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Get(ctx context.Context, in *pb.GetCollectionInfoRequest, opts ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore owns all Qdrant operations for one collection.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      PointsAPI
	collections CollectionsAPI
	collection  string
	batchSize   int
}

// New connects to Qdrant's gRPC endpoint at addr.
func New(addr, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	vs := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection)
	vs.conn = conn
	return vs, nil
}

// NewWithClients builds a store over existing clients.
func NewWithClients(points PointsAPI, collections CollectionsAPI, collection string) *VectorStore {
	return &VectorStore{
		points:      points,
		collections: collections,
		collection:  collection,
		batchSize:   DefaultBatchSize,
	}
}

// Collection is the target collection name.
func (v *VectorStore) Collection() string { return v.collection }

// Close closes the gRPC connection, if the store owns one.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection makes sure a cosine collection of size dims exists. An
// existing collection of another size is an ErrDimensionMismatch unless
// recreate is set, in which case it is dropped and created again.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int, recreate bool) error {
	exists, err := v.exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		size, err := v.vectorSize(ctx)
		if err != nil {
			return err
		}
		if size == uint64(dims) {
			return nil
		}
		if !recreate {
			return fmt.Errorf("%w: %s has %d, need %d", ErrDimensionMismatch, v.collection, size, dims)
		}
		if err := v.DeleteCollection(ctx); err != nil {
			return err
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

func (v *VectorStore) exists(ctx context.Context) (bool, error) {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return true, nil
		}
	}
	return false, nil
}

func (v *VectorStore) vectorSize(ctx context.Context) (uint64, error) {
	info, err := v.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: v.collection})
	if err != nil {
		return 0, fmt.Errorf("semantic: collection info %s: %w", v.collection, err)
	}
	return info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize(), nil
}

// DeleteCollection drops the collection.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: v.collection})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert writes records in batches and waits for each batch to apply.
func (v *VectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	for start := 0; start < len(records); start += v.batchSize {
		end := min(start+v.batchSize, len(records))
		batch := records[start:end]

		points := make([]*pb.PointStruct, len(batch))
		for i, r := range batch {
			points[i] = &pb.PointStruct{
				Id: &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: r.ID}},
				Vectors: &pb.Vectors{
					VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Vector}},
				},
				Payload: toPayload(r.Payload),
			}
		}

		wait := true
		if _, err := v.points.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: v.collection,
			Wait:           &wait,
			Points:         points,
		}); err != nil {
			return fmt.Errorf("semantic: upsert points %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func toPayload(in map[string]any) map[string]*pb.Value {
	out := make(map[string]*pb.Value, len(in))
	for k, val := range in {
		switch tv := val.(type) {
		case string:
			out[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
		case int:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
		case float64:
			out[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
		default:
			out[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
		}
	}
	return out
}

// Search returns the topK items nearest to vector.
func (v *VectorStore) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		p := r.GetPayload()
		results[i] = SearchResult{
			ID:           r.GetId().GetNum(),
			Score:        r.GetScore(),
			RecipeName:   p["recipe_name"].GetStringValue(),
			CategoryName: p["category_name"].GetStringValue(),
			Price:        p["price"].GetDoubleValue(),
		}
	}
	return results, nil
}
