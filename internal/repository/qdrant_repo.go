package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/matching"
)

// mediaNamespace seeds the deterministic point IDs derived from media IDs.
var mediaNamespace = uuid.MustParse("6f1c7a52-3b0e-5d8e-9a41-2c7f0e9b8d13")

// PointID maps a media ID to its Qdrant point UUID. The same media ID always
// yields the same point, so re-indexing overwrites in place.
func PointID(mediaID string) string {
	return uuid.NewSHA1(mediaNamespace, []byte(mediaID)).String()
}

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host       string
	Port       int
	Collection string
	APIKey     string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS     bool   // Explicitly enable TLS without API Key
}

// apiKeyInterceptor creates a unary interceptor that adds API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantStore keeps one point per media item with one named vector per slot.
// A point upsert replaces every slot at once, so readers never observe a
// half-updated record.
type QdrantStore struct {
	conn           *grpc.ClientConn
	pointsClient   pb.PointsClient
	collectClient  pb.CollectionsClient
	collectionName string
}

// NewQdrantStore creates a new QdrantStore.
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API Key)
func NewQdrantStore(cfg *QdrantConnectionConfig) (*QdrantStore, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var opts []grpc.DialOption
	if cfg.UseTLS || cfg.APIKey != "" {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantStore{
		conn:           conn,
		pointsClient:   pb.NewPointsClient(conn),
		collectClient:  pb.NewCollectionsClient(conn),
		collectionName: cfg.Collection,
	}, nil
}

// Close closes the gRPC connection
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

// EnsureCollection creates the collection with one named vector per slot if it
// does not exist, and checks slot dimensions if it does.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	info, err := s.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: s.collectionName,
	})
	if err == nil {
		return checkSlotParams(s.collectionName, info.GetResult())
	}

	params := make(map[string]*pb.VectorParams, len(domain.AllSlots))
	for _, slot := range domain.AllSlots {
		params[string(slot)] = &pb.VectorParams{
			Size:     uint64(domain.SlotDimension(slot)),
			Distance: pb.Distance_Cosine,
		}
	}

	_, err = s.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_ParamsMap{
				ParamsMap: &pb.VectorParamsMap{Map: params},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:                 optionalUint64(16),
			EfConstruct:       optionalUint64(128),
			FullScanThreshold: optionalUint64(10000),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	fieldType := pb.FieldType_FieldTypeKeyword
	wait := true
	if _, err := s.pointsClient.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: s.collectionName,
		Wait:           &wait,
		FieldName:      "provider_id",
		FieldType:      &fieldType,
	}); err != nil {
		return fmt.Errorf("failed to index provider_id: %w", err)
	}
	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func checkSlotParams(collection string, info *pb.CollectionInfo) error {
	paramsMap := info.GetConfig().GetParams().GetVectorsConfig().GetParamsMap().GetMap()
	if len(paramsMap) == 0 {
		return fmt.Errorf("collection %s has no named vectors", collection)
	}
	for _, slot := range domain.AllSlots {
		params, ok := paramsMap[string(slot)]
		if !ok {
			return fmt.Errorf("collection %s is missing vector %q", collection, slot)
		}
		if want := uint64(domain.SlotDimension(slot)); params.GetSize() != want {
			return fmt.Errorf("collection %s vector %q has size %d, expected %d", collection, slot, params.GetSize(), want)
		}
	}
	return nil
}

// Put atomically replaces the record for rec.MediaID.
func (s *QdrantStore) Put(ctx context.Context, rec *domain.MediaEmbeddingRecord) error {
	point, err := buildPoint(rec)
	if err != nil {
		return err
	}
	wait := true
	_, err = s.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collectionName,
		Wait:           &wait,
		Points:         []*pb.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

// Get fetches one record. Unknown media IDs return domain.ErrRecordNotFound.
func (s *QdrantStore) Get(ctx context.Context, mediaID string) (*domain.MediaEmbeddingRecord, error) {
	resp, err := s.pointsClient.Get(ctx, &pb.GetPoints{
		CollectionName: s.collectionName,
		Ids:            []*pb.PointId{pointIDValue(mediaID)},
		WithPayload:    withPayload(),
		WithVectors:    withVectors(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get point: %w", err)
	}
	if len(resp.GetResult()) == 0 {
		return nil, fmt.Errorf("media %s: %w", mediaID, domain.ErrRecordNotFound)
	}
	p := resp.GetResult()[0]
	return recordFromPoint(p.GetPayload(), p.GetVectors()), nil
}

// Delete removes the record for mediaID. Deleting an unknown ID is not an error.
func (s *QdrantStore) Delete(ctx context.Context, mediaID string) error {
	wait := true
	_, err := s.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collectionName,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointIDValue(mediaID)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}
	return nil
}

// ScanCandidates implements matching.CandidateSource. With a prefetch vector it
// runs one nearest-neighbor query on the hybrid vector and streams those
// points; otherwise it scrolls the whole (optionally provider scoped) collection.
func (s *QdrantStore) ScanCandidates(ctx context.Context, q matching.CandidateQuery, fn func([]domain.MediaEmbeddingRecord) error) error {
	batchSize := q.BatchSize
	if batchSize <= 0 {
		batchSize = matching.DefaultScanBatchSize
	}
	filter := buildFilter(q.ProviderID)

	if len(q.PrefetchVector) > 0 && q.PrefetchLimit > 0 {
		return s.scanNearest(ctx, q, filter, batchSize, fn)
	}

	limit := uint32(batchSize)
	var offset *pb.PointId
	for {
		resp, err := s.pointsClient.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.collectionName,
			Filter:         filter,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    withPayload(),
			WithVectors:    withVectors(),
		})
		if err != nil {
			return fmt.Errorf("failed to scroll points: %w", err)
		}

		batch := make([]domain.MediaEmbeddingRecord, 0, len(resp.GetResult()))
		for _, p := range resp.GetResult() {
			batch = append(batch, *recordFromPoint(p.GetPayload(), p.GetVectors()))
		}
		if len(batch) > 0 {
			if err := fn(batch); err != nil {
				return err
			}
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			return nil
		}
	}
}

func (s *QdrantStore) scanNearest(ctx context.Context, q matching.CandidateQuery, filter *pb.Filter, batchSize int, fn func([]domain.MediaEmbeddingRecord) error) error {
	vectorName := string(domain.SlotHybrid)
	resp, err := s.pointsClient.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collectionName,
		Vector:         q.PrefetchVector,
		VectorName:     &vectorName,
		Filter:         filter,
		Limit:          uint64(q.PrefetchLimit),
		WithPayload:    withPayload(),
		WithVectors:    withVectors(),
	})
	if err != nil {
		return fmt.Errorf("failed to search nearest points: %w", err)
	}

	points := resp.GetResult()
	for start := 0; start < len(points); start += batchSize {
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}
		batch := make([]domain.MediaEmbeddingRecord, 0, end-start)
		for _, p := range points[start:end] {
			batch = append(batch, *recordFromPoint(p.GetPayload(), p.GetVectors()))
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

func withPayload() *pb.WithPayloadSelector {
	return &pb.WithPayloadSelector{
		SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
	}
}

func withVectors() *pb.WithVectorsSelector {
	return &pb.WithVectorsSelector{
		SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true},
	}
}

func pointIDValue(mediaID string) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(mediaID)}}
}

// buildPoint converts a record into a point with only the present slots as named vectors.
func buildPoint(rec *domain.MediaEmbeddingRecord) (*pb.PointStruct, error) {
	if rec.MediaID == "" {
		return nil, fmt.Errorf("%w: empty media ID", domain.ErrInvalidVector)
	}
	if err := rec.Vectors.Validate(); err != nil {
		return nil, err
	}
	if rec.Vectors.Empty() {
		return nil, fmt.Errorf("%w: media %s has no vectors", domain.ErrInvalidVector, rec.MediaID)
	}

	named := make(map[string]*pb.Vector, len(domain.AllSlots))
	for _, slot := range rec.Vectors.Present() {
		data := append([]float32(nil), rec.Vectors.Get(slot)...)
		named[string(slot)] = &pb.Vector{
			Vector: &pb.Vector_Dense{Dense: &pb.DenseVector{Data: data}},
		}
	}

	return &pb.PointStruct{
		Id: pointIDValue(rec.MediaID),
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vectors{
				Vectors: &pb.NamedVectors{Vectors: named},
			},
		},
		Payload: map[string]*pb.Value{
			"media_id":    stringValue(rec.MediaID),
			"service_id":  stringValue(rec.ServiceID),
			"provider_id": stringValue(rec.ProviderID),
			"category":    stringValue(rec.Category),
			"description": stringValue(rec.Description),
			"tags":        tagsToValue(rec.Tags),
			"indexed_at":  {Kind: &pb.Value_IntegerValue{IntegerValue: rec.IndexedAt.UnixMilli()}},
		},
	}, nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func tagsToValue(tags []string) *pb.Value {
	values := make([]*pb.Value, len(tags))
	for i, tag := range tags {
		values[i] = stringValue(tag)
	}
	return &pb.Value{
		Kind: &pb.Value_ListValue{
			ListValue: &pb.ListValue{Values: values},
		},
	}
}

func buildFilter(providerID string) *pb.Filter {
	if providerID == "" {
		return nil
	}
	return &pb.Filter{
		Must: []*pb.Condition{
			{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key: "provider_id",
						Match: &pb.Match{
							MatchValue: &pb.Match_Keyword{Keyword: providerID},
						},
					},
				},
			},
		},
	}
}

// recordFromPoint rebuilds a record from a point's payload and named vectors.
// Unknown vector names are ignored.
func recordFromPoint(payload map[string]*pb.Value, vectors *pb.VectorsOutput) *domain.MediaEmbeddingRecord {
	rec := &domain.MediaEmbeddingRecord{
		MediaID:     payload["media_id"].GetStringValue(),
		ServiceID:   payload["service_id"].GetStringValue(),
		ProviderID:  payload["provider_id"].GetStringValue(),
		Category:    payload["category"].GetStringValue(),
		Description: payload["description"].GetStringValue(),
		IndexedAt:   time.UnixMilli(payload["indexed_at"].GetIntegerValue()).UTC(),
	}
	if list := payload["tags"].GetListValue(); list != nil {
		for _, item := range list.GetValues() {
			rec.Tags = append(rec.Tags, item.GetStringValue())
		}
	}

	for name, out := range vectors.GetVectors().GetVectors() {
		slot := domain.Slot(name)
		if !slot.Valid() {
			continue
		}
		data := out.GetDense().GetData()
		if len(data) == 0 {
			data = out.GetData()
		}
		if len(data) > 0 {
			rec.Vectors.Set(slot, data)
		}
	}
	return rec
}
