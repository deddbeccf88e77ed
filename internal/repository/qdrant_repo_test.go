package repository

import (
	"testing"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/stylematch/internal/domain"
)

func TestPointIDDeterministic(t *testing.T) {
	a := PointID("media-1")
	assert.Equal(t, a, PointID("media-1"))
	assert.NotEqual(t, a, PointID("media-2"))

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
}

func TestBuildPointRoundTrip(t *testing.T) {
	rec := testRecord("m1", "p1")
	rec.Description = "glossy chrome tips"

	point, err := buildPoint(rec)
	require.NoError(t, err)
	assert.Equal(t, PointID("m1"), point.GetId().GetUuid())

	named := point.GetVectors().GetVectors().GetVectors()
	assert.Len(t, named, 4)
	assert.NotContains(t, named, string(domain.SlotColor))

	out := &pb.VectorsOutput{
		VectorsOptions: &pb.VectorsOutput_Vectors{
			Vectors: &pb.NamedVectorsOutput{Vectors: map[string]*pb.VectorOutput{}},
		},
	}
	for name, v := range named {
		out.GetVectors().Vectors[name] = &pb.VectorOutput{
			Vector: &pb.VectorOutput_Dense{Dense: &pb.DenseVector{Data: v.GetDense().GetData()}},
		}
	}
	out.GetVectors().Vectors["legacy"] = &pb.VectorOutput{
		Vector: &pb.VectorOutput_Dense{Dense: &pb.DenseVector{Data: []float32{1}}},
	}

	got := recordFromPoint(point.GetPayload(), out)
	assert.Equal(t, rec.MediaID, got.MediaID)
	assert.Equal(t, rec.ServiceID, got.ServiceID)
	assert.Equal(t, rec.ProviderID, got.ProviderID)
	assert.Equal(t, rec.Category, got.Category)
	assert.Equal(t, rec.Description, got.Description)
	assert.Equal(t, rec.Tags, got.Tags)
	assert.True(t, rec.IndexedAt.Equal(got.IndexedAt))
	assert.Equal(t, rec.Vectors, got.Vectors)
}

func TestBuildPointCopiesVectors(t *testing.T) {
	rec := testRecord("m1", "p1")
	point, err := buildPoint(rec)
	require.NoError(t, err)

	rec.Vectors.Visual[1] = 0
	data := point.GetVectors().GetVectors().GetVectors()[string(domain.SlotVisual)].GetDense().GetData()
	assert.Equal(t, float32(1), data[1])
}

func TestBuildPointRejectsInvalid(t *testing.T) {
	bad := testRecord("m1", "p1")
	bad.Vectors.Semantic = make([]float32, domain.ImageVectorDim)
	_, err := buildPoint(bad)
	assert.ErrorIs(t, err, domain.ErrInvalidVector)

	_, err = buildPoint(&domain.MediaEmbeddingRecord{MediaID: "m2"})
	assert.ErrorIs(t, err, domain.ErrInvalidVector)
}

func TestBuildFilter(t *testing.T) {
	assert.Nil(t, buildFilter(""))

	f := buildFilter("provider-9")
	require.Len(t, f.GetMust(), 1)
	field := f.GetMust()[0].GetField()
	assert.Equal(t, "provider_id", field.GetKey())
	assert.Equal(t, "provider-9", field.GetMatch().GetKeyword())
}

func TestCheckSlotParams(t *testing.T) {
	params := map[string]*pb.VectorParams{}
	for _, slot := range domain.AllSlots {
		params[string(slot)] = &pb.VectorParams{Size: uint64(domain.SlotDimension(slot))}
	}
	info := func(m map[string]*pb.VectorParams) *pb.CollectionInfo {
		return &pb.CollectionInfo{
			Config: &pb.CollectionConfig{
				Params: &pb.CollectionParams{
					VectorsConfig: &pb.VectorsConfig{
						Config: &pb.VectorsConfig_ParamsMap{ParamsMap: &pb.VectorParamsMap{Map: m}},
					},
				},
			},
		}
	}

	assert.NoError(t, checkSlotParams("media", info(params)))

	params[string(domain.SlotColor)] = &pb.VectorParams{Size: 768}
	assert.Error(t, checkSlotParams("media", info(params)))

	delete(params, string(domain.SlotColor))
	assert.Error(t, checkSlotParams("media", info(params)))

	assert.Error(t, checkSlotParams("media", &pb.CollectionInfo{}))
}
