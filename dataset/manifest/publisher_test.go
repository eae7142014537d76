package manifest

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts []s3.PutObjectInput
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, *params)
	return &s3.PutObjectOutput{}, nil
}

// fakeDDB models a single-corpus table in memory: one row per committed
// version, keyed by version number.
type fakeDDB struct {
	rows        map[int64]string // version -> run_key
	failCommits bool
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{rows: map[int64]string{}}
}

func (f *fakeDDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	versionAttr := params.Item["version"].(*types.AttributeValueMemberN)
	var version int64
	fmt.Sscanf(versionAttr.Value, "%d", &version)

	if f.failCommits {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if _, exists := f.rows[version]; exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	keyAttr := params.Item["run_key"].(*types.AttributeValueMemberS)
	f.rows[version] = keyAttr.Value
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	var best int64 = -1
	for v := range f.rows {
		if v > best {
			best = v
		}
	}
	if best < 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	return &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{
			{
				"version": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", best)},
				"run_key": &types.AttributeValueMemberS{Value: f.rows[best]},
			},
		},
	}, nil
}

func TestPublisher_PublishRunAdvancesLatestPointer(t *testing.T) {
	s3c := &fakeS3{}
	ddb := newFakeDDB()
	pub := NewPublisher(s3c, ddb, "bench-results", "runs", "dingo-bench-runs")

	key1, err := pub.PublishRun(context.Background(), "sift-128", "run-1", []byte(`{"recall":0.95}`))
	require.NoError(t, err)
	assert.Equal(t, "runs/sift-128/run-1.json", key1)

	latest, err := pub.LatestRun(context.Background(), "sift-128")
	require.NoError(t, err)
	assert.Equal(t, key1, latest)

	key2, err := pub.PublishRun(context.Background(), "sift-128", "run-2", []byte(`{"recall":0.97}`))
	require.NoError(t, err)

	latest, err = pub.LatestRun(context.Background(), "sift-128")
	require.NoError(t, err)
	assert.Equal(t, key2, latest)

	require.Len(t, s3c.puts, 2)
	assert.Equal(t, aws.String("bench-results"), s3c.puts[0].Bucket)
}

func TestPublisher_LatestRunEmptyForUnknownCorpus(t *testing.T) {
	pub := NewPublisher(&fakeS3{}, newFakeDDB(), "bench-results", "runs", "dingo-bench-runs")

	latest, err := pub.LatestRun(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestPublisher_ConcurrentPublishIsDetected(t *testing.T) {
	ddb := newFakeDDB()
	ddb.failCommits = true
	pub := NewPublisher(&fakeS3{}, ddb, "bench-results", "runs", "dingo-bench-runs")

	_, err := pub.PublishRun(context.Background(), "sift-128", "run-1", []byte(`{}`))
	require.ErrorIs(t, err, ErrConcurrentPublish)
}
