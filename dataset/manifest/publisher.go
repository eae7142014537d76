// Package manifest publishes benchmark-run result summaries to S3 and
// advances an atomically-committed "latest run" pointer per corpus in
// DynamoDB, adapted from the teacher's S3+DynamoDB commit-store pattern
// (there used for a mutable index manifest) for one-shot result
// publication: each run writes once, and DynamoDB's conditional put
// keeps two concurrent benchmark runs against the same corpus from
// racing to claim the "latest" title.
package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrConcurrentPublish is returned when another writer already advanced
// the corpus's latest-run pointer between this call's read of the
// current version and its conditional put.
var ErrConcurrentPublish = errors.New("manifest: concurrent publish detected")

// DDBClient is the subset of *dynamodb.Client a Publisher needs.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// S3Client is the subset of *s3.Client a Publisher needs.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads a run summary to S3 and records it as the corpus's
// latest run in a DynamoDB table with the schema:
//   - Partition key: corpus (string)
//   - Sort key: version (number), monotonically increasing per corpus
type Publisher struct {
	s3     S3Client
	ddb    DDBClient
	bucket string
	prefix string
	table  string
}

// NewPublisher builds a Publisher writing run summaries under
// bucket/prefix and tracking the latest-run pointer in table.
func NewPublisher(s3Client S3Client, ddbClient DDBClient, bucket, prefix, table string) *Publisher {
	return &Publisher{s3: s3Client, ddb: ddbClient, bucket: bucket, prefix: prefix, table: table}
}

// PublishRun uploads summary to S3 under corpus's result prefix and
// atomically advances corpus's latest-run pointer to it. Returns
// ErrConcurrentPublish if another writer claimed the next version first;
// the summary itself is still in S3 at the returned key, just not
// pointed at.
func (p *Publisher) PublishRun(ctx context.Context, corpus, runID string, summary []byte) (key string, err error) {
	key = fmt.Sprintf("%s/%s/%s.json", p.prefix, corpus, runID)
	if _, err := p.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(summary),
	}); err != nil {
		return "", fmt.Errorf("manifest: upload run summary: %w", err)
	}

	currentVersion, _, err := p.queryLatest(ctx, corpus)
	if err != nil {
		return "", err
	}
	newVersion := currentVersion + 1

	_, err = p.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(p.table),
		Item: map[string]types.AttributeValue{
			"corpus":  &types.AttributeValueMemberS{Value: corpus},
			"version": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", newVersion)},
			"run_key": &types.AttributeValueMemberS{Value: key},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return key, ErrConcurrentPublish
		}
		return key, fmt.Errorf("manifest: commit latest pointer: %w", err)
	}
	return key, nil
}

// LatestRun returns the S3 key of the most recently published run for
// corpus, or "" if none has been published yet.
func (p *Publisher) LatestRun(ctx context.Context, corpus string) (string, error) {
	_, key, err := p.queryLatest(ctx, corpus)
	return key, err
}

func (p *Publisher) queryLatest(ctx context.Context, corpus string) (version int64, key string, err error) {
	resp, err := p.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(p.table),
		KeyConditionExpression: aws.String("corpus = :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: corpus},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("manifest: query latest pointer: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("manifest: invalid version attribute")
	}
	keyAttr, ok := item["run_key"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("manifest: invalid run_key attribute")
	}
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return 0, "", fmt.Errorf("manifest: parse version: %w", err)
	}
	return version, keyAttr.Value, nil
}
