package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConcurrentCommit is returned when another writer committed the same
// version first.
var ErrConcurrentCommit = errors.New("concurrent snapshot commit detected")

// DynamoDBClient is the subset of the DynamoDB API the commit pointer needs.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// CommitPointer tracks which snapshot blob is current, using DynamoDB
// conditional writes for the compare-and-swap that S3 itself lacks. Each
// commit appends a monotonically increasing version under the store's base
// URI, so concurrent writers cannot silently overwrite each other.
//
// Table schema: partition key base_uri (S), sort key version (N), attribute
// snapshot (S).
type CommitPointer struct {
	client  DynamoDBClient
	table   string
	baseURI string
}

// NewCommitPointer creates a commit pointer for the given base URI
// (typically "s3://bucket/prefix").
func NewCommitPointer(client DynamoDBClient, table, baseURI string) *CommitPointer {
	return &CommitPointer{
		client:  client,
		table:   table,
		baseURI: baseURI,
	}
}

// Current returns the latest committed version and snapshot name, or (0, "")
// when nothing has been committed yet.
func (c *CommitPointer) Current(ctx context.Context) (uint64, string, error) {
	resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.table),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":uri": &ddbtypes.AttributeValueMemberS{Value: c.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("s3: query commit pointer: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("s3: invalid version attribute in commit pointer")
	}
	snapshotAttr, ok := item["snapshot"].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("s3: invalid snapshot attribute in commit pointer")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("s3: parse committed version: %w", err)
	}
	return version, snapshotAttr.Value, nil
}

// Commit records snapshot as the next version and returns it. Two writers
// racing for the same version leave exactly one winner; the loser gets
// ErrConcurrentCommit and should re-read Current before retrying.
func (c *CommitPointer) Commit(ctx context.Context, snapshot string) (uint64, error) {
	current, _, err := c.Current(ctx)
	if err != nil {
		return 0, err
	}
	next := current + 1

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item: map[string]ddbtypes.AttributeValue{
			"base_uri": &ddbtypes.AttributeValueMemberS{Value: c.baseURI},
			"version":  &ddbtypes.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			"snapshot": &ddbtypes.AttributeValueMemberS{Value: snapshot},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var cond *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return 0, ErrConcurrentCommit
		}
		return 0, fmt.Errorf("s3: commit snapshot pointer: %w", err)
	}
	return next, nil
}
