package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/booking"
)

// maxBatchKeys is the DynamoDB BatchWriteItem ceiling.
const maxBatchKeys = 25

// ArchivedBooking is a deduplicated historical record. New writes key on
// DedupKey(client, serviceType); legacy rows may carry arbitrary keys until
// the dedup pass rewrites them.
type ArchivedBooking struct {
	SiteID        string         `dynamodbav:"siteId" json:"siteId"`
	ArchiveKey    string         `dynamodbav:"archiveKey" json:"archiveKey"`
	BookingID     string         `dynamodbav:"bookingId" json:"bookingId"`
	CustomerPhone string         `dynamodbav:"customerPhone" json:"customerPhone"`
	ClientName    string         `dynamodbav:"clientName,omitempty" json:"clientName,omitempty"`
	StartAt       string         `dynamodbav:"startAt" json:"startAt"`
	Status        booking.Status `dynamodbav:"status" json:"status"`
	ServiceTypeID string         `dynamodbav:"serviceTypeId,omitempty" json:"serviceTypeId,omitempty"`
	ServiceName   string         `dynamodbav:"serviceName,omitempty" json:"serviceName,omitempty"`
	ArchivedAt    string         `dynamodbav:"archivedAt" json:"archivedAt"`
	UpdatedAt     string         `dynamodbav:"updatedAt" json:"updatedAt"`
}

// DedupKey builds the canonical archive key: one row per (client,
// serviceType) pair per tenant.
func DedupKey(customerPhone, serviceTypeID string) string {
	if serviceTypeID == "" {
		serviceTypeID = "none"
	}
	return customerPhone + "#" + serviceTypeID
}

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(context.Context, *dynamodb.BatchWriteItemInput, ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// Store persists archived bookings.
type Store struct {
	client    dynamoAPI
	tableName string
	now       func() time.Time
}

// NewStore builds an archive store.
func NewStore(client dynamoAPI, tableName string) *Store {
	if client == nil {
		panic("archive: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("archive: table name cannot be empty")
	}
	return &Store{client: client, tableName: tableName, now: time.Now}
}

// Put merges a booking into its archived representation. Writing the same
// logical appointment again overwrites the same key, so re-running a scan
// never creates a duplicate.
func (s *Store) Put(ctx context.Context, rec *ArchivedBooking) error {
	if rec == nil || rec.SiteID == "" {
		return errors.New("archive: record with siteId required")
	}
	if rec.ArchiveKey == "" {
		rec.ArchiveKey = DedupKey(rec.CustomerPhone, rec.ServiceTypeID)
	}
	now := booking.FormatInstant(s.now())
	if rec.ArchivedAt == "" {
		rec.ArchivedAt = now
	}
	rec.UpdatedAt = now

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("archive: marshal: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("archive: persist %s: %w", rec.ArchiveKey, err)
	}
	return nil
}

// Page is one cursor-delimited slice of a tenant's archive, ordered by
// archive key.
type Page struct {
	Records []ArchivedBooking
	Cursor  map[string]types.AttributeValue
}

// ListPage returns one page of the tenant's archived rows.
func (s *Store) ListPage(ctx context.Context, siteID string, cursor map[string]types.AttributeValue, limit int) (*Page, error) {
	if siteID == "" {
		return nil, errors.New("archive: siteID required")
	}
	if limit <= 0 {
		limit = 100
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("siteId = :site"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":site": &types.AttributeValueMemberS{Value: siteID},
		},
		ExclusiveStartKey: cursor,
		Limit:             aws.Int32(int32(limit)),
		ScanIndexForward:  aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("archive: query page: %w", err)
	}
	records := make([]ArchivedBooking, 0, len(out.Items))
	for _, item := range out.Items {
		var rec ArchivedBooking
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("archive: decode row: %w", err)
		}
		rec.Status = booking.NormalizeStatus(string(rec.Status))
		records = append(records, rec)
	}
	return &Page{Records: records, Cursor: out.LastEvaluatedKey}, nil
}

// BatchDelete permanently removes archived rows in BatchWriteItem chunks.
// Returns the number of keys accepted by the store; unprocessed keys are
// retried once, then counted as failures by the caller.
func (s *Store) BatchDelete(ctx context.Context, siteID string, keys []string) (int, error) {
	if siteID == "" {
		return 0, errors.New("archive: siteID required")
	}
	deleted := 0
	for start := 0; start < len(keys); start += maxBatchKeys {
		end := start + maxBatchKeys
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]
		accepted, err := s.deleteChunk(ctx, siteID, chunk)
		deleted += accepted
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (s *Store) deleteChunk(ctx context.Context, siteID string, keys []string) (int, error) {
	requests := make([]types.WriteRequest, 0, len(keys))
	for _, key := range keys {
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{
				Key: map[string]types.AttributeValue{
					"siteId":     &types.AttributeValueMemberS{Value: siteID},
					"archiveKey": &types.AttributeValueMemberS{Value: key},
				},
			},
		})
	}

	pending := map[string][]types.WriteRequest{s.tableName: requests}
	submitted := len(requests)
	for attempt := 0; attempt < 2 && len(pending) > 0; attempt++ {
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return 0, fmt.Errorf("archive: batch delete: %w", err)
		}
		pending = out.UnprocessedItems
	}
	unprocessed := 0
	for _, reqs := range pending {
		unprocessed += len(reqs)
	}
	return submitted - unprocessed, nil
}
