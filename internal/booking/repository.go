package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PhoneIndex is the GSI keyed by canonical phone with startAt as the sort
// key; it is the sole cross-tenant access path.
const PhoneIndex = "phone-index"

// queryPageSize bounds a single Query page on filtered reads.
const queryPageSize = 100

// ErrNotFound indicates the booking does not exist in the tenant's partition.
var ErrNotFound = errors.New("booking: not found")

// ErrBookingClosed indicates the booking already reached a terminal status
// and cannot re-enter an active one.
var ErrBookingClosed = errors.New("booking: already closed")

// terminalStatuses backs the status guard on activating writes.
var terminalStatuses = []Status{StatusCancelled, StatusCancelledBySalon, StatusNoShow, StatusExpired}

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Repository provides persistence for bookings.
type Repository struct {
	client    dynamoAPI
	tableName string
}

// NewRepository builds a repository backed by the provided DynamoDB client.
func NewRepository(client dynamoAPI, tableName string) *Repository {
	if client == nil {
		panic("booking: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("booking: table name cannot be empty")
	}
	return &Repository{client: client, tableName: tableName}
}

// Get fetches one booking by tenant and id.
func (r *Repository) Get(ctx context.Context, siteID, bookingID string) (*Booking, error) {
	if siteID == "" || bookingID == "" {
		return nil, errors.New("booking: siteID and bookingID required")
	}
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       bookingKey(siteID, bookingID),
	})
	if err != nil {
		return nil, fmt.Errorf("booking: fetch %s: %w", bookingID, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	b, err := unmarshalBooking(out.Item)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// FindAwaitingConfirmation returns bookings awaiting confirmation for a
// canonical phone with a future start, across all tenants, ascending by
// start time. Pages are walked until limit matches survive the status
// filter: DynamoDB applies Limit before FilterExpression, so a single page
// can legally come back empty while later pages still hold matches. An empty
// result is not an error.
func (r *Repository) FindAwaitingConfirmation(ctx context.Context, phone string, limit int) ([]Booking, error) {
	if phone == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 25
	}
	now := FormatInstant(time.Now())
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(PhoneIndex),
		KeyConditionExpression: aws.String("customerPhone = :phone AND startAt > :now"),
		FilterExpression:       aws.String("#status = :awaiting"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":phone":    &types.AttributeValueMemberS{Value: phone},
			":now":      &types.AttributeValueMemberS{Value: now},
			":awaiting": &types.AttributeValueMemberS{Value: string(StatusAwaitingConfirmation)},
		},
		ScanIndexForward: aws.Bool(true),
		Limit:            aws.Int32(int32(queryPageSize)),
	}

	var matches []Booking
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("booking: query awaiting confirmation: %w", err)
		}
		page, err := unmarshalBookings(out.Items)
		if err != nil {
			return nil, err
		}
		matches = append(matches, page...)
		if len(matches) >= limit || len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// ListByGroupRef returns every booking in the tenant sharing the multi-step
// group reference.
func (r *Repository) ListByGroupRef(ctx context.Context, siteID, groupRef string) ([]Booking, error) {
	if siteID == "" || groupRef == "" {
		return nil, nil
	}
	bookings, err := r.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("siteId = :site"),
		FilterExpression:       aws.String("multiBookingGroupRef = :ref"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":site": &types.AttributeValueMemberS{Value: siteID},
			":ref":  &types.AttributeValueMemberS{Value: groupRef},
		},
		Limit: aws.Int32(int32(queryPageSize)),
	})
	if err != nil {
		return nil, fmt.Errorf("booking: query group ref: %w", err)
	}
	sortByStart(bookings)
	return bookings, nil
}

// ListByPhone returns the tenant's bookings for a canonical phone, ascending
// by start time.
func (r *Repository) ListByPhone(ctx context.Context, siteID, phone string) ([]Booking, error) {
	if siteID == "" || phone == "" {
		return nil, nil
	}
	bookings, err := r.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("siteId = :site"),
		FilterExpression:       aws.String("customerPhone = :phone"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":site":  &types.AttributeValueMemberS{Value: siteID},
			":phone": &types.AttributeValueMemberS{Value: phone},
		},
		Limit: aws.Int32(int32(queryPageSize)),
	})
	if err != nil {
		return nil, fmt.Errorf("booking: query by phone: %w", err)
	}
	sortByStart(bookings)
	return bookings, nil
}

// queryAll drains every page of a filtered Query. Filters run after the page
// limit, so any filtered read has to follow LastEvaluatedKey to the end or it
// silently drops rows.
func (r *Repository) queryAll(ctx context.Context, input *dynamodb.QueryInput) ([]Booking, error) {
	var all []Booking
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		page, err := unmarshalBookings(out.Items)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return all, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// Page is one cursor-delimited slice of a tenant scan. Each page's writes
// commit independently, so a crashed scan resumes from the next cursor.
type Page struct {
	Bookings []Booking
	Cursor   map[string]types.AttributeValue
}

// ListPastDuePage returns one page of the tenant's bookings starting before
// the cutoff instant.
func (r *Repository) ListPastDuePage(ctx context.Context, siteID, cutoff string, cursor map[string]types.AttributeValue, limit int) (*Page, error) {
	if siteID == "" || cutoff == "" {
		return nil, errors.New("booking: siteID and cutoff required")
	}
	if limit <= 0 {
		limit = 100
	}
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("siteId = :site"),
		FilterExpression:       aws.String("startAt < :cutoff"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":site":   &types.AttributeValueMemberS{Value: siteID},
			":cutoff": &types.AttributeValueMemberS{Value: cutoff},
		},
		ExclusiveStartKey: cursor,
		Limit:             aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("booking: query past due: %w", err)
	}
	bookings, err := unmarshalBookings(out.Items)
	if err != nil {
		return nil, err
	}
	return &Page{Bookings: bookings, Cursor: out.LastEvaluatedKey}, nil
}

// UpdateStatus sets the booking status. Re-applying an already-held status is
// a no-op success, which keeps confirm/cancel idempotent against duplicate
// webhook deliveries. Writes that would move a terminal booking back into an
// active status are rejected with ErrBookingClosed: a confirmation arriving
// minutes after a cancellation must not resurrect the row. cancelledBy and
// reason are attached only when non-empty.
func (r *Repository) UpdateStatus(ctx context.Context, siteID, bookingID string, status Status, cancelledBy, reason string) error {
	if siteID == "" || bookingID == "" {
		return errors.New("booking: siteID and bookingID required")
	}
	expr := "SET #status = :status, updatedAt = :updated"
	values := map[string]types.AttributeValue{
		":status":  &types.AttributeValueMemberS{Value: string(status)},
		":updated": &types.AttributeValueMemberS{Value: FormatInstant(time.Now())},
	}
	if cancelledBy != "" {
		expr += ", cancelledBy = :by"
		values[":by"] = &types.AttributeValueMemberS{Value: cancelledBy}
	}
	if reason != "" {
		expr += ", cancellationReason = :reason"
		values[":reason"] = &types.AttributeValueMemberS{Value: reason}
	}

	cond := "attribute_exists(bookingId)"
	if !status.IsTerminal() {
		placeholders := make([]string, len(terminalStatuses))
		for i, terminal := range terminalStatuses {
			ph := fmt.Sprintf(":terminal%d", i)
			values[ph] = &types.AttributeValueMemberS{Value: string(terminal)}
			placeholders[i] = ph
		}
		cond += " AND NOT (#status IN (" + strings.Join(placeholders, ", ") + "))"
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       bookingKey(siteID, bookingID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String(cond),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return r.classifyConditionFailure(ctx, siteID, bookingID, status)
		}
		return fmt.Errorf("booking: update status %s: %w", bookingID, err)
	}
	return nil
}

// classifyConditionFailure tells a vanished document apart from a terminal
// one after a guarded write bounced.
func (r *Repository) classifyConditionFailure(ctx context.Context, siteID, bookingID string, status Status) error {
	if status.IsTerminal() {
		return ErrNotFound
	}
	if _, err := r.Get(ctx, siteID, bookingID); errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return ErrBookingClosed
}

// Delete removes the booking document.
func (r *Repository) Delete(ctx context.Context, siteID, bookingID string) error {
	if siteID == "" || bookingID == "" {
		return errors.New("booking: siteID and bookingID required")
	}
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       bookingKey(siteID, bookingID),
	})
	if err != nil {
		return fmt.Errorf("booking: delete %s: %w", bookingID, err)
	}
	return nil
}

func bookingKey(siteID, bookingID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"siteId":    &types.AttributeValueMemberS{Value: siteID},
		"bookingId": &types.AttributeValueMemberS{Value: bookingID},
	}
}

func unmarshalBooking(item map[string]types.AttributeValue) (Booking, error) {
	var b Booking
	if err := attributevalue.UnmarshalMap(item, &b); err != nil {
		return Booking{}, fmt.Errorf("booking: decode item: %w", err)
	}
	b.Status = NormalizeStatus(string(b.Status))
	return b, nil
}

func unmarshalBookings(items []map[string]types.AttributeValue) ([]Booking, error) {
	bookings := make([]Booking, 0, len(items))
	for _, item := range items {
		b, err := unmarshalBooking(item)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, nil
}

func sortByStart(bookings []Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].StartAt < bookings[j].StartAt
	})
}
