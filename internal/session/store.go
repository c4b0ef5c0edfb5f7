package session

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

// StatusAwaitingSelection is the only live session status.
const StatusAwaitingSelection = "awaiting_selection"

// ErrNoSession indicates there is no live session for the phone. An expired
// document still physically present reports the same way.
var ErrNoSession = errors.New("session: no live session")

// Session is the ephemeral disambiguation state for one phone: which intent
// is pending and which bookings the customer may pick from.
type Session struct {
	Phone         string              `dynamodbav:"phone" json:"phone"`
	Intent        string              `dynamodbav:"intent" json:"intent"`
	Status        string              `dynamodbav:"status" json:"status"`
	Choices       []booking.Candidate `dynamodbav:"choices" json:"choices"`
	CreatedAt     string              `dynamodbav:"createdAt" json:"createdAt"`
	ExpiresAt     int64               `dynamodbav:"expiresAt" json:"-"`
	LastMessageID string              `dynamodbav:"lastInboundMessageId,omitempty" json:"lastInboundMessageId,omitempty"`
	LastBody      string              `dynamodbav:"lastInboundBody,omitempty" json:"lastInboundBody,omitempty"`
}

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Store keeps at most one selection session per phone.
type Store struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewStore builds a session store with the given TTL.
func NewStore(client dynamoAPI, tableName string, ttl time.Duration) *Store {
	if client == nil {
		panic("session: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("session: table name cannot be empty")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{client: client, tableName: tableName, ttl: ttl, now: time.Now}
}

// Create writes the session, overwriting any existing one for the phone.
// Last writer wins: two near-simultaneous ambiguous replies race without a
// concurrency check, an accepted trade-off for this short-lived state.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	if sess == nil || sess.Phone == "" {
		return errors.New("session: phone required")
	}
	if len(sess.Choices) == 0 {
		return errors.New("session: choices required")
	}
	now := s.now().UTC()
	sess.Status = StatusAwaitingSelection
	sess.CreatedAt = now.Format(time.RFC3339)
	if sess.ExpiresAt == 0 {
		sess.ExpiresAt = now.Add(s.ttl).Unix()
	}

	item, err := attributevalue.MarshalMap(sess)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("session: persist: %w", err)
	}
	return nil
}

// Get returns the live session for the phone. Expiry is evaluated here by
// comparing expiresAt to the current time; the read path never deletes an
// expired document.
func (s *Store) Get(ctx context.Context, phone string) (*Session, error) {
	if phone == "" {
		return nil, ErrNoSession
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       sessionKey(phone),
	})
	if err != nil {
		return nil, fmt.Errorf("session: fetch: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNoSession
	}
	var sess Session
	if err := attributevalue.UnmarshalMap(out.Item, &sess); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	if sess.ExpiresAt <= s.now().Unix() {
		return nil, ErrNoSession
	}
	return &sess, nil
}

// Delete consumes the session.
func (s *Store) Delete(ctx context.Context, phone string) error {
	if phone == "" {
		return nil
	}
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       sessionKey(phone),
	}); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

func sessionKey(phone string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"phone": &types.AttributeValueMemberS{Value: phone},
	}
}
