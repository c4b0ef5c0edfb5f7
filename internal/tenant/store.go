package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrSiteNotFound indicates the tenant does not exist.
var ErrSiteNotFound = errors.New("tenant: site not found")

// Site is one salon with its own isolated booking collection.
type Site struct {
	SiteID      string `dynamodbav:"siteId" json:"siteId"`
	DisplayName string `dynamodbav:"displayName" json:"displayName"`
	OwnerID     string `dynamodbav:"ownerId" json:"ownerId"`
	Timezone    string `dynamodbav:"timezone,omitempty" json:"timezone,omitempty"`
}

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Store reads site records.
type Store struct {
	client    dynamoAPI
	tableName string
}

// NewStore builds a site store.
func NewStore(client dynamoAPI, tableName string) *Store {
	if client == nil {
		panic("tenant: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("tenant: table name cannot be empty")
	}
	return &Store{client: client, tableName: tableName}
}

// Get fetches a site by id.
func (s *Store) Get(ctx context.Context, siteID string) (*Site, error) {
	if siteID == "" {
		return nil, errors.New("tenant: siteID required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"siteId": &types.AttributeValueMemberS{Value: siteID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tenant: fetch site %s: %w", siteID, err)
	}
	if out.Item == nil {
		return nil, ErrSiteNotFound
	}
	var site Site
	if err := attributevalue.UnmarshalMap(out.Item, &site); err != nil {
		return nil, fmt.Errorf("tenant: decode site: %w", err)
	}
	return &site, nil
}

// DisplayName resolves the tenant's presentation name.
func (s *Store) DisplayName(ctx context.Context, siteID string) (string, error) {
	site, err := s.Get(ctx, siteID)
	if err != nil {
		return "", err
	}
	return site.DisplayName, nil
}
