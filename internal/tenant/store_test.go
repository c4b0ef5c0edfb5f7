package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type mockDynamo struct {
	out *dynamodb.GetItemOutput
	err error
}

func (m *mockDynamo) GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.out != nil {
		return m.out, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

func TestGetNotFound(t *testing.T) {
	store := NewStore(&mockDynamo{}, "salon-sites")
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrSiteNotFound) {
		t.Fatalf("expected ErrSiteNotFound, got %v", err)
	}
}

func TestDisplayName(t *testing.T) {
	item, err := attributevalue.MarshalMap(Site{SiteID: "s1", DisplayName: "Studio Dana", OwnerID: "owner-1"})
	if err != nil {
		t.Fatalf("marshal site: %v", err)
	}
	store := NewStore(&mockDynamo{out: &dynamodb.GetItemOutput{Item: item}}, "salon-sites")

	name, err := store.DisplayName(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "Studio Dana" {
		t.Fatalf("unexpected name %q", name)
	}
}
