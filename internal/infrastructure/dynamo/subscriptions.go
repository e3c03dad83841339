package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/otp-relay/internal/domain"
)

// SubscriptionRepo provides typed DynamoDB operations for the subscriptions table (PK: phone).
type SubscriptionRepo struct {
	client    itemAPI
	tableName string
}

func NewSubscriptionRepo(client itemAPI, tableName string) *SubscriptionRepo {
	return &SubscriptionRepo{client: client, tableName: tableName}
}

func (r *SubscriptionRepo) Get(ctx context.Context, phone string) (*domain.Subscription, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldPhone, phone),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("subscription not found: %w", domain.ErrNotFound)
	}
	var s domain.Subscription
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert applies updates to the subscription for phone, creating it when absent.
// A single UpdateItem is atomic per document.
func (r *SubscriptionRepo) Upsert(ctx context.Context, phone string, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldPhone, phone),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// Count returns the number of subscription documents, or only the subscribed
// ones when onlySubscribed is set.
func (r *SubscriptionRepo) Count(ctx context.Context, onlySubscribed bool) (int, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
		Select:    types.SelectCount,
	}
	if onlySubscribed {
		input.FilterExpression = aws.String("#s = :t")
		input.ExpressionAttributeNames = map[string]string{"#s": fieldSubscribed}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
		}
	}
	total := 0
	p := dynamodb.NewScanPaginator(r.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("count subscriptions: %w", err)
		}
		total += int(page.Count)
	}
	return total, nil
}
