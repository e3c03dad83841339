package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/otp-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockItemAPI struct{ mock.Mock }

func (m *mockItemAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockItemAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockItemAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockItemAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.ScanOutput)
	return out, args.Error(1)
}

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func TestOTPRepo_ListPending_FollowsPages(t *testing.T) {
	api := &mockItemAPI{}
	lastKey := map[string]types.AttributeValue{fieldPhone: s("249911111111")}

	api.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey == nil
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{
			{fieldPhone: s("249911111111"), fieldOTP: s("1234")},
		},
		LastEvaluatedKey: lastKey,
	}, nil).Once()
	api.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey != nil
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{
			{fieldPhone: s("0912 222 222"), fieldOTP: s("5678"), fieldOTPSent: &types.AttributeValueMemberBOOL{Value: false}},
		},
	}, nil).Once()

	repo := NewOTPRepo(api, "users")
	recs, err := repo.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "249911111111", recs[0].Phone)
	require.NotNil(t, recs[1].OTP)
	assert.Equal(t, "5678", *recs[1].OTP)
	api.AssertExpectations(t)
}

func TestOTPRepo_ListPending_ScanError(t *testing.T) {
	api := &mockItemAPI{}
	api.On("Scan", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := NewOTPRepo(api, "users").ListPending(context.Background())
	assert.ErrorContains(t, err, "throttled")
}

func TestOTPRepo_MarkSent_ConditionalOnObservedOTP(t *testing.T) {
	api := &mockItemAPI{}
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		otp, ok := in.ExpressionAttributeValues[":otp"].(*types.AttributeValueMemberS)
		return ok && otp.Value == "1234" &&
			*in.ConditionExpression == "#otp = :otp AND (attribute_not_exists(#sent) OR #sent = :false)" &&
			in.ExpressionAttributeNames["#otp"] == fieldOTP
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	err := NewOTPRepo(api, "users").MarkSent(context.Background(), "249911111111", "1234", domain.OTPStatusSent, at)
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestOTPRepo_MarkSent_ConditionFailedIsConflict(t *testing.T) {
	api := &mockItemAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{})

	err := NewOTPRepo(api, "users").MarkSent(context.Background(), "249911111111", "1234", domain.OTPStatusSent, time.Now())
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSubscriptionRepo_Get_NotFound(t *testing.T) {
	api := &mockItemAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := NewSubscriptionRepo(api, "subscriptions").Get(context.Background(), "249911111111")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubscriptionRepo_Get_Found(t *testing.T) {
	api := &mockItemAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{
		Item: map[string]types.AttributeValue{
			fieldPhone:      s("249911111111"),
			fieldSubscribed: &types.AttributeValueMemberBOOL{Value: true},
		},
	}, nil)

	sub, err := NewSubscriptionRepo(api, "subscriptions").Get(context.Background(), "249911111111")
	require.NoError(t, err)
	assert.True(t, sub.Subscribed)
	assert.Equal(t, "249911111111", sub.Phone)
}

func TestSubscriptionRepo_Upsert_KeysOnPhone(t *testing.T) {
	api := &mockItemAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		k, ok := in.Key[fieldPhone].(*types.AttributeValueMemberS)
		return ok && k.Value == "249911111111" && *in.TableName == "subscriptions"
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	err := NewSubscriptionRepo(api, "subscriptions").Upsert(context.Background(), "249911111111",
		map[string]interface{}{fieldSubscribed: false})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestSubscriptionRepo_Count(t *testing.T) {
	api := &mockItemAPI{}
	api.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.FilterExpression != nil
	})).Return(&dynamodb.ScanOutput{Count: 3}, nil)
	api.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.FilterExpression == nil
	})).Return(&dynamodb.ScanOutput{Count: 5}, nil)

	repo := NewSubscriptionRepo(api, "subscriptions")
	n, err := repo.Count(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = repo.Count(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestAttemptRepo_Put(t *testing.T) {
	api := &mockItemAPI{}
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		id, ok := in.Item[fieldAttemptID].(*types.AttributeValueMemberS)
		return ok && id.Value == "01HX" && *in.TableName == "otp_logs"
	})).Return(&dynamodb.PutItemOutput{}, nil)

	err := NewAttemptRepo(api, "otp_logs").Put(context.Background(), &domain.OTPAttempt{
		AttemptID: "01HX",
		Phone:     "249911111111",
		Status:    domain.OTPStatusSent,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	api.AssertExpectations(t)
}
