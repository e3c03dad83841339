package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/otp-relay/internal/domain"
)

// pendingFilter matches users documents with a non-null, non-empty otp whose
// otp_sent flag is absent or false.
const pendingFilter = "attribute_exists(#otp) AND NOT attribute_type(#otp, :null) AND #otp <> :empty " +
	"AND (attribute_not_exists(#sent) OR #sent = :false)"

// OTPRepo reads and marks OTP work on the users table (PK: phone).
// Documents are written by an external issuer; this repo never creates or deletes them.
type OTPRepo struct {
	client    itemAPI
	tableName string
}

func NewOTPRepo(client itemAPI, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

// ListPending scans for records with an undelivered OTP.
func (r *OTPRepo) ListPending(ctx context.Context) ([]domain.OTPRecord, error) {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String(pendingFilter),
		ExpressionAttributeNames: map[string]string{
			"#otp":  fieldOTP,
			"#sent": fieldOTPSent,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":null":  &types.AttributeValueMemberS{Value: "NULL"},
			":empty": &types.AttributeValueMemberS{Value: ""},
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	var records []domain.OTPRecord
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan pending otp: %w", err)
		}
		var batch []domain.OTPRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal otp records: %w", err)
		}
		records = append(records, batch...)
	}
	return records, nil
}

// MarkSent records the delivery outcome for the observed otp value. The write
// only applies while the document still holds that otp and is unmarked;
// otherwise domain.ErrConflict is returned and the document is left alone.
func (r *OTPRepo) MarkSent(ctx context.Context, phone, otp, status string, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldOTPSent:   true,
		fieldOTPStatus: status,
		fieldOTPSentAt: at.UTC(),
	})
	if err != nil {
		return err
	}
	ue.Names["#otp"] = fieldOTP
	ue.Names["#sent"] = fieldOTPSent
	ue.Values[":otp"] = &types.AttributeValueMemberS{Value: otp}
	ue.Values[":false"] = &types.AttributeValueMemberBOOL{Value: false}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldPhone, phone),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#otp = :otp AND (attribute_not_exists(#sent) OR #sent = :false)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("otp record for %s changed before marking: %w", phone, domain.ErrConflict)
	}
	return err
}
