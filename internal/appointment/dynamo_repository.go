package appointment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

const dynamoService = "DynamoDB"

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// dynamoItem is the stored shape in the appointments table.
type dynamoItem struct {
	ID         string `dynamodbav:"id"`
	InsuredID  string `dynamodbav:"insuredId"`
	ScheduleID int64  `dynamodbav:"scheduleId"`
	CountryISO string `dynamodbav:"countryISO"`
	Status     string `dynamodbav:"status"`
	CreatedAt  string `dynamodbav:"createdAt"`
	UpdatedAt  string `dynamodbav:"updatedAt"`
}

// DynamoPrimaryStore keeps appointments in a DynamoDB table keyed by id with
// a secondary index on insuredId.
type DynamoPrimaryStore struct {
	client    dynamoAPI
	tableName string
	indexName string
	logger    *logging.Logger
}

var (
	_ PrimaryStore         = (*DynamoPrimaryStore)(nil)
	_ GuardedStatusUpdater = (*DynamoPrimaryStore)(nil)
)

func NewDynamoPrimaryStore(client dynamoAPI, tableName, indexName string, logger *logging.Logger) *DynamoPrimaryStore {
	if client == nil {
		panic("appointment: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("appointment: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoPrimaryStore{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

// Save writes the full item, replacing any previous version.
func (s *DynamoPrimaryStore) Save(ctx context.Context, a *Appointment) error {
	if a == nil {
		return errors.New("appointment: appointment cannot be nil")
	}
	item, err := attributevalue.MarshalMap(toDynamoItem(a))
	if err != nil {
		return fmt.Errorf("appointment: failed to marshal item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return Infra(dynamoService, "put item", err)
	}
	return nil
}

func (s *DynamoPrimaryStore) FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, Infra(dynamoService, "get item", err)
	}
	if out.Item == nil {
		return nil, ErrAppointmentNotFound
	}
	return decodeDynamoItem(out.Item)
}

// FindByInsuredID queries the insuredId index, following pagination.
func (s *DynamoPrimaryStore) FindByInsuredID(ctx context.Context, insuredID InsuredID) ([]*Appointment, error) {
	var (
		out       []*Appointment
		startKey  map[string]types.AttributeValue
		pageCount int
	)
	for {
		page, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			IndexName:              aws.String(s.indexName),
			KeyConditionExpression: aws.String("insuredId = :insuredId"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":insuredId": &types.AttributeValueMemberS{Value: insuredID.String()},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, Infra(dynamoService, "query insuredId index", err)
		}
		pageCount++
		for _, item := range page.Items {
			a, err := decodeDynamoItem(item)
			if err != nil {
				s.logger.Warn("skipping undecodable appointment item", "error", err)
				continue
			}
			out = append(out, a)
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		startKey = page.LastEvaluatedKey
	}
	s.logger.Debug("queried appointments by insured id", "pages", pageCount, "count", len(out))
	return out, nil
}

// UpdateStatus sets status and updatedAt without reading the item first. The
// attribute_exists condition keeps an unknown id from creating a partial item.
func (s *DynamoPrimaryStore) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 idKey(id),
		UpdateExpression:    aws.String("SET #status = :status, #updated = :updated"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeNames: map[string]string{
			"#status":  "status",
			"#updated": "updatedAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(status)},
			":updated": &types.AttributeValueMemberS{Value: now().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAppointmentNotFound
		}
		return Infra(dynamoService, "update status", err)
	}
	return nil
}

// UpdateStatusFrom is UpdateStatus that only applies while the stored status
// is one of allowedFrom. It returns ErrStaleUpdate otherwise.
func (s *DynamoPrimaryStore) UpdateStatusFrom(ctx context.Context, id uuid.UUID, status Status, allowedFrom []Status) error {
	if len(allowedFrom) == 0 {
		return ErrStaleUpdate
	}
	values := map[string]types.AttributeValue{
		":status":  &types.AttributeValueMemberS{Value: string(status)},
		":updated": &types.AttributeValueMemberS{Value: now().Format(time.RFC3339Nano)},
	}
	placeholders := make([]string, 0, len(allowedFrom))
	for i, from := range allowedFrom {
		key := ":from" + strconv.Itoa(i)
		values[key] = &types.AttributeValueMemberS{Value: string(from)}
		placeholders = append(placeholders, key)
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              idKey(id),
		UpdateExpression: aws.String("SET #status = :status, #updated = :updated"),
		ConditionExpression: aws.String(
			"attribute_exists(id) AND #status IN (" + strings.Join(placeholders, ", ") + ")"),
		ExpressionAttributeNames: map[string]string{
			"#status":  "status",
			"#updated": "updatedAt",
		},
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return ErrAppointmentNotFound
			}
			return ErrStaleUpdate
		}
		return Infra(dynamoService, "conditional update status", err)
	}
	return nil
}

// Delete is an administrative removal and not part of the lifecycle.
func (s *DynamoPrimaryStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       idKey(id),
	})
	if err != nil {
		return Infra(dynamoService, "delete item", err)
	}
	return nil
}

func idKey(id uuid.UUID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id.String()},
	}
}

func toDynamoItem(a *Appointment) dynamoItem {
	return dynamoItem{
		ID:         a.id.String(),
		InsuredID:  a.insuredID.String(),
		ScheduleID: a.scheduleID,
		CountryISO: a.country.String(),
		Status:     string(a.status),
		CreatedAt:  a.createdAt.Format(time.RFC3339Nano),
		UpdatedAt:  a.updatedAt.Format(time.RFC3339Nano),
	}
}

func decodeDynamoItem(item map[string]types.AttributeValue) (*Appointment, error) {
	var it dynamoItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return nil, fmt.Errorf("appointment: failed to decode item: %w", err)
	}
	id, err := uuid.Parse(it.ID)
	if err != nil {
		return nil, fmt.Errorf("appointment: invalid stored id %q: %w", it.ID, err)
	}
	created, err := time.Parse(time.RFC3339Nano, it.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("appointment: invalid createdAt for %s: %w", it.ID, err)
	}
	updated, err := time.Parse(time.RFC3339Nano, it.UpdatedAt)
	if err != nil {
		updated = created
	}
	return Rehydrate(Record{
		ID:         id,
		InsuredID:  it.InsuredID,
		ScheduleID: it.ScheduleID,
		Country:    it.CountryISO,
		Status:     Status(it.Status),
		CreatedAt:  created,
		UpdatedAt:  updated,
	})
}
