package appointment

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

type mockDynamo struct {
	putInput     *dynamodb.PutItemInput
	putErr       error
	getOutput    *dynamodb.GetItemOutput
	getErr       error
	queryInputs  []*dynamodb.QueryInput
	queryPages   []*dynamodb.QueryOutput
	updateInputs []*dynamodb.UpdateItemInput
	updateErr    error
	deleteInput  *dynamodb.DeleteItemInput
}

func (m *mockDynamo) PutItem(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInput = input
	return &dynamodb.PutItemOutput{}, m.putErr
}

func (m *mockDynamo) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.getOutput == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return m.getOutput, nil
}

func (m *mockDynamo) Query(_ context.Context, input *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.queryInputs = append(m.queryInputs, input)
	idx := len(m.queryInputs) - 1
	if idx >= len(m.queryPages) {
		return &dynamodb.QueryOutput{}, nil
	}
	return m.queryPages[idx], nil
}

func (m *mockDynamo) UpdateItem(_ context.Context, input *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.updateInputs = append(m.updateInputs, input)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockDynamo) DeleteItem(_ context.Context, input *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.deleteInput = input
	return &dynamodb.DeleteItemOutput{}, nil
}

func newDynamoStore(m *mockDynamo) *DynamoPrimaryStore {
	return NewDynamoPrimaryStore(m, "appointments", "insuredId-index", logging.Discard())
}

func marshalItem(t *testing.T, a *Appointment) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(toDynamoItem(a))
	require.NoError(t, err)
	return item
}

func TestDynamoSaveRoundTrip(t *testing.T) {
	mock := &mockDynamo{}
	store := newDynamoStore(mock)
	a := newPending(t)

	require.NoError(t, store.Save(context.Background(), a))
	require.NotNil(t, mock.putInput)
	assert.Equal(t, "appointments", *mock.putInput.TableName)

	var stored dynamoItem
	require.NoError(t, attributevalue.UnmarshalMap(mock.putInput.Item, &stored))
	assert.Equal(t, "00001", stored.InsuredID)
	assert.Equal(t, "pending", stored.Status)

	mock.getOutput = &dynamodb.GetItemOutput{Item: mock.putInput.Item}
	got, err := store.FindByID(context.Background(), a.ID())
	require.NoError(t, err)
	assert.Equal(t, a.ID(), got.ID())
	assert.Equal(t, a.InsuredID(), got.InsuredID())
	assert.Equal(t, a.Status(), got.Status())
	assert.True(t, a.CreatedAt().Equal(got.CreatedAt()))
}

func TestDynamoFindByIDNotFound(t *testing.T) {
	store := newDynamoStore(&mockDynamo{})
	_, err := store.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestDynamoInfrastructureErrors(t *testing.T) {
	boom := errors.New("throttled")
	store := newDynamoStore(&mockDynamo{putErr: boom, getErr: boom})

	err := store.Save(context.Background(), newPending(t))
	var ie *InfrastructureError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "DynamoDB", ie.Service)

	_, err = store.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, boom)
}

func TestDynamoFindByInsuredIDPaginates(t *testing.T) {
	a1, a2 := newPending(t), newPending(t)
	mock := &mockDynamo{queryPages: []*dynamodb.QueryOutput{
		{
			Items:            []map[string]types.AttributeValue{marshalItem(t, a1)},
			LastEvaluatedKey: idKey(a1.ID()),
		},
		{
			Items: []map[string]types.AttributeValue{marshalItem(t, a2)},
		},
	}}
	store := newDynamoStore(mock)

	got, err := store.FindByInsuredID(context.Background(), "00001")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.Len(t, mock.queryInputs, 2)
	assert.Equal(t, "insuredId-index", *mock.queryInputs[0].IndexName)
	assert.Nil(t, mock.queryInputs[0].ExclusiveStartKey)
	assert.Equal(t, idKey(a1.ID()), mock.queryInputs[1].ExclusiveStartKey)
}

func TestDynamoUpdateStatusIsBlindSet(t *testing.T) {
	mock := &mockDynamo{}
	store := newDynamoStore(mock)
	id := uuid.New()

	require.NoError(t, store.UpdateStatus(context.Background(), id, StatusCompleted))
	require.NoError(t, store.UpdateStatus(context.Background(), id, StatusCompleted))

	require.Len(t, mock.updateInputs, 2)
	in := mock.updateInputs[0]
	assert.Equal(t, "SET #status = :status, #updated = :updated", *in.UpdateExpression)
	assert.Equal(t, "attribute_exists(id)", *in.ConditionExpression)
	assert.Equal(t, "status", in.ExpressionAttributeNames["#status"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "completed"}, in.ExpressionAttributeValues[":status"])
}

func TestDynamoUpdateStatusUnknownID(t *testing.T) {
	mock := &mockDynamo{updateErr: &types.ConditionalCheckFailedException{Message: new(string)}}
	store := newDynamoStore(mock)

	err := store.UpdateStatus(context.Background(), uuid.New(), StatusCompleted)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestDynamoUpdateStatusFrom(t *testing.T) {
	mock := &mockDynamo{}
	store := newDynamoStore(mock)
	id := uuid.New()

	require.NoError(t, store.UpdateStatusFrom(context.Background(), id, StatusCompleted, []Status{StatusPending, StatusProcessing}))
	in := mock.updateInputs[0]
	assert.Equal(t, "attribute_exists(id) AND #status IN (:from0, :from1)", *in.ConditionExpression)
	assert.Equal(t, types.ReturnValuesOnConditionCheckFailureAllOld, in.ReturnValuesOnConditionCheckFailure)

	mock.updateErr = &types.ConditionalCheckFailedException{
		Item: map[string]types.AttributeValue{"status": &types.AttributeValueMemberS{Value: "cancelled"}},
	}
	err := store.UpdateStatusFrom(context.Background(), id, StatusCompleted, []Status{StatusPending})
	assert.ErrorIs(t, err, ErrStaleUpdate)

	mock.updateErr = &types.ConditionalCheckFailedException{}
	err = store.UpdateStatusFrom(context.Background(), id, StatusCompleted, []Status{StatusPending})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestDynamoDelete(t *testing.T) {
	mock := &mockDynamo{}
	store := newDynamoStore(mock)
	id := uuid.New()

	require.NoError(t, store.Delete(context.Background(), id))
	assert.Equal(t, idKey(id), mock.deleteInput.Key)
}
