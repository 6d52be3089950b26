package dynamo

import (
	"context"
	"fmt"

	"github.com/zlnvch/notesync/models"
)

// DynamoSessionPersister stores sessions in a single-table layout keyed by
// SESSION#<profile>, so several machines can share one login.
type DynamoSessionPersister struct {
	client    dynamoAPI
	tableName string
	profile   string
}

func NewDynamoSessionPersister(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string, profile string) (*DynamoSessionPersister, error) {
	client, err := newDynamoDBClient(ctx, devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}
	return newPersister(ctx, client, tableName, profile)
}

func newPersister(ctx context.Context, client dynamoAPI, tableName string, profile string) (*DynamoSessionPersister, error) {
	found, err := tableExists(ctx, client, tableName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}
	return &DynamoSessionPersister{client: client, tableName: tableName, profile: profile}, nil
}

func (p *DynamoSessionPersister) Load(ctx context.Context) (models.Session, error) {
	ds, err := getItem[dynamoSession](p, ctx, sessionPK(p.profile), sessionSortKey)
	if err != nil {
		return models.Session{}, err
	}
	return sessionFromDynamo(ds), nil
}

func (p *DynamoSessionPersister) Save(ctx context.Context, sess models.Session) error {
	return putItem(p, ctx, sessionToDynamo(p.profile, sess))
}

func (p *DynamoSessionPersister) Clear(ctx context.Context) error {
	return deleteItem(p, ctx, sessionPK(p.profile), sessionSortKey)
}
