package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"site-creator/internal/domain"
)

const (
	skPrefixProject = "PROJECT#"
	pkCounter       = "COUNTER"
	skCounter       = "PROJECT_ID"
	// Fixed-width UTC layout so sort keys order lexicographically by time.
	skTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore keeps projects in a single table partitioned by session.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// NewDynamoStore creates a DynamoDB-backed project store.
func NewDynamoStore(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName, now: time.Now}, nil
}

// sessionPK returns the partition key for a session's projects.
func sessionPK(sessionToken string) string {
	return "SESSION#" + sessionToken
}

// projectSK orders projects by creation time, with the id breaking ties.
func projectSK(createdAt time.Time, id int64) string {
	return fmt.Sprintf("%s%s#%012d", skPrefixProject, createdAt.UTC().Format(skTimeLayout), id)
}

// nextID atomically increments the project id counter item.
func (s *DynamoStore) nextID(ctx context.Context) (int64, error) {
	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkCounter},
			"SK": &types.AttributeValueMemberS{Value: skCounter},
		},
		UpdateExpression: aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("repository: nextID update: %w", err)
	}
	if out == nil {
		return 0, errors.New("repository: nextID: empty response")
	}
	id, err := int64Attr(out.Attributes, "seq")
	if err != nil {
		return 0, fmt.Errorf("repository: nextID decode: %w", err)
	}
	return id, nil
}

// InsertProject assigns an id and creation time and writes the project.
func (s *DynamoStore) InsertProject(ctx context.Context, sessionToken string, p domain.Project) (domain.Project, error) {
	if strings.TrimSpace(sessionToken) == "" {
		return domain.Project{}, errors.New("repository: InsertProject: session is required")
	}
	id, err := s.nextID(ctx)
	if err != nil {
		return domain.Project{}, fmt.Errorf("repository: InsertProject: %w", err)
	}
	created := s.now().UTC()
	p.ID = id
	p.CreatedAt = &created

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                projectItem(sessionToken, p),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return domain.Project{}, fmt.Errorf("repository: InsertProject: %w", err)
	}
	return p, nil
}

// ListProjects returns a session's projects, newest first.
func (s *DynamoStore) ListProjects(ctx context.Context, sessionToken string) ([]domain.Project, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionToken)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixProject},
		},
		ScanIndexForward: aws.Bool(false),
	}

	projects := make([]domain.Project, 0)
	for {
		out, err := s.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: ListProjects query: %w", err)
		}
		for _, item := range out.Items {
			p, err := itemToProject(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ListProjects unmarshal: %w", err)
			}
			projects = append(projects, p)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return projects, nil
}

func projectItem(sessionToken string, p domain.Project) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: sessionPK(sessionToken)},
		"SK":          &types.AttributeValueMemberS{Value: projectSK(*p.CreatedAt, p.ID)},
		"userSession": &types.AttributeValueMemberS{Value: sessionToken},
		"id":          &types.AttributeValueMemberN{Value: strconv.FormatInt(p.ID, 10)},
		"name":        &types.AttributeValueMemberS{Value: p.Name},
		"description": &types.AttributeValueMemberS{Value: p.Description},
		"status":      &types.AttributeValueMemberS{Value: string(p.Status)},
		"url":         &types.AttributeValueMemberS{Value: p.URL},
		"createdAt":   &types.AttributeValueMemberS{Value: p.CreatedAt.UTC().Format(time.RFC3339Nano)},
	}
	return item
}

// itemToProject converts a DynamoDB attribute map to a Project.
func itemToProject(item map[string]types.AttributeValue) (domain.Project, error) {
	id, err := int64Attr(item, "id")
	if err != nil {
		return domain.Project{}, err
	}
	name, err := strAttr(item, "name")
	if err != nil {
		return domain.Project{}, err
	}
	description, _ := strAttr(item, "description") // allow empty
	status, _ := strAttr(item, "status")
	url, _ := strAttr(item, "url")

	p := domain.Project{
		ID:          id,
		Name:        name,
		Description: description,
		Status:      domain.ParseProjectStatus(status),
		URL:         url,
	}
	if raw, err := strAttr(item, "createdAt"); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			p.CreatedAt = &ts
		}
	}
	return p, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
