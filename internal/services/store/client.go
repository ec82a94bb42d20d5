// Package store persists recipe records in a DynamoDB table partitioned by
// user name.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	apperrors "github.com/socialchef/recipewizard/internal/errors"
	"github.com/socialchef/recipewizard/internal/metrics"
)

const (
	attrUserName   = "user_name"
	attrRecordID   = "record_id"
	attrRecipeName = "recipe_name"
)

// Record is one saved recipe.
type Record struct {
	UserName     string    `dynamodbav:"user_name"`
	RecordID     string    `dynamodbav:"record_id"`
	RecipeID     int       `dynamodbav:"recipe_id"`
	RecipeName   string    `dynamodbav:"recipe_name"`
	Ingredients  []string  `dynamodbav:"ingredients"`
	Instructions string    `dynamodbav:"instructions"`
	PDFURL       string    `dynamodbav:"pdf_url,omitempty"`
	CreatedAt    time.Time `dynamodbav:"created_at"`
}

// DynamoAPI is the subset of the DynamoDB client used here.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type Client struct {
	db    DynamoAPI
	table string
}

func NewClient(db DynamoAPI, table string) *Client {
	return &Client{db: db, table: table}
}

// Put writes the record unconditionally. A record with the same keys is
// overwritten without any concurrency check.
func (c *Client) Put(ctx context.Context, rec Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return apperrors.NewStoreError("failed to encode recipe", "STORE_ENCODE_FAILED", err)
	}

	_, err = c.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      item,
	})
	if err != nil {
		return apperrors.NewStoreError(
			fmt.Sprintf("failed to save recipe %q", rec.RecipeName),
			"STORE_PUT_FAILED", err)
	}

	slog.InfoContext(ctx, "Recipe record stored",
		"user_name", rec.UserName,
		"recipe_name", rec.RecipeName,
		"record_id", rec.RecordID)
	return nil
}

// ScanByUser returns every record of the user, in store order.
func (c *Client) ScanByUser(ctx context.Context, userName string) ([]Record, error) {
	cond := expression.Name(attrUserName).Equal(expression.Value(userName))
	return c.scan(ctx, cond)
}

// ScanByUserAndName returns the records of the user with the given recipe
// name, in store order.
func (c *Client) ScanByUserAndName(ctx context.Context, userName, recipeName string) ([]Record, error) {
	cond := expression.Name(attrUserName).Equal(expression.Value(userName)).
		And(expression.Name(attrRecipeName).Equal(expression.Value(recipeName)))
	return c.scan(ctx, cond)
}

// FindRecipe resolves a user/recipe name pair to a single record. When names
// are duplicated the first record the scan yields is used.
func (c *Client) FindRecipe(ctx context.Context, userName, recipeName string) (*Record, error) {
	records, err := c.ScanByUserAndName(ctx, userName, recipeName)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		metrics.RecipeLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "not_found")))
		return nil, apperrors.NewNotFoundError(
			fmt.Sprintf("레시피 '%s'을(를) 찾을 수 없습니다.", recipeName),
			"RECIPE_NOT_FOUND",
			"Save the recipe first or check the spelling.")
	}
	metrics.RecipeLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "found")))
	return &records[0], nil
}

// scan walks the whole table, following LastEvaluatedKey, with the filter applied server side.
func (c *Client) scan(ctx context.Context, filter expression.ConditionBuilder) ([]Record, error) {
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, apperrors.NewStoreError("failed to build scan filter", "STORE_FILTER_FAILED", err)
	}

	paginator := dynamodb.NewScanPaginator(c.db, &dynamodb.ScanInput{
		TableName:                 aws.String(c.table),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var items []map[string]types.AttributeValue
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, apperrors.NewStoreError("failed to scan recipes", "STORE_SCAN_FAILED", err)
		}
		items = append(items, page.Items...)
	}

	records := make([]Record, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &records); err != nil {
		return nil, apperrors.NewStoreError("failed to decode recipes", "STORE_DECODE_FAILED", err)
	}
	return records, nil
}

// TableAPI is the subset of the DynamoDB client needed to provision the table.
type TableAPI interface {
	dynamodb.DescribeTableAPIClient
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// EnsureTable creates the recipe table, user_name as partition key and
// record_id as sort key, when it does not exist yet. Used against local
// endpoints; production tables are provisioned out of band.
func EnsureTable(ctx context.Context, api TableAPI, table string) error {
	_, err := api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return apperrors.NewStoreError("failed to describe table", "STORE_DESCRIBE_TABLE_FAILED", err)
	}

	_, err = api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrUserName), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrRecordID), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrUserName), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrRecordID), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return apperrors.NewStoreError("failed to create table", "STORE_CREATE_TABLE_FAILED", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(api)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, time.Minute); err != nil {
		return apperrors.NewStoreError("table did not become active", "STORE_TABLE_WAIT_FAILED", err)
	}

	slog.InfoContext(ctx, "Recipe table created", "table", table)
	return nil
}
