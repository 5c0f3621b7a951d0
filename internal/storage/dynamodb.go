package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

// DynamoDBStore implements Store using AWS DynamoDB
type DynamoDBStore struct {
	client *dynamodb.Client
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoDBStore creates a new DynamoDB store
func NewDynamoDBStore(ctx context.Context, cfg DynamoConfig, logger zerolog.Logger) (*DynamoDBStore, error) {
	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// Static credentials; LoadDefaultConfig would probe IMDS
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	store := &DynamoDBStore{
		client: client,
		config: cfg,
		logger: logger.With().Str("component", "storage").Logger(),
	}

	if cfg.Mode == DynamoModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, store.logger); err != nil {
			return nil, err
		}
	}

	store.logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Str("table", cfg.CallRecordsTable).
		Msg("DynamoDB store initialized")

	return store, nil
}

func (s *DynamoDBStore) SaveCallRecord(ctx context.Context, record types.CallRecord) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal call record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.CallRecordsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save call record: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) GetCallRecords(ctx context.Context, dateKey string) ([]types.CallRecord, error) {
	keyCond := expression.Key("DateKey").Equal(expression.Value(dateKey))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}
	return s.query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.CallRecordsTable),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
}

func (s *DynamoDBStore) GetAgentCallsByDate(ctx context.Context, agentID, dateKey string) ([]types.CallRecord, error) {
	keyCond := expression.Key("DateKey").Equal(expression.Value(dateKey))
	filter := expression.Name("AgentID").Equal(expression.Value(agentID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}
	return s.query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.CallRecordsTable),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
}

// query follows LastEvaluatedKey until the result set is exhausted
func (s *DynamoDBStore) query(ctx context.Context, input *dynamodb.QueryInput) ([]types.CallRecord, error) {
	records := make([]types.CallRecord, 0)
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query call records: %w", err)
		}

		var page []types.CallRecord
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal call records: %w", err)
		}
		records = append(records, page...)

		if len(result.LastEvaluatedKey) == 0 {
			return records, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

// NewStore creates the appropriate store based on configuration
func NewStore(ctx context.Context, logger zerolog.Logger) (Store, error) {
	cfg := LoadDynamoConfig()

	switch cfg.Mode {
	case DynamoModeLocal, DynamoModeAWS:
		return NewDynamoDBStore(ctx, cfg, logger)
	default:
		logger.Info().Msg("DynamoDB disabled (DYNAMO_MODE=none)")
		return NewNoopStore(), nil
	}
}

// NewCallRecord flattens a terminated call into an archive row
func NewCallRecord(call types.Call, outcome types.CallOutcome, reason, endedBy string, endTime time.Time) types.CallRecord {
	record := types.CallRecord{
		DateKey:      call.StartTime.UTC().Format("2006-01-02"),
		CallID:       call.CallID,
		CallerNumber: call.CallerNumber,
		CalledNumber: call.CalledNumber,
		AgentID:      call.AgentID,
		Source:       call.Source,
		Outcome:      outcome,
		EndReason:    reason,
		EndedBy:      endedBy,
		StartTime:    call.StartTime.UTC().Format(time.RFC3339),
		EndTime:      endTime.UTC().Format(time.RFC3339),
		Duration:     call.DurationSecs(endTime),
	}
	if call.ConnectedTime != nil {
		record.ConnectedTime = call.ConnectedTime.UTC().Format(time.RFC3339)
	}
	return record
}
