package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"travel-agent/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	skMeta      = "META#"

	// One transaction holds the meta item plus the new turns.
	maxTransactItems = 100
)

// dynamodbAPI is the subset of the DynamoDB client used by DynamoStore.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoStore keeps one META# item and one MSG# item per turn under the
// CONV#<id> partition.
type DynamoStore struct {
	api        dynamodbAPI
	tableName  string
	ttl        time.Duration
	maxHistory int
	now        func() time.Time
}

type DynamoOption func(*DynamoStore)

func WithDynamoTTL(ttl time.Duration) DynamoOption {
	return func(s *DynamoStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithDynamoMaxHistory(n int) DynamoOption {
	return func(s *DynamoStore) {
		if n > 0 {
			s.maxHistory = n
		}
	}
}

// NewDynamoStore creates a DynamoDB-backed store over tableName.
func NewDynamoStore(api dynamodbAPI, tableName string, opts ...DynamoOption) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	s := &DynamoStore{
		api:        api,
		tableName:  tableName,
		ttl:        DefaultTTL,
		maxHistory: DefaultMaxHistory,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

// msgSK zero-pads the sequence so lexical order matches turn order.
func msgSK(seq int) string {
	return fmt.Sprintf("%s%08d", skPrefixMsg, seq)
}

// Get loads the meta item and the most recent turns.
func (s *DynamoStore) Get(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: Get meta: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	state, err := itemToState(conversationID, out.Item)
	if err != nil {
		return nil, fmt.Errorf("repository: Get decode meta: %w", err)
	}

	history, err := s.history(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	state.History = history
	return state, nil
}

func (s *DynamoStore) history(ctx context.Context, conversationID string) ([]domain.Turn, error) {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Newest first so the limit keeps the latest turns.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(s.maxHistory)),
		ConsistentRead:   aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: Get history: %w", err)
	}

	turns := make([]domain.Turn, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: Get decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	slices.Reverse(turns)
	return turns, nil
}

// Put writes the turns added since the last Put together with the updated
// meta item in one transaction. The meta write is conditioned on the turn
// count it was loaded with, so a concurrent writer makes Put fail instead of
// silently dropping turns.
func (s *DynamoStore) Put(ctx context.Context, state *domain.ConversationState) error {
	if state == nil || strings.TrimSpace(state.ID) == "" {
		return errors.New("repository: Put: conversation id is required")
	}
	fresh := state.Unpersisted()
	if len(fresh)+1 > maxTransactItems {
		return fmt.Errorf("repository: Put: %d new turns exceed one transaction", len(fresh))
	}

	expires := s.now().Add(s.ttl).Unix()
	meta, err := s.metaItem(state, expires)
	if err != nil {
		return fmt.Errorf("repository: Put encode meta: %w", err)
	}

	items := make([]types.TransactWriteItem, 0, len(fresh)+1)
	for _, turn := range fresh {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.tableName),
				Item:                turnItem(state.ID, turn, expires),
				ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
			},
		})
	}
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(s.tableName),
			Item:                meta,
			ConditionExpression: aws.String("attribute_not_exists(PK) OR turns = :prev"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prev": &types.AttributeValueMemberN{Value: strconv.Itoa(state.Persisted)},
			},
		},
	})

	if _, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("repository: Put: %w", err)
	}
	state.Persisted = state.LastSeq()
	return nil
}

func (s *DynamoStore) metaItem(state *domain.ConversationState, expires int64) (map[string]types.AttributeValue, error) {
	entities, err := json.Marshal(state.Entities)
	if err != nil {
		return nil, err
	}
	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = s.now()
	}
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(state.ID)},
		"SK":             &types.AttributeValueMemberS{Value: skMeta},
		"conversationId": &types.AttributeValueMemberS{Value: state.ID},
		"entities":       &types.AttributeValueMemberS{Value: string(entities)},
		"lastActivity":   &types.AttributeValueMemberS{Value: updated.UTC().Format(time.RFC3339)},
		"turns":          &types.AttributeValueMemberN{Value: strconv.Itoa(state.LastSeq())},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(expires, 10)},
	}, nil
}

func turnItem(conversationID string, turn domain.Turn, expires int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(conversationID)},
		"SK":             &types.AttributeValueMemberS{Value: msgSK(turn.Seq)},
		"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		"seq":            &types.AttributeValueMemberN{Value: strconv.Itoa(turn.Seq)},
		"text":           &types.AttributeValueMemberS{Value: turn.Text},
		"isBot":          &types.AttributeValueMemberBOOL{Value: turn.IsBot},
		"at":             &types.AttributeValueMemberS{Value: turn.At.UTC().Format(time.RFC3339Nano)},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(expires, 10)},
	}
}

func itemToState(conversationID string, item map[string]types.AttributeValue) (*domain.ConversationState, error) {
	state := domain.NewConversationState(conversationID)

	turns, err := intAttr(item, "turns")
	if err != nil {
		return nil, err
	}
	state.Persisted = turns

	if raw, err := strAttr(item, "entities"); err == nil && raw != "" {
		if err := json.Unmarshal([]byte(raw), &state.Entities); err != nil {
			return nil, fmt.Errorf("repository: decode entities: %w", err)
		}
	}
	if raw, err := strAttr(item, "lastActivity"); err == nil {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			state.UpdatedAt = ts
		}
	}
	return state, nil
}

func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	seq, err := intAttr(item, "seq")
	if err != nil {
		return domain.Turn{}, err
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return domain.Turn{}, err
	}
	turn := domain.Turn{Seq: seq, Text: text}
	if v, ok := item["isBot"].(*types.AttributeValueMemberBOOL); ok {
		turn.IsBot = v.Value
	}
	if raw, err := strAttr(item, "at"); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			turn.At = ts
		}
	}
	return turn, nil
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

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
