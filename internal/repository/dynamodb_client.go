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

	"chat-widget/internal/domain"
)

const skTranscript = "TRANSCRIPT"

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore keeps one item per open page holding its whole transcript.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

func NewDynamoStore(api dynamodbAPI, tableName string, ttl time.Duration) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DynamoStore{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

func (s *DynamoStore) key(pageID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pagePK(pageID)},
		"SK": &types.AttributeValueMemberS{Value: skTranscript},
	}
}

// Load returns the page transcript. An unknown or expired page yields an
// empty transcript; the version is kept so the next Save can replace it.
func (s *DynamoStore) Load(ctx context.Context, pageID string) (domain.PageSession, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(pageID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.PageSession{}, fmt.Errorf("repository: Load get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.PageSession{ID: pageID}, nil
	}

	ps, err := itemToPageSession(out.Item)
	if err != nil {
		return domain.PageSession{}, fmt.Errorf("repository: Load decode: %w", err)
	}
	ps.ID = pageID
	// TTL deletion in DynamoDB is lazy.
	if ps.TTL > 0 && ps.TTL <= s.now().Unix() {
		ps.Turns = nil
	}
	return ps, nil
}

// Save writes the transcript as version ps.Version+1, provided the stored
// version still equals ps.Version.
func (s *DynamoStore) Save(ctx context.Context, ps domain.PageSession) error {
	if strings.TrimSpace(ps.ID) == "" {
		return errors.New("repository: Save: page id is required")
	}
	now := s.now().UTC()
	next := ps
	next.Version = ps.Version + 1
	next.LastActivity = now.Format(time.RFC3339)
	next.TTL = now.Add(s.ttl).Unix()

	in := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      pageSessionItem(next),
	}
	if ps.Version == 0 {
		in.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		in.ConditionExpression = aws.String("version = :prev")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberN{Value: strconv.Itoa(ps.Version)},
		}
	}

	if _, err := s.api.PutItem(ctx, in); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrConflict
		}
		return fmt.Errorf("repository: Save: %w", err)
	}
	return nil
}

func pageSessionItem(ps domain.PageSession) map[string]types.AttributeValue {
	turns := make([]types.AttributeValue, 0, len(ps.Turns))
	for _, t := range ps.Turns {
		turns = append(turns, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"role":    &types.AttributeValueMemberS{Value: t.Role},
			"content": &types.AttributeValueMemberS{Value: t.Content},
		}})
	}
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: pagePK(ps.ID)},
		"SK":           &types.AttributeValueMemberS{Value: skTranscript},
		"pageId":       &types.AttributeValueMemberS{Value: ps.ID},
		"turns":        &types.AttributeValueMemberL{Value: turns},
		"version":      &types.AttributeValueMemberN{Value: strconv.Itoa(ps.Version)},
		"lastActivity": &types.AttributeValueMemberS{Value: ps.LastActivity},
		"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(ps.TTL, 10)},
	}
}

func itemToPageSession(item map[string]types.AttributeValue) (domain.PageSession, error) {
	version, err := intAttr(item, "version")
	if err != nil {
		return domain.PageSession{}, err
	}
	ttl, _ := intAttr(item, "ttl") // allow missing
	lastActivity, _ := strAttr(item, "lastActivity")

	var turns []domain.ChatMessage
	if raw, ok := item["turns"]; ok {
		list, ok := raw.(*types.AttributeValueMemberL)
		if !ok {
			return domain.PageSession{}, errors.New("repository: attribute \"turns\" is not a list")
		}
		for i, v := range list.Value {
			m, ok := v.(*types.AttributeValueMemberM)
			if !ok {
				return domain.PageSession{}, fmt.Errorf("repository: turn %d is not a map", i)
			}
			role, err := strAttr(m.Value, "role")
			if err != nil {
				return domain.PageSession{}, fmt.Errorf("repository: turn %d: %w", i, err)
			}
			content, err := strAttr(m.Value, "content")
			if err != nil {
				return domain.PageSession{}, fmt.Errorf("repository: turn %d: %w", i, err)
			}
			turns = append(turns, domain.ChatMessage{Role: role, Content: content})
		}
	}

	return domain.PageSession{
		Turns:        turns,
		Version:      version,
		LastActivity: lastActivity,
		TTL:          int64(ttl),
	}, nil
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
