// Package memory implements the repositories in process, for local
// development and tests. Rows are kept as DynamoDB attribute maps so patch
// ops behave the same way they do against the real tables.
package memory

import (
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/guardian-api/internal/domain"
)

type document = map[string]types.AttributeValue

type table[T any] struct {
	mu       sync.RWMutex
	rows     map[string]document
	entity   string
	notFound error
}

func newTable[T any](entity string, notFound error) *table[T] {
	return &table[T]{rows: map[string]document{}, entity: entity, notFound: notFound}
}

func (t *table[T]) get(id string) (*T, error) {
	t.mu.RLock()
	doc, ok := t.rows[id]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", t.entity, id, t.notFound)
	}
	return decode[T](doc)
}

func (t *table[T]) create(id string, item *T) error {
	doc, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", t.entity, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.rows[id]; exists {
		return fmt.Errorf("%s %s: %w", t.entity, id, domain.ErrIDAlreadyExists)
	}
	t.rows[id] = doc
	return nil
}

func (t *table[T]) upsert(id string, item *T) error {
	doc, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", t.entity, err)
	}
	t.mu.Lock()
	t.rows[id] = doc
	t.mu.Unlock()
	return nil
}

// update applies ops to a copy of the row and stores it only if every op succeeds.
func (t *table[T]) update(id string, ops []domain.PatchOp) (*T, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	doc, ok := t.rows[id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", t.entity, id, t.notFound)
	}
	next, err := applyPatch(doc, ops)
	if err != nil {
		if err == errPathMissing {
			return nil, fmt.Errorf("%s %s: %w", t.entity, id, t.notFound)
		}
		return nil, err
	}
	t.rows[id] = next
	return decode[T](next)
}

// take deletes the row only if match accepts it, and reports whether it did.
func (t *table[T]) take(id string, match func(*T) bool) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	doc, ok := t.rows[id]
	if !ok {
		return false, nil
	}
	v, err := decode[T](doc)
	if err != nil {
		return false, err
	}
	if !match(v) {
		return false, nil
	}
	delete(t.rows, id)
	return true, nil
}

func (t *table[T]) delete(id string) {
	t.mu.Lock()
	delete(t.rows, id)
	t.mu.Unlock()
}

func decode[T any](doc document) (*T, error) {
	var v T
	if err := attributevalue.UnmarshalMap(doc, &v); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return &v, nil
}
