package memory

import (
	"errors"
	"fmt"
	"maps"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/guardian-api/internal/domain"
)

var errPathMissing = errors.New("path missing")

// applyPatch returns a patched copy of doc. Nested maps along a modified
// path are copied so the original stays untouched on failure.
func applyPatch(doc document, ops []domain.PatchOp) (document, error) {
	out := maps.Clone(doc)
	for i, op := range ops {
		segments := domain.PathSegments(op.Path)
		if len(segments) == 0 {
			return nil, fmt.Errorf("patch op %d: empty path: %w", i, domain.ErrBadRequest)
		}

		parent := out
		for _, s := range segments[:len(segments)-1] {
			m, ok := parent[s].(*types.AttributeValueMemberM)
			if !ok {
				return nil, errPathMissing
			}
			child := &types.AttributeValueMemberM{Value: maps.Clone(m.Value)}
			if child.Value == nil {
				child.Value = document{}
			}
			parent[s] = child
			parent = child.Value
		}
		last := segments[len(segments)-1]
		_, exists := parent[last]

		switch op.Op {
		case domain.PatchAdd, domain.PatchReplace:
			if op.Op == domain.PatchReplace && !exists {
				return nil, errPathMissing
			}
			av, err := attributevalue.Marshal(op.Value)
			if err != nil {
				return nil, fmt.Errorf("marshal field %s: %w", op.Path, err)
			}
			parent[last] = av
		case domain.PatchRemove:
			if !exists {
				return nil, errPathMissing
			}
			delete(parent, last)
		case domain.PatchTest:
			av, err := attributevalue.Marshal(op.Value)
			if err != nil {
				return nil, fmt.Errorf("marshal field %s: %w", op.Path, err)
			}
			if !exists || !reflect.DeepEqual(parent[last], av) {
				return nil, errPathMissing
			}
		default:
			return nil, fmt.Errorf("patch op %d: unknown op %q: %w", i, op.Op, domain.ErrBadRequest)
		}
	}
	return out, nil
}
