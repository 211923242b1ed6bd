package domain

import "strings"

// PatchOpType is the kind of a single patch operation.
type PatchOpType string

const (
	PatchAdd     PatchOpType = "add"
	PatchReplace PatchOpType = "replace"
	PatchRemove  PatchOpType = "remove"
	// PatchTest changes nothing; the whole patch fails unless Path holds Value.
	PatchTest PatchOpType = "test"
)

// PatchOp is one JSON-pointer addressed mutation of a stored entity.
// Services only build these; storage interprets them.
type PatchOp struct {
	Op    PatchOpType
	Path  string
	Value any
}

// Entity paths used by the services.
const (
	PathVerified       = "/verified"
	PathEmailAddress   = "/emailAddress"
	PathPasswordHashed = "/passwordHashed"
	PathSecret         = "/secret"
)

func PatchAddOp(path string, value any) PatchOp {
	return PatchOp{Op: PatchAdd, Path: path, Value: value}
}

func PatchReplaceOp(path string, value any) PatchOp {
	return PatchOp{Op: PatchReplace, Path: path, Value: value}
}

func PatchRemoveOp(path string) PatchOp {
	return PatchOp{Op: PatchRemove, Path: path}
}

func PatchTestOp(path string, value any) PatchOp {
	return PatchOp{Op: PatchTest, Path: path, Value: value}
}

// IntegrationPath addresses one platform entry of Identity.Integrations.
func IntegrationPath(platform string) string {
	return "/integrations/" + escapePointer(platform)
}

// PathSegments splits a JSON pointer into its unescaped segments.
func PathSegments(path string) []string {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~")
	}
	return parts
}

func escapePointer(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}
