package campaigns

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/samvad-hq/campaign-desk/internal/domain"
	"github.com/samvad-hq/campaign-desk/pkg/httpclient"
)

func ReplaceOp(path string, value any) httpclient.PatchOperation {
	return httpclient.PatchOperation{Op: "replace", Path: path, Value: value}
}

func AddOp(path string, value any) httpclient.PatchOperation {
	return httpclient.PatchOperation{Op: "add", Path: path, Value: value}
}

func RemoveOp(path string) httpclient.PatchOperation {
	return httpclient.PatchOperation{Op: "remove", Path: path}
}

// TestOp guards a patch: the server rejects the whole patch if path != value.
func TestOp(path string, value any) httpclient.PatchOperation {
	return httpclient.PatchOperation{Op: "test", Path: path, Value: value}
}

// ParseOps decodes a raw JSON-Patch document and checks it is well formed.
func ParseOps(raw []byte) ([]httpclient.PatchOperation, error) {
	if _, err := jsonpatch.DecodePatch(raw); err != nil {
		return nil, fmt.Errorf("decode json patch: %w", err)
	}
	var ops []httpclient.PatchOperation
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, fmt.Errorf("decode json patch: %w", err)
	}
	for i, op := range ops {
		switch op.Op {
		case "add", "remove", "replace", "move", "copy", "test":
		default:
			return nil, fmt.Errorf("patch[%d]: unsupported op %q", i, op.Op)
		}
	}
	return ops, nil
}

// applyPatch applies ops to a local copy of c.
func applyPatch(c domain.Campaign, ops []httpclient.PatchOperation) (domain.Campaign, error) {
	doc, err := json.Marshal(c)
	if err != nil {
		return c, fmt.Errorf("encode campaign: %w", err)
	}
	raw, err := json.Marshal(ops)
	if err != nil {
		return c, fmt.Errorf("encode patch: %w", err)
	}
	patch, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return c, fmt.Errorf("decode patch: %w", err)
	}
	patched, err := patch.Apply(doc)
	if err != nil {
		return c, fmt.Errorf("apply patch: %w", err)
	}

	var next domain.Campaign
	if err := json.Unmarshal(patched, &next); err != nil {
		return c, fmt.Errorf("decode patched campaign: %w", err)
	}
	return next, nil
}
