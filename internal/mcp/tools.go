package mcp

import (
	"context"
	"encoding/json"
	"errors"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolDefinition describes one MCP tool backed by a Handler method.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var (
	idProp = map[string]any{
		"type":        "integer",
		"minimum":     0,
		"description": "Record id (dense, starting at 0)",
	}
	fingerprintProp = map[string]any{
		"type":        "string",
		"description": "Content fingerprint: 64 hex characters (0x optional) or a CID with a 32-byte digest",
	}
	identityProp = map[string]any{
		"type":        "string",
		"description": "Identity to query (omit for the caller)",
	}
)

// buildToolCatalog returns all available MCP tools
func buildToolCatalog() []ToolDefinition {
	return []ToolDefinition{
		// Mutations
		{
			Name:        "mint",
			Description: "Register a content fingerprint as a new record created and held by the caller",
			InputSchema: objectSchema(map[string]any{
				"fingerprint": fingerprintProp,
				"metadata_ref": map[string]any{
					"type":        "string",
					"description": "Metadata URI stored verbatim with the record",
				},
			}, "fingerprint"),
		},
		{
			Name:        "verify",
			Description: "Endorse someone else's record. Each identity may verify a record once",
			InputSchema: objectSchema(map[string]any{"id": idProp}, "id"),
		},
		{
			Name:        "transfer",
			Description: "Hand a record the caller holds to another identity. The creator never changes",
			InputSchema: objectSchema(map[string]any{
				"id": idProp,
				"to": map[string]any{
					"type":        "string",
					"description": "Receiving identity",
				},
			}, "id", "to"),
		},

		// Records
		{
			Name:        "get_record",
			Description: "Get a record with its holder and verifiers",
			InputSchema: objectSchema(map[string]any{"id": idProp}, "id"),
		},
		{
			Name:        "get_record_by_fingerprint",
			Description: "Get the record that claimed a fingerprint",
			InputSchema: objectSchema(map[string]any{"fingerprint": fingerprintProp}, "fingerprint"),
		},
		{
			Name:        "is_fingerprint_registered",
			Description: "Check whether a fingerprint has been claimed",
			InputSchema: objectSchema(map[string]any{"fingerprint": fingerprintProp}, "fingerprint"),
		},
		{
			Name:        "get_metadata_ref",
			Description: "Get the metadata URI stored with a record",
			InputSchema: objectSchema(map[string]any{"id": idProp}, "id"),
		},
		{
			Name:        "owner_of",
			Description: "Get the current holder of a record",
			InputSchema: objectSchema(map[string]any{"id": idProp}, "id"),
		},

		// Identities
		{
			Name:        "get_creator_stats",
			Description: "Get how many records an identity minted and how many it verified",
			InputSchema: objectSchema(map[string]any{"identity": identityProp}),
		},
		{
			Name:        "balance_of",
			Description: "Count the records an identity holds",
			InputSchema: objectSchema(map[string]any{"identity": identityProp}),
		},
		{
			Name:        "tokens_of",
			Description: "List the record ids an identity holds in ascending order",
			InputSchema: objectSchema(map[string]any{"identity": identityProp}),
		},
		{
			Name:        "whoami",
			Description: "Return the identity the server resolved for this caller",
			InputSchema: objectSchema(map[string]any{}),
		},

		// Collection
		{
			Name:        "total_records",
			Description: "Count all minted records",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "token_by_index",
			Description: "Enumerate records by position, across the collection or within one holder",
			InputSchema: objectSchema(map[string]any{
				"index": map[string]any{
					"type":        "integer",
					"minimum":     0,
					"description": "Zero-based position",
				},
				"identity": map[string]any{
					"type":        "string",
					"description": "Enumerate this holder's records instead of the whole collection",
				},
			}, "index"),
		},
		{
			Name:        "collection_info",
			Description: "Get the collection name, symbol and size",
			InputSchema: objectSchema(map[string]any{}),
		},

		// Activity
		{
			Name:        "get_recent_activity",
			Description: "List recent ledger events, newest first",
			InputSchema: objectSchema(map[string]any{
				"record_id": idProp,
				"actor": map[string]any{
					"type":        "string",
					"description": "Only events where this identity acted or received",
				},
				"types": map[string]any{
					"type":        "array",
					"description": "Filter by activity type",
					"items": map[string]any{
						"type": "string",
						"enum": []string{"record_minted", "record_verified", "record_transferred"},
					},
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results",
				},
				"offset": map[string]any{
					"type":        "integer",
					"description": "Offset for pagination",
				},
			}),
		},
	}
}

func registerTools(server *sdkmcp.Server, h *Handler) {
	for _, def := range buildToolCatalog() {
		name := def.Name
		server.AddTool(&sdkmcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
			var args json.RawMessage
			if req != nil && req.Params != nil {
				args = req.Params.Arguments
			}
			result, err := h.Handle(ctx, identityFromContext(ctx), name, args)
			if err != nil {
				return toolError(err), nil
			}
			return toolResult(result)
		})
	}
}

func toolResult(result any) (*sdkmcp.CallToolResult, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil
}

func toolError(err error) *sdkmcp.CallToolResult {
	apiErr := MapError(err)
	if apiErr == nil {
		code := "INTERNAL"
		switch {
		case errors.Is(err, ErrInvalidParams):
			code = "INVALID_PARAMS"
		case errors.Is(err, ErrUnknownMethod):
			code = "UNKNOWN_METHOD"
		case errors.Is(err, ErrUnauthorized):
			code = "UNAUTHORIZED"
		}
		apiErr = &APIError{Code: code, Message: err.Error()}
	}
	data, _ := json.Marshal(apiErr)
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}
}
