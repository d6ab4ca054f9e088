package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `sonetyo-ledger registers content fingerprints as provenance records.

Core concepts:
- Record: a 32-byte fingerprint claimed once, with a creator, a holder and a metadata URI. Ids are dense from 0.
- Creator: the identity that minted the record. It never changes.
- Holder: the identity that currently owns the record. transfer moves it; the creator stays.
- Verification: another identity vouching for a record. One per identity per record; creators cannot verify their own.

Default workflow:
1) whoami to confirm which identity the server resolved for you.
2) is_fingerprint_registered before mint; a claimed fingerprint cannot be minted again.
3) mint(fingerprint, metadata_ref) returns the new id.
4) get_record / owner_of / get_creator_stats to inspect.
5) get_recent_activity for the event history, newest first.

Docs:
- sonetyo://docs/index
- sonetyo://docs/fingerprints
- sonetyo://docs/errors
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "sonetyo://docs/index",
		Name:        "docs_index",
		Title:       "sonetyo-ledger docs index",
		Description: "Entry point: tools by group and what to read next.",
		Content: `# sonetyo-ledger docs

## Tools

Mutations (act as the caller):
- mint(fingerprint, metadata_ref?)
- verify(id)
- transfer(id, to)

Records:
- get_record(id), get_record_by_fingerprint(fingerprint)
- is_fingerprint_registered(fingerprint)
- get_metadata_ref(id), owner_of(id)

Identities (identity defaults to the caller):
- get_creator_stats(identity?), balance_of(identity?), tokens_of(identity?)
- whoami()

Collection:
- total_records(), token_by_index(index, identity?), collection_info()

Activity:
- get_recent_activity(record_id?, actor?, types?, limit?, offset?)

## Read next

- sonetyo://docs/fingerprints for accepted fingerprint formats.
- sonetyo://docs/errors for error codes and how to recover.
`,
	},
	{
		URI:         "sonetyo://docs/fingerprints",
		Name:        "docs_fingerprints",
		Title:       "Fingerprint formats",
		Description: "Accepted fingerprint encodings and how they compare.",
		Content: `# Fingerprints

A fingerprint is exactly 32 bytes. The all-zero value is rejected.

Accepted inputs:
- 64 hex characters, with or without a 0x prefix, any case.
- A CIDv0 or CIDv1 whose multihash digest is 32 bytes (sha2-256, sha3-256, keccak-256, blake2b-256).

Two inputs that decode to the same 32 bytes are the same fingerprint. A hex digest and the CID
wrapping it collide, so minting one after the other fails with DUPLICATE_FINGERPRINT.

Responses always carry the 0x-prefixed lowercase hex form and, where it applies, the CIDv1.
`,
	},
	{
		URI:         "sonetyo://docs/errors",
		Name:        "docs_errors",
		Title:       "Error codes",
		Description: "Stable error codes returned in tool results and JSON-RPC error data.",
		Content: `# Error codes

- INVALID_FINGERPRINT: zero or malformed fingerprint.
- DUPLICATE_FINGERPRINT: the fingerprint is already claimed. Use get_record_by_fingerprint.
- RECORD_NOT_FOUND: no record with that id.
- SELF_VERIFICATION_FORBIDDEN: creators cannot verify their own record, even after transferring it.
- DUPLICATE_VERIFICATION: this identity already verified the record.
- INVALID_IDENTITY: the caller or a target identity is empty.
- NOT_OWNER: transfer by someone other than the holder.
- INDEX_OUT_OF_RANGE: enumeration index past the end.
- INVALID_PARAMS: arguments did not decode or a required one is missing.

A failed mutation leaves the ledger unchanged; it is safe to fix the input and retry.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
