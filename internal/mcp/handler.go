package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sonetyo/ledger/internal/domain/activity"
	"github.com/sonetyo/ledger/internal/domain/ledger"
	"github.com/sonetyo/ledger/internal/metrics"
)

// LedgerService defines registry operations needed by MCP.
type LedgerService interface {
	Mint(ctx context.Context, creator ledger.Identity, fp ledger.Fingerprint, metadataRef string) (uint64, error)
	Verify(ctx context.Context, verifier ledger.Identity, id uint64) (uint64, error)
	Transfer(ctx context.Context, caller, to ledger.Identity, id uint64) error
	GetRecord(id uint64) (ledger.Record, error)
	RecordByFingerprint(fp ledger.Fingerprint) (ledger.Record, error)
	IsFingerprintRegistered(fp ledger.Fingerprint) bool
	GetCreatorStats(identity ledger.Identity) ledger.CreatorStats
	TotalRecords() uint64
	GetMetadataRef(id uint64) (string, error)
	OwnerOf(id uint64) (ledger.Identity, error)
	BalanceOf(identity ledger.Identity) uint64
	TokensOf(identity ledger.Identity) []uint64
	TokenByIndex(index uint64) (uint64, error)
	TokenOfOwnerByIndex(owner ledger.Identity, index uint64) (uint64, error)
	Name() string
	Symbol() string
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Handler dispatches ledger methods. The same table serves JSON-RPC and MCP tools.
type Handler struct {
	ledger   LedgerService
	activity ActivityService
	metrics  *metrics.Metrics
}

// NewHandler creates a new MCP handler. activitySvc and m may be nil.
func NewHandler(ledgerSvc LedgerService, activitySvc ActivityService, m *metrics.Metrics) *Handler {
	return &Handler{
		ledger:   ledgerSvc,
		activity: activitySvc,
		metrics:  m,
	}
}

var mutatingMethods = map[string]bool{
	"mint":     true,
	"verify":   true,
	"transfer": true,
}

// Handle runs method on behalf of caller. Domain failures come back as *APIError.
func (h *Handler) Handle(ctx context.Context, caller ledger.Identity, method string, params json.RawMessage) (any, error) {
	start := time.Now()
	result, err := h.dispatch(ctx, caller, method, params)
	err = mapError(err)

	code := resultCode(err)
	label := method
	if errors.Is(err, ErrUnknownMethod) {
		label = "unknown"
	}
	h.metrics.ObserveRPC(label, code, time.Since(start))
	if mutatingMethods[method] {
		h.metrics.ObserveOperation(method, code)
		if method == "mint" && err == nil {
			h.metrics.IncRecords()
		}
	}
	return result, err
}

func (h *Handler) dispatch(ctx context.Context, caller ledger.Identity, method string, params json.RawMessage) (any, error) {
	switch method {
	case "mint":
		var req MintParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		fp, err := ledger.ParseFingerprint(req.Fingerprint)
		if err != nil {
			return nil, err
		}
		id, err := h.ledger.Mint(ctx, caller, fp, req.MetadataRef)
		if err != nil {
			return nil, err
		}
		return MintResponse{ID: id}, nil
	case "verify":
		var req RecordIDParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.ID == nil {
			return nil, missingParam("id")
		}
		count, err := h.ledger.Verify(ctx, caller, *req.ID)
		if err != nil {
			return nil, err
		}
		return VerifyResponse{ID: *req.ID, VerificationCount: count}, nil
	case "transfer":
		var req TransferParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.ID == nil {
			return nil, missingParam("id")
		}
		to, err := ledger.ParseIdentity(req.To)
		if err != nil {
			return nil, err
		}
		if err := h.ledger.Transfer(ctx, caller, to, *req.ID); err != nil {
			return nil, err
		}
		return OwnerResponse{ID: *req.ID, Owner: to}, nil
	case "get_record":
		var req RecordIDParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.ID == nil {
			return nil, missingParam("id")
		}
		rec, err := h.ledger.GetRecord(*req.ID)
		if err != nil {
			return nil, err
		}
		return h.recordView(rec)
	case "get_record_by_fingerprint":
		var req FingerprintParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		fp, err := ledger.ParseFingerprint(req.Fingerprint)
		if err != nil {
			return nil, err
		}
		rec, err := h.ledger.RecordByFingerprint(fp)
		if err != nil {
			return nil, err
		}
		return h.recordView(rec)
	case "is_fingerprint_registered":
		var req FingerprintParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		fp, err := ledger.ParseFingerprint(req.Fingerprint)
		if err != nil {
			return nil, err
		}
		return RegisteredResponse{Fingerprint: fp.String(), Registered: h.ledger.IsFingerprintRegistered(fp)}, nil
	case "get_creator_stats":
		identity, err := identityOrCaller(params, caller)
		if err != nil {
			return nil, err
		}
		stats := h.ledger.GetCreatorStats(identity)
		return CreatorStatsResponse{
			Identity:           identity,
			TotalMints:         stats.TotalMints,
			TotalVerifications: stats.TotalVerifications,
		}, nil
	case "total_records":
		return TotalResponse{Total: h.ledger.TotalRecords()}, nil
	case "get_metadata_ref":
		var req RecordIDParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.ID == nil {
			return nil, missingParam("id")
		}
		ref, err := h.ledger.GetMetadataRef(*req.ID)
		if err != nil {
			return nil, err
		}
		return MetadataRefResponse{ID: *req.ID, MetadataRef: ref}, nil
	case "owner_of":
		var req RecordIDParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.ID == nil {
			return nil, missingParam("id")
		}
		owner, err := h.ledger.OwnerOf(*req.ID)
		if err != nil {
			return nil, err
		}
		return OwnerResponse{ID: *req.ID, Owner: owner}, nil
	case "balance_of":
		identity, err := identityOrCaller(params, caller)
		if err != nil {
			return nil, err
		}
		return BalanceResponse{Identity: identity, Balance: h.ledger.BalanceOf(identity)}, nil
	case "tokens_of":
		identity, err := identityOrCaller(params, caller)
		if err != nil {
			return nil, err
		}
		return TokensResponse{Identity: identity, IDs: h.ledger.TokensOf(identity)}, nil
	case "token_by_index":
		var req IndexParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.Index == nil {
			return nil, missingParam("index")
		}
		var (
			id  uint64
			err error
		)
		if req.Identity != "" {
			var owner ledger.Identity
			if owner, err = ledger.ParseIdentity(req.Identity); err != nil {
				return nil, err
			}
			id, err = h.ledger.TokenOfOwnerByIndex(owner, *req.Index)
		} else {
			id, err = h.ledger.TokenByIndex(*req.Index)
		}
		if err != nil {
			return nil, err
		}
		return TokenIndexResponse{Index: *req.Index, ID: id}, nil
	case "collection_info":
		return CollectionInfoResponse{
			Name:   h.ledger.Name(),
			Symbol: h.ledger.Symbol(),
			Total:  h.ledger.TotalRecords(),
		}, nil
	case "get_recent_activity":
		if h.activity == nil {
			return []ActivityEntryResponse{}, nil
		}
		var req GetRecentActivityParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		opts := activity.ListActivityOptions{
			RecordID: req.RecordID,
			Types:    req.Types,
			Limit:    req.Limit,
			Offset:   req.Offset,
		}
		if req.Actor != "" {
			actor := ledger.Identity(req.Actor)
			opts.Actor = &actor
		}
		entries, err := h.activity.GetRecentActivity(ctx, opts)
		if err != nil {
			return nil, err
		}
		resp := make([]ActivityEntryResponse, 0, len(entries))
		for _, entry := range entries {
			resp = append(resp, ActivityEntryResponse{
				Timestamp:    entry.CreatedAt,
				Type:         entry.ActivityType,
				EventID:      entry.EventID,
				RecordID:     entry.RecordID,
				Actor:        entry.Actor,
				Counterparty: entry.Counterparty,
				Summary:      entry.Summary,
				Details:      entry.Details,
			})
		}
		return resp, nil
	case "whoami":
		if caller.IsZero() {
			return nil, ErrUnauthorized
		}
		return WhoAmIResponse{Identity: caller}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
}

func (h *Handler) recordView(rec ledger.Record) (RecordView, error) {
	owner, err := h.ledger.OwnerOf(rec.ID)
	if err != nil {
		return RecordView{}, err
	}
	view := RecordView{
		ID:                rec.ID,
		Fingerprint:       rec.Fingerprint.String(),
		Creator:           rec.Creator,
		Owner:             owner,
		MetadataRef:       rec.MetadataRef,
		CreatedAt:         rec.CreatedAt,
		Verifiers:         rec.Verifiers,
		VerificationCount: rec.VerificationCount,
	}
	if c, err := rec.Fingerprint.CID(); err == nil {
		view.CID = c.String()
	}
	return view, nil
}

func identityOrCaller(params json.RawMessage, caller ledger.Identity) (ledger.Identity, error) {
	var req IdentityParams
	if err := decodeParams(params, &req); err != nil {
		return "", err
	}
	if req.Identity == "" {
		if caller.IsZero() {
			return "", ledger.ErrInvalidIdentity
		}
		return caller, nil
	}
	return ledger.ParseIdentity(req.Identity)
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

func missingParam(name string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidParams, name)
}

func resultCode(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.Is(err, ErrInvalidParams):
		return "invalid_params"
	case errors.Is(err, ErrUnknownMethod):
		return "unknown_method"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}
