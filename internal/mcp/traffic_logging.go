package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxLoggedPayload truncates logged params and results.
const maxLoggedPayload = 2048

// trafficLoggingMiddleware logs every MCP message at debug level.
func trafficLoggingMiddleware(logger *slog.Logger, direction string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if logger == nil || !logger.Enabled(ctx, slog.LevelDebug) {
				return next(ctx, method, req)
			}

			log := logger.With(
				"direction", direction,
				"method", method,
				"session_id", sessionID(req),
				"identity", identityFromContext(ctx),
			)
			log.Debug("mcp request", "params", payload(params(req)))

			start := time.Now()
			result, err := next(ctx, method, req)
			if strings.HasPrefix(method, "notifications/") {
				return result, err
			}
			if err != nil {
				log.Debug("mcp response", "duration", time.Since(start), "error", err)
			} else {
				log.Debug("mcp response", "duration", time.Since(start), "result", payload(result))
			}
			return result, err
		}
	}
}

// sessionID and params recover because some SDK requests carry no session.
func sessionID(req sdkmcp.Request) (id string) {
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	if req == nil {
		return ""
	}
	if session := req.GetSession(); session != nil {
		return session.ID()
	}
	return ""
}

func params(req sdkmcp.Request) (p any) {
	defer func() {
		if recover() != nil {
			p = nil
		}
	}()
	if req == nil {
		return nil
	}
	return req.GetParams()
}

func payload(v any) string {
	if v == nil {
		return "<nil>"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T", v)
	}
	if len(data) > maxLoggedPayload {
		return string(data[:maxLoggedPayload]) + "..."
	}
	return string(data)
}
