package mcpserver

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ersonp/lore-novel/internal/domain/apperrors"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
// Fractional and out-of-range numbers are rejected rather than truncated.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) (int, error) {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal, nil
	}
	if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
		return 0, apperrors.Validation("'%s' must be an integer, got %v", key, v)
	}
	return int(v), nil
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// failure turns rejections into tool errors the model can read and act on.
// Anything else is an internal failure and is returned as a Go error.
func failure(logger *zap.Logger, tool string, err error) (*mcp.CallToolResult, error) {
	if apperrors.IsRejection(err) {
		logger.Debug("tool call rejected", zap.String("tool", tool), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	logger.Error("tool call failed", zap.String("tool", tool), zap.Error(err))
	return nil, fmt.Errorf("%s: %w", tool, err)
}
