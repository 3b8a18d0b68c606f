package adjudicator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fleetward/remediator/pkg/types"
)

const cacheTTL = 24 * time.Hour

// cachedBackend is a best-effort determinism aid (SPEC_FULL §4.4): a repeat
// adjudication for the same step of the same incident returns the
// previously chosen tool call instead of invoking the backend again. A
// cache miss or a Redis outage always falls through to a live call — the
// cache is never the source of truth.
type cachedBackend struct {
	inner Backend
	rdb   *redis.Client
}

// NewCachedBackend wraps inner with a Redis-backed cache. rdb may be nil,
// in which case every call passes straight through to inner.
func NewCachedBackend(inner Backend, rdb *redis.Client) Backend {
	return &cachedBackend{inner: inner, rdb: rdb}
}

func cacheKey(req types.AdjudicateRequest) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", req.RunbookID, req.ActionID, req.Alert.ComputeFingerprint())))
	return "adjudicator:" + hex.EncodeToString(sum[:])
}

func (c *cachedBackend) ChooseTool(ctx context.Context, req types.AdjudicateRequest) (types.ToolCall, error) {
	if c.rdb == nil {
		return c.inner.ChooseTool(ctx, req)
	}

	key := cacheKey(req)
	if cached, err := c.rdb.Get(ctx, key).Result(); err == nil {
		var call types.ToolCall
		if json.Unmarshal([]byte(cached), &call) == nil {
			return call, nil
		}
	}

	call, err := c.inner.ChooseTool(ctx, req)
	if err != nil {
		return types.ToolCall{}, err
	}

	if encoded, mErr := json.Marshal(call); mErr == nil {
		c.rdb.Set(ctx, key, encoded, cacheTTL)
	}
	return call, nil
}
