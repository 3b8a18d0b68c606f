package adjudicator

import (
	"context"

	"github.com/fleetward/remediator/pkg/types"
)

type fakeBackend struct {
	callCount int
	call      types.ToolCall
	err       error
}

func (f *fakeBackend) ChooseTool(ctx context.Context, req types.AdjudicateRequest) (types.ToolCall, error) {
	f.callCount++
	if f.err != nil {
		return types.ToolCall{}, f.err
	}
	return f.call, nil
}
