package agent

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// JoinFunc issues the outbound invitation request. Usually Client.JoinInterview.
type JoinFunc func(ctx context.Context, req JoinRequest) (*JoinResult, error)

// Registry guarantees at most one outbound invitation per call ID. Concurrent
// callers for the same call coalesce onto a single in-flight request;
// successful results are cached for the life of the process (no eviction),
// failures are not cached so the next caller retries with a fresh request.
//
// The guarantee is process-wide only; nothing coordinates invitations across
// multiple server instances.
type Registry struct {
	join   JoinFunc
	group  singleflight.Group
	mu     sync.RWMutex
	done   map[string]*JoinResult // call ID -> successful invitation
	logger *zap.Logger
}

// NewRegistry creates an invitation registry backed by the given join call.
func NewRegistry(join JoinFunc, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		join:   join,
		done:   make(map[string]*JoinResult),
		logger: logger,
	}
}

// EnsureInvited returns the invitation result for req.CallID, issuing the
// outbound request only if no successful invitation exists and none is in
// flight. All callers awaiting a failed attempt receive its error.
func (r *Registry) EnsureInvited(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	if res := r.cached(req.CallID); res != nil {
		return res, nil
	}

	v, err, shared := r.group.Do(req.CallID, func() (interface{}, error) {
		// A flight that completed between the cache check and Do would have
		// stored its result already.
		if res := r.cached(req.CallID); res != nil {
			return res, nil
		}
		res, err := r.join(ctx, req)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.done[req.CallID] = res
		r.mu.Unlock()
		return res, nil
	})
	if err != nil {
		r.logger.Warn("agent invitation failed", zap.String("call_id", req.CallID), zap.Error(err))
		return nil, err
	}
	if shared {
		r.logger.Debug("agent invitation coalesced", zap.String("call_id", req.CallID))
	}
	return v.(*JoinResult), nil
}

// Invited reports whether a successful invitation exists for the call.
func (r *Registry) Invited(callID string) bool {
	return r.cached(callID) != nil
}

func (r *Registry) cached(callID string) *JoinResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.done[callID]
}
