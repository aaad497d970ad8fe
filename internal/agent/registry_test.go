package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureInvited_ConcurrentCallersShareOneRequest(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	reg := NewRegistry(func(ctx context.Context, req JoinRequest) (*JoinResult, error) {
		atomic.AddInt32(&calls, 1)
		<-release // hold the flight open so every caller attaches to it
		return &JoinResult{Invited: true, VideoAvatarEnabled: true}, nil
	}, nil)

	const n = 16
	results := make([]*JoinResult, n)
	errs := make([]error, n)
	var started, finished sync.WaitGroup
	started.Add(n)
	finished.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer finished.Done()
			started.Done()
			results[i], errs[i] = reg.EnsureInvited(context.Background(), JoinRequest{CallID: "call-1"})
		}(i)
	}
	started.Wait()
	close(release)
	finished.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		require.True(t, results[i].Invited)
		require.True(t, results[i].VideoAvatarEnabled)
	}
}

func TestEnsureInvited_SuccessIsCachedPermanently(t *testing.T) {
	var calls int32
	reg := NewRegistry(func(ctx context.Context, req JoinRequest) (*JoinResult, error) {
		atomic.AddInt32(&calls, 1)
		return &JoinResult{Invited: true}, nil
	}, nil)

	for i := 0; i < 5; i++ {
		res, err := reg.EnsureInvited(context.Background(), JoinRequest{CallID: "call-1"})
		require.NoError(t, err)
		require.True(t, res.Invited)
	}

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
	require.True(t, reg.Invited("call-1"))
}

func TestEnsureInvited_FailureIsNotCached(t *testing.T) {
	var calls int32
	boom := errors.New("connection refused")
	reg := NewRegistry(func(ctx context.Context, req JoinRequest) (*JoinResult, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, boom
		}
		return &JoinResult{Invited: true}, nil
	}, nil)

	_, err := reg.EnsureInvited(context.Background(), JoinRequest{CallID: "call-1"})
	require.ErrorIs(t, err, boom)
	require.False(t, reg.Invited("call-1"))

	res, err := reg.EnsureInvited(context.Background(), JoinRequest{CallID: "call-1"})
	require.NoError(t, err)
	require.True(t, res.Invited)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestEnsureInvited_DistinctCallIDsDoNotCoalesce(t *testing.T) {
	var calls int32
	reg := NewRegistry(func(ctx context.Context, req JoinRequest) (*JoinResult, error) {
		atomic.AddInt32(&calls, 1)
		return &JoinResult{Invited: true}, nil
	}, nil)

	_, err := reg.EnsureInvited(context.Background(), JoinRequest{CallID: "call-1"})
	require.NoError(t, err)
	_, err = reg.EnsureInvited(context.Background(), JoinRequest{CallID: "call-2"})
	require.NoError(t, err)

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
