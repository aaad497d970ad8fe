package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan Event) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return Event{}, false
	}
}

func TestAttach_ReplacesAndClosesOldChannel(t *testing.T) {
	r := NewRouter(nil)
	ch1 := r.Attach("call-1")
	ch2 := r.Attach("call-1")

	_, ok := recv(t, ch1)
	require.False(t, ok, "replaced channel should be closed")

	r.Dispatch("call-1", Event{Type: EventCallEnded})
	ev, ok := recv(t, ch2)
	require.True(t, ok)
	require.Equal(t, EventCallEnded, ev.Type)
}

func TestDetach_StaleChannelLeavesReplacementAttached(t *testing.T) {
	r := NewRouter(nil)
	ch1 := r.Attach("call-1")
	ch2 := r.Attach("call-1")

	// The first session detaching late must not tear down the new feed.
	r.Detach("call-1", ch1)

	r.Dispatch("call-1", Event{Type: EventCaption, Caption: &Caption{SpeakerID: "u1", Text: "hi"}})
	ev, ok := recv(t, ch2)
	require.True(t, ok, "replacement channel must stay open")
	require.Equal(t, EventCaption, ev.Type)
}

func TestDetach_CurrentChannelRemoves(t *testing.T) {
	r := NewRouter(nil)
	ch := r.Attach("call-1")
	r.Detach("call-1", ch)

	_, ok := recv(t, ch)
	require.False(t, ok)
	r.Dispatch("call-1", Event{Type: EventCallEnded}) // dropped, no panic
}

func TestDispatch_ConcurrentWithReattach(t *testing.T) {
	r := NewRouter(nil)
	ch := r.Attach("call-1")
	_ = ch

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			r.Dispatch("call-1", Event{Type: EventCallEnded})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			old := r.Attach("call-1")
			r.Detach("call-1", old)
		}
	}()
	wg.Wait()
}

// A session restarted on the same call must keep receiving events even after
// the previous session's delayed leave resolves.
func TestSessionLeave_AfterRestartKeepsNewFeedAlive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	router := NewRouter(nil)
	client := NewClient(srv.URL, router, nil)
	ctx := context.Background()

	first := client.Session("call-1")
	require.NoError(t, first.Join(ctx))

	second := client.Session("call-1")
	require.NoError(t, second.Join(ctx))

	// The first session's leave lands after the restart re-attached.
	require.NoError(t, first.Leave(ctx))

	router.Dispatch("call-1", Event{Type: EventCallEnded})
	ev, ok := recv(t, second.Events())
	require.True(t, ok, "restarted session's feed must survive the old leave")
	require.Equal(t, EventCallEnded, ev.Type)
}
