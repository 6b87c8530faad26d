package streamclient

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDoublesFromBaseDelay(t *testing.T) {
	c := New(Config{ReconnectDelay: 100 * time.Millisecond})

	require.Equal(t, 100*time.Millisecond, c.boff.NextBackOff())
	require.Equal(t, 200*time.Millisecond, c.boff.NextBackOff())
	require.Equal(t, 400*time.Millisecond, c.boff.NextBackOff())

	c.boff.Reset()
	require.Equal(t, 100*time.Millisecond, c.boff.NextBackOff(), "reset restores the base delay")
}

func TestTerminalAfterMaxAttempts(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	errs := make(chan error, 16)
	done := make(chan struct{}, 1)
	c := New(Config{
		MaxReconnectAttempts: 3,
		ReconnectDelay:       time.Millisecond,
		OnError:              func(err error) { errs <- err },
		OnDisconnect:         func() { done <- struct{}{} },
	})
	c.Connect(srv.URL)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("client never went terminal")
	}

	require.Equal(t, StateDisconnected, c.State())
	// initial attempt plus three retries
	require.EqualValues(t, 4, requests.Load())
	require.Len(t, errs, 4)

	// terminal means no further attempts
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 4, requests.Load())
}

func TestSuccessfulReconnectResetsAttempts(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	connected := make(chan struct{}, 1)
	c := New(Config{
		ReconnectDelay: time.Millisecond,
		OnConnect:      func() { connected <- struct{}{} },
	})
	c.Connect(srv.URL)
	defer c.Disconnect()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("client never recovered")
	}

	require.Equal(t, StateConnected, c.State())
	require.Equal(t, 0, c.Attempts(), "a successful open clears the failure count")
}

func TestFrameParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fl := w.(http.Flusher)
		fmt.Fprint(w, ": ok\n\n")
		fmt.Fprint(w, ": heartbeat\n\n")
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"order:new\",\"timestamp\":\"2026-08-29T10:00:00Z\",\"orderId\":\"o1\"}\n\n")
		fl.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	got := make(chan Event, 8)
	c := New(Config{
		ReconnectDelay: time.Millisecond,
		OnMessage:      func(ev Event) { got <- ev },
	})
	c.Connect(srv.URL)
	defer c.Disconnect()

	select {
	case ev := <-got:
		require.Equal(t, "order:new", ev.Type)
		require.Equal(t, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC), ev.Timestamp)
		require.Equal(t, "o1", ev.Data["orderId"])
	case <-time.After(5 * time.Second):
		t.Fatal("no event delivered")
	}
	// comments and the malformed frame never reach the callback
	require.Empty(t, got)
}

func TestDisconnectIsSafeFromAnyState(t *testing.T) {
	c := New(Config{})
	c.Disconnect()
	require.Equal(t, StateDisconnected, c.State())
	c.Disconnect()
	require.Equal(t, StateDisconnected, c.State())
}
