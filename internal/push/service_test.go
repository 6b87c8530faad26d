package push

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"dinestream/internal/events"
	"dinestream/internal/store"
)

func TestNotifySignsDeliveries(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	st := store.NewMemory()
	_, err := st.RegisterDevice(context.Background(), store.DeviceIn{RestaurantID: "r1", Endpoint: srv.URL, Secret: "topsecret"})
	require.NoError(t, err)

	svc := NewService(st, Config{}, zerolog.Nop())
	err = svc.Notify(context.Background(), "r1", events.Notification{Title: "New order", Body: "table 4"})
	require.NoError(t, err)
	require.NotEmpty(t, gotSig)
	require.True(t, VerifyHMAC("topsecret", gotBody, gotSig))
}

func TestNotifyPartialFailure(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	defer ok.Close()
	var badHits atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		badHits.Add(1)
		w.WriteHeader(502)
	}))
	defer bad.Close()

	st := store.NewMemory()
	ctx := context.Background()
	_, err := st.RegisterDevice(ctx, store.DeviceIn{RestaurantID: "r1", Endpoint: bad.URL})
	require.NoError(t, err)
	_, err = st.RegisterDevice(ctx, store.DeviceIn{RestaurantID: "r1", Endpoint: ok.URL})
	require.NoError(t, err)

	svc := NewService(st, Config{}, zerolog.Nop())
	err = svc.Notify(ctx, "r1", events.Notification{Title: "Request", Body: "bill please"})
	require.Error(t, err, "the failing device surfaces in the joined error")
	require.EqualValues(t, 1, badHits.Load(), "each device is attempted exactly once")
}

func TestNotifyNoDevicesIsNoop(t *testing.T) {
	svc := NewService(store.NewMemory(), Config{}, zerolog.Nop())
	require.NoError(t, svc.Notify(context.Background(), "r-none", events.Notification{Title: "x"}))
}

func TestSignVerifyRoundTrip(t *testing.T) {
	body := []byte(`{"title":"hi"}`)
	sig := SignHMAC("s3cret", body)
	require.True(t, VerifyHMAC("s3cret", body, sig))
	require.False(t, VerifyHMAC("other", body, sig))
	require.False(t, VerifyHMAC("s3cret", body, "zz-not-hex"))
}
