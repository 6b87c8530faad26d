package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryDeviceLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	d1, err := m.RegisterDevice(ctx, DeviceIn{RestaurantID: "r1", Label: "counter tablet", Endpoint: "https://push.example/d1", Secret: "sec"})
	require.NoError(t, err)
	require.NotEmpty(t, d1.ID)

	_, err = m.RegisterDevice(ctx, DeviceIn{RestaurantID: "r2", Endpoint: "https://push.example/d2"})
	require.NoError(t, err)

	devs, err := m.ListDevices(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, devs, 1)
	require.Equal(t, "counter tablet", devs[0].Label)

	require.NoError(t, m.DeleteDevice(ctx, "r1", d1.ID))
	require.ErrorIs(t, m.DeleteDevice(ctx, "r1", d1.ID), ErrNotFound)

	// a device belongs to its restaurant only
	devs2, err := m.ListDevices(ctx, "r2")
	require.NoError(t, err)
	require.Len(t, devs2, 1)
	require.ErrorIs(t, m.DeleteDevice(ctx, "r1", devs2[0].ID), ErrNotFound)
}
