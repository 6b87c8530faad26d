package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store for tests and single-node development.
type Memory struct {
	mu      sync.RWMutex
	devices map[string]Device // id -> device
}

func NewMemory() *Memory {
	return &Memory{devices: make(map[string]Device)}
}

func (m *Memory) RegisterDevice(_ context.Context, in DeviceIn) (Device, error) {
	d := Device{
		ID:           uuid.NewString(),
		RestaurantID: in.RestaurantID,
		Label:        in.Label,
		Endpoint:     in.Endpoint,
		Secret:       in.Secret,
		CreatedAt:    time.Now().UTC(),
	}
	m.mu.Lock()
	m.devices[d.ID] = d
	m.mu.Unlock()
	return d, nil
}

func (m *Memory) ListDevices(_ context.Context, restaurantID string) ([]Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Device
	for _, d := range m.devices {
		if d.RestaurantID == restaurantID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteDevice(_ context.Context, restaurantID, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok || d.RestaurantID != restaurantID {
		return ErrNotFound
	}
	delete(m.devices, deviceID)
	return nil
}
