// Package store persists push-device registrations: the staff devices of a
// restaurant that receive best-effort notifications. Events themselves are
// never persisted.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Device is one registered staff device endpoint.
type Device struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurantId"`
	Label        string    `json:"label,omitempty"`
	Endpoint     string    `json:"endpoint"`
	Secret       string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DeviceIn is the registration input.
type DeviceIn struct {
	RestaurantID string `json:"-"`
	Label        string `json:"label"`
	Endpoint     string `json:"endpoint"`
	Secret       string `json:"secret"`
}

// Store is the persistence interface for device registrations.
type Store interface {
	RegisterDevice(ctx context.Context, in DeviceIn) (Device, error)
	ListDevices(ctx context.Context, restaurantID string) ([]Device, error)
	DeleteDevice(ctx context.Context, restaurantID, deviceID string) error
}
