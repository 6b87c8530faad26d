package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres is the production Store backed by pgx via database/sql.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Migrate creates the device table when it does not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS push_devices (
    id            UUID PRIMARY KEY,
    restaurant_id TEXT NOT NULL,
    label         TEXT NOT NULL DEFAULT '',
    endpoint      TEXT NOT NULL,
    secret        TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS push_devices_restaurant_idx ON push_devices (restaurant_id)`)
	return err
}

func (p *Postgres) RegisterDevice(ctx context.Context, in DeviceIn) (Device, error) {
	d := Device{
		ID:           uuid.NewString(),
		RestaurantID: in.RestaurantID,
		Label:        in.Label,
		Endpoint:     in.Endpoint,
		Secret:       in.Secret,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO push_devices (id, restaurant_id, label, endpoint, secret, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		d.ID, d.RestaurantID, d.Label, d.Endpoint, d.Secret, d.CreatedAt)
	if err != nil {
		return Device{}, err
	}
	return d, nil
}

func (p *Postgres) ListDevices(ctx context.Context, restaurantID string) ([]Device, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, restaurant_id, label, endpoint, secret, created_at FROM push_devices WHERE restaurant_id = $1 ORDER BY created_at`,
		restaurantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.ID, &d.RestaurantID, &d.Label, &d.Endpoint, &d.Secret, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteDevice(ctx context.Context, restaurantID, deviceID string) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM push_devices WHERE id = $1 AND restaurant_id = $2`, deviceID, restaurantID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
