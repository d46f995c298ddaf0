package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/microwire-quality/internal/model"
)

const deviceColumns = "id, code, name, device_type, location, status, last_seen_at, created_at, updated_at"

var deviceUniqueIndexes = map[string]error{"uq_devices_code": ErrConflict}

// DeviceFilter narrows List.  Keyword matches code or name.
type DeviceFilter struct {
	Keyword    string
	Status     string
	DeviceType string
	Page       Page
}

// DeviceRepo encapsulates all queries on the devices table.
type DeviceRepo struct {
	db *sql.DB
}

func NewDeviceRepo(db *sql.DB) *DeviceRepo { return &DeviceRepo{db: db} }

func scanDevice(s rowScanner) (*model.Device, error) {
	var (
		d        model.Device
		lastSeen sql.NullTime
	)
	if err := s.Scan(&d.ID, &d.Code, &d.Name, &d.DeviceType, &d.Location, &d.Status, &lastSeen, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		d.LastSeenAt = &t
	}
	return &d, nil
}

// Create inserts d and reloads it so callers receive the generated id and
// timestamps.
func (r *DeviceRepo) Create(ctx context.Context, d *model.Device) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO devices (code, name, device_type, location, status) VALUES (?, ?, ?, ?, ?)",
		d.Code, d.Name, d.DeviceType, d.Location, d.Status)
	if err != nil {
		return uniqueViolation(err, deviceUniqueIndexes)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*d = *created
	return nil
}

// GetByID returns ErrNotFound when no row matches.
func (r *DeviceRepo) GetByID(ctx context.Context, id uint64) (*model.Device, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, "SELECT "+deviceColumns+" FROM devices WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

// List returns one page of devices ordered by id and the total match count.
func (r *DeviceRepo) List(ctx context.Context, f DeviceFilter) ([]*model.Device, int64, error) {
	where := []string{"1=1"}
	args := []any{}
	if kw := strings.ToLower(strings.TrimSpace(f.Keyword)); kw != "" {
		where = append(where, "(LOWER(code) LIKE ? OR LOWER(name) LIKE ?)")
		args = append(args, "%"+kw+"%", "%"+kw+"%")
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.DeviceType != "" {
		where = append(where, "device_type = ?")
		args = append(args, f.DeviceType)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE "+cond+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, f.Page.Limit(), f.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]*model.Device, 0, f.Page.Limit())
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// Update overwrites the editable columns of d.
func (r *DeviceRepo) Update(ctx context.Context, d *model.Device) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE devices SET code = ?, name = ?, device_type = ?, location = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		d.Code, d.Name, d.DeviceType, d.Location, d.Status, d.ID)
	if err != nil {
		return uniqueViolation(err, deviceUniqueIndexes)
	}
	return affectedOne(res)
}

// Heartbeat records that a device reported in with the given status.
func (r *DeviceRepo) Heartbeat(ctx context.Context, id uint64, status string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE devices SET status = ?, last_seen_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, at.UTC(), id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

func (r *DeviceRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}
