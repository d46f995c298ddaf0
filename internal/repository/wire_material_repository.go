package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/microwire-quality/internal/model"
)

const wireColumns = `id, batch_no, scenario_id, manufacturer, responsible_person, process_type, production_machine,
	diameter_um, tensile_strength_mpa, elongation_pct, resistivity, result, produced_at, created_at, updated_at`

var wireUniqueIndexes = map[string]error{"uq_wire_materials_batch": ErrConflict}

// dimensionColumns maps each traceability dimension to its grouping column.
// Only these fixed names are ever interpolated into SQL.
var dimensionColumns = map[model.Dimension]string{
	model.DimensionManufacturer:      "manufacturer",
	model.DimensionResponsiblePerson: "responsible_person",
	model.DimensionProcessType:       "process_type",
	model.DimensionProductionMachine: "production_machine",
}

// WireFilter narrows List.  Zero values mean "any".
type WireFilter struct {
	BatchNo    string
	ScenarioID uint64
	Result     string
	From       time.Time
	To         time.Time
	Page       Page
}

// WireMaterialRepo owns the wire_materials table, including the grouped
// traceability aggregation.
type WireMaterialRepo struct {
	db *sql.DB
}

func NewWireMaterialRepo(db *sql.DB) *WireMaterialRepo { return &WireMaterialRepo{db: db} }

func scanWire(s rowScanner) (*model.WireMaterial, error) {
	var (
		w        model.WireMaterial
		scenario sql.NullInt64
	)
	if err := s.Scan(&w.ID, &w.BatchNo, &scenario, &w.Manufacturer, &w.ResponsiblePerson, &w.ProcessType,
		&w.ProductionMachine, &w.DiameterUM, &w.TensileStrengthMPa, &w.ElongationPct, &w.Resistivity,
		&w.Result, &w.ProducedAt, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	if scenario.Valid {
		id := uint64(scenario.Int64)
		w.ScenarioID = &id
	}
	return &w, nil
}

func nullableID(id *uint64) any {
	if id == nil || *id == 0 {
		return nil
	}
	return *id
}

func wireWriteErr(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1452 {
		return ErrInvalidReference
	}
	return uniqueViolation(err, wireUniqueIndexes)
}

func (r *WireMaterialRepo) Create(ctx context.Context, w *model.WireMaterial) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO wire_materials (batch_no, scenario_id, manufacturer, responsible_person, process_type,
		 production_machine, diameter_um, tensile_strength_mpa, elongation_pct, resistivity, result, produced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.BatchNo, nullableID(w.ScenarioID), w.Manufacturer, w.ResponsiblePerson, w.ProcessType,
		w.ProductionMachine, w.DiameterUM, w.TensileStrengthMPa, w.ElongationPct, w.Resistivity,
		w.Result, w.ProducedAt.UTC())
	if err != nil {
		return wireWriteErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*w = *created
	return nil
}

func (r *WireMaterialRepo) GetByID(ctx context.Context, id uint64) (*model.WireMaterial, error) {
	w, err := scanWire(r.db.QueryRowContext(ctx, "SELECT "+wireColumns+" FROM wire_materials WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return w, nil
}

// List returns one page of batches, newest production first.
func (r *WireMaterialRepo) List(ctx context.Context, f WireFilter) ([]*model.WireMaterial, int64, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.BatchNo != "" {
		where = append(where, "batch_no LIKE ?")
		args = append(args, "%"+f.BatchNo+"%")
	}
	if f.ScenarioID != 0 {
		where = append(where, "scenario_id = ?")
		args = append(args, f.ScenarioID)
	}
	if f.Result != "" {
		where = append(where, "result = ?")
		args = append(args, f.Result)
	}
	if !f.From.IsZero() {
		where = append(where, "produced_at >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where = append(where, "produced_at < ?")
		args = append(args, f.To.UTC())
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM wire_materials WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+wireColumns+" FROM wire_materials WHERE "+cond+" ORDER BY produced_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, f.Page.Limit(), f.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]*model.WireMaterial, 0, f.Page.Limit())
	for rows.Next() {
		w, err := scanWire(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, w)
	}
	return out, total, rows.Err()
}

func (r *WireMaterialRepo) Update(ctx context.Context, w *model.WireMaterial) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wire_materials SET batch_no = ?, scenario_id = ?, manufacturer = ?, responsible_person = ?,
		 process_type = ?, production_machine = ?, diameter_um = ?, tensile_strength_mpa = ?, elongation_pct = ?,
		 resistivity = ?, result = ?, produced_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		w.BatchNo, nullableID(w.ScenarioID), w.Manufacturer, w.ResponsiblePerson, w.ProcessType,
		w.ProductionMachine, w.DiameterUM, w.TensileStrengthMPa, w.ElongationPct, w.Resistivity,
		w.Result, w.ProducedAt.UTC(), w.ID)
	if err != nil {
		return wireWriteErr(err)
	}
	return affectedOne(res)
}

func (r *WireMaterialRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM wire_materials WHERE id = ?", id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// AggregateByDimension counts PASS/FAIL batches produced in [q.Start, q.End)
// grouped by the dimension column.  Rates and flags are left to the caller.
// Buckets come back ordered by fail count, then value.
func (r *WireMaterialRepo) AggregateByDimension(ctx context.Context, q model.TraceabilityQuery) ([]model.TraceabilityStat, error) {
	col, ok := dimensionColumns[q.Dimension]
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", q.Dimension)
	}
	where := "produced_at >= ? AND produced_at < ?"
	args := []any{q.Start.UTC(), q.End.UTC()}
	if q.ScenarioID != 0 {
		where += " AND scenario_id = ?"
		args = append(args, q.ScenarioID)
	}
	query := `SELECT ` + col + ` AS value,
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN result = 'PASS' THEN 1 ELSE 0 END), 0) AS pass_count,
			COALESCE(SUM(CASE WHEN result = 'FAIL' THEN 1 ELSE 0 END), 0) AS fail_count
		FROM wire_materials
		WHERE ` + where + `
		GROUP BY ` + col + `
		ORDER BY fail_count DESC, value ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TraceabilityStat
	for rows.Next() {
		s := model.TraceabilityStat{Dimension: q.Dimension}
		if err := rows.Scan(&s.Value, &s.Total, &s.PassCount, &s.FailCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
