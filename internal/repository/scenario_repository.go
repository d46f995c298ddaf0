package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/microwire-quality/internal/model"
)

const scenarioColumns = "id, name, description, min_tensile_strength_mpa, max_diameter_um, created_at, updated_at"

var scenarioUniqueIndexes = map[string]error{"uq_scenarios_name": ErrConflict}

type ScenarioRepo struct {
	db *sql.DB
}

func NewScenarioRepo(db *sql.DB) *ScenarioRepo { return &ScenarioRepo{db: db} }

func scanScenario(s rowScanner) (*model.ApplicationScenario, error) {
	var sc model.ApplicationScenario
	if err := s.Scan(&sc.ID, &sc.Name, &sc.Description, &sc.MinTensileStrengthMPa, &sc.MaxDiameterUM, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (r *ScenarioRepo) Create(ctx context.Context, sc *model.ApplicationScenario) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO application_scenarios (name, description, min_tensile_strength_mpa, max_diameter_um) VALUES (?, ?, ?, ?)",
		sc.Name, sc.Description, sc.MinTensileStrengthMPa, sc.MaxDiameterUM)
	if err != nil {
		return uniqueViolation(err, scenarioUniqueIndexes)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*sc = *created
	return nil
}

func (r *ScenarioRepo) GetByID(ctx context.Context, id uint64) (*model.ApplicationScenario, error) {
	sc, err := scanScenario(r.db.QueryRowContext(ctx, "SELECT "+scenarioColumns+" FROM application_scenarios WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return sc, nil
}

// ListAll returns every scenario ordered by name; the table is small.
func (r *ScenarioRepo) ListAll(ctx context.Context) ([]*model.ApplicationScenario, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+scenarioColumns+" FROM application_scenarios ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.ApplicationScenario
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (r *ScenarioRepo) Update(ctx context.Context, sc *model.ApplicationScenario) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE application_scenarios
		 SET name = ?, description = ?, min_tensile_strength_mpa = ?, max_diameter_um = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		sc.Name, sc.Description, sc.MinTensileStrengthMPa, sc.MaxDiameterUM, sc.ID)
	if err != nil {
		return uniqueViolation(err, scenarioUniqueIndexes)
	}
	return affectedOne(res)
}

// Delete removes a scenario.  Batches referencing it keep their rows with
// scenario_id set to NULL by the foreign key.
func (r *ScenarioRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM application_scenarios WHERE id = ?", id)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1451 {
			return ErrConflict
		}
		return err
	}
	return affectedOne(res)
}
