package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Part is a row of the part master.
type Part struct {
	Part12NC      string         `db:"part_12nc"`
	Description   string         `db:"description"`
	UnitOfMeasure sql.NullString `db:"unit_of_measure"`
	LotSize       sql.NullInt64  `db:"lot_size"`
	UpdatedBy     string         `db:"updated_by"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// PartRepository reads and writes the parts table.
type PartRepository struct {
	db *DB
}

func NewPartRepository(db *DB) *PartRepository {
	return &PartRepository{db: db}
}

func (r *PartRepository) Insert(ctx context.Context, p Part) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO parts (part_12nc, description, unit_of_measure, lot_size, updated_by, updated_at)
		VALUES (:part_12nc, :description, :unit_of_measure, :lot_size, :updated_by, :updated_at)`, p)
	return classify(err)
}

func (r *PartRepository) Update(ctx context.Context, p Part) error {
	return affected(r.db.NamedExecContext(ctx, `
		UPDATE parts
		SET description = :description, unit_of_measure = :unit_of_measure, lot_size = :lot_size,
		    updated_by = :updated_by, updated_at = :updated_at
		WHERE part_12nc = :part_12nc`, p))
}

// Upsert updates the part or inserts it when it does not exist yet.
func (r *PartRepository) Upsert(ctx context.Context, p Part) (inserted bool, err error) {
	err = r.Update(ctx, p)
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	return true, r.Insert(ctx, p)
}

func (r *PartRepository) Delete(ctx context.Context, part12NC string) error {
	return affected(r.db.ExecContext(ctx,
		r.db.Rebind(`DELETE FROM parts WHERE part_12nc = ?`), part12NC))
}

func (r *PartRepository) Get(ctx context.Context, part12NC string) (Part, error) {
	var p Part
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`
		SELECT part_12nc, description, unit_of_measure, lot_size, updated_by, updated_at
		FROM parts WHERE part_12nc = ?`), part12NC)
	return p, classify(err)
}

func (r *PartRepository) List(ctx context.Context) ([]Part, error) {
	var parts []Part
	err := r.db.SelectContext(ctx, &parts, `
		SELECT part_12nc, description, unit_of_measure, lot_size, updated_by, updated_at
		FROM parts ORDER BY part_12nc`)
	return parts, err
}
