package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// YieldParameter is a dated yield value of a part at a site.
type YieldParameter struct {
	Part12NC       string              `db:"part_12nc"`
	Site           string              `db:"site"`
	EffectiveDate  time.Time           `db:"effective_date"`
	ParameterValue float64             `db:"parameter_value"`
	PreciseValue   decimal.NullDecimal `db:"precise_value"`
	LotSize        sql.NullInt64       `db:"lot_size"`
	Comment        sql.NullString      `db:"comment"`
	UpdatedBy      string              `db:"updated_by"`
	UpdatedAt      time.Time           `db:"updated_at"`
}

// YieldParameterKey identifies a yield parameter.
type YieldParameterKey struct {
	Part12NC      string
	Site          string
	EffectiveDate time.Time
}

// YieldParameterRepository reads and writes the yield_parameters table.
type YieldParameterRepository struct {
	db *DB
}

func NewYieldParameterRepository(db *DB) *YieldParameterRepository {
	return &YieldParameterRepository{db: db}
}

func (r *YieldParameterRepository) Insert(ctx context.Context, p YieldParameter) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO yield_parameters (part_12nc, site, effective_date, parameter_value, precise_value,
		                              lot_size, comment, updated_by, updated_at)
		VALUES (:part_12nc, :site, :effective_date, :parameter_value, :precise_value,
		        :lot_size, :comment, :updated_by, :updated_at)`, p)
	return classify(err)
}

func (r *YieldParameterRepository) Update(ctx context.Context, p YieldParameter) error {
	return affected(r.db.NamedExecContext(ctx, `
		UPDATE yield_parameters
		SET parameter_value = :parameter_value, precise_value = :precise_value, lot_size = :lot_size,
		    comment = :comment, updated_by = :updated_by, updated_at = :updated_at
		WHERE part_12nc = :part_12nc AND site = :site AND effective_date = :effective_date`, p))
}

// Upsert updates the parameter or inserts it when it does not exist yet.
func (r *YieldParameterRepository) Upsert(ctx context.Context, p YieldParameter) (inserted bool, err error) {
	err = r.Update(ctx, p)
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	return true, r.Insert(ctx, p)
}

func (r *YieldParameterRepository) Delete(ctx context.Context, key YieldParameterKey) error {
	return affected(r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM yield_parameters WHERE part_12nc = ? AND site = ? AND effective_date = ?`),
		key.Part12NC, key.Site, key.EffectiveDate))
}

func (r *YieldParameterRepository) Get(ctx context.Context, key YieldParameterKey) (YieldParameter, error) {
	var p YieldParameter
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`
		SELECT part_12nc, site, effective_date, parameter_value, precise_value, lot_size, comment,
		       updated_by, updated_at
		FROM yield_parameters WHERE part_12nc = ? AND site = ? AND effective_date = ?`),
		key.Part12NC, key.Site, key.EffectiveDate)
	return p, classify(err)
}

// ListByPart returns the parameters of a part ordered by site and date.
func (r *YieldParameterRepository) ListByPart(ctx context.Context, part12NC string) ([]YieldParameter, error) {
	var params []YieldParameter
	err := r.db.SelectContext(ctx, &params, r.db.Rebind(`
		SELECT part_12nc, site, effective_date, parameter_value, precise_value, lot_size, comment,
		       updated_by, updated_at
		FROM yield_parameters WHERE part_12nc = ? ORDER BY site, effective_date`), part12NC)
	return params, err
}
