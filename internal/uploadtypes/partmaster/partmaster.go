// Package partmaster is the upload type for the part master. Part master
// sheets usually carry no action column, in which case every row adds a part.
package partmaster

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"massupload/internal/store"
	"massupload/internal/upload"
	"massupload/internal/uploadtypes/rules"
)

const Type upload.UploadType = "PART_MASTER"

const (
	ColPart          = "PART_12NC"
	ColDescription   = "DESCRIPTION"
	ColUnitOfMeasure = "UNIT_OF_MEASURE"
	ColLotSize       = "LOT_SIZE"

	maxDescriptionLength = 80
)

var Config = upload.MustUploadTypeConfig(upload.ConfigDefinition{
	Type: Type,
	Name: "Part master",
	Required: []upload.ColumnSpec{
		{Name: ColPart, Type: upload.Text},
		{Name: ColDescription, Type: upload.Text},
	},
	Optional: []upload.ColumnSpec{
		{Name: ColUnitOfMeasure, Type: upload.Text},
		{Name: ColLotSize, Type: upload.Integer},
	},
})

var unitsOfMeasure = map[string]bool{"PCS": true, "KG": true, "M": true, "L": true, "REEL": true}

// Part is the entity a part master row transforms into.
type Part struct {
	Part12NC      string
	Description   string
	UnitOfMeasure string
	LotSize       sql.NullInt64
}

func (p Part) Fingerprint() string {
	return fmt.Sprintf("%s\x1f%s\x1f%s\x1f%v\x1f%d", p.Part12NC, p.Description, p.UnitOfMeasure, p.LotSize.Valid, p.LotSize.Int64)
}

// NewTransformer returns the part master transformer. Parts carry no dates,
// so the batch start is not used.
func NewTransformer(time.Time) upload.Transformer {
	return upload.TransformerFunc(transform)
}

func transform(rec *upload.Record, f *upload.Findings) upload.Entity {
	p := Part{
		Part12NC: rules.NormalizePart12NC(ColPart, rec.Text(ColPart), f),
	}
	if rec.Action == upload.Delete {
		return p
	}

	p.Description = rec.Text(ColDescription)
	if n := len([]rune(p.Description)); n > maxDescriptionLength {
		f.Errorf("%s is %d characters long, at most %d are allowed", ColDescription, n, maxDescriptionLength)
	}
	if uom := strings.ToUpper(rec.Text(ColUnitOfMeasure)); uom != "" {
		if !unitsOfMeasure[uom] {
			f.Errorf("%s %q is not one of PCS, KG, M, L, REEL", ColUnitOfMeasure, uom)
		}
		p.UnitOfMeasure = uom
	} else {
		f.Warnf("%s is empty, PCS is assumed", ColUnitOfMeasure)
		p.UnitOfMeasure = "PCS"
	}
	if lot, ok := rec.Int(ColLotSize); ok {
		if lot <= 0 {
			f.Errorf("%s %d must be positive", ColLotSize, lot)
		}
		p.LotSize = sql.NullInt64{Int64: lot, Valid: true}
	}
	return p
}

// Repository is the store the loader writes to.
type Repository interface {
	Insert(ctx context.Context, p store.Part) error
	Update(ctx context.Context, p store.Part) error
	Upsert(ctx context.Context, p store.Part) (bool, error)
	Delete(ctx context.Context, part12NC string) error
}

// Loader writes part master records, one statement per row.
type Loader struct {
	repo Repository
	now  func() time.Time
}

func NewLoader(repo Repository) *Loader {
	return &Loader{repo: repo, now: time.Now}
}

func (l *Loader) row(user string, rec *upload.Record) store.Part {
	p := rec.Entity.(Part)
	return store.Part{
		Part12NC:      p.Part12NC,
		Description:   p.Description,
		UnitOfMeasure: sql.NullString{String: p.UnitOfMeasure, Valid: p.UnitOfMeasure != ""},
		LotSize:       p.LotSize,
		UpdatedBy:     user,
		UpdatedAt:     l.now().UTC(),
	}
}

func (l *Loader) Add(ctx context.Context, user string, rec *upload.Record) error {
	return rules.StoreError(l.repo.Insert(ctx, l.row(user, rec)))
}

func (l *Loader) Change(ctx context.Context, user string, rec *upload.Record) error {
	return rules.StoreError(l.repo.Update(ctx, l.row(user, rec)))
}

func (l *Loader) AddOrChange(ctx context.Context, user string, rec *upload.Record) (bool, error) {
	inserted, err := l.repo.Upsert(ctx, l.row(user, rec))
	return inserted, rules.StoreError(err)
}

func (l *Loader) Delete(ctx context.Context, user string, rec *upload.Record) error {
	return rules.StoreError(l.repo.Delete(ctx, rec.Entity.(Part).Part12NC))
}

// Definition registers the upload type against repo.
func Definition(repo Repository) upload.Definition {
	return upload.Definition{
		Config:         Config,
		NewTransformer: NewTransformer,
		Loader:         NewLoader(repo),
	}
}
