// Package yieldparam is the upload type for dated yield parameters of a part
// at a production site.
package yieldparam

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"massupload/internal/store"
	"massupload/internal/upload"
	"massupload/internal/uploadtypes/rules"
)

const Type upload.UploadType = "YIELD_PARAMETER"

const (
	ColPart          = "PART_12NC"
	ColSite          = "SITE"
	ColEffectiveDate = "EFFECTIVE_DATE"
	ColValue         = "PARAMETER_VALUE"
	ColPreciseValue  = "PRECISE_VALUE"
	ColLotSize       = "LOT_SIZE"
	ColComment       = "COMMENT"
	ColDescription   = "PART_DESCRIPTION"

	maxCommentLength = 255
)

// Config is the column catalog of yield parameter sheets.
var Config = upload.MustUploadTypeConfig(upload.ConfigDefinition{
	Type: Type,
	Name: "Yield parameters",
	Required: []upload.ColumnSpec{
		{Name: ColPart, Type: upload.Text},
		{Name: ColSite, Type: upload.Text},
		{Name: ColEffectiveDate, Type: upload.Date},
		{Name: ColValue, Type: upload.Decimal},
	},
	Optional: []upload.ColumnSpec{
		{Name: ColPreciseValue, Type: upload.ExactDecimal},
		{Name: ColLotSize, Type: upload.Integer},
		{Name: ColComment, Type: upload.Text},
	},
	Prefilled: []upload.ColumnSpec{
		{Name: ColDescription, Type: upload.Text},
	},
})

var siteCode = regexp.MustCompile(`^[A-Z0-9]{2,8}$`)

// Parameter is the entity a yield parameter row transforms into.
type Parameter struct {
	Part12NC      string
	Site          string
	EffectiveDate time.Time
	Value         float64
	PreciseValue  decimal.NullDecimal
	LotSize       sql.NullInt64
	Comment       string
}

// Fingerprint covers every value the row would write.
func (p Parameter) Fingerprint() string {
	precise := ""
	if p.PreciseValue.Valid {
		precise = p.PreciseValue.Decimal.String()
	}
	lot := ""
	if p.LotSize.Valid {
		lot = fmt.Sprint(p.LotSize.Int64)
	}
	return strings.Join([]string{
		p.Part12NC, p.Site, p.EffectiveDate.Format(upload.DateLayout),
		fmt.Sprint(p.Value), precise, lot, p.Comment,
	}, "\x1f")
}

// Key returns the store key of the parameter.
func (p Parameter) Key() store.YieldParameterKey {
	return store.YieldParameterKey{Part12NC: p.Part12NC, Site: p.Site, EffectiveDate: p.EffectiveDate}
}

type transformer struct {
	today time.Time
}

// NewTransformer returns the transformer of one batch. Dates are checked
// against the calendar day the batch started on.
func NewTransformer(startedAt time.Time) upload.Transformer {
	return transformer{today: rules.Day(startedAt)}
}

func (t transformer) Transform(rec *upload.Record, f *upload.Findings) upload.Entity {
	p := Parameter{
		Part12NC: rules.NormalizePart12NC(ColPart, rec.Text(ColPart), f),
		Site:     strings.ToUpper(rec.Text(ColSite)),
	}
	if !siteCode.MatchString(p.Site) {
		f.Errorf("%s %q must be 2 to 8 letters or digits", ColSite, p.Site)
	}

	p.EffectiveDate, _ = rec.Time(ColEffectiveDate)
	rules.CheckEffectiveDate(ColEffectiveDate, rec.Action, p.EffectiveDate, t.today, f)

	p.Value, _ = rec.Float(ColValue)
	if rec.Action != upload.Delete && (p.Value < 0 || p.Value > 100) {
		f.Errorf("%s %g must be between 0 and 100", ColValue, p.Value)
	}

	if precise, ok := rec.Decimal(ColPreciseValue); ok {
		p.PreciseValue = decimal.NullDecimal{Decimal: precise, Valid: true}
		if diff := precise.Sub(decimal.NewFromFloat(p.Value)).Abs(); diff.GreaterThan(decimal.New(1, -6)) {
			f.Warnf("%s %s differs from %s %g", ColPreciseValue, precise, ColValue, p.Value)
		}
	}
	if lot, ok := rec.Int(ColLotSize); ok {
		if lot <= 0 {
			f.Errorf("%s %d must be positive", ColLotSize, lot)
		}
		p.LotSize = sql.NullInt64{Int64: lot, Valid: true}
	}
	p.Comment = rules.LimitText(ColComment, rec.Text(ColComment), maxCommentLength, f)
	return p
}

// Repository is the store the loader writes to.
type Repository interface {
	Insert(ctx context.Context, p store.YieldParameter) error
	Update(ctx context.Context, p store.YieldParameter) error
	Upsert(ctx context.Context, p store.YieldParameter) (bool, error)
	Delete(ctx context.Context, key store.YieldParameterKey) error
}

// Loader writes yield parameter records, one statement per row.
type Loader struct {
	repo Repository
	now  func() time.Time
}

func NewLoader(repo Repository) *Loader {
	return &Loader{repo: repo, now: time.Now}
}

func (l *Loader) row(user string, rec *upload.Record) store.YieldParameter {
	p := rec.Entity.(Parameter)
	row := store.YieldParameter{
		Part12NC:       p.Part12NC,
		Site:           p.Site,
		EffectiveDate:  p.EffectiveDate,
		ParameterValue: p.Value,
		PreciseValue:   p.PreciseValue,
		LotSize:        p.LotSize,
		UpdatedBy:      user,
		UpdatedAt:      l.now().UTC(),
	}
	if p.Comment != "" {
		row.Comment = sql.NullString{String: p.Comment, Valid: true}
	}
	return row
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
	return rules.StoreError(l.repo.Delete(ctx, rec.Entity.(Parameter).Key()))
}

// Definition registers the upload type against repo.
func Definition(repo Repository) upload.Definition {
	return upload.Definition{
		Config:         Config,
		NewTransformer: NewTransformer,
		Loader:         NewLoader(repo),
	}
}
