package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/gyeh/plan-advisor/internal/plan"
)

// parquetPlan is the columnar layout of a catalog row.
type parquetPlan struct {
	Name        string `parquet:"plan_name"`
	Insurer     string `parquet:"insurer,optional"`
	PolicyCode  string `parquet:"policy_code"`
	DiseaseCode string `parquet:"disease_code"`
	Status      string `parquet:"status"`
	Gender      string `parquet:"gender"`

	AdultMinEntryAge *float64 `parquet:"adult_min_entry_age,optional"`
	AdultMaxEntryAge *float64 `parquet:"adult_max_entry_age,optional"`
	ChildMinEntryAge *float64 `parquet:"child_min_entry_age,optional"`
	ChildMaxEntryAge *float64 `parquet:"child_max_entry_age,optional"`

	InPatient       bool `parquet:"in_patient"`
	DayCare         bool `parquet:"day_care"`
	AYUSH           bool `parquet:"ayush"`
	ModernTreatment bool `parquet:"modern_treatment"`
	Maternity       bool `parquet:"maternity"`
	OPD             bool `parquet:"opd"`
	TopUp           bool `parquet:"top_up"`

	CoPayment  *float64 `parquet:"co_payment,optional"`
	SumInsured *float64 `parquet:"sum_insured,optional"`
}

const parquetReadBatch = 1024

// ParquetSource reads a parquet catalog.
type ParquetSource struct {
	Path string
	opts Options
}

// Load reads every row.
func (s *ParquetSource) Load(_ context.Context) ([]plan.Plan, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[parquetPlan](f)
	defer reader.Close()

	plans := make([]plan.Plan, 0, reader.NumRows())
	buf := make([]parquetPlan, parquetReadBatch)
	for {
		n, err := reader.Read(buf)
		for _, row := range buf[:n] {
			if s.opts.keep(row.Status) {
				plans = append(plans, row.plan())
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return finalize(plans, s.opts.Logger), nil
}

// WriteParquet writes plans as a snappy-compressed parquet file.
func WriteParquet(filename string, plans []plan.Plan) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[parquetPlan](file,
		parquet.Compression(&parquet.Snappy),
	)

	rows := make([]parquetPlan, len(plans))
	for i := range plans {
		rows[i] = fromPlan(plans[i])
	}
	if _, err := writer.Write(rows); err != nil {
		file.Close()
		return fmt.Errorf("failed to write parquet records: %w", err)
	}
	if err := writer.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return file.Close()
}

func (r parquetPlan) plan() plan.Plan {
	return plan.Plan{
		Name:             r.Name,
		Insurer:          r.Insurer,
		PolicyCode:       r.PolicyCode,
		DiseaseCode:      r.DiseaseCode,
		Status:           r.Status,
		Gender:           r.Gender,
		AdultMinEntryAge: copyFloat(r.AdultMinEntryAge),
		AdultMaxEntryAge: copyFloat(r.AdultMaxEntryAge),
		ChildMinEntryAge: copyFloat(r.ChildMinEntryAge),
		ChildMaxEntryAge: copyFloat(r.ChildMaxEntryAge),
		InPatient:        plan.Flag(r.InPatient),
		DayCare:          plan.Flag(r.DayCare),
		AYUSH:            plan.Flag(r.AYUSH),
		ModernTreatment:  plan.Flag(r.ModernTreatment),
		Maternity:        plan.Flag(r.Maternity),
		OPD:              plan.Flag(r.OPD),
		TopUp:            plan.Flag(r.TopUp),
		CoPayment:        copyFloat(r.CoPayment),
		SumInsured:       copyFloat(r.SumInsured),
	}
}

func fromPlan(p plan.Plan) parquetPlan {
	return parquetPlan{
		Name:             p.Name,
		Insurer:          p.Insurer,
		PolicyCode:       p.PolicyCode,
		DiseaseCode:      p.DiseaseCode,
		Status:           p.Status,
		Gender:           p.Gender,
		AdultMinEntryAge: p.AdultMinEntryAge,
		AdultMaxEntryAge: p.AdultMaxEntryAge,
		ChildMinEntryAge: p.ChildMinEntryAge,
		ChildMaxEntryAge: p.ChildMaxEntryAge,
		InPatient:        bool(p.InPatient),
		DayCare:          bool(p.DayCare),
		AYUSH:            bool(p.AYUSH),
		ModernTreatment:  bool(p.ModernTreatment),
		Maternity:        bool(p.Maternity),
		OPD:              bool(p.OPD),
		TopUp:            bool(p.TopUp),
		CoPayment:        p.CoPayment,
		SumInsured:       p.SumInsured,
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
