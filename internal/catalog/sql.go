package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	"github.com/gyeh/plan-advisor/internal/plan"
)

// planColumns is the column list read from the catalog table, in scan order.
var planColumns = []string{
	"plan_name", "insurer", "policy_code", "disease_code", "status", "gender",
	"adult_min_entry_age", "adult_max_entry_age", "child_min_entry_age", "child_max_entry_age",
	"in_patient", "day_care", "ayush", "modern_treatment", "maternity", "opd", "top_up",
	"co_payment", "sum_insured",
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func selectPlans(table string) (string, error) {
	if !tableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(planColumns, ", "), table), nil
}

// rowScanner is satisfied by *sql.Rows and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPlan reads one row. Every column is scanned as nullable text so that
// catalogs with textual numbers ("12%", "NA") and 0/1 or yes/no flags load.
func scanPlan(row rowScanner) (plan.Plan, error) {
	vals := make([]sql.NullString, len(planColumns))
	dest := make([]any, len(vals))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := row.Scan(dest...); err != nil {
		return plan.Plan{}, err
	}

	text := func(i int) string { return strings.TrimSpace(vals[i].String) }
	num := func(i int) *float64 {
		if !vals[i].Valid {
			return nil
		}
		v, ok, err := plan.ParseFloat(vals[i].String)
		if err != nil || !ok {
			return nil
		}
		return &v
	}
	flag := func(i int) plan.Flag { return plan.ParseFlag(vals[i].String) }

	p := plan.Plan{
		Name:             text(0),
		Insurer:          text(1),
		PolicyCode:       text(2),
		DiseaseCode:      text(3),
		Status:           text(4),
		Gender:           text(5),
		AdultMinEntryAge: num(6),
		AdultMaxEntryAge: num(7),
		ChildMinEntryAge: num(8),
		ChildMaxEntryAge: num(9),
		InPatient:        flag(10),
		DayCare:          flag(11),
		AYUSH:            flag(12),
		ModernTreatment:  flag(13),
		Maternity:        flag(14),
		OPD:              flag(15),
		TopUp:            flag(16),
		CoPayment:        num(17),
		SumInsured:       num(18),
	}
	return p, nil
}

// SQLiteSource reads the catalog table of a SQLite database.
type SQLiteSource struct {
	Path string
	opts Options
}

// Load queries every row of the catalog table.
func (s *SQLiteSource) Load(ctx context.Context) ([]plan.Plan, error) {
	query, err := selectPlans(s.opts.table())
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.opts.table(), err)
	}
	defer rows.Close()

	var plans []plan.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if s.opts.keep(p.Status) {
			plans = append(plans, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return finalize(plans, s.opts.Logger), nil
}

// PostgresSource reads the catalog table from PostgreSQL.
type PostgresSource struct {
	ConnString string
	opts       Options
}

// Load queries every row of the catalog table.
func (s *PostgresSource) Load(ctx context.Context) ([]plan.Plan, error) {
	query, err := selectPlans(s.opts.table())
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(s.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.opts.table(), err)
	}
	defer rows.Close()

	var plans []plan.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if s.opts.keep(p.Status) {
			plans = append(plans, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return finalize(plans, s.opts.Logger), nil
}
