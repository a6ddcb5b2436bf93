// Package pg holds the PostgreSQL-backed fleet store and pool setup.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"irisfleet.io/internal/fleet"
	"irisfleet.io/internal/ids"
)

// Open dials Postgres through the pgx stdlib driver and applies pool limits.
// The caller owns the returned handle.
func Open(dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

var _ fleet.Service = (*VehicleStore)(nil)

// VehicleStore implements fleet.Service over PostgreSQL. Listings join the
// depots table for the depot name.
type VehicleStore struct {
	db *sql.DB
}

func NewVehicleStore(db *sql.DB) *VehicleStore {
	return &VehicleStore{db: db}
}

const vehicleColumns = `v.id, v.vrn, v.name, v.make, v.model, v.soc, v.target,
	v.depot_id, coalesce(d.name, ''), v.location, v.priority, v.next_dispatch,
	v.avg_cost_per_day, v.ac_max_power, v.dc_max_power, v.v2g_enabled,
	v.is_active, v.created_at, v.updated_at`

func (s *VehicleStore) List(ctx context.Context, f fleet.Filters, limit, offset int) ([]fleet.Vehicle, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	conditions := []string{"v.is_active = true"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.DepotID != "" {
		conditions = append(conditions, "v.depot_id = "+arg(f.DepotID))
	}
	if f.Priority != "" {
		conditions = append(conditions, "v.priority = "+arg(string(f.Priority)))
	}
	if f.SOCBelow != nil {
		conditions = append(conditions, "v.soc < "+arg(*f.SOCBelow))
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		conditions = append(conditions,
			fmt.Sprintf("(v.vrn ilike %[1]s or v.name ilike %[1]s or v.make ilike %[1]s or v.model ilike %[1]s)", p))
	}
	where := "where " + strings.Join(conditions, " and ")

	var total int
	countSQL := "select count(*) from vehicles v " + where
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL := fmt.Sprintf(
		`select %s from vehicles v left join depots d on v.depot_id = d.id %s
		 order by v.created_at desc limit %s offset %s`,
		vehicleColumns, where, arg(limit), arg(offset))
	rows, err := s.db.QueryContext(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	vehicles := []fleet.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, 0, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, total, rows.Err()
}

func (s *VehicleStore) Get(ctx context.Context, id string) (fleet.Vehicle, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`select %s from vehicles v left join depots d on v.depot_id = d.id
		 where v.id = $1 and v.is_active = true`, vehicleColumns), id)
	return scanVehicle(row)
}

func (s *VehicleStore) GetByVRN(ctx context.Context, vrn string) (fleet.Vehicle, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`select %s from vehicles v left join depots d on v.depot_id = d.id
		 where v.vrn = $1 and v.is_active = true`, vehicleColumns),
		strings.ToUpper(strings.TrimSpace(vrn)))
	return scanVehicle(row)
}

func (s *VehicleStore) Create(ctx context.Context, in fleet.CreateVehicleInput) (fleet.Vehicle, error) {
	vrn := strings.ToUpper(strings.TrimSpace(in.VRN))
	if vrn == "" || strings.TrimSpace(in.Name) == "" {
		return fleet.Vehicle{}, fmt.Errorf("%w: vrn and name are required", fleet.ErrInvalidInput)
	}
	soc, target := 100, 80
	if in.SOC != nil {
		soc = *in.SOC
	}
	if in.Target != nil {
		target = *in.Target
	}
	if soc < 0 || soc > 100 || target < 0 || target > 100 {
		return fleet.Vehicle{}, fmt.Errorf("%w: soc and target must be 0-100", fleet.ErrInvalidInput)
	}
	location := in.Location
	if location == "" {
		location = "Unknown"
	}
	priority := fleet.PriorityMedium
	if in.Priority != "" {
		p, ok := fleet.ParsePriority(string(in.Priority))
		if !ok {
			return fleet.Vehicle{}, fmt.Errorf("%w: unknown priority %q", fleet.ErrInvalidInput, in.Priority)
		}
		priority = p
	}
	var avgCost float64
	if in.AvgCostPerDay != nil {
		avgCost = *in.AvgCostPerDay
	}
	v2g := in.V2GEnabled != nil && *in.V2GEnabled

	now := time.Now().UTC()
	v := fleet.Vehicle{
		ID:            ids.New(),
		VRN:           vrn,
		Name:          strings.TrimSpace(in.Name),
		Make:          strings.TrimSpace(in.Make),
		Model:         strings.TrimSpace(in.Model),
		SOC:           soc,
		Target:        target,
		DepotID:       in.DepotID,
		Location:      location,
		Priority:      priority,
		NextDispatch:  in.NextDispatch,
		AvgCostPerDay: avgCost,
		ACMaxPower:    in.ACMaxPower,
		DCMaxPower:    in.DCMaxPower,
		V2GEnabled:    v2g,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := s.db.ExecContext(ctx,
		`insert into vehicles(id, vrn, name, make, model, soc, target, depot_id, location,
		   priority, next_dispatch, avg_cost_per_day, ac_max_power, dc_max_power,
		   v2g_enabled, is_active, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,true,$16,$16)`,
		v.ID, v.VRN, v.Name, v.Make, v.Model, v.SOC, v.Target, nullString(v.DepotID),
		v.Location, string(v.Priority), v.NextDispatch, v.AvgCostPerDay,
		v.ACMaxPower, v.DCMaxPower, v.V2GEnabled, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fleet.Vehicle{}, fleet.ErrDuplicateVRN
		}
		return fleet.Vehicle{}, err
	}
	return v, nil
}

func (s *VehicleStore) Update(ctx context.Context, id string, in fleet.UpdateVehicleInput) (fleet.Vehicle, error) {
	var sets []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if in.VRN != nil {
		vrn := strings.ToUpper(strings.TrimSpace(*in.VRN))
		if vrn == "" {
			return fleet.Vehicle{}, fmt.Errorf("%w: vrn cannot be empty", fleet.ErrInvalidInput)
		}
		set("vrn", vrn)
	}
	if in.Name != nil {
		set("name", strings.TrimSpace(*in.Name))
	}
	if in.Make != nil {
		set("make", strings.TrimSpace(*in.Make))
	}
	if in.Model != nil {
		set("model", strings.TrimSpace(*in.Model))
	}
	if in.SOC != nil {
		if *in.SOC < 0 || *in.SOC > 100 {
			return fleet.Vehicle{}, fmt.Errorf("%w: soc must be 0-100", fleet.ErrInvalidInput)
		}
		set("soc", *in.SOC)
	}
	if in.Target != nil {
		if *in.Target < 0 || *in.Target > 100 {
			return fleet.Vehicle{}, fmt.Errorf("%w: target must be 0-100", fleet.ErrInvalidInput)
		}
		set("target", *in.Target)
	}
	if in.DepotID != nil {
		set("depot_id", nullString(*in.DepotID))
	}
	if in.Location != nil {
		set("location", *in.Location)
	}
	if in.Priority != nil {
		p, ok := fleet.ParsePriority(string(*in.Priority))
		if !ok {
			return fleet.Vehicle{}, fmt.Errorf("%w: unknown priority %q", fleet.ErrInvalidInput, *in.Priority)
		}
		set("priority", string(p))
	}
	if in.NextDispatch != nil {
		set("next_dispatch", *in.NextDispatch)
	}
	if in.AvgCostPerDay != nil {
		set("avg_cost_per_day", *in.AvgCostPerDay)
	}
	if in.ACMaxPower != nil {
		set("ac_max_power", *in.ACMaxPower)
	}
	if in.DCMaxPower != nil {
		set("dc_max_power", *in.DCMaxPower)
	}
	if in.V2GEnabled != nil {
		set("v2g_enabled", *in.V2GEnabled)
	}
	set("updated_at", time.Now().UTC())
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`update vehicles set %s where id = $%d and is_active = true`,
			strings.Join(sets, ", "), len(args)),
		args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fleet.Vehicle{}, fleet.ErrDuplicateVRN
		}
		return fleet.Vehicle{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fleet.Vehicle{}, fleet.ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *VehicleStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update vehicles set is_active = false, updated_at = $1 where id = $2 and is_active = true`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fleet.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row rowScanner) (fleet.Vehicle, error) {
	var (
		v       fleet.Vehicle
		depotID sql.NullString
	)
	err := row.Scan(&v.ID, &v.VRN, &v.Name, &v.Make, &v.Model, &v.SOC, &v.Target,
		&depotID, &v.DepotName, &v.Location, &v.Priority, &v.NextDispatch,
		&v.AvgCostPerDay, &v.ACMaxPower, &v.DCMaxPower, &v.V2GEnabled,
		&v.Active, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fleet.Vehicle{}, fleet.ErrNotFound
		}
		return fleet.Vehicle{}, err
	}
	v.DepotID = depotID.String
	return v, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
