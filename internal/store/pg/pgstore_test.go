package pg

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"irisfleet.io/internal/fleet"
)

var vehicleCols = []string{
	"id", "vrn", "name", "make", "model", "soc", "target",
	"depot_id", "depot_name", "location", "priority", "next_dispatch",
	"avg_cost_per_day", "ac_max_power", "dc_max_power", "v2g_enabled",
	"is_active", "created_at", "updated_at",
}

func vehicleRow(rows *sqlmock.Rows, id, vrn string, soc int) *sqlmock.Rows {
	now := time.Now().UTC()
	return rows.AddRow(id, vrn, "Van", "Ford", "E-Transit", soc, 80,
		nil, "", "Unknown", "medium", nil,
		0.0, nil, nil, false, true, now, now)
}

func newMockVehicleStore(t *testing.T) (*VehicleStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewVehicleStore(db), mock
}

func TestListAppendsFilters(t *testing.T) {
	store, mock := newMockVehicleStore(t)
	below := 40

	mock.ExpectQuery(regexp.QuoteMeta(`select count(*) from vehicles v`)).
		WithArgs("d1", "high", 40, "%van%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`left join depots d on v.depot_id = d.id`)).
		WithArgs("d1", "high", 40, "%van%", 20, 0).
		WillReturnRows(vehicleRow(sqlmock.NewRows(vehicleCols), "v1", "AB12 CDE", 15))

	vehicles, total, err := store.List(context.Background(), fleet.Filters{
		DepotID: "d1", Priority: fleet.PriorityHigh, SOCBelow: &below, Search: "van",
	}, 20, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(vehicles) != 1 || vehicles[0].VRN != "AB12 CDE" {
		t.Fatalf("unexpected result: total=%d vehicles=%+v", total, vehicles)
	}
}

func TestGetMissing(t *testing.T) {
	store, mock := newMockVehicleStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`where v.id = $1 and v.is_active = true`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(vehicleCols))

	_, err := store.Get(context.Background(), "ghost")
	if !errors.Is(err, fleet.ErrNotFound) {
		t.Fatalf("expected fleet.ErrNotFound, got %v", err)
	}
}

func TestGetByVRNUppercases(t *testing.T) {
	store, mock := newMockVehicleStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`where v.vrn = $1 and v.is_active = true`)).
		WithArgs("AB12 CDE").
		WillReturnRows(vehicleRow(sqlmock.NewRows(vehicleCols), "v1", "AB12 CDE", 90))

	v, err := store.GetByVRN(context.Background(), " ab12 cde ")
	if err != nil {
		t.Fatalf("GetByVRN: %v", err)
	}
	if v.ID != "v1" {
		t.Fatalf("unexpected vehicle: %+v", v)
	}
}

func TestCreateDuplicateVRN(t *testing.T) {
	store, mock := newMockVehicleStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`insert into vehicles`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "vehicles_active_vrn_key"})

	_, err := store.Create(context.Background(), fleet.CreateVehicleInput{VRN: "AB12 CDE", Name: "Van"})
	if !errors.Is(err, fleet.ErrDuplicateVRN) {
		t.Fatalf("expected fleet.ErrDuplicateVRN, got %v", err)
	}
}

func TestCreateValidatesBeforeWriting(t *testing.T) {
	store, _ := newMockVehicleStore(t)

	// No SQL expectation: invalid input never reaches the database.
	bad := 130
	_, err := store.Create(context.Background(), fleet.CreateVehicleInput{VRN: "X", Name: "v", SOC: &bad})
	if !errors.Is(err, fleet.ErrInvalidInput) {
		t.Fatalf("expected fleet.ErrInvalidInput, got %v", err)
	}
}

func TestUpdateMissingVehicle(t *testing.T) {
	store, mock := newMockVehicleStore(t)

	name := "Renamed"
	mock.ExpectExec(regexp.QuoteMeta(`update vehicles set`)).
		WithArgs("Renamed", sqlmock.AnyArg(), "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.Update(context.Background(), "ghost", fleet.UpdateVehicleInput{Name: &name})
	if !errors.Is(err, fleet.ErrNotFound) {
		t.Fatalf("expected fleet.ErrNotFound, got %v", err)
	}
}

func TestDeactivateSoftDeletes(t *testing.T) {
	store, mock := newMockVehicleStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`update vehicles set is_active = false`)).
		WithArgs(sqlmock.AnyArg(), "v1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Deactivate(context.Background(), "v1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
}
