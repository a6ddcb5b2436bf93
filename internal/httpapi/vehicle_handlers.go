package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"irisfleet.io/internal/audit"
	"irisfleet.io/internal/auth"
	"irisfleet.io/internal/fleet"
)

type createVehicleRequest struct {
	VRN           string     `json:"vrn" validate:"required"`
	Name          string     `json:"name" validate:"required"`
	Make          string     `json:"make"`
	Model         string     `json:"model"`
	SOC           *int       `json:"soc" validate:"omitempty,gte=0,lte=100"`
	Target        *int       `json:"target" validate:"omitempty,gte=0,lte=100"`
	DepotID       string     `json:"depot_id"`
	Location      string     `json:"location"`
	Priority      string     `json:"priority" validate:"omitempty,oneof=high medium low"`
	NextDispatch  *time.Time `json:"next_dispatch"`
	AvgCostPerDay *float64   `json:"avg_cost_per_day" validate:"omitempty,gte=0"`
	ACMaxPower    *float64   `json:"ac_max_power" validate:"omitempty,gt=0"`
	DCMaxPower    *float64   `json:"dc_max_power" validate:"omitempty,gt=0"`
	V2GEnabled    *bool      `json:"v2g_enabled"`
}

type updateVehicleRequest struct {
	VRN           *string    `json:"vrn"`
	Name          *string    `json:"name"`
	Make          *string    `json:"make"`
	Model         *string    `json:"model"`
	SOC           *int       `json:"soc" validate:"omitempty,gte=0,lte=100"`
	Target        *int       `json:"target" validate:"omitempty,gte=0,lte=100"`
	DepotID       *string    `json:"depot_id"`
	Location      *string    `json:"location"`
	Priority      *string    `json:"priority" validate:"omitempty,oneof=high medium low"`
	NextDispatch  *time.Time `json:"next_dispatch"`
	AvgCostPerDay *float64   `json:"avg_cost_per_day" validate:"omitempty,gte=0"`
	ACMaxPower    *float64   `json:"ac_max_power" validate:"omitempty,gt=0"`
	DCMaxPower    *float64   `json:"dc_max_power" validate:"omitempty,gt=0"`
	V2GEnabled    *bool      `json:"v2g_enabled"`
}

func (a *API) handleVehiclesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listVehicles(w, r)
	case http.MethodPost:
		RequireRoles(http.HandlerFunc(a.createVehicle),
			auth.RoleAdmin, auth.RoleManager).ServeHTTP(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleVehicleResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/vehicles/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "Resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getVehicle(w, r, id)
	case http.MethodPut:
		RequireRoles(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a.updateVehicle(w, r, id)
		}), auth.RoleAdmin, auth.RoleManager).ServeHTTP(w, r)
	case http.MethodDelete:
		RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a.deleteVehicle(w, r, id)
		})).ServeHTTP(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listVehicles(w http.ResponseWriter, r *http.Request) {
	page, pageSize, offset := parsePageParams(r)

	q := r.URL.Query()
	filters := fleet.Filters{
		DepotID: q.Get("depot_id"),
		Search:  q.Get("search"),
	}
	if raw := q.Get("priority"); raw != "" {
		p, ok := fleet.ParsePriority(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "priority must be one of: high, medium, low")
			return
		}
		filters.Priority = p
	}
	if raw := strings.TrimSpace(q.Get("soc_below")); raw != "" {
		below := queryInt(r, "soc_below", -1)
		if below < 0 || below > 100 {
			writeError(w, http.StatusBadRequest, "soc_below must be 0-100")
			return
		}
		filters.SOCBelow = &below
	}

	vehicles, total, err := a.fleetSvc.List(r.Context(), filters, pageSize, offset)
	if err != nil {
		a.handleFleetError(w, err)
		return
	}
	writePaginated(w, vehicles, newPagination(total, page, pageSize))
}

func (a *API) getVehicle(w http.ResponseWriter, r *http.Request, id string) {
	v, err := a.fleetSvc.Get(r.Context(), id)
	if err != nil {
		a.handleFleetError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Success", v)
}

func (a *API) createVehicle(w http.ResponseWriter, r *http.Request) {
	var req createVehicleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	v, err := a.fleetSvc.Create(r.Context(), fleet.CreateVehicleInput{
		VRN:           req.VRN,
		Name:          req.Name,
		Make:          req.Make,
		Model:         req.Model,
		SOC:           req.SOC,
		Target:        req.Target,
		DepotID:       req.DepotID,
		Location:      req.Location,
		Priority:      fleet.Priority(req.Priority),
		NextDispatch:  req.NextDispatch,
		AvgCostPerDay: req.AvgCostPerDay,
		ACMaxPower:    req.ACMaxPower,
		DCMaxPower:    req.DCMaxPower,
		V2GEnabled:    req.V2GEnabled,
	})
	if err != nil {
		a.handleFleetError(w, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "vehicle.created", map[string]any{"vehicle_id": v.ID, "vrn": v.VRN})
	writeSuccess(w, http.StatusCreated, "Vehicle created successfully", v)
}

func (a *API) updateVehicle(w http.ResponseWriter, r *http.Request, id string) {
	var req updateVehicleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	var priority *fleet.Priority
	if req.Priority != nil {
		p := fleet.Priority(*req.Priority)
		priority = &p
	}
	v, err := a.fleetSvc.Update(r.Context(), id, fleet.UpdateVehicleInput{
		VRN:           req.VRN,
		Name:          req.Name,
		Make:          req.Make,
		Model:         req.Model,
		SOC:           req.SOC,
		Target:        req.Target,
		DepotID:       req.DepotID,
		Location:      req.Location,
		Priority:      priority,
		NextDispatch:  req.NextDispatch,
		AvgCostPerDay: req.AvgCostPerDay,
		ACMaxPower:    req.ACMaxPower,
		DCMaxPower:    req.DCMaxPower,
		V2GEnabled:    req.V2GEnabled,
	})
	if err != nil {
		a.handleFleetError(w, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "vehicle.updated", map[string]any{"vehicle_id": v.ID})
	writeSuccess(w, http.StatusOK, "Vehicle updated successfully", v)
}

func (a *API) deleteVehicle(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.fleetSvc.Deactivate(r.Context(), id); err != nil {
		a.handleFleetError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "vehicle.deleted", map[string]any{"vehicle_id": id})
	writeSuccess(w, http.StatusOK, "Vehicle deleted successfully", nil)
}

func (a *API) handleFleetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fleet.ErrNotFound):
		writeError(w, http.StatusNotFound, "Vehicle not found")
	case errors.Is(err, fleet.ErrDuplicateVRN):
		writeError(w, http.StatusConflict, "A vehicle with this VRN already exists")
	case errors.Is(err, fleet.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
