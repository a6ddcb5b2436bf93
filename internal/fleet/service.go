package fleet

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"irisfleet.io/internal/ids"
)

const (
	defaultSOC      = 100
	defaultTarget   = 80
	defaultLocation = "Unknown"
	maxPageSize     = 100
)

// Service defines vehicle operations. Listings only ever see active
// vehicles; Deactivate is the delete.
type Service interface {
	List(ctx context.Context, f Filters, limit, offset int) ([]Vehicle, int, error)
	Get(ctx context.Context, id string) (Vehicle, error)
	GetByVRN(ctx context.Context, vrn string) (Vehicle, error)
	Create(ctx context.Context, in CreateVehicleInput) (Vehicle, error)
	Update(ctx context.Context, id string, in UpdateVehicleInput) (Vehicle, error)
	Deactivate(ctx context.Context, id string) error
}

// InMemory implements Service with in-process concurrency safety.
type InMemory struct {
	mu       sync.RWMutex
	vehicles map[string]*Vehicle
	order    []string // insertion order, newest listed first
	now      func() time.Time
}

// NewInMemory creates an empty in-memory fleet.
func NewInMemory() *InMemory {
	return &InMemory{
		vehicles: make(map[string]*Vehicle),
		now:      time.Now,
	}
}

func (s *InMemory) List(ctx context.Context, f Filters, limit, offset int) ([]Vehicle, int, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Vehicle
	for i := len(s.order) - 1; i >= 0; i-- {
		v := s.vehicles[s.order[i]]
		if !v.Active || !matches(v, f) {
			continue
		}
		matched = append(matched, *v)
	}
	total := len(matched)
	if offset >= total {
		return []Vehicle{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	if !ok || !v.Active {
		return Vehicle{}, ErrNotFound
	}
	return *v, nil
}

func (s *InMemory) GetByVRN(ctx context.Context, vrn string) (Vehicle, error) {
	vrn = strings.ToUpper(strings.TrimSpace(vrn))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		v := s.vehicles[id]
		if v.Active && v.VRN == vrn {
			return *v, nil
		}
	}
	return Vehicle{}, ErrNotFound
}

func (s *InMemory) Create(ctx context.Context, in CreateVehicleInput) (Vehicle, error) {
	vrn := strings.ToUpper(strings.TrimSpace(in.VRN))
	if vrn == "" || strings.TrimSpace(in.Name) == "" {
		return Vehicle{}, fmt.Errorf("%w: vrn and name are required", ErrInvalidInput)
	}
	v := Vehicle{
		ID:            ids.New(),
		VRN:           vrn,
		Name:          strings.TrimSpace(in.Name),
		Make:          strings.TrimSpace(in.Make),
		Model:         strings.TrimSpace(in.Model),
		SOC:           defaultSOC,
		Target:        defaultTarget,
		DepotID:       in.DepotID,
		Location:      defaultLocation,
		Priority:      PriorityMedium,
		NextDispatch:  in.NextDispatch,
		ACMaxPower:    in.ACMaxPower,
		DCMaxPower:    in.DCMaxPower,
		Active:        true,
	}
	if in.SOC != nil {
		v.SOC = *in.SOC
	}
	if in.Target != nil {
		v.Target = *in.Target
	}
	if in.Location != "" {
		v.Location = in.Location
	}
	if in.Priority != "" {
		p, ok := ParsePriority(string(in.Priority))
		if !ok {
			return Vehicle{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, in.Priority)
		}
		v.Priority = p
	}
	if in.AvgCostPerDay != nil {
		v.AvgCostPerDay = *in.AvgCostPerDay
	}
	if in.V2GEnabled != nil {
		v.V2GEnabled = *in.V2GEnabled
	}
	if v.SOC < 0 || v.SOC > 100 || v.Target < 0 || v.Target > 100 {
		return Vehicle{}, fmt.Errorf("%w: soc and target must be 0-100", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.vehicles {
		if existing.Active && existing.VRN == vrn {
			return Vehicle{}, ErrDuplicateVRN
		}
	}
	now := s.now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	s.vehicles[v.ID] = &v
	s.order = append(s.order, v.ID)
	return v, nil
}

func (s *InMemory) Update(ctx context.Context, id string, in UpdateVehicleInput) (Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	if !ok || !v.Active {
		return Vehicle{}, ErrNotFound
	}

	if in.VRN != nil {
		vrn := strings.ToUpper(strings.TrimSpace(*in.VRN))
		if vrn == "" {
			return Vehicle{}, fmt.Errorf("%w: vrn cannot be empty", ErrInvalidInput)
		}
		for _, other := range s.vehicles {
			if other.ID != id && other.Active && other.VRN == vrn {
				return Vehicle{}, ErrDuplicateVRN
			}
		}
		v.VRN = vrn
	}
	if in.Name != nil {
		v.Name = strings.TrimSpace(*in.Name)
	}
	if in.Make != nil {
		v.Make = strings.TrimSpace(*in.Make)
	}
	if in.Model != nil {
		v.Model = strings.TrimSpace(*in.Model)
	}
	if in.SOC != nil {
		if *in.SOC < 0 || *in.SOC > 100 {
			return Vehicle{}, fmt.Errorf("%w: soc must be 0-100", ErrInvalidInput)
		}
		v.SOC = *in.SOC
	}
	if in.Target != nil {
		if *in.Target < 0 || *in.Target > 100 {
			return Vehicle{}, fmt.Errorf("%w: target must be 0-100", ErrInvalidInput)
		}
		v.Target = *in.Target
	}
	if in.DepotID != nil {
		v.DepotID = *in.DepotID
	}
	if in.Location != nil {
		v.Location = *in.Location
	}
	if in.Priority != nil {
		p, ok := ParsePriority(string(*in.Priority))
		if !ok {
			return Vehicle{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, *in.Priority)
		}
		v.Priority = p
	}
	if in.NextDispatch != nil {
		v.NextDispatch = in.NextDispatch
	}
	if in.AvgCostPerDay != nil {
		v.AvgCostPerDay = *in.AvgCostPerDay
	}
	if in.ACMaxPower != nil {
		v.ACMaxPower = in.ACMaxPower
	}
	if in.DCMaxPower != nil {
		v.DCMaxPower = in.DCMaxPower
	}
	if in.V2GEnabled != nil {
		v.V2GEnabled = *in.V2GEnabled
	}
	v.UpdatedAt = s.now().UTC()
	return *v, nil
}

func (s *InMemory) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	if !ok || !v.Active {
		return ErrNotFound
	}
	v.Active = false
	v.UpdatedAt = s.now().UTC()
	return nil
}

func matches(v *Vehicle, f Filters) bool {
	if f.DepotID != "" && v.DepotID != f.DepotID {
		return false
	}
	if f.Priority != "" && v.Priority != f.Priority {
		return false
	}
	if f.SOCBelow != nil && v.SOC >= *f.SOCBelow {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		hay := strings.ToLower(v.VRN + " " + v.Name + " " + v.Make + " " + v.Model)
		if !strings.Contains(hay, needle) {
			return false
		}
	}
	return true
}
