package service_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ecoride/internal/domain"
	"ecoride/internal/redis"
	"ecoride/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is an in-memory RideRepository. Like the Postgres store
// it rejects a second active ride per rider and checks versions on update.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	CreateCallCount int32
	UpdateCallCount int32

	CreateError error
	UpdateError error
}

func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{rides: make(map[string]*domain.Ride)}
}

// AddRide seeds a ride without the active-ride check.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride.Clone()
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rides {
		if r.RiderID == ride.RiderID && r.IsActive() {
			return repository.ErrDuplicateActiveRide
		}
	}
	m.rides[ride.ID] = ride.Clone()
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ride.Clone(), nil
}

func (m *MockRideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rides[ride.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != ride.Version {
		return repository.ErrConflict
	}
	ride.Version++
	m.rides[ride.ID] = ride.Clone()
	return nil
}

func (m *MockRideRepository) GetActiveByRider(ctx context.Context, riderID string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rides {
		if r.RiderID == riderID && r.IsActive() {
			return r.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockRideRepository) ListByRider(ctx context.Context, riderID string, limit, skip int) ([]*domain.Ride, error) {
	rides := m.byRider(riderID)
	sort.Slice(rides, func(i, j int) bool {
		return rides[i].RequestedAt.After(rides[j].RequestedAt)
	})
	if skip >= len(rides) {
		return []*domain.Ride{}, nil
	}
	rides = rides[skip:]
	if limit < len(rides) {
		rides = rides[:limit]
	}
	return rides, nil
}

func (m *MockRideRepository) ListActive(ctx context.Context, limit int) ([]*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Ride, 0)
	for _, r := range m.rides {
		if r.IsActive() && len(result) < limit {
			result = append(result, r.Clone())
		}
	}
	return result, nil
}

func (m *MockRideRepository) EcoStatsByRider(ctx context.Context, riderID string) (domain.EcoStats, error) {
	var stats domain.EcoStats
	for _, r := range m.byRider(riderID) {
		if r.Status != domain.RideStatusCompleted {
			continue
		}
		stats.TotalRides++
		if r.ActualDistance != nil {
			stats.TotalDistance += *r.ActualDistance
		}
		if r.EcoImpact != nil {
			stats.CO2Saved += r.EcoImpact.CO2Saved
			stats.TreesEquivalent += r.EcoImpact.TreesEquivalent
			stats.FuelSaved += r.EcoImpact.FuelSaved
		}
	}
	return stats, nil
}

func (m *MockRideRepository) CompletedDistanceByRider(ctx context.Context, riderID string) (int, float64, error) {
	count, total := 0, 0.0
	for _, r := range m.byRider(riderID) {
		if r.Status == domain.RideStatusCompleted && r.ActualDistance != nil {
			count++
			total += *r.ActualDistance
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return count, total / float64(count), nil
}

func (m *MockRideRepository) byRider(riderID string) []*domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Ride, 0)
	for _, r := range m.rides {
		if r.RiderID == riderID {
			result = append(result, r.Clone())
		}
	}
	return result
}

// GetRide returns the stored ride for test assertions.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.rides[id]; ok {
		return r.Clone()
	}
	return nil
}

// CountActiveRides returns the number of non-terminal rides for a rider.
func (m *MockRideRepository) CountActiveRides(riderID string) int {
	count := 0
	for _, r := range m.byRider(riderID) {
		if r.IsActive() {
			count++
		}
	}
	return count
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	UpdateStatusCallCount int32
	UpdateStatusError     error
}

func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{drivers: make(map[string]*domain.Driver)}
}

func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := *driver
	m.drivers[driver.ID] = &d
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	m.AddDriver(driver)
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := *driver
	return &d, nil
}

func (m *MockDriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if d.Phone == phone {
			c := *d
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockDriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Status = status
	return nil
}

// Status returns the stored driver status for test assertions.
func (m *MockDriverRepository) Status(id string) domain.DriverStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.drivers[id]; ok {
		return d.Status
	}
	return ""
}

// ──────────────────────────────────────────────
// MOCK RIDER REPOSITORY
// ──────────────────────────────────────────────

type MockRiderRepository struct {
	mu     sync.RWMutex
	riders map[string]*domain.Rider
}

func NewMockRiderRepository() *MockRiderRepository {
	return &MockRiderRepository{riders: make(map[string]*domain.Rider)}
}

func (m *MockRiderRepository) Create(ctx context.Context, rider *domain.Rider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *rider
	m.riders[rider.ID] = &r
	return nil
}

func (m *MockRiderRepository) GetByID(ctx context.Context, id string) (*domain.Rider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rider, ok := m.riders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r := *rider
	return &r, nil
}

func (m *MockRiderRepository) GetByPhone(ctx context.Context, phone string) (*domain.Rider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.riders {
		if r.Phone == phone {
			c := *r
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ──────────────────────────────────────────────
// MOCK PLAN REPOSITORY
// ──────────────────────────────────────────────

// MockPlanRepository applies flag and counter mutations under one lock, the
// way the Mongo store applies them in one transaction or conditional update.
type MockPlanRepository struct {
	mu    sync.RWMutex
	plans map[string]*domain.SubscriptionPlan
	order []string

	SetRecommendedCallCount int32
}

func NewMockPlanRepository() *MockPlanRepository {
	return &MockPlanRepository{plans: make(map[string]*domain.SubscriptionPlan)}
}

func clonePlan(p *domain.SubscriptionPlan) *domain.SubscriptionPlan {
	c := *p
	c.Availability.Cities = append([]string(nil), p.Availability.Cities...)
	return &c
}

func (m *MockPlanRepository) Create(ctx context.Context, plan *domain.SubscriptionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[plan.ID]; ok {
		return repository.ErrConflict
	}
	m.plans[plan.ID] = clonePlan(plan)
	m.order = append(m.order, plan.ID)
	return nil
}

func (m *MockPlanRepository) GetByID(ctx context.Context, id string) (*domain.SubscriptionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePlan(p), nil
}

func (m *MockPlanRepository) List(ctx context.Context, f repository.PlanFilter) ([]*domain.SubscriptionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.SubscriptionPlan, 0)
	for _, id := range m.order {
		p := m.plans[id]
		if f.VehicleType != "" && p.VehicleType != f.VehicleType {
			continue
		}
		if f.ActiveOnly && !p.Flags.Active {
			continue
		}
		if f.RecommendedOnly && !p.Flags.Recommended {
			continue
		}
		result = append(result, clonePlan(p))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Stats.ConversionRate > result[j].Stats.ConversionRate
	})
	return result, nil
}

func (m *MockPlanRepository) SetRecommended(ctx context.Context, id string, recommended bool) error {
	atomic.AddInt32(&m.SetRecommendedCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.plans[id]
	if !ok {
		return repository.ErrNotFound
	}
	if recommended {
		for _, p := range m.plans {
			if p.VehicleType == target.VehicleType && p.ID != id {
				p.Flags.Recommended = false
			}
		}
	}
	target.Flags.Recommended = recommended
	return nil
}

func (m *MockPlanRepository) AddSubscriber(ctx context.Context, id string, revenue float64) error {
	return m.withPlan(id, func(p *domain.SubscriptionPlan) error {
		p.AddSubscriber(revenue)
		return nil
	})
}

func (m *MockPlanRepository) RemoveSubscriber(ctx context.Context, id string) error {
	return m.withPlan(id, func(p *domain.SubscriptionPlan) error {
		p.RemoveSubscriber()
		return nil
	})
}

func (m *MockPlanRepository) IncrementRedemption(ctx context.Context, id string) error {
	return m.withPlan(id, func(p *domain.SubscriptionPlan) error {
		d := &p.Discount
		if d.MaxRedemptions > 0 && d.CurrentRedemptions >= d.MaxRedemptions {
			return repository.ErrConflict
		}
		d.CurrentRedemptions++
		return nil
	})
}

func (m *MockPlanRepository) UpdateRates(ctx context.Context, id string, conversion, renewal, usage float64) error {
	return m.withPlan(id, func(p *domain.SubscriptionPlan) error {
		p.Stats.ConversionRate = conversion
		p.Stats.RenewalRate = renewal
		p.Stats.UsageRate = usage
		return nil
	})
}

func (m *MockPlanRepository) withPlan(id string, fn func(p *domain.SubscriptionPlan) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return repository.ErrNotFound
	}
	return fn(p)
}

// RecommendedCount returns how many plans of a vehicle type carry the flag.
func (m *MockPlanRepository) RecommendedCount(vt domain.VehicleType) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, p := range m.plans {
		if p.VehicleType == vt && p.Flags.Recommended {
			count++
		}
	}
	return count
}

// ──────────────────────────────────────────────
// MOCK REDIS STORES
// ──────────────────────────────────────────────

type MockLockStore struct {
	mu    sync.Mutex
	held  map[string]bool
	Error error

	AcquireCallCount int32
	ReleaseCallCount int32
}

func NewMockLockStore() *MockLockStore {
	return &MockLockStore{held: make(map[string]bool)}
}

func (m *MockLockStore) AcquireBookingLock(ctx context.Context, riderID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.Error != nil {
		return false, m.Error
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[riderID] {
		return false, nil
	}
	m.held[riderID] = true
	return true, nil
}

func (m *MockLockStore) ReleaseBookingLock(ctx context.Context, riderID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, riderID)
	return nil
}

// Hold marks a rider's lock as taken by someone else.
func (m *MockLockStore) Hold(riderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[riderID] = true
}

type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]redis.DriverLocation

	FindError error
}

func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{locations: make(map[string]redis.DriverLocation)}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[driverID] = redis.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng}
	return nil
}

// FindNearbyDrivers returns every indexed driver; tests place them near the pickup.
func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]redis.DriverLocation, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]redis.DriverLocation, 0, len(m.locations))
	for _, l := range m.locations {
		result = append(result, l)
	}
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, driverID)
	return nil
}

func (m *MockLocationStore) Get(driverID string) (redis.DriverLocation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.locations[driverID]
	return l, ok
}

type MockEcoCache struct {
	mu    sync.Mutex
	stats map[string]domain.EcoStats

	GetCallCount        int32
	InvalidateCallCount int32
}

func NewMockEcoCache() *MockEcoCache {
	return &MockEcoCache{stats: make(map[string]domain.EcoStats)}
}

func (m *MockEcoCache) GetEcoStats(ctx context.Context, riderID string) (*domain.EcoStats, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[riderID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MockEcoCache) SetEcoStats(ctx context.Context, riderID string, stats domain.EcoStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[riderID] = stats
	return nil
}

func (m *MockEcoCache) InvalidateEcoStats(ctx context.Context, riderID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stats, riderID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER AND TRANSACTOR
// ──────────────────────────────────────────────

type MockNotifier struct {
	mu     sync.Mutex
	events []string

	Error error
}

func (m *MockNotifier) record(event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.Error
}

func (m *MockNotifier) NotifyDriverAssigned(ctx context.Context, ride *domain.Ride) error {
	return m.record("driver_assigned")
}

func (m *MockNotifier) NotifyRideCompleted(ctx context.Context, ride *domain.Ride) error {
	return m.record("ride_completed")
}

func (m *MockNotifier) NotifyRideCancelled(ctx context.Context, ride *domain.Ride) error {
	return m.record("ride_cancelled")
}

func (m *MockNotifier) NotifySOS(ctx context.Context, ride *domain.Ride) error {
	return m.record("sos")
}

func (m *MockNotifier) Events() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.events, ",")
}

// MockTransactor runs fn against the mock repositories. Errors are
// propagated; writes made before the error are not undone.
type MockTransactor struct {
	rides   repository.RideRepository
	drivers repository.DriverRepository

	CallCount int32
}

func (m *MockTransactor) WithinTx(ctx context.Context, fn func(rides repository.RideRepository, drivers repository.DriverRepository) error) error {
	atomic.AddInt32(&m.CallCount, 1)
	if err := fn(m.rides, m.drivers); err != nil {
		return errors.Join(errors.New("transaction rolled back"), err)
	}
	return nil
}
