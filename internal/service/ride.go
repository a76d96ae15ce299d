package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ecoride/internal/domain"
	"ecoride/internal/pricing"
	"ecoride/internal/redis"
	"ecoride/internal/repository"
)

const (
	// DefaultBookingLockTTL bounds how long a crashed booking can block a rider.
	DefaultBookingLockTTL = 10 * time.Second

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Transactor runs fn against ride and driver repositories bound to one transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(rides repository.RideRepository, drivers repository.DriverRepository) error) error
}

// RideServiceDeps contains the collaborators of RideService. Tx, Locks,
// Locations, EcoCache, Surge and Notifier are optional. Without Tx, driver
// status changes are applied after the ride update on a best-effort basis.
type RideServiceDeps struct {
	Rides          repository.RideRepository
	Drivers        repository.DriverRepository
	Tx             Transactor
	Locks          redis.LockStoreInterface
	Locations      redis.LocationStoreInterface
	EcoCache       redis.EcoStatsCache
	Surge          *SurgeService
	Notifier       Notifier
	Logger         logrus.FieldLogger
	BookingLockTTL time.Duration
	Clock          func() time.Time
}

// RideService runs the ride lifecycle. Every mutation is applied to a copy of
// the stored ride and persisted with a version check, so a rejected operation
// leaves nothing behind.
type RideService struct {
	rides     repository.RideRepository
	drivers   repository.DriverRepository
	tx        Transactor
	locks     redis.LockStoreInterface
	locations redis.LocationStoreInterface
	ecoCache  redis.EcoStatsCache
	surge     *SurgeService
	notifier  Notifier
	logger    logrus.FieldLogger
	lockTTL   time.Duration
	now       func() time.Time
}

// NewRideService creates a new RideService.
func NewRideService(deps RideServiceDeps) *RideService {
	s := &RideService{
		rides:     deps.Rides,
		drivers:   deps.Drivers,
		tx:        deps.Tx,
		locks:     deps.Locks,
		locations: deps.Locations,
		ecoCache:  deps.EcoCache,
		surge:     deps.Surge,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		lockTTL:   deps.BookingLockTTL,
		now:       deps.Clock,
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.lockTTL <= 0 {
		s.lockTTL = DefaultBookingLockTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateRideRequest contains the parameters for creating a ride.
type CreateRideRequest struct {
	RiderID           string
	Pickup            domain.Location
	Destination       domain.Location
	VehicleType       domain.VehicleType
	EstimatedDistance float64 // km
	EstimatedDuration float64 // minutes
	Subscription      bool
	PaymentMethod     domain.PaymentMethod
	ScheduledFor      *time.Time
	Adjustments       pricing.Adjustments
}

// CreateRide validates the booking, checks that the rider has no active ride,
// prices it and stores it in requested status.
func (s *RideService) CreateRide(ctx context.Context, req CreateRideRequest) (*domain.Ride, error) {
	now := s.now()
	if err := validateCreateRequest(req, now); err != nil {
		return nil, err
	}

	release, err := s.acquireBookingLock(ctx, req.RiderID)
	if err != nil {
		return nil, err
	}
	defer release()

	active, err := s.rides.GetActiveByRider(ctx, req.RiderID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if active != nil {
		s.logger.WithFields(logrus.Fields{
			"rider_id":       req.RiderID,
			"active_ride_id": active.ID,
		}).Info("ride creation rejected: active ride exists")
		return nil, ErrActiveRideExists
	}

	fare, err := s.priceRide(ctx, req)
	if err != nil {
		return nil, err
	}

	serviceType := domain.ServiceTypeRegular
	if req.Subscription {
		serviceType = domain.ServiceTypeSubscription
	}
	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = domain.PaymentMethodCash
	}

	ride := &domain.Ride{
		ID:                uuid.New().String(),
		RiderID:           req.RiderID,
		Pickup:            req.Pickup,
		Destination:       req.Destination,
		VehicleType:       req.VehicleType,
		ServiceType:       serviceType,
		Status:            domain.RideStatusRequested,
		EstimatedDistance: req.EstimatedDistance,
		EstimatedDuration: req.EstimatedDuration,
		Fare:              fare,
		Tracking:          domain.Tracking{Route: []domain.RoutePoint{}},
		PaymentStatus:     domain.PaymentStatusPending,
		PaymentMethod:     paymentMethod,
		RequestedAt:       now,
		ScheduledFor:      req.ScheduledFor,
		UpdatedAt:         now,
	}

	if err := s.rides.Create(ctx, ride); err != nil {
		if errors.Is(err, repository.ErrDuplicateActiveRide) {
			return nil, ErrActiveRideExists
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"ride_id":      ride.ID,
		"rider_id":     ride.RiderID,
		"vehicle_type": ride.VehicleType,
		"service_type": ride.ServiceType,
		"total":        ride.Fare.Total,
	}).Info("ride requested")

	return ride, nil
}

// acquireBookingLock takes the per-rider lock. A Redis failure is logged and
// booking proceeds; the store's unique index still rejects a second active ride.
func (s *RideService) acquireBookingLock(ctx context.Context, riderID string) (func(), error) {
	noop := func() {}
	if s.locks == nil {
		return noop, nil
	}

	ok, err := s.locks.AcquireBookingLock(ctx, riderID, s.lockTTL)
	if err != nil {
		s.logger.WithError(err).WithField("rider_id", riderID).Warn("booking lock unavailable")
		return noop, nil
	}
	if !ok {
		return nil, ErrBookingInProgress
	}

	return func() {
		if err := s.locks.ReleaseBookingLock(context.WithoutCancel(ctx), riderID); err != nil {
			s.logger.WithError(err).WithField("rider_id", riderID).Warn("booking lock release failed")
		}
	}, nil
}

// priceRide computes the fare, adding surge for regular rides when enabled.
func (s *RideService) priceRide(ctx context.Context, req CreateRideRequest) (domain.FareBreakdown, error) {
	in := pricing.FareInput{
		VehicleType:  req.VehicleType,
		DistanceKm:   req.EstimatedDistance,
		Subscription: req.Subscription,
		Adjustments:  req.Adjustments,
	}

	fare, err := pricing.CalculateFare(in)
	if err != nil || s.surge == nil || req.Subscription || req.Adjustments.Surge > 0 {
		return fare, err
	}

	amount, multiplier := s.surge.Amount(ctx, req.Pickup, fare.BaseFare+fare.DistanceFare)
	if amount <= 0 {
		return fare, nil
	}
	s.logger.WithFields(logrus.Fields{
		"rider_id":   req.RiderID,
		"multiplier": multiplier,
	}).Info("surge applied")

	in.Adjustments.Surge = amount
	return pricing.CalculateFare(in)
}

func validateCreateRequest(req CreateRideRequest, now time.Time) error {
	if req.RiderID == "" {
		return &domain.ValidationError{Field: "rider_id", Message: "is required"}
	}
	if !req.VehicleType.IsValid() {
		return &domain.ValidationError{Field: "vehicle_type", Message: "must be bike or car"}
	}
	if !isFinite(req.EstimatedDistance) || req.EstimatedDistance <= 0 {
		return &domain.ValidationError{Field: "estimated_distance", Message: "must be greater than zero"}
	}
	if !isFinite(req.EstimatedDuration) || req.EstimatedDuration < 0 {
		return &domain.ValidationError{Field: "estimated_duration", Message: "must not be negative"}
	}
	if !isValidLatitude(req.Pickup.Lat) || !isValidLongitude(req.Pickup.Lng) {
		return &domain.ValidationError{Field: "pickup", Message: "coordinates out of range"}
	}
	if !isValidLatitude(req.Destination.Lat) || !isValidLongitude(req.Destination.Lng) {
		return &domain.ValidationError{Field: "destination", Message: "coordinates out of range"}
	}
	if req.ScheduledFor != nil && !req.ScheduledFor.After(now) {
		return &domain.ValidationError{Field: "scheduled_for", Message: "must be in the future"}
	}
	return nil
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// mutate loads a ride, applies op to a copy and stores the copy.
func (s *RideService) mutate(ctx context.Context, rideID string, op func(r *domain.Ride) error) (*domain.Ride, error) {
	return s.mutateWithDriver(ctx, rideID, "", op)
}

// mutateWithDriver is mutate plus a status change for the ride's driver,
// written in the same transaction when a Transactor is configured.
func (s *RideService) mutateWithDriver(
	ctx context.Context,
	rideID string,
	driverStatus domain.DriverStatus,
	op func(r *domain.Ride) error,
) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	current, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := op(next); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			s.logger.WithFields(logrus.Fields{"ride_id": rideID, "status": current.Status}).WithError(err).Info("transition rejected")
		}
		return nil, err
	}

	driverID := ""
	if driverStatus != "" && next.Driver != nil {
		driverID = next.Driver.DriverID
	}
	if err := s.save(ctx, next, driverID, driverStatus); err != nil {
		return nil, err
	}

	if next.Status != current.Status {
		s.logger.WithFields(logrus.Fields{
			"ride_id":  next.ID,
			"rider_id": next.RiderID,
			"from":     current.Status,
			"to":       next.Status,
		}).Info("ride status changed")
	}
	return next, nil
}

func (s *RideService) save(ctx context.Context, ride *domain.Ride, driverID string, driverStatus domain.DriverStatus) error {
	if driverID == "" {
		return s.rides.Update(ctx, ride)
	}

	if s.tx == nil {
		if err := s.rides.Update(ctx, ride); err != nil {
			return err
		}
		if err := s.drivers.UpdateStatus(ctx, driverID, driverStatus); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{"driver_id": driverID, "status": driverStatus}).Warn("driver status update failed")
		}
		return nil
	}

	version := ride.Version
	err := s.tx.WithinTx(ctx, func(rides repository.RideRepository, drivers repository.DriverRepository) error {
		if err := rides.Update(ctx, ride); err != nil {
			return err
		}
		return drivers.UpdateStatus(ctx, driverID, driverStatus)
	})
	if err != nil {
		ride.Version = version
	}
	return err
}

func (s *RideService) transition(ctx context.Context, rideID string, to domain.RideStatus) (*domain.Ride, error) {
	return s.mutate(ctx, rideID, func(r *domain.Ride) error {
		return r.Transition(to, s.now())
	})
}

// MarkSearching moves a requested ride into driver search.
func (s *RideService) MarkSearching(ctx context.Context, rideID string) (*domain.Ride, error) {
	return s.transition(ctx, rideID, domain.RideStatusSearching)
}

// AssignDriver snapshots the driver onto the ride. Only online drivers can be assigned.
func (s *RideService) AssignDriver(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	driver, err := s.drivers.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if driver.Status != domain.DriverStatusOnline {
		s.logger.WithFields(logrus.Fields{"ride_id": rideID, "driver_id": driverID, "driver_status": driver.Status}).Info("driver not available")
		return nil, ErrDriverUnavailable
	}

	ride, err := s.mutateWithDriver(ctx, rideID, domain.DriverStatusOnTrip, func(r *domain.Ride) error {
		return r.AssignDriver(driver.Snapshot(), s.now())
	})
	if err != nil {
		return nil, err
	}

	s.notify(ride, "driver_assigned", func(n Notifier) error { return n.NotifyDriverAssigned(ctx, ride) })
	return ride, nil
}

// MarkDriverArriving records that the driver is en route, with an optional ETA.
func (s *RideService) MarkDriverArriving(ctx context.Context, rideID string, eta *time.Time) (*domain.Ride, error) {
	return s.mutate(ctx, rideID, func(r *domain.Ride) error {
		if err := r.Transition(domain.RideStatusDriverArriving, s.now()); err != nil {
			return err
		}
		r.Tracking.EstimatedArrival = eta
		return nil
	})
}

// MarkDriverArrived records the driver at the pickup point.
func (s *RideService) MarkDriverArrived(ctx context.Context, rideID string) (*domain.Ride, error) {
	return s.transition(ctx, rideID, domain.RideStatusDriverArrived)
}

// StartRide moves the ride in progress.
func (s *RideService) StartRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	return s.transition(ctx, rideID, domain.RideStatusInProgress)
}

// CompleteRideRequest carries the measured trip.
type CompleteRideRequest struct {
	RideID         string
	ActualDistance float64 // km
	ActualDuration float64 // minutes
}

// CompleteRide records the actual trip, recomputes eco impact and completes the ride.
func (s *RideService) CompleteRide(ctx context.Context, req CompleteRideRequest) (*domain.Ride, error) {
	if err := validateActualTrip(req.ActualDistance, req.ActualDuration); err != nil {
		return nil, err
	}

	ride, err := s.mutateWithDriver(ctx, req.RideID, domain.DriverStatusOnline, func(r *domain.Ride) error {
		if err := r.Transition(domain.RideStatusCompleted, s.now()); err != nil {
			return err
		}
		applyActualTrip(r, req.ActualDistance, req.ActualDuration)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateEcoStats(ctx, ride.RiderID)
	s.notify(ride, "ride_completed", func(n Notifier) error { return n.NotifyRideCompleted(ctx, ride) })
	return ride, nil
}

// UpdateActualDistance corrects the measured trip of a ride in progress or
// completed. Eco impact is recomputed with it.
func (s *RideService) UpdateActualDistance(ctx context.Context, rideID string, distanceKm, durationMin float64) (*domain.Ride, error) {
	if err := validateActualTrip(distanceKm, durationMin); err != nil {
		return nil, err
	}

	ride, err := s.mutate(ctx, rideID, func(r *domain.Ride) error {
		if r.Status != domain.RideStatusInProgress && r.Status != domain.RideStatusCompleted {
			return &domain.TransitionError{From: r.Status, To: r.Status}
		}
		applyActualTrip(r, distanceKm, durationMin)
		r.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if ride.Status == domain.RideStatusCompleted {
		s.invalidateEcoStats(ctx, ride.RiderID)
	}
	return ride, nil
}

// applyActualTrip is the only writer of the actual distance, and always
// recomputes eco impact with it.
func applyActualTrip(r *domain.Ride, distanceKm, durationMin float64) {
	r.ActualDistance = &distanceKm
	r.ActualDuration = &durationMin
	eco := pricing.EcoImpact(distanceKm)
	r.EcoImpact = &eco
}

func validateActualTrip(distanceKm, durationMin float64) error {
	if !isFinite(distanceKm) || distanceKm < 0 {
		return &domain.ValidationError{Field: "actual_distance", Message: "must not be negative"}
	}
	if !isFinite(durationMin) || durationMin < 0 {
		return &domain.ValidationError{Field: "actual_duration", Message: "must not be negative"}
	}
	return nil
}

// CancelRideRequest contains the parameters for cancelling a ride.
type CancelRideRequest struct {
	RideID      string
	Reason      string
	CancelledBy domain.CancelledBy
	Fee         float64 // assessed by the caller's cancellation policy
}

// CancelRide cancels a ride from any non-terminal status.
func (s *RideService) CancelRide(ctx context.Context, req CancelRideRequest) (*domain.Ride, error) {
	ride, err := s.mutateWithDriver(ctx, req.RideID, domain.DriverStatusOnline, func(r *domain.Ride) error {
		return r.Cancel(req.Reason, req.CancelledBy, pricing.Round2(req.Fee), s.now())
	})
	if err != nil {
		return nil, err
	}

	s.notify(ride, "ride_cancelled", func(n Notifier) error { return n.NotifyRideCancelled(ctx, ride) })
	return ride, nil
}

// FailRide moves a ride to failed, e.g. when no driver could be found.
func (s *RideService) FailRide(ctx context.Context, rideID, reason string) (*domain.Ride, error) {
	ride, err := s.mutateWithDriver(ctx, rideID, domain.DriverStatusOnline, func(r *domain.Ride) error {
		return r.Fail(reason, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"ride_id": ride.ID, "reason": reason}).Warn("ride failed")
	return ride, nil
}

// RecordLocationRequest is a single driver location ping for a ride.
type RecordLocationRequest struct {
	RideID    string
	Lat       float64
	Lng       float64
	Timestamp time.Time
}

// RecordLocation appends a ping to the ride's route and refreshes the driver's
// position in the location index.
func (s *RideService) RecordLocation(ctx context.Context, req RecordLocationRequest) (*domain.Ride, error) {
	if req.Timestamp.IsZero() {
		req.Timestamp = s.now()
	}

	ride, err := s.mutate(ctx, req.RideID, func(r *domain.Ride) error {
		return r.RecordLocation(domain.RoutePoint{Lat: req.Lat, Lng: req.Lng, Timestamp: req.Timestamp})
	})
	if err != nil {
		return nil, err
	}

	if s.locations != nil && ride.Driver != nil {
		if err := s.locations.UpdateLocation(ctx, ride.Driver.DriverID, req.Lat, req.Lng); err != nil {
			s.logger.WithError(err).WithField("driver_id", ride.Driver.DriverID).Warn("driver location index update failed")
		}
	}
	return ride, nil
}

// RateRideRequest is feedback from one side of a completed ride.
type RateRideRequest struct {
	RideID   string
	Party    domain.RatingParty
	Score    int
	Feedback string
	Tags     []string
}

// RateRide stores a rating. Each side may rate a ride once.
func (s *RideService) RateRide(ctx context.Context, req RateRideRequest) (*domain.Ride, error) {
	return s.mutate(ctx, req.RideID, func(r *domain.Ride) error {
		return r.Rate(req.Party, domain.Rating{
			Score:     req.Score,
			Feedback:  req.Feedback,
			Tags:      req.Tags,
			CreatedAt: s.now(),
		})
	})
}

// ActivateSOS flags the ride and records emergency contacts. Contacts are
// alerted through the notifier; the ride status is untouched.
func (s *RideService) ActivateSOS(ctx context.Context, rideID string, contacts []domain.EmergencyContact) (*domain.Ride, error) {
	for _, c := range contacts {
		if c.Phone == "" {
			return nil, &domain.ValidationError{Field: "emergency_contacts", Message: "phone is required"}
		}
	}

	ride, err := s.mutate(ctx, rideID, func(r *domain.Ride) error {
		r.ActivateSOS(contacts, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"ride_id":  ride.ID,
		"rider_id": ride.RiderID,
		"status":   ride.Status,
		"contacts": len(contacts),
	}).Warn("SOS activated")
	s.notify(ride, "sos", func(n Notifier) error { return n.NotifySOS(ctx, ride) })
	return ride, nil
}

// GetRide retrieves a ride by ID.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	return s.rides.GetByID(ctx, rideID)
}

// GetActiveRide returns the rider's non-terminal ride, or nil if there is none.
func (s *RideService) GetActiveRide(ctx context.Context, riderID string) (*domain.Ride, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}

	ride, err := s.rides.GetActiveByRider(ctx, riderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return ride, err
}

// HistoryEntry is a ride enriched with the driver snapshot taken at assignment.
type HistoryEntry struct {
	Ride         *domain.Ride
	DriverName   string
	DriverRating float64
}

// GetHistory returns a page of the rider's rides, newest first.
func (s *RideService) GetHistory(ctx context.Context, riderID string, limit, skip int) ([]HistoryEntry, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if skip < 0 {
		skip = 0
	}

	rides, err := s.rides.ListByRider(ctx, riderID, limit, skip)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(rides))
	for _, r := range rides {
		entry := HistoryEntry{Ride: r}
		if r.Driver != nil {
			entry.DriverName = r.Driver.Name
			entry.DriverRating = r.Driver.Rating
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetEcoStats sums eco impact over the rider's completed rides. A rider with
// no completed rides gets zeroes.
func (s *RideService) GetEcoStats(ctx context.Context, riderID string) (domain.EcoStats, error) {
	if riderID == "" {
		return domain.EcoStats{}, ErrInvalidRiderID
	}

	if s.ecoCache != nil {
		cached, err := s.ecoCache.GetEcoStats(ctx, riderID)
		if err != nil {
			s.logger.WithError(err).WithField("rider_id", riderID).Warn("eco stats cache read failed")
		} else if cached != nil {
			return *cached, nil
		}
	}

	stats, err := s.rides.EcoStatsByRider(ctx, riderID)
	if err != nil {
		return domain.EcoStats{}, err
	}
	stats.TotalDistance = pricing.Round2(stats.TotalDistance)
	stats.CO2Saved = pricing.Round2(stats.CO2Saved)
	stats.FuelSaved = pricing.Round2(stats.FuelSaved)
	stats.TreesEquivalent = pricing.Round4(stats.TreesEquivalent)

	if s.ecoCache != nil {
		if err := s.ecoCache.SetEcoStats(ctx, riderID, stats); err != nil {
			s.logger.WithError(err).WithField("rider_id", riderID).Warn("eco stats cache write failed")
		}
	}
	return stats, nil
}

// Receipt renders the ride receipt.
func (s *RideService) Receipt(ctx context.Context, rideID string) (string, error) {
	ride, err := s.GetRide(ctx, rideID)
	if err != nil {
		return "", err
	}
	return FormatReceipt(ride), nil
}

func (s *RideService) invalidateEcoStats(ctx context.Context, riderID string) {
	if s.ecoCache == nil {
		return
	}
	if err := s.ecoCache.InvalidateEcoStats(ctx, riderID); err != nil {
		s.logger.WithError(err).WithField("rider_id", riderID).Warn("eco stats cache invalidation failed")
	}
}

// notify delivers a ride event. Failures are logged and never fail the operation.
func (s *RideService) notify(ride *domain.Ride, event string, send func(n Notifier) error) {
	if s.notifier == nil {
		return
	}
	if err := send(s.notifier); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"ride_id": ride.ID, "event": event}).Warn("notification failed")
	}
}
