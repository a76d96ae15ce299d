package domain

import "time"

// RideStatus represents the current state of a ride.
type RideStatus string

const (
	RideStatusRequested      RideStatus = "requested"
	RideStatusSearching      RideStatus = "searching"
	RideStatusDriverAssigned RideStatus = "driver_assigned"
	RideStatusDriverArriving RideStatus = "driver_arriving"
	RideStatusDriverArrived  RideStatus = "driver_arrived"
	RideStatusInProgress     RideStatus = "in_progress"
	RideStatusCompleted      RideStatus = "completed"
	RideStatusCancelled      RideStatus = "cancelled"
	RideStatusFailed         RideStatus = "failed"
)

// AllowedTransitions is the ride state machine. Terminal states have no entry.
var AllowedTransitions = map[RideStatus][]RideStatus{
	RideStatusRequested:      {RideStatusSearching, RideStatusCancelled, RideStatusFailed},
	RideStatusSearching:      {RideStatusDriverAssigned, RideStatusCancelled, RideStatusFailed},
	RideStatusDriverAssigned: {RideStatusDriverArriving, RideStatusCancelled, RideStatusFailed},
	RideStatusDriverArriving: {RideStatusDriverArrived, RideStatusCancelled, RideStatusFailed},
	RideStatusDriverArrived:  {RideStatusInProgress, RideStatusCancelled, RideStatusFailed},
	RideStatusInProgress:     {RideStatusCompleted, RideStatusCancelled, RideStatusFailed},
}

// CanTransition reports whether a ride may move from one status to another.
func CanTransition(from, to RideStatus) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled || s == RideStatusFailed
}

// IsValid reports whether s is a known status.
func (s RideStatus) IsValid() bool {
	if s.IsTerminal() {
		return true
	}
	_, ok := AllowedTransitions[s]
	return ok
}

// ActiveRideStatuses lists every non-terminal status.
func ActiveRideStatuses() []RideStatus {
	return []RideStatus{
		RideStatusRequested,
		RideStatusSearching,
		RideStatusDriverAssigned,
		RideStatusDriverArriving,
		RideStatusDriverArrived,
		RideStatusInProgress,
	}
}

// ServiceType distinguishes pay-per-ride trips from subscription trips.
type ServiceType string

const (
	ServiceTypeRegular      ServiceType = "regular"
	ServiceTypeSubscription ServiceType = "subscription"
)

// CancelledBy identifies who cancelled a ride.
type CancelledBy string

const (
	CancelledByUser   CancelledBy = "user"
	CancelledByDriver CancelledBy = "driver"
	CancelledBySystem CancelledBy = "system"
)

func (c CancelledBy) IsValid() bool {
	return c == CancelledByUser || c == CancelledByDriver || c == CancelledBySystem
}

// Location is a pickup or destination point.
type Location struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	PlaceID string  `json:"place_id,omitempty"`
}

// DriverInfo is the driver snapshot stored on a ride at assignment time.
type DriverInfo struct {
	DriverID string      `json:"driver_id"`
	Name     string      `json:"name"`
	Phone    string      `json:"phone"`
	Rating   float64     `json:"rating"`
	Vehicle  VehicleInfo `json:"vehicle"`
}

// FareBreakdown itemizes what a ride costs. All amounts are rounded to 2 decimals.
type FareBreakdown struct {
	BaseFare             float64 `json:"base_fare"`
	DistanceFare         float64 `json:"distance_fare"`
	TimeFare             float64 `json:"time_fare"`
	SurgePricing         float64 `json:"surge_pricing"`
	Discount             float64 `json:"discount"`
	SubscriptionDiscount float64 `json:"subscription_discount"`
	Taxes                float64 `json:"taxes"`
	Tip                  float64 `json:"tip"`
	Total                float64 `json:"total"`
}

// EcoImpact is the environmental saving attributed to a ride.
type EcoImpact struct {
	CO2Saved        float64 `json:"co2_saved"`
	TreesEquivalent float64 `json:"trees_equivalent"`
	FuelSaved       float64 `json:"fuel_saved"`
}

// RoutePoint is a single location ping.
type RoutePoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracking holds the live and historical position data of a ride.
type Tracking struct {
	DriverLocation   *RoutePoint  `json:"driver_location,omitempty"`
	EstimatedArrival *time.Time   `json:"estimated_arrival,omitempty"`
	ActualArrival    *time.Time   `json:"actual_arrival,omitempty"`
	RideStarted      *time.Time   `json:"ride_started,omitempty"`
	RideCompleted    *time.Time   `json:"ride_completed,omitempty"`
	Route            []RoutePoint `json:"route"`
}

// Rating is feedback left by one party after a ride.
type Rating struct {
	Score     int       `json:"score"`
	Feedback  string    `json:"feedback,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EmergencyContact is someone to reach during an SOS.
type EmergencyContact struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Relation string `json:"relation,omitempty"`
}

// Safety holds SOS state for a ride.
type Safety struct {
	SOSActivated      bool               `json:"sos_activated"`
	SOSActivatedAt    *time.Time         `json:"sos_activated_at,omitempty"`
	EmergencyContacts []EmergencyContact `json:"emergency_contacts,omitempty"`
}

// Cancellation records why and by whom a ride was cancelled.
type Cancellation struct {
	Reason string      `json:"reason"`
	By     CancelledBy `json:"by"`
	Fee    float64     `json:"fee"`
}

// Ride represents a single trip from request to a terminal state.
type Ride struct {
	ID          string      `json:"id"`
	RiderID     string      `json:"rider_id"`
	Driver      *DriverInfo `json:"driver,omitempty"`
	Pickup      Location    `json:"pickup"`
	Destination Location    `json:"destination"`
	VehicleType VehicleType `json:"vehicle_type"`
	ServiceType ServiceType `json:"service_type"`
	Status      RideStatus  `json:"status"`

	// Distances are in kilometers and durations in minutes.
	EstimatedDistance float64  `json:"estimated_distance"`
	EstimatedDuration float64  `json:"estimated_duration"`
	ActualDistance    *float64 `json:"actual_distance,omitempty"`
	ActualDuration    *float64 `json:"actual_duration,omitempty"`

	Fare      FareBreakdown `json:"fare"`
	EcoImpact *EcoImpact    `json:"eco_impact,omitempty"`
	Tracking  Tracking      `json:"tracking"`

	PaymentStatus    PaymentStatus `json:"payment_status"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	PaymentReference string        `json:"payment_reference,omitempty"`

	RiderRating  *Rating       `json:"rider_rating,omitempty"`
	DriverRating *Rating       `json:"driver_rating,omitempty"`
	Safety       Safety        `json:"safety"`
	Cancellation *Cancellation `json:"cancellation,omitempty"`

	FailureReason string `json:"failure_reason,omitempty"`

	RequestedAt  time.Time  `json:"requested_at"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Version is bumped by the store on every successful update.
	Version int64 `json:"version"`
}

// IsActive reports whether the ride holds a non-terminal status.
func (r *Ride) IsActive() bool {
	return !r.Status.IsTerminal()
}

// Clone returns a deep copy so that a failed operation never leaks partial state.
func (r *Ride) Clone() *Ride {
	c := *r
	if r.Driver != nil {
		d := *r.Driver
		c.Driver = &d
	}
	c.ActualDistance = cloneFloat(r.ActualDistance)
	c.ActualDuration = cloneFloat(r.ActualDuration)
	if r.EcoImpact != nil {
		e := *r.EcoImpact
		c.EcoImpact = &e
	}
	c.Tracking = Tracking{
		EstimatedArrival: cloneTime(r.Tracking.EstimatedArrival),
		ActualArrival:    cloneTime(r.Tracking.ActualArrival),
		RideStarted:      cloneTime(r.Tracking.RideStarted),
		RideCompleted:    cloneTime(r.Tracking.RideCompleted),
		Route:            cloneRoute(r.Tracking.Route),
	}
	if r.Tracking.DriverLocation != nil {
		p := *r.Tracking.DriverLocation
		c.Tracking.DriverLocation = &p
	}
	c.RiderRating = cloneRating(r.RiderRating)
	c.DriverRating = cloneRating(r.DriverRating)
	c.Safety = Safety{
		SOSActivated:      r.Safety.SOSActivated,
		SOSActivatedAt:    cloneTime(r.Safety.SOSActivatedAt),
		EmergencyContacts: append([]EmergencyContact(nil), r.Safety.EmergencyContacts...),
	}
	if r.Cancellation != nil {
		cc := *r.Cancellation
		c.Cancellation = &cc
	}
	c.ScheduledFor = cloneTime(r.ScheduledFor)
	c.CompletedAt = cloneTime(r.CompletedAt)
	return &c
}

// Transition moves the ride along the state machine and stamps the
// timestamps owned by the target state. Cancellation goes through Cancel.
func (r *Ride) Transition(to RideStatus, now time.Time) error {
	if !CanTransition(r.Status, to) {
		return &TransitionError{From: r.Status, To: to}
	}

	switch to {
	case RideStatusDriverAssigned:
		if r.Driver == nil {
			return &ValidationError{Field: "driver", Message: "driver info is required for assignment"}
		}
	case RideStatusCancelled:
		if r.Cancellation == nil {
			return &ValidationError{Field: "cancellation", Message: "cancellation reason and actor are required"}
		}
	}

	switch to {
	case RideStatusDriverArrived:
		r.Tracking.ActualArrival = timePtr(now)
	case RideStatusInProgress:
		r.Tracking.RideStarted = timePtr(now)
	case RideStatusCompleted:
		r.Tracking.RideCompleted = timePtr(now)
		r.CompletedAt = timePtr(now)
		r.PaymentStatus = PaymentStatusCompleted
	}

	r.Status = to
	r.UpdatedAt = now
	return nil
}

// AssignDriver snapshots the driver onto the ride and moves it to driver_assigned.
func (r *Ride) AssignDriver(info DriverInfo, now time.Time) error {
	if info.DriverID == "" {
		return &ValidationError{Field: "driver_id", Message: "is required"}
	}
	if info.Vehicle.Type != r.VehicleType {
		return &ValidationError{Field: "vehicle_type", Message: "driver vehicle does not match ride"}
	}
	if !CanTransition(r.Status, RideStatusDriverAssigned) {
		return &TransitionError{From: r.Status, To: RideStatusDriverAssigned}
	}
	r.Driver = &info
	return r.Transition(RideStatusDriverAssigned, now)
}

// Cancel records the cancellation and moves the ride to cancelled.
func (r *Ride) Cancel(reason string, by CancelledBy, fee float64, now time.Time) error {
	if reason == "" {
		return &ValidationError{Field: "reason", Message: "is required"}
	}
	if !by.IsValid() {
		return &ValidationError{Field: "cancelled_by", Message: "must be user, driver or system"}
	}
	if fee < 0 {
		return &ValidationError{Field: "fee", Message: "must not be negative"}
	}
	if !CanTransition(r.Status, RideStatusCancelled) {
		return &TransitionError{From: r.Status, To: RideStatusCancelled}
	}
	r.Cancellation = &Cancellation{Reason: reason, By: by, Fee: fee}
	return r.Transition(RideStatusCancelled, now)
}

// Fail moves the ride to failed and keeps the reason, which may be empty.
func (r *Ride) Fail(reason string, now time.Time) error {
	if err := r.Transition(RideStatusFailed, now); err != nil {
		return err
	}
	r.FailureReason = reason
	return nil
}

// RecordLocation appends a ping to the route trace and updates the driver position.
func (r *Ride) RecordLocation(p RoutePoint) error {
	if r.Status.IsTerminal() {
		return &TransitionError{From: r.Status, To: r.Status}
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return &ValidationError{Field: "location", Message: "coordinates out of range"}
	}
	r.Tracking.Route = append(r.Tracking.Route, p)
	last := p
	r.Tracking.DriverLocation = &last
	r.UpdatedAt = p.Timestamp
	return nil
}

// RatingParty is the side of the ride whose rating is being written.
type RatingParty string

const (
	RatingByRider  RatingParty = "rider"
	RatingByDriver RatingParty = "driver"
)

// Rate stores a post-ride rating. Each side may rate once.
func (r *Ride) Rate(party RatingParty, rating Rating) error {
	if rating.Score < 1 || rating.Score > 5 {
		return &ValidationError{Field: "score", Message: "must be between 1 and 5"}
	}
	if r.Status != RideStatusCompleted {
		return ErrRideNotCompleted
	}

	switch party {
	case RatingByRider:
		if r.RiderRating != nil {
			return ErrAlreadyRated
		}
		r.RiderRating = &rating
	case RatingByDriver:
		if r.DriverRating != nil {
			return ErrAlreadyRated
		}
		r.DriverRating = &rating
	default:
		return &ValidationError{Field: "party", Message: "must be rider or driver"}
	}
	r.UpdatedAt = rating.CreatedAt
	return nil
}

// ActivateSOS raises the SOS flag. It never changes the ride status.
func (r *Ride) ActivateSOS(contacts []EmergencyContact, now time.Time) {
	r.Safety.SOSActivated = true
	r.Safety.SOSActivatedAt = timePtr(now)
	r.Safety.EmergencyContacts = append([]EmergencyContact(nil), contacts...)
	r.UpdatedAt = now
}

// EcoStats aggregates eco impact over a rider's completed rides.
type EcoStats struct {
	TotalRides      int     `json:"total_rides"`
	TotalDistance   float64 `json:"total_distance"`
	CO2Saved        float64 `json:"co2_saved"`
	TreesEquivalent float64 `json:"trees_equivalent"`
	FuelSaved       float64 `json:"fuel_saved"`
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// cloneRoute keeps an empty route non-nil so it still encodes as [].
func cloneRoute(route []RoutePoint) []RoutePoint {
	if route == nil {
		return nil
	}
	c := make([]RoutePoint, len(route))
	copy(c, route)
	return c
}

func cloneRating(r *Rating) *Rating {
	if r == nil {
		return nil
	}
	c := *r
	c.Tags = append([]string(nil), r.Tags...)
	return &c
}
