package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoride/internal/domain"
	"ecoride/internal/pricing"
	"ecoride/internal/repository"
	"ecoride/internal/service"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeRideService records the last request and returns canned results.
// Methods a test does not set panic through the nil embedded interface.
type fakeRideService struct {
	RideLifecycle

	mu        sync.Mutex
	lastReq   any
	ride      *domain.Ride
	history   []service.HistoryEntry
	receipt   string
	err       error
	histLimit int
	histSkip  int
}

func (f *fakeRideService) record(req any) (*domain.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReq = req
	return f.ride, f.err
}

func (f *fakeRideService) CreateRide(_ context.Context, req service.CreateRideRequest) (*domain.Ride, error) {
	return f.record(req)
}

func (f *fakeRideService) GetRide(_ context.Context, rideID string) (*domain.Ride, error) {
	return f.record(rideID)
}

func (f *fakeRideService) AssignDriver(_ context.Context, rideID, driverID string) (*domain.Ride, error) {
	return f.record([2]string{rideID, driverID})
}

func (f *fakeRideService) CompleteRide(_ context.Context, req service.CompleteRideRequest) (*domain.Ride, error) {
	return f.record(req)
}

func (f *fakeRideService) CancelRide(_ context.Context, req service.CancelRideRequest) (*domain.Ride, error) {
	return f.record(req)
}

func (f *fakeRideService) RateRide(_ context.Context, req service.RateRideRequest) (*domain.Ride, error) {
	return f.record(req)
}

func (f *fakeRideService) GetActiveRide(_ context.Context, riderID string) (*domain.Ride, error) {
	return f.record(riderID)
}

func (f *fakeRideService) GetHistory(_ context.Context, _ string, limit, skip int) ([]service.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histLimit, f.histSkip = limit, skip
	return f.history, f.err
}

func (f *fakeRideService) Receipt(_ context.Context, rideID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReq = rideID
	return f.receipt, f.err
}

// fakePlanService returns canned plan results.
type fakePlanService struct {
	PlanCatalog

	mu         sync.Mutex
	lastCity   string
	lastVT     domain.VehicleType
	lastCoupon string
	plans      []*domain.SubscriptionPlan
	redemption *service.Redemption
	quote      *service.PlanQuote
	err        error
}

func (f *fakePlanService) ListAvailable(_ context.Context, city string, vt domain.VehicleType) ([]*domain.SubscriptionPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCity, f.lastVT = city, vt
	return f.plans, f.err
}

func (f *fakePlanService) RedeemDiscount(_ context.Context, _, coupon string, _ domain.PlanDuration) (*service.Redemption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCoupon = coupon
	return f.redemption, f.err
}

func (f *fakePlanService) Quote(_ context.Context, _ string, _ domain.PlanDuration) (*service.PlanQuote, error) {
	return f.quote, f.err
}

func (f *fakePlanService) CheckEligibility(_ context.Context, _, _ string) (pricing.Eligibility, error) {
	return pricing.Eligibility{Eligible: false, Reason: pricing.ReasonAgeRestricted}, f.err
}

// memRiderRepo is an in-memory repository.RiderRepository.
type memRiderRepo struct {
	mu     sync.RWMutex
	riders map[string]*domain.Rider
}

func newMemRiderRepo() *memRiderRepo {
	return &memRiderRepo{riders: make(map[string]*domain.Rider)}
}

func (r *memRiderRepo) Create(_ context.Context, rider *domain.Rider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.riders[rider.ID] = rider
	return nil
}

func (r *memRiderRepo) GetByID(_ context.Context, id string) (*domain.Rider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rider, ok := r.riders[id]; ok {
		return rider, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memRiderRepo) GetByPhone(_ context.Context, phone string) (*domain.Rider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rider := range r.riders {
		if rider.Phone == phone {
			return rider, nil
		}
	}
	return nil, repository.ErrNotFound
}

func newTestRouter(rides RideLifecycle, plans PlanCatalog, riders repository.RiderRepository) *gin.Engine {
	r := gin.New()
	rh := NewRideHandler(rides)
	ph := NewPlanHandler(plans)
	uh := NewRiderHandler(riders)

	r.POST("/v1/riders/register", uh.Register)
	r.GET("/v1/riders/:id", uh.GetRider)
	r.GET("/v1/riders/:id/rides", rh.GetHistory)
	r.GET("/v1/riders/:id/rides/active", rh.GetActiveRide)
	r.POST("/v1/rides", rh.CreateRide)
	r.GET("/v1/rides/:id", rh.GetRide)
	r.GET("/v1/rides/:id/receipt", rh.Receipt)
	r.POST("/v1/rides/:id/assign", rh.AssignDriver)
	r.POST("/v1/rides/:id/complete", rh.CompleteRide)
	r.POST("/v1/rides/:id/cancel", rh.CancelRide)
	r.POST("/v1/rides/:id/rating", rh.RateRide)
	r.GET("/v1/plans", ph.ListAvailable)
	r.GET("/v1/plans/:id/price", ph.Quote)
	r.GET("/v1/plans/:id/eligibility/:riderId", ph.CheckEligibility)
	r.POST("/v1/plans/:id/redeem", ph.RedeemDiscount)
	return r
}

func perform(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		err  error
		want int
	}{
		{repository.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("load ride: %w", repository.ErrNotFound), http.StatusNotFound},
		{&domain.ValidationError{Field: "score", Message: "must be between 1 and 5"}, http.StatusBadRequest},
		{service.ErrInvalidRiderID, http.StatusBadRequest},
		{service.ErrInvalidLocation, http.StatusBadRequest},
		{service.ErrInvalidCoupon, http.StatusBadRequest},
		{&domain.TransitionError{From: domain.RideStatusCompleted, To: domain.RideStatusSearching}, http.StatusConflict},
		{service.ErrActiveRideExists, http.StatusConflict},
		{service.ErrBookingInProgress, http.StatusConflict},
		{service.ErrDriverUnavailable, http.StatusConflict},
		{service.ErrAlreadyRated, http.StatusConflict},
		{service.ErrRideNotCompleted, http.StatusConflict},
		{repository.ErrConflict, http.StatusConflict},
		{service.ErrNoDiscount, http.StatusUnprocessableEntity},
		{service.ErrDiscountExpired, http.StatusUnprocessableEntity},
		{service.ErrRedemptionExhausted, http.StatusUnprocessableEntity},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.err.Error(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, mapErrorToHTTPStatus(tc.err))
		})
	}
}

func TestCreateRide_MapsRequest(t *testing.T) {
	t.Parallel()

	rides := &fakeRideService{ride: &domain.Ride{ID: "ride-1", Status: domain.RideStatusRequested}}
	r := newTestRouter(rides, &fakePlanService{}, newMemRiderRepo())

	w := perform(r, http.MethodPost, "/v1/rides", map[string]any{
		"rider_id":           "rider-1",
		"pickup":             map[string]any{"address": "Koramangala", "lat": 12.9352, "lng": 77.6245},
		"destination":        map[string]any{"address": "Indiranagar", "lat": 12.9784, "lng": 77.6408},
		"vehicle_type":       "car",
		"estimated_distance": 5.5,
		"estimated_duration": 18,
		"service_type":       "subscription",
		"payment_method":     "upi",
		"tip":                10,
	})

	require.Equal(t, http.StatusCreated, w.Code)
	req, ok := rides.lastReq.(service.CreateRideRequest)
	require.True(t, ok)
	assert.Equal(t, "rider-1", req.RiderID)
	assert.Equal(t, domain.VehicleTypeCar, req.VehicleType)
	assert.True(t, req.Subscription)
	assert.Equal(t, domain.PaymentMethodUPI, req.PaymentMethod)
	assert.Equal(t, 10.0, req.Adjustments.Tip)
	assert.Equal(t, "Indiranagar", req.Destination.Address)

	var ride domain.Ride
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ride))
	assert.Equal(t, "ride-1", ride.ID)
}

func TestCreateRide_RejectsBadInput(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		body any
	}{
		{"malformed json", "{"},
		{"unknown payment method", map[string]any{"rider_id": "rider-1", "payment_method": "cheque"}},
		{"unknown service type", map[string]any{"rider_id": "rider-1", "service_type": "pool"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rides := &fakeRideService{}
			r := newTestRouter(rides, &fakePlanService{}, newMemRiderRepo())

			w := perform(r, http.MethodPost, "/v1/rides", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Nil(t, rides.lastReq)
		})
	}
}

func TestRideHandler_ServiceErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		method    string
		path      string
		body      any
		err       error
		wantCode  int
		wantField string
	}{
		{
			name:     "second active ride",
			method:   http.MethodPost,
			path:     "/v1/rides",
			body:     map[string]any{"rider_id": "rider-1"},
			err:      service.ErrActiveRideExists,
			wantCode: http.StatusConflict,
		},
		{
			name:      "validation error carries field",
			method:    http.MethodPost,
			path:      "/v1/rides",
			body:      map[string]any{"rider_id": "rider-1"},
			err:       &domain.ValidationError{Field: "vehicle_type", Message: "must be bike or car"},
			wantCode:  http.StatusBadRequest,
			wantField: "vehicle_type",
		},
		{
			name:     "unknown ride",
			method:   http.MethodGet,
			path:     "/v1/rides/ghost",
			err:      repository.ErrNotFound,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "completing a ride that has not started",
			method:   http.MethodPost,
			path:     "/v1/rides/ride-1/complete",
			body:     ActualTripRequest{ActualDistance: 6, ActualDuration: 20},
			err:      &domain.TransitionError{From: domain.RideStatusSearching, To: domain.RideStatusCompleted},
			wantCode: http.StatusConflict,
		},
		{
			name:     "rating twice",
			method:   http.MethodPost,
			path:     "/v1/rides/ride-1/rating",
			body:     RateRideRequest{Party: "rider", Score: 5},
			err:      service.ErrAlreadyRated,
			wantCode: http.StatusConflict,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := newTestRouter(&fakeRideService{err: tc.err}, &fakePlanService{}, newMemRiderRepo())

			w := perform(r, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.wantCode, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tc.err.Error(), resp.Error)
			assert.Equal(t, tc.wantField, resp.Field)
		})
	}
}

func TestRideHandler_Mutations(t *testing.T) {
	t.Parallel()

	rides := &fakeRideService{ride: &domain.Ride{ID: "ride-1"}}
	r := newTestRouter(rides, &fakePlanService{}, newMemRiderRepo())

	w := perform(r, http.MethodPost, "/v1/rides/ride-1/assign", AssignDriverRequest{DriverID: "driver-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]string{"ride-1", "driver-1"}, rides.lastReq)

	w = perform(r, http.MethodPost, "/v1/rides/ride-1/complete", ActualTripRequest{ActualDistance: 6.2, ActualDuration: 21})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.CompleteRideRequest{RideID: "ride-1", ActualDistance: 6.2, ActualDuration: 21}, rides.lastReq)

	w = perform(r, http.MethodPost, "/v1/rides/ride-1/cancel", CancelRideRequest{Reason: "changed plans", Fee: 20})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.CancelRideRequest{
		RideID:      "ride-1",
		Reason:      "changed plans",
		CancelledBy: domain.CancelledByUser,
		Fee:         20,
	}, rides.lastReq)

	w = perform(r, http.MethodPost, "/v1/rides/ride-1/rating", RateRideRequest{Party: "driver", Score: 4, Tags: []string{"polite"}})
	require.Equal(t, http.StatusOK, w.Code)
	rate, ok := rides.lastReq.(service.RateRideRequest)
	require.True(t, ok)
	assert.Equal(t, domain.RatingByDriver, rate.Party)
	assert.Equal(t, 4, rate.Score)
}

func TestRideHandler_Queries(t *testing.T) {
	t.Parallel()

	t.Run("no active ride", func(t *testing.T) {
		t.Parallel()
		r := newTestRouter(&fakeRideService{}, &fakePlanService{}, newMemRiderRepo())

		w := perform(r, http.MethodGet, "/v1/riders/rider-1/rides/active", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("history paging", func(t *testing.T) {
		t.Parallel()
		rides := &fakeRideService{history: []service.HistoryEntry{
			{Ride: &domain.Ride{ID: "ride-2"}, DriverName: "Ravi", DriverRating: 4.8},
		}}
		r := newTestRouter(rides, &fakePlanService{}, newMemRiderRepo())

		w := perform(r, http.MethodGet, "/v1/riders/rider-1/rides?limit=5&skip=10", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 5, rides.histLimit)
		assert.Equal(t, 10, rides.histSkip)

		var items []HistoryItem
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
		require.Len(t, items, 1)
		assert.Equal(t, "Ravi", items[0].DriverName)
		assert.Equal(t, "ride-2", items[0].Ride.ID)

		w = perform(r, http.MethodGet, "/v1/riders/rider-1/rides?limit=ten", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("receipt is plain text", func(t *testing.T) {
		t.Parallel()
		rides := &fakeRideService{receipt: "EcoRide receipt\nTotal: 42.00\n"}
		r := newTestRouter(rides, &fakePlanService{}, newMemRiderRepo())

		w := perform(r, http.MethodGet, "/v1/rides/ride-1/receipt", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
		assert.Equal(t, "EcoRide receipt\nTotal: 42.00\n", w.Body.String())
	})
}

func TestPlanHandler(t *testing.T) {
	t.Parallel()

	t.Run("list passes filters", func(t *testing.T) {
		t.Parallel()
		plans := &fakePlanService{plans: []*domain.SubscriptionPlan{{ID: "bike_499_1"}}}
		r := newTestRouter(&fakeRideService{}, plans, newMemRiderRepo())

		w := perform(r, http.MethodGet, "/v1/plans?city=Bengaluru&vehicle_type=bike", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Bengaluru", plans.lastCity)
		assert.Equal(t, domain.VehicleTypeBike, plans.lastVT)
	})

	t.Run("redeem", func(t *testing.T) {
		t.Parallel()
		plans := &fakePlanService{redemption: &service.Redemption{PlanID: "car_999_1", Price: 799.2}}
		r := newTestRouter(&fakeRideService{}, plans, newMemRiderRepo())

		w := perform(r, http.MethodPost, "/v1/plans/car_999_1/redeem", RedeemRequest{CouponCode: "eco20"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "eco20", plans.lastCoupon)

		var got service.Redemption
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, 799.2, got.Price)
	})

	t.Run("redeem soft errors", func(t *testing.T) {
		t.Parallel()
		for err, code := range map[error]int{
			service.ErrRedemptionExhausted: http.StatusUnprocessableEntity,
			service.ErrDiscountExpired:     http.StatusUnprocessableEntity,
			service.ErrInvalidCoupon:       http.StatusBadRequest,
		} {
			r := newTestRouter(&fakeRideService{}, &fakePlanService{err: err}, newMemRiderRepo())
			w := perform(r, http.MethodPost, "/v1/plans/car_999_1/redeem", nil)
			assert.Equal(t, code, w.Code, err.Error())
		}
	})

	t.Run("eligibility is never an error", func(t *testing.T) {
		t.Parallel()
		r := newTestRouter(&fakeRideService{}, &fakePlanService{}, newMemRiderRepo())

		w := perform(r, http.MethodGet, "/v1/plans/car_999_1/eligibility/rider-1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"eligible":false,"reason":"age_restricted"}`, w.Body.String())
	})
}

func TestRiderHandler_Register(t *testing.T) {
	t.Parallel()

	riders := newMemRiderRepo()
	r := newTestRouter(&fakeRideService{}, &fakePlanService{}, riders)

	w := perform(r, http.MethodPost, "/v1/riders/register", RegisterRiderRequest{
		Name:          "Asha",
		Phone:         "+919800000001",
		PhoneVerified: true,
		DateOfBirth:   "1995-06-15",
		City:          "Bengaluru",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created RiderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "1995-06-15", created.DateOfBirth)

	stored, err := riders.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DateOfBirth)
	assert.Equal(t, time.Date(1995, 6, 15, 0, 0, 0, 0, time.UTC), *stored.DateOfBirth)
	assert.True(t, stored.PhoneVerified)

	w = perform(r, http.MethodPost, "/v1/riders/register", RegisterRiderRequest{Name: "Asha", Phone: "+919800000001"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = perform(r, http.MethodPost, "/v1/riders/register", RegisterRiderRequest{Name: "Kiran", Phone: "+919800000002", DateOfBirth: "15/06/1995"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodGet, "/v1/riders/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = perform(r, http.MethodGet, "/v1/riders/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
