package service

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"ecoride/internal/domain"
	"ecoride/internal/redis"
	"ecoride/internal/repository"
)

// SurgeService prices demand against supply near a pickup point.
// It never applies to subscription rides.
type SurgeService struct {
	locationStore redis.LocationStoreInterface
	rideRepo      repository.RideRepository
	config        SurgeConfig
	logger        logrus.FieldLogger
}

// NewSurgeService creates a new SurgeService.
func NewSurgeService(
	locationStore redis.LocationStoreInterface,
	rideRepo repository.RideRepository,
	config SurgeConfig,
	logger logrus.FieldLogger,
) *SurgeService {
	return &SurgeService{
		locationStore: locationStore,
		rideRepo:      rideRepo,
		config:        config,
		logger:        logger,
	}
}

// SurgeConfig contains surge pricing configuration.
type SurgeConfig struct {
	RadiusKm       float64 // Radius to check for supply/demand
	LowSurgeRatio  float64 // Demand/supply ratio for 1.25x surge
	MedSurgeRatio  float64 // Demand/supply ratio for 1.5x surge
	HighSurgeRatio float64 // Demand/supply ratio for MaxSurge
	MaxSurge       float64
	ScanLimit      int // Active rides considered for demand
}

// DefaultSurgeConfig returns the default surge configuration.
func DefaultSurgeConfig() SurgeConfig {
	return SurgeConfig{
		RadiusKm:       5.0,
		LowSurgeRatio:  1.2,
		MedSurgeRatio:  1.5,
		HighSurgeRatio: 2.0,
		MaxSurge:       2.0,
		ScanLimit:      500,
	}
}

// Amount returns the surge component for a fare whose base and distance
// portion is baseAndDistance, plus the multiplier used.
func (s *SurgeService) Amount(ctx context.Context, pickup domain.Location, baseAndDistance float64) (float64, float64) {
	multiplier := s.GetMultiplier(ctx, pickup.Lat, pickup.Lng)
	return (multiplier - 1) * baseAndDistance, multiplier
}

// GetMultiplier calculates the surge multiplier for a given location.
// Returns 1.0 if no surge, up to MaxSurge if demand is high.
func (s *SurgeService) GetMultiplier(ctx context.Context, lat, lng float64) float64 {
	supply := s.countDriversInArea(ctx, lat, lng)
	demand := s.countActiveRequestsInArea(ctx, lat, lng)
	return calculateSurgeMultiplier(supply, demand, s.config)
}

// countDriversInArea returns the number of indexed drivers within radius.
// Lookup errors report ample supply so a Redis outage never inflates fares.
func (s *SurgeService) countDriversInArea(ctx context.Context, lat, lng float64) int {
	drivers, err := s.locationStore.FindNearbyDrivers(ctx, lat, lng, s.config.RadiusKm)
	if err != nil {
		s.logger.WithError(err).Warn("surge supply lookup failed")
		return math.MaxInt32
	}
	return len(drivers)
}

// countActiveRequestsInArea returns the number of non-terminal rides picked up within radius.
func (s *SurgeService) countActiveRequestsInArea(ctx context.Context, lat, lng float64) int {
	rides, err := s.rideRepo.ListActive(ctx, s.config.ScanLimit)
	if err != nil {
		s.logger.WithError(err).Warn("surge demand lookup failed")
		return 0
	}

	count := 0
	for _, ride := range rides {
		if haversineKm(lat, lng, ride.Pickup.Lat, ride.Pickup.Lng) <= s.config.RadiusKm {
			count++
		}
	}
	return count
}

// calculateSurgeMultiplier determines the multiplier based on supply/demand ratio.
func calculateSurgeMultiplier(supply, demand int, config SurgeConfig) float64 {
	if supply == 0 {
		if demand > 0 {
			return config.MaxSurge
		}
		return 1.0
	}

	ratio := float64(demand) / float64(supply)

	switch {
	case ratio >= config.HighSurgeRatio:
		return config.MaxSurge
	case ratio >= config.MedSurgeRatio:
		return 1.5
	case ratio >= config.LowSurgeRatio:
		return 1.25
	default:
		return 1.0
	}
}

const earthRadiusKm = 6371.0

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
