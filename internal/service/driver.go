package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"ecoride/internal/domain"
	"ecoride/internal/redis"
	"ecoride/internal/repository"
)

// ErrInvalidLocation is returned when coordinates are out of range.
var ErrInvalidLocation = errors.New("invalid location coordinates")

// DriverService keeps driver availability and the location index in step.
type DriverService struct {
	locationStore redis.LocationStoreInterface
	driverRepo    repository.DriverRepository
	logger        logrus.FieldLogger
}

// NewDriverService creates a new DriverService.
func NewDriverService(
	locationStore redis.LocationStoreInterface,
	driverRepo repository.DriverRepository,
	logger logrus.FieldLogger,
) *DriverService {
	return &DriverService{
		locationStore: locationStore,
		driverRepo:    driverRepo,
		logger:        logger,
	}
}

// UpdateLocationRequest contains the parameters for updating driver location.
type UpdateLocationRequest struct {
	DriverID string
	Lat      float64
	Lng      float64
}

// UpdateLocation indexes a driver's position. An offline driver comes online;
// a driver on a trip keeps that status.
func (s *DriverService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) error {
	if req.DriverID == "" {
		return ErrInvalidDriverID
	}

	if !isValidLatitude(req.Lat) || !isValidLongitude(req.Lng) {
		return ErrInvalidLocation
	}

	driver, err := s.driverRepo.GetByID(ctx, req.DriverID)
	if err != nil {
		return err
	}

	if err := s.locationStore.UpdateLocation(ctx, req.DriverID, req.Lat, req.Lng); err != nil {
		return err
	}

	if driver.Status == domain.DriverStatusOffline {
		if err := s.driverRepo.UpdateStatus(ctx, req.DriverID, domain.DriverStatusOnline); err != nil {
			return err
		}
		s.logger.WithField("driver_id", req.DriverID).Info("driver online")
	}

	return nil
}

// SetDriverOffline marks a driver offline and drops them from the location index.
func (s *DriverService) SetDriverOffline(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}

	if err := s.driverRepo.UpdateStatus(ctx, driverID, domain.DriverStatusOffline); err != nil {
		return err
	}

	if err := s.locationStore.RemoveLocation(ctx, driverID); err != nil {
		return err
	}

	s.logger.WithField("driver_id", driverID).Info("driver offline")
	return nil
}
