package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ecoride/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationDriverAssigned NotificationType = "DRIVER_ASSIGNED"
	NotificationRideCompleted  NotificationType = "RIDE_COMPLETED"
	NotificationRideCancelled  NotificationType = "RIDE_CANCELLED"
	NotificationSOSActivated   NotificationType = "SOS_ACTIVATED"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type        NotificationType
	RecipientID string
	Title       string
	Message     string
	Data        map[string]interface{}
	CreatedAt   time.Time
}

// Notifier delivers ride events to riders, drivers and emergency contacts.
// Delivery failures never affect the ride.
type Notifier interface {
	NotifyDriverAssigned(ctx context.Context, ride *domain.Ride) error
	NotifyRideCompleted(ctx context.Context, ride *domain.Ride) error
	NotifyRideCancelled(ctx context.Context, ride *domain.Ride) error
	NotifySOS(ctx context.Context, ride *domain.Ride) error
}

var _ Notifier = (*NotificationService)(nil)

// NotificationService writes notifications to the structured log. Push and SMS
// providers plug in behind Notifier.
type NotificationService struct {
	logger logrus.FieldLogger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(logger logrus.FieldLogger) *NotificationService {
	return &NotificationService{logger: logger}
}

// NotifyDriverAssigned tells the rider who is coming.
func (s *NotificationService) NotifyDriverAssigned(ctx context.Context, ride *domain.Ride) error {
	if ride.Driver == nil {
		return nil
	}
	return s.send(ctx, Notification{
		Type:        NotificationDriverAssigned,
		RecipientID: ride.RiderID,
		Title:       "Driver Assigned",
		Message:     fmt.Sprintf("%s is on the way in a %s %s", ride.Driver.Name, ride.Driver.Vehicle.Color, ride.Driver.Vehicle.Model),
		Data: map[string]interface{}{
			"ride_id":      ride.ID,
			"driver_id":    ride.Driver.DriverID,
			"plate_number": ride.Driver.Vehicle.PlateNumber,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyRideCompleted sends the fare and eco summary to the rider.
func (s *NotificationService) NotifyRideCompleted(ctx context.Context, ride *domain.Ride) error {
	data := map[string]interface{}{
		"ride_id": ride.ID,
		"total":   ride.Fare.Total,
	}
	message := fmt.Sprintf("Your ride has ended. Total fare: %.2f", ride.Fare.Total)
	if ride.EcoImpact != nil {
		data["co2_saved"] = ride.EcoImpact.CO2Saved
		message += fmt.Sprintf(". You saved %.2f kg of CO2", ride.EcoImpact.CO2Saved)
	}
	return s.send(ctx, Notification{
		Type:        NotificationRideCompleted,
		RecipientID: ride.RiderID,
		Title:       "Ride Completed",
		Message:     message,
		Data:        data,
		CreatedAt:   time.Now(),
	})
}

// NotifyRideCancelled notifies the party that did not cancel.
func (s *NotificationService) NotifyRideCancelled(ctx context.Context, ride *domain.Ride) error {
	if ride.Cancellation == nil {
		return nil
	}

	recipientID := ride.RiderID
	message := "Your ride has been cancelled"
	if ride.Cancellation.By == domain.CancelledByUser {
		if ride.Driver == nil {
			return nil // No one to notify
		}
		recipientID = ride.Driver.DriverID
		message = "The rider has cancelled the ride"
	}

	return s.send(ctx, Notification{
		Type:        NotificationRideCancelled,
		RecipientID: recipientID,
		Title:       "Ride Cancelled",
		Message:     message,
		Data: map[string]interface{}{
			"ride_id":      ride.ID,
			"cancelled_by": ride.Cancellation.By,
			"reason":       ride.Cancellation.Reason,
			"fee":          ride.Cancellation.Fee,
		},
		CreatedAt: time.Now(),
	})
}

// NotifySOS alerts every emergency contact on the ride.
func (s *NotificationService) NotifySOS(ctx context.Context, ride *domain.Ride) error {
	for _, contact := range ride.Safety.EmergencyContacts {
		data := map[string]interface{}{
			"ride_id":  ride.ID,
			"rider_id": ride.RiderID,
		}
		if loc := ride.Tracking.DriverLocation; loc != nil {
			data["lat"] = loc.Lat
			data["lng"] = loc.Lng
		}
		if err := s.send(ctx, Notification{
			Type:        NotificationSOSActivated,
			RecipientID: contact.Phone,
			Title:       "SOS Alert",
			Message:     fmt.Sprintf("%s, an SOS was raised on a ride you are listed for", contact.Name),
			Data:        data,
			CreatedAt:   time.Now(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// send delivers a notification by logging it.
func (s *NotificationService) send(_ context.Context, n Notification) error {
	entry := s.logger.WithFields(logrus.Fields{
		"notification": n.Type,
		"recipient":    n.RecipientID,
		"title":        n.Title,
	})
	for k, v := range n.Data {
		entry = entry.WithField(k, v)
	}

	if n.Type == NotificationSOSActivated {
		entry.Warn(n.Message)
		return nil
	}
	entry.Info(n.Message)
	return nil
}
