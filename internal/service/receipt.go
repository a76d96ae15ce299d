package service

import (
	"fmt"
	"strings"
	"time"

	"ecoride/internal/domain"
)

const receiptRule = "-------------------------------------"

// FormatReceipt renders a ride's fare breakdown and eco impact as plain text.
func FormatReceipt(ride *domain.Ride) string {
	var b strings.Builder

	b.WriteString("=====================================\n")
	b.WriteString("            RIDE RECEIPT\n")
	b.WriteString("=====================================\n")
	fmt.Fprintf(&b, "Ride ID: %s\n", ride.ID)
	fmt.Fprintf(&b, "Date:    %s\n", ride.RequestedAt.Format("Jan 02, 2006 3:04 PM"))
	fmt.Fprintf(&b, "Status:  %s\n", ride.Status)

	b.WriteString("\nTRIP DETAILS\n" + receiptRule + "\n")
	fmt.Fprintf(&b, "Pickup:      %s\n", locationLabel(ride.Pickup))
	fmt.Fprintf(&b, "Destination: %s\n", locationLabel(ride.Destination))
	fmt.Fprintf(&b, "Vehicle:     %s (%s)\n", ride.VehicleType, ride.ServiceType)
	if ride.ActualDistance != nil {
		fmt.Fprintf(&b, "Distance:    %.2f km\n", *ride.ActualDistance)
	} else {
		fmt.Fprintf(&b, "Distance:    %.2f km (estimated)\n", ride.EstimatedDistance)
	}
	if ride.ActualDuration != nil {
		fmt.Fprintf(&b, "Duration:    %s\n", formatMinutes(*ride.ActualDuration))
	}
	if ride.Driver != nil {
		fmt.Fprintf(&b, "Driver:      %s (%s)\n", ride.Driver.Name, ride.Driver.Vehicle.PlateNumber)
	}

	f := ride.Fare
	b.WriteString("\nFARE BREAKDOWN\n" + receiptRule + "\n")
	writeAmount(&b, "Base Fare", f.BaseFare, false)
	writeAmount(&b, "Distance Fare", f.DistanceFare, false)
	writeAmount(&b, "Time Fare", f.TimeFare, false)
	writeAmount(&b, "Surge", f.SurgePricing, false)
	writeAmount(&b, "Taxes", f.Taxes, false)
	writeAmount(&b, "Tip", f.Tip, false)
	writeAmount(&b, "Discount", f.Discount, true)
	writeAmount(&b, "Subscription", f.SubscriptionDiscount, true)
	b.WriteString(receiptRule + "\n")
	fmt.Fprintf(&b, "%-18s%10.2f\n", "TOTAL", f.Total)
	if ride.Cancellation != nil {
		fmt.Fprintf(&b, "%-18s%10.2f\n", "Cancellation Fee", ride.Cancellation.Fee)
	}

	if eco := ride.EcoImpact; eco != nil {
		b.WriteString("\nECO IMPACT\n" + receiptRule + "\n")
		fmt.Fprintf(&b, "Fuel saved:  %.2f L\n", eco.FuelSaved)
		fmt.Fprintf(&b, "CO2 saved:   %.2f kg\n", eco.CO2Saved)
		fmt.Fprintf(&b, "Trees:       %.4f\n", eco.TreesEquivalent)
	}

	b.WriteString("\nPAYMENT\n" + receiptRule + "\n")
	fmt.Fprintf(&b, "Method: %s\n", ride.PaymentMethod)
	fmt.Fprintf(&b, "Status: %s\n", ride.PaymentStatus)
	b.WriteString("\n=====================================\n")
	b.WriteString("     Thank you for riding with us!\n")
	b.WriteString("=====================================\n")

	return b.String()
}

// writeAmount prints a fare line, skipping zero components.
func writeAmount(b *strings.Builder, label string, amount float64, deduction bool) {
	if amount == 0 {
		return
	}
	if deduction {
		amount = -amount
	}
	fmt.Fprintf(b, "%-18s%10.2f\n", label, amount)
}

func locationLabel(l domain.Location) string {
	if l.Address != "" {
		return l.Address
	}
	return fmt.Sprintf("(%.4f, %.4f)", l.Lat, l.Lng)
}

func formatMinutes(minutes float64) string {
	d := time.Duration(minutes * float64(time.Minute))
	return fmt.Sprintf("%d min", int(d.Round(time.Minute).Minutes()))
}
