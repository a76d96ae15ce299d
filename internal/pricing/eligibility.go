package pricing

import (
	"time"

	"ecoride/internal/domain"
)

// EligibilityReason names the first rule a rider failed.
type EligibilityReason string

const (
	ReasonPlanInactive         EligibilityReason = "plan_inactive"
	ReasonVerificationRequired EligibilityReason = "verification_required"
	ReasonAgeRestricted        EligibilityReason = "age_restricted"
	ReasonNewUsersExcluded     EligibilityReason = "new_users_excluded"
)

// Eligibility is the outcome of CheckEligibility. Reason is empty when eligible.
type Eligibility struct {
	Eligible bool              `json:"eligible"`
	Reason   EligibilityReason `json:"reason,omitempty"`
}

// CheckEligibility decides whether a rider may buy a plan. An unknown date of
// birth skips the age rule.
func CheckEligibility(p *domain.SubscriptionPlan, rider *domain.Rider, completedRides int, now time.Time) Eligibility {
	if !p.Flags.Active {
		return Eligibility{Reason: ReasonPlanInactive}
	}

	rules := p.Eligibility
	if rules.RequiresVerification && !rider.PhoneVerified {
		return Eligibility{Reason: ReasonVerificationRequired}
	}

	if age, ok := rider.Age(now); ok {
		if (rules.MinAge > 0 && age < rules.MinAge) || (rules.MaxAge > 0 && age > rules.MaxAge) {
			return Eligibility{Reason: ReasonAgeRestricted}
		}
	}

	if rules.ExcludeNewUsers && completedRides == 0 {
		return Eligibility{Reason: ReasonNewUsersExcluded}
	}

	return Eligibility{Eligible: true}
}
