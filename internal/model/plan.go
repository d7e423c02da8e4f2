package model

import (
	"fmt"
	"time"
)

// Plan is a subscription tier.
type Plan string

const (
	PlanFree        Plan = "free"
	PlanPremium     Plan = "premium"
	PlanPremiumPlus Plan = "premiumPlus"
)

// ValidPlans lists all plans from lowest to highest tier.
var ValidPlans = []Plan{PlanFree, PlanPremium, PlanPremiumPlus}

// IsValid checks if the plan is known.
func (p Plan) IsValid() bool {
	return p == PlanFree || p == PlanPremium || p == PlanPremiumPlus
}

// IsPaid reports whether the plan is a paid tier.
func (p Plan) IsPaid() bool {
	return p == PlanPremium || p == PlanPremiumPlus
}

// Feature is a metered action.
type Feature string

const (
	FeatureMessageSent      Feature = "message_sent"
	FeatureInterestSent     Feature = "interest_sent"
	FeatureProfileView      Feature = "profile_view"
	FeatureSearchPerformed  Feature = "search_performed"
	FeatureProfileBoostUsed Feature = "profile_boost_used"
)

// ValidFeatures lists all metered features in display order.
var ValidFeatures = []Feature{
	FeatureMessageSent,
	FeatureInterestSent,
	FeatureProfileView,
	FeatureSearchPerformed,
	FeatureProfileBoostUsed,
}

// ParseFeature validates a feature name.
func ParseFeature(s string) (Feature, error) {
	for _, f := range ValidFeatures {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown feature %q", s)
}

// Period is the window a usage counter covers.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
)

// Unlimited marks a feature without a cap.
const Unlimited = -1

// FeatureLimit is the cap for one feature in one period.
type FeatureLimit struct {
	Limit  int
	Period Period
}

// IsUnlimited reports whether the limit is uncapped.
func (l FeatureLimit) IsUnlimited() bool {
	return l.Limit < 0
}

// PlanLimits holds metered quotas and static entitlements of a plan.
type PlanLimits struct {
	Features          map[Feature]FeatureLimit
	ShortlistCapacity int
	DailyQuickPicks   int
	CanSeeViewers     bool
	CanHideFromFree   bool
}

var planLimits = map[Plan]PlanLimits{
	PlanFree: {
		Features: map[Feature]FeatureLimit{
			FeatureMessageSent:      {Limit: 20, Period: PeriodMonthly},
			FeatureInterestSent:     {Limit: 5, Period: PeriodDaily},
			FeatureProfileView:      {Limit: 50, Period: PeriodMonthly},
			FeatureSearchPerformed:  {Limit: 50, Period: PeriodMonthly},
			FeatureProfileBoostUsed: {Limit: 0, Period: PeriodMonthly},
		},
		ShortlistCapacity: 20,
		DailyQuickPicks:   5,
	},
	PlanPremium: {
		Features: map[Feature]FeatureLimit{
			FeatureMessageSent:      {Limit: Unlimited, Period: PeriodMonthly},
			FeatureInterestSent:     {Limit: 50, Period: PeriodDaily},
			FeatureProfileView:      {Limit: Unlimited, Period: PeriodMonthly},
			FeatureSearchPerformed:  {Limit: Unlimited, Period: PeriodMonthly},
			FeatureProfileBoostUsed: {Limit: 1, Period: PeriodMonthly},
		},
		ShortlistCapacity: 200,
		DailyQuickPicks:   20,
		CanHideFromFree:   true,
	},
	PlanPremiumPlus: {
		Features: map[Feature]FeatureLimit{
			FeatureMessageSent:      {Limit: Unlimited, Period: PeriodMonthly},
			FeatureInterestSent:     {Limit: Unlimited, Period: PeriodDaily},
			FeatureProfileView:      {Limit: Unlimited, Period: PeriodMonthly},
			FeatureSearchPerformed:  {Limit: Unlimited, Period: PeriodMonthly},
			FeatureProfileBoostUsed: {Limit: 5, Period: PeriodMonthly},
		},
		ShortlistCapacity: Unlimited,
		DailyQuickPicks:   40,
		CanSeeViewers:     true,
		CanHideFromFree:   true,
	},
}

// LimitsFor returns the limits of a plan. Unknown plans get free limits.
func LimitsFor(plan Plan) PlanLimits {
	if limits, ok := planLimits[plan]; ok {
		return limits
	}
	return planLimits[PlanFree]
}

// LimitFor returns the quota of one feature under a plan.
func LimitFor(plan Plan, feature Feature) FeatureLimit {
	limits := LimitsFor(plan)
	if l, ok := limits.Features[feature]; ok {
		return l
	}
	return FeatureLimit{Limit: 0, Period: PeriodMonthly}
}

// PeriodStart returns the UTC start of the period containing now.
func PeriodStart(period Period, now time.Time) time.Time {
	now = now.UTC()
	if period == PeriodDaily {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PeriodEnd returns the UTC start of the next period, i.e. the reset time.
func PeriodEnd(period Period, now time.Time) time.Time {
	start := PeriodStart(period, now)
	if period == PeriodDaily {
		return start.AddDate(0, 0, 1)
	}
	return start.AddDate(0, 1, 0)
}
