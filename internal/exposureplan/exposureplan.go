// Package exposureplan maps a task's listing plan to the fee snapshotted on the
// publish transaction record.
package exposureplan

const (
	PLAN_STANDARD     = "standard"
	PLAN_TIMED        = "timed"
	PLAN_GOLDEN       = "golden"
	PLAN_TIMED_GOLDEN = "timedGolden"
)

var prices = map[string]int64{
	PLAN_STANDARD:     0,
	PLAN_TIMED:        50,
	PLAN_GOLDEN:       100,
	PLAN_TIMED_GOLDEN: 150,
}

// Price returns the listing fee for a plan. Unknown plans cost nothing rather than
// failing the publish, matching how the original treated missing plans.
func Price(plan string) int64 {
	return prices[plan]
}
