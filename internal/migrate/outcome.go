package migrate

import (
	"fmt"
)

// Outcome is the three-valued result of one job tick. Skipped covers both the
// feature flag being off and losing the lock race; neither is an error.
type Outcome string

// Tick outcomes
const (
	OutcomeSkipped Outcome = "skipped"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// DiscoveryResult reports one discovery tick
type DiscoveryResult struct {
	Outcome  Outcome `json:"outcome"`
	Inserted int     `json:"inserted"`
}

// MigrationResult reports one migration tick
type MigrationResult struct {
	Outcome           Outcome `json:"outcome"`
	Processed         int     `json:"processed"`
	Completed         int     `json:"completed"`
	Failed            int     `json:"failed"`
	PermanentlyFailed int     `json:"permanently_failed"`
}

// LockName returns the tenant's migration lock name. Discovery and migration
// share one name so the two jobs are mutually exclusive with each other, not
// just with overlapping invocations of themselves.
func LockName(tenantID string) string {
	return fmt.Sprintf("index-migration:%s", tenantID)
}
