package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeValues(t *testing.T) {
	assert.Equal(t, "skipped", string(OutcomeSkipped))
	assert.Equal(t, "success", string(OutcomeSuccess))
	assert.Equal(t, "failure", string(OutcomeFailure))
}

func TestLockName(t *testing.T) {
	assert.Equal(t, "index-migration:tenant-a", LockName("tenant-a"))
	assert.Equal(t, "index-migration:acme-prod", LockName("acme-prod"))
}
