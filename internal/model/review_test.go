package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatingsValidate(t *testing.T) {
	assert.NoError(t, UniformRatings(5).Validate())
	assert.NoError(t, UniformRatings(1).Validate())

	r := UniformRatings(4)
	r.Sillage = 0
	assert.ErrorContains(t, r.Validate(), "sillage rating must be between 1 and 5")

	r = UniformRatings(4)
	r.Value = 6
	assert.ErrorContains(t, r.Validate(), "value rating")
}

func TestPlatformStatsKeys(t *testing.T) {
	stats := PlatformStats{"total_users": 3, "total_gmv_idr": 85_000, "halal_products": 4}
	assert.Equal(t, []string{"halal_products", "total_gmv_idr", "total_users"}, stats.Keys())
	assert.Empty(t, PlatformStats{}.Keys())
}
