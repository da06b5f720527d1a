package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressFor(t *testing.T) {
	tests := []struct {
		points int
		tier   string
		next   string
		toNext int
	}{
		{0, "Recruit", "Private", 50},
		{-5, "Recruit", "Private", 50},
		{49, "Recruit", "Private", 1},
		{50, "Private", "Corporal", 100},
		{299, "Corporal", "Sergeant", 1},
		{1000, "Captain", "Major", 500},
		{3999, "Colonel", "General", 1},
	}
	for _, tt := range tests {
		p := ProgressFor(tt.points)
		assert.Equal(t, tt.tier, p.Tier.Name, "points %d", tt.points)
		require.NotNil(t, p.Next, "points %d", tt.points)
		assert.Equal(t, tt.next, p.Next.Name)
		assert.Equal(t, tt.toNext, p.PointsToNext)
	}
}

func TestProgressForTopTier(t *testing.T) {
	p := ProgressFor(10000)
	assert.Equal(t, "General", p.Tier.Name)
	assert.Nil(t, p.Next)
	assert.Zero(t, p.PointsToNext)
}

func TestTiersAscending(t *testing.T) {
	for i := 1; i < len(Tiers); i++ {
		assert.Greater(t, Tiers[i].MinPoints, Tiers[i-1].MinPoints)
	}
	assert.Zero(t, Tiers[0].MinPoints)
}

func TestCatalog(t *testing.T) {
	seen := make(map[string]bool)
	for _, a := range Catalog {
		assert.False(t, seen[a.Code], "duplicate %s", a.Code)
		seen[a.Code] = true
		assert.Positive(t, a.Points)
		assert.NotEmpty(t, a.Name)
	}

	a, ok := Lookup(ProlificWriter)
	require.True(t, ok)
	assert.Equal(t, "Prolific Writer", a.Name)

	_, ok = Lookup("sharpshooter")
	assert.False(t, ok)
}

func TestInCatalogOrder(t *testing.T) {
	now := time.Now()
	got := inCatalogOrder(map[string]time.Time{
		FirstGeneration: now,
		FirstScript:     now.Add(time.Hour),
		"retired_code":  now,
	})
	require.Len(t, got, 2)
	assert.Equal(t, FirstScript, got[0].Code)
	assert.Equal(t, FirstGeneration, got[1].Code)
}
