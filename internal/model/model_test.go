package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUserLocation_OverlapsWith(t *testing.T) {
	t.Parallel()
	base := UserLocation{Start: time.Unix(100, 0), End: time.Unix(200, 0)}

	cases := []struct {
		name     string
		s, e     time.Time
		overlaps bool
	}{
		{"entirely before", time.Unix(0, 0), time.Unix(50, 0), false},
		{"entirely after", time.Unix(300, 0), time.Unix(400, 0), false},
		{"fully contains", time.Unix(0, 0), time.Unix(500, 0), true},
		{"fully contained", time.Unix(120, 0), time.Unix(150, 0), true},
		{"overlaps start edge", time.Unix(50, 0), time.Unix(100, 0), true},
		{"overlaps end edge", time.Unix(200, 0), time.Unix(250, 0), true},
		{"touches start exactly", time.Unix(50, 0), time.Unix(100, 0), true},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, c.overlaps, base.OverlapsWith(c.s, c.e))
		})
	}
}

func TestUID_IsZero(t *testing.T) {
	t.Parallel()
	var zero UID
	require.True(t, zero.IsZero())
	require.False(t, UID{1}.IsZero())
}

func TestObservation_Resolved(t *testing.T) {
	t.Parallel()
	obs := Observation{}
	require.False(t, obs.Resolved())
	uid := UID{9}
	obs.ResolvedUID = &uid
	require.True(t, obs.Resolved())
}
