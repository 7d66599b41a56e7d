package proofscore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCalculate_Bounds(t *testing.T) {
	require.Equal(t, 100, Calculate(Inputs{OrganizerRep: 100, Rarity: "legendary", DaysSinceLastProof: 0, StreakDays: 30}))
	require.Equal(t, 0, Calculate(Inputs{OrganizerRep: 0, Rarity: "common", DaysSinceLastProof: 1000, StreakDays: 0}))
}

func TestCalculate_Table(t *testing.T) {
	cases := []struct {
		name string
		in   Inputs
		want int
	}{
		// 40*0.5 + 30*0.5 + 20*1 + 10*0.5
		{"mid", Inputs{OrganizerRep: 50, Rarity: "rare", DaysSinceLastProof: 0, StreakDays: 15}, 60},
		{"unknown rarity is lowest tier", Inputs{OrganizerRep: 0, Rarity: "mythic", DaysSinceLastProof: 1000}, 0},
		{"empty rarity is lowest tier", Inputs{OrganizerRep: 100, DaysSinceLastProof: 1000}, 40},
		{"reputation clamped", Inputs{OrganizerRep: 250, Rarity: "legendary", StreakDays: 30}, 100},
		{"negative inputs clamped", Inputs{OrganizerRep: -5, Rarity: "common", DaysSinceLastProof: -3, StreakDays: -1}, 20},
		{"streak capped", Inputs{Rarity: "common", DaysSinceLastProof: 1000, StreakDays: 365}, 10},
		// rare 的档位权重是 0.6，折算后只贡献 30*0.5
		{"rare rarity term rescaled", Inputs{Rarity: "rare", DaysSinceLastProof: 1000}, 15},
		{"legendary rarity term", Inputs{Rarity: "legendary", DaysSinceLastProof: 1000}, 30},
		// e^-1 * 20 = 7.36
		{"recency decay", Inputs{Rarity: "common", DaysSinceLastProof: 30}, 7},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Calculate(tc.in))
		})
	}
}

func TestCalculate_Deterministic(t *testing.T) {
	in := Inputs{OrganizerRep: 73, Rarity: "rare", DaysSinceLastProof: 4, StreakDays: 9}
	first := Calculate(in)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, Calculate(in))
	}
}

func TestStreakDays(t *testing.T) {
	day := func(d int, hour int) time.Time {
		return time.Date(2025, 3, d, hour, 0, 0, 0, time.UTC)
	}

	require.Equal(t, 0, StreakDays(nil))
	require.Equal(t, 1, StreakDays([]time.Time{day(10, 9)}))
	require.Equal(t, 3, StreakDays([]time.Time{day(10, 9), day(9, 23), day(8, 1), day(8, 5)}))
	// 9 号断档
	require.Equal(t, 1, StreakDays([]time.Time{day(10, 9), day(8, 1)}))
	// 乱序输入
	require.Equal(t, 2, StreakDays([]time.Time{day(5, 1), day(11, 2), day(10, 3)}))
}

func TestDaysSince(t *testing.T) {
	asOf := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	require.Equal(t, 0, DaysSince(time.Time{}, asOf))
	require.Equal(t, 0, DaysSince(asOf.Add(time.Hour), asOf))
	require.Equal(t, 2, DaysSince(asOf.Add(-50*time.Hour), asOf))
}
