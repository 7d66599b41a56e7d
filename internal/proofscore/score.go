// Package proofscore 计算凭证的信任分，纯函数，不依赖存储和当前时间。
//
// RarityWeight 返回的档位权重（common 0.2、rare 0.6、legendary 1.0）不直接进入分数。
// Calculate 先把它映射到 [0,1]：(w-0.2)/0.8，因此 common 贡献 0，rare 实际相当于 0.5，legendary 为 1。
// 这样最低输入（信誉 0、common、久未签到、连续 0 天）得 0，最高输入恰好是 100。
package proofscore

import (
	"math"
	"sort"
	"time"
)

const (
	weightReputation = 0.40
	weightRarity     = 0.30
	weightRecency    = 0.20
	weightStreak     = 0.10

	recencyHalfScaleDays = 30.0
	streakCapDays        = 30.0
)

var rarityWeights = map[string]float64{
	"common":    0.2,
	"rare":      0.6,
	"legendary": 1.0,
}

const (
	rarityFloor = 0.2
	rarityCeil  = 1.0
)

// Inputs 信任分输入
type Inputs struct {
	OrganizerRep       int    `json:"organizer_rep"`
	Rarity             string `json:"rarity"`
	DaysSinceLastProof int    `json:"days_since_last_proof"`
	StreakDays         int    `json:"streak_days"`
}

// RarityWeight 未知稀有度按最低档处理
func RarityWeight(rarity string) float64 {
	if w, ok := rarityWeights[rarity]; ok {
		return w
	}
	return rarityFloor
}

// Calculate 返回 [0,100] 的整数分
func Calculate(in Inputs) int {
	rep := clamp(float64(in.OrganizerRep), 0, 100) / 100

	// 稀有度在档位区间内归一化，最低档贡献为 0
	rarity := (RarityWeight(in.Rarity) - rarityFloor) / (rarityCeil - rarityFloor)

	days := math.Max(float64(in.DaysSinceLastProof), 0)
	recency := math.Min(math.Exp(-days/recencyHalfScaleDays), 1)

	streak := math.Min(math.Max(float64(in.StreakDays), 0)/streakCapDays, 1)

	sum := weightReputation*rep + weightRarity*rarity + weightRecency*recency + weightStreak*streak
	return int(clamp(math.Round(sum*100), 0, 100))
}

// DaysSince 两个时间点之间的整天数，last 晚于 asOf 时为 0
func DaysSince(last, asOf time.Time) int {
	if last.IsZero() || !asOf.After(last) {
		return 0
	}
	return int(asOf.Sub(last) / (24 * time.Hour))
}

// StreakDays 统计以最近一次证明为终点、按 UTC 自然日连续的天数
func StreakDays(proofs []time.Time) int {
	if len(proofs) == 0 {
		return 0
	}

	seen := make(map[time.Time]struct{}, len(proofs))
	days := make([]time.Time, 0, len(proofs))
	for _, p := range proofs {
		d := p.UTC().Truncate(24 * time.Hour)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	streak := 1
	for i := 1; i < len(days); i++ {
		if days[i-1].Sub(days[i]) != 24*time.Hour {
			break
		}
		streak++
	}
	return streak
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
