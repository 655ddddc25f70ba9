package journey

import (
	"TournamentSync/internal/repository"
)

// StatDelta 单个选手的补偿增量：回冲按子航段逐场入库时的重复计数。
// 父记录代表一场锦标赛，选手打了 N 个航段就被多计了 N-1 场；
// 晋级续打不花钱，但逐场入库时按上一航段的买入成本被重复计了支出。
type StatDelta struct {
	PlayerID               string
	OverCountedGames       int64
	OverCountedBuyInAmount int64
}

// ComputeDelta 从旅程计算补偿增量；单航段旅程无重复计数，返回 (zero, false)。
func ComputeDelta(j *PlayerJourney) (StatDelta, bool) {
	if len(j.Entries) <= 1 {
		return StatDelta{}, false
	}
	d := StatDelta{
		PlayerID:         j.PlayerID,
		OverCountedGames: int64(len(j.Entries) - 1),
	}
	for i, e := range j.Entries {
		if e.IsBuyIn || i == 0 {
			continue
		}
		// 非买入航段按上一航段成本计回冲额
		prev := j.Entries[i-1]
		d.OverCountedBuyInAmount += prev.Game.BuyIn + prev.Game.Rake
	}
	return d, true
}

// LifetimeDelta 生涯统计的有符号增量（负数回冲场次与支出，净结余反向补回）
func (d StatDelta) LifetimeDelta() repository.LifetimeDelta {
	return repository.LifetimeDelta{
		TournamentsPlayed: -d.OverCountedGames,
		SessionsPlayed:    -d.OverCountedGames,
		TotalBuyIns:       -d.OverCountedBuyInAmount,
		TournamentBuyIns:  -d.OverCountedBuyInAmount,
		NetBalance:        d.OverCountedBuyInAmount,
	}
}

// VenueDelta 场馆统计的有符号增量
func (d StatDelta) VenueDelta() repository.VenueDelta {
	return repository.VenueDelta{
		TotalGamesPlayed: -d.OverCountedGames,
		TotalBuyIns:      -d.OverCountedBuyInAmount,
		NetProfit:        d.OverCountedBuyInAmount,
	}
}
