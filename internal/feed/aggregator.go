// Package feed は複数ソースのアクティビティを1本のタイムラインへ集約する。
package feed

import (
	"sort"

	"github.com/hitoshi/brewlog/internal/model"
)

// Aggregate はシード由来イベントとリモート由来イベントを結合し、
// ソート・重複排除・フィルタ済みの単一タイムラインを構築する純関数。
//
//   - CoffeeIDまたはCoffeeNameが欠落したイベントは除外する
//   - exclusionsに含まれる所有者のイベントは除外する（公開アクティビティなし扱い）
//   - 同一IDはリモート側を採用する（シード由来のイベントがリモートへ
//     同期済みの場合、リモート側がより新しい内容を持つ）
//   - Timestamp降順でソートし、同時刻のイベントは投入順を維持する（安定ソート）
//
// 隠れ状態を持たず、同一入力に対して常に同一の出力を返す。
// 入力スライスは変更しない。
func Aggregate(seedEvents, remoteEvents []model.BrewEvent, exclusions map[string]struct{}) []model.BrewEvent {
	remoteIDs := make(map[string]struct{}, len(remoteEvents))
	for _, e := range remoteEvents {
		if includeEvent(e, exclusions) {
			remoteIDs[e.ID] = struct{}{}
		}
	}

	merged := make([]model.BrewEvent, 0, len(seedEvents)+len(remoteEvents))
	seen := make(map[string]struct{}, len(seedEvents)+len(remoteEvents))

	for _, e := range seedEvents {
		if !includeEvent(e, exclusions) {
			continue
		}
		if _, claimed := remoteIDs[e.ID]; claimed {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		merged = append(merged, e)
	}
	for _, e := range remoteEvents {
		if !includeEvent(e, exclusions) {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		merged = append(merged, e)
	}

	// 同時刻イベントの相対順を保つため安定ソートを使用する
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})

	return merged
}

// includeEvent は集約フィードへの掲載可否を判定する。
func includeEvent(e model.BrewEvent, exclusions map[string]struct{}) bool {
	if !e.IsValid() {
		return false
	}
	if _, excluded := exclusions[e.OwnerAccountID]; excluded {
		return false
	}
	return true
}

// ExclusionSet はアカウントIDのリストから除外セットを構築する。
func ExclusionSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// OwnedBy は集約済みタイムラインから指定アカウント所有のイベントだけを抽出する。
// 入力の順序を維持する。
func OwnedBy(events []model.BrewEvent, accountID string) []model.BrewEvent {
	var owned []model.BrewEvent
	for _, e := range events {
		if e.OwnerAccountID == accountID {
			owned = append(owned, e)
		}
	}
	return owned
}
