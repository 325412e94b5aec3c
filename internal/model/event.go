package model

import "time"

// BrewEvent は1回の抽出ログ（アクティビティフィードの1件）を表す。
// ユーザー操作またはシードデータで作成され、作成後は削除以外の変更を行わない。
type BrewEvent struct {
	ID             string
	CoffeeID       string
	CoffeeName     string
	Roaster        string
	ImageRef       string
	Rating         int // 1〜5
	Timestamp      time.Time
	BrewingMethod  string
	GrindSize      string
	Notes          string
	OwnerAccountID string
	Friends        []string
}

// IsValid は集約フィードに掲載可能なイベントかを判定する。
// CoffeeIDまたはCoffeeNameが欠落したレコードはフィードから除外される。
func (e BrewEvent) IsValid() bool {
	return e.CoffeeID != "" && e.CoffeeName != ""
}

// BrewEventDraft は「抽出を記録する」操作の入力を表す。
// ID・タイムスタンプ・所有者はAccountSessionが確定させる。
type BrewEventDraft struct {
	CoffeeID      string
	CoffeeName    string
	Roaster       string
	ImageRef      string
	Rating        int
	BrewingMethod string
	GrindSize     string
	Notes         string
	Friends       []string
}
