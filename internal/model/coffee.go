package model

import "time"

// PlaceholderImageRef は画像未指定時に使用するプレースホルダ画像の参照。
const PlaceholderImageRef = "images/coffee-placeholder.png"

// CoffeeItem はコレクション・ウィッシュリストの1件を表す。
// (OwnerAccountID, ID) をキーとするセット意味論で管理し、同一IDの再追加は冪等。
type CoffeeItem struct {
	ID             string
	Name           string
	Roaster        string
	ImageRef       string
	Origin         string
	Process        string
	RoastLevel     string
	Timestamp      time.Time
	OwnerAccountID string
}

// SavedCoffeeKind はSavedCoffeeRefの種別を表す。
type SavedCoffeeKind string

const (
	// SavedCoffeeKindID はID参照のみを保持する形式。
	SavedCoffeeKindID SavedCoffeeKind = "id"
	// SavedCoffeeKindInline は完全なCoffeeItemを内包する形式。
	SavedCoffeeKindInline SavedCoffeeKind = "inline"
)

// SavedCoffeeRef は保存済みコーヒーの参照を表すタグ付きユニオン。
// 取り込み時に一度だけ解決し、以降は正規化済みのCoffeeItemだけを扱う。
type SavedCoffeeRef struct {
	Kind SavedCoffeeKind
	ID   string
	Item *CoffeeItem
}

// ResolveSavedCoffeeRefs は参照の集合を正規化済みCoffeeItemスライスへ解決する。
// ID参照はlookupで解決し、解決できない参照は黙って除外する。
// 同一IDはセット意味論で1件にまとめ、最初に出現したものを採用する。
func ResolveSavedCoffeeRefs(refs []SavedCoffeeRef, lookup func(id string) (CoffeeItem, bool)) []CoffeeItem {
	seen := make(map[string]bool, len(refs))
	items := make([]CoffeeItem, 0, len(refs))
	for _, ref := range refs {
		var item CoffeeItem
		switch ref.Kind {
		case SavedCoffeeKindInline:
			if ref.Item == nil {
				continue
			}
			item = *ref.Item
		case SavedCoffeeKindID:
			resolved, ok := lookup(ref.ID)
			if !ok {
				continue
			}
			item = resolved
		default:
			continue
		}
		if item.ID == "" || seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		items = append(items, item)
	}
	return items
}
