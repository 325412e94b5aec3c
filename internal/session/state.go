package session

import (
	"sync"

	"github.com/hitoshi/brewlog/internal/model"
)

// AccountState は1アカウント分の可変ドメイン状態を保持する。
// AccountSessionが排他的に所有し、外部からのフィールド直接変更は許可しない。
type AccountState struct {
	// Events は全アカウント横断の集約済みタイムライン（allEvents）。
	Events []model.BrewEvent
	// CoffeeEvents はアクティブアカウント自身のイベント。
	CoffeeEvents []model.BrewEvent
	// Collection はコレクション（明示保存分と自身のイベント由来の合成分の和集合）。
	Collection []model.CoffeeItem
	// Wishlist はウィッシュリスト。
	Wishlist []model.CoffeeItem
	// FavoriteIDs はお気に入りレシピIDのセット（挿入順を保持）。
	FavoriteIDs []string
	// Recipes は共有レシピプール。IsSavedはアクティブアカウント基準で再計算済み。
	Recipes []model.Recipe
	// Following / Followers はフォローポリシーから導出した関係。
	Following []string
	Followers []string
}

// clone はAccountStateの深いコピーを返す。
func (s AccountState) clone() AccountState {
	out := AccountState{
		Events:       append([]model.BrewEvent(nil), s.Events...),
		CoffeeEvents: append([]model.BrewEvent(nil), s.CoffeeEvents...),
		Collection:   append([]model.CoffeeItem(nil), s.Collection...),
		Wishlist:     append([]model.CoffeeItem(nil), s.Wishlist...),
		FavoriteIDs:  append([]string(nil), s.FavoriteIDs...),
		Recipes:      append([]model.Recipe(nil), s.Recipes...),
		Following:    append([]string(nil), s.Following...),
		Followers:    append([]string(nil), s.Followers...),
	}
	for i, e := range out.Events {
		out.Events[i].Friends = append([]string(nil), e.Friends...)
	}
	for i, e := range out.CoffeeEvents {
		out.CoffeeEvents[i].Friends = append([]string(nil), e.Friends...)
	}
	return out
}

// hasFavorite はお気に入りセットの所属判定を行う。
func (s AccountState) hasFavorite(recipeID string) bool {
	for _, id := range s.FavoriteIDs {
		if id == recipeID {
			return true
		}
	}
	return false
}

// StateRepository はアカウントIDをキーとする状態スナップショットの保管庫。
// アカウントIDごとのグローバル可変マップを型付きアクセサの背後に隠蔽し、
// 読み込み失敗時の「直前の正常状態」復元に使用する。
type StateRepository struct {
	mu     sync.Mutex
	states map[string]AccountState
}

// NewStateRepository はStateRepositoryを生成する。
func NewStateRepository() *StateRepository {
	return &StateRepository{states: make(map[string]AccountState)}
}

// Put は指定アカウントの状態スナップショットを保存する。
// 以降の呼び出し元の変更が波及しないよう深いコピーを保持する。
func (r *StateRepository) Put(accountID string, state AccountState) {
	if accountID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[accountID] = state.clone()
}

// Get は指定アカウントの保存済み状態を返す。未保存の場合はok=false。
func (r *StateRepository) Get(accountID string) (AccountState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[accountID]
	if !ok {
		return AccountState{}, false
	}
	return state.clone(), true
}

// Clear は全アカウントの保存済み状態を破棄する。サインアウト時に使用する。
func (r *StateRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = make(map[string]AccountState)
}
