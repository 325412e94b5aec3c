// Package session はアカウントスコープのセッション状態管理を提供する。
// AccountSessionはUIが現在参照する唯一の正となる状態ホルダーで、
// アカウント切り替え・楽観的ミューテーション・複数ソースの統合読み込みを担う。
package session

import (
	"github.com/hitoshi/brewlog/internal/model"
)

// Registry は切り替え可能な論理アカウントの固定レジストリ。
// プロセス起動時にシードカタログから構築され、以降は変更されない。
type Registry struct {
	accounts  map[string]model.Account
	order     []string
	defaultID string
}

// NewRegistry はアカウント一覧とデフォルトアカウントIDからレジストリを構築する。
// defaultIDが一覧に存在しない場合は先頭のアカウントをデフォルトとする。
func NewRegistry(accounts []model.Account, defaultID string) *Registry {
	r := &Registry{
		accounts: make(map[string]model.Account, len(accounts)),
	}
	for _, a := range accounts {
		if _, ok := r.accounts[a.ID]; ok {
			continue
		}
		r.accounts[a.ID] = a
		r.order = append(r.order, a.ID)
	}

	if _, ok := r.accounts[defaultID]; ok {
		r.defaultID = defaultID
	} else if len(r.order) > 0 {
		r.defaultID = r.order[0]
	}

	return r
}

// Resolve は指定IDのアカウントを返す。
// 未登録の場合はAccountNotFoundエラーを返す。
func (r *Registry) Resolve(id string) (model.Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return model.Account{}, model.NewAccountNotFoundError(id)
	}
	return a, nil
}

// Default は設定済みデフォルトアカウントを返す。
func (r *Registry) Default() model.Account {
	return r.accounts[r.defaultID]
}

// All は登録順のアカウント一覧を返す。
func (r *Registry) All() []model.Account {
	out := make([]model.Account, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.accounts[id])
	}
	return out
}
