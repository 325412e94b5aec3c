package seed

import (
	"fmt"

	"github.com/hitoshi/brewlog/internal/model"
)

// FollowPolicy はシードデータにおけるフォロー関係の生成規則を表す。
// 「全員が相互フォロー」という暗黙の既定値を明示的なポリシーオブジェクトに
// 置き換えており、テストでは実際のフォローグラフに差し替えられる。
type FollowPolicy interface {
	// Edges はアカウント一覧からフォローエッジ集合を生成する。
	Edges(accounts []model.Account) []model.FollowEdge
}

// MutualAllPolicy は全アカウントが相互にフォローし合う既定ポリシー。
type MutualAllPolicy struct{}

// Edges は自分以外の全アカウントへのエッジを生成する。
func (MutualAllPolicy) Edges(accounts []model.Account) []model.FollowEdge {
	var edges []model.FollowEdge
	for _, a := range accounts {
		for _, b := range accounts {
			if a.ID == b.ID {
				continue
			}
			edges = append(edges, model.FollowEdge{FollowerID: a.ID, FollowingID: b.ID})
		}
	}
	return edges
}

// ExplicitPolicy はシードに列挙されたエッジのみを使用するポリシー。
type ExplicitPolicy struct {
	edges []model.FollowEdge
}

// NewExplicitPolicy は明示エッジ集合からExplicitPolicyを生成する。
func NewExplicitPolicy(edges []model.FollowEdge) *ExplicitPolicy {
	return &ExplicitPolicy{edges: edges}
}

// Edges は列挙済みエッジのうち、実在するアカウント間のものだけを返す。
func (p *ExplicitPolicy) Edges(accounts []model.Account) []model.FollowEdge {
	known := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		known[a.ID] = true
	}
	var edges []model.FollowEdge
	for _, e := range p.edges {
		if known[e.FollowerID] && known[e.FollowingID] {
			edges = append(edges, e)
		}
	}
	return edges
}

// buildFollowPolicy はYAMLのポリシー指定からFollowPolicyを構築する。
// 未指定の場合はmutual_allを既定とする。
func buildFollowPolicy(name string, edges []followEdgeYAML) (FollowPolicy, error) {
	switch name {
	case "", "mutual_all":
		return MutualAllPolicy{}, nil
	case "explicit":
		converted := make([]model.FollowEdge, 0, len(edges))
		for _, e := range edges {
			converted = append(converted, model.FollowEdge{
				FollowerID:  e.Follower,
				FollowingID: e.Following,
			})
		}
		return NewExplicitPolicy(converted), nil
	default:
		return nil, fmt.Errorf("未知のフォローポリシーです: %s", name)
	}
}
