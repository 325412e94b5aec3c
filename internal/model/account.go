// Package model はドメインモデルを定義する。
package model

// Account はセッションの切り替え対象となる論理アカウント（ユーザーまたは店舗）を表す。
// AccountRegistryへの登録後はイミュータブルとして扱う。
type Account struct {
	ID          string
	DisplayName string
	AvatarRef   string
	EmailRef    string
}

// FollowEdge はフォロー関係の有向エッジを表す。
// FollowerIDのアカウントがFollowingIDのアカウントをフォローしている。
type FollowEdge struct {
	FollowerID  string
	FollowingID string
}

// FollowGraph はフォローエッジ集合に対する参照ヘルパー。
type FollowGraph struct {
	edges []FollowEdge
}

// NewFollowGraph はエッジ集合からFollowGraphを生成する。
func NewFollowGraph(edges []FollowEdge) *FollowGraph {
	return &FollowGraph{edges: edges}
}

// Following は指定アカウントがフォローしているアカウントID一覧を返す。
func (g *FollowGraph) Following(accountID string) []string {
	var ids []string
	for _, e := range g.edges {
		if e.FollowerID == accountID {
			ids = append(ids, e.FollowingID)
		}
	}
	return ids
}

// Followers は指定アカウントをフォローしているアカウントID一覧を返す。
func (g *FollowGraph) Followers(accountID string) []string {
	var ids []string
	for _, e := range g.edges {
		if e.FollowingID == accountID {
			ids = append(ids, e.FollowerID)
		}
	}
	return ids
}
