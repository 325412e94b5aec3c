// Package notification はアカウント宛通知の取り込み・重複排除・既読管理と
// アプリ内トランジェントアラートの配信を提供する。
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/hitoshi/brewlog/internal/metrics"
	"github.com/hitoshi/brewlog/internal/model"
	"github.com/hitoshi/brewlog/internal/repository"
	"github.com/hitoshi/brewlog/internal/seed"
)

// DedupKeyFunc は通知から重複排除キーを導出する。
// 同一キーの通知は1件しか保持されない。
type DedupKeyFunc func(n model.Notification) string

// DedupPolicy は通知種別ごとの重複排除キー導出関数の集合。
// 登録のない種別はIDによる同一性判定にフォールバックする。
type DedupPolicy map[model.NotificationType]DedupKeyFunc

// DefaultDedupPolicy は既定の重複排除ポリシーを返す。
// rate_recipe_reminderのみ (種別, レシピID, 宛先) の複合キーで判定し、
// 同じレシピへのリマインダーが画面に2件並ばないことを保証する。
func DefaultDedupPolicy() DedupPolicy {
	return DedupPolicy{
		model.NotificationTypeRateRecipeReminder: func(n model.Notification) string {
			return fmt.Sprintf("%s|%s|%s", n.Type, n.Payload.RecipeID, n.TargetAccountID)
		},
	}
}

// key は通知の重複排除キーを返す。
func (p DedupPolicy) key(n model.Notification) string {
	if fn, ok := p[n.Type]; ok {
		return fn(n)
	}
	return "id|" + n.ID
}

// Deps はCenterの依存関係を束ねる。
type Deps struct {
	Repo     repository.NotificationRepository
	Listener repository.NotificationListener
	Catalog  *seed.Catalog
	Logger   *slog.Logger
	Metrics  metrics.MetricsCollector
	// Dedup はnil可。nilの場合はDefaultDedupPolicyを使用する。
	Dedup DedupPolicy
	// SeedLimit はシード由来フォールバック通知のブレンド上限。
	SeedLimit int
	// AlertBufferSize はトランジェントアラートのバッファ長。
	// バッファが満杯の間に発生したアラートは欠落する。
	AlertBufferSize int
	// RefetchLimit は通知ID受信時の再取得レート制限。nil可。
	RefetchLimit *rate.Limiter
}

// Center はアカウント宛通知の取り込みと状態管理を担う。
// リアルタイムチャネルから届くのは通知IDのみで、本体は必ずリモートから
// 再取得する。生のペイロードを直接通知として扱うことはない。
type Center struct {
	deps  Deps
	dedup DedupPolicy

	mu            sync.Mutex
	accountID     string
	notifications []model.Notification
	cancel        context.CancelFunc

	alerts  chan model.Alert
	changes chan struct{}
}

// NewCenter はCenterを生成する。
func NewCenter(deps Deps) *Center {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NopCollector{}
	}
	if deps.AlertBufferSize <= 0 {
		deps.AlertBufferSize = 16
	}
	if deps.RefetchLimit == nil {
		deps.RefetchLimit = rate.NewLimiter(rate.Limit(5), 10)
	}
	dedup := deps.Dedup
	if dedup == nil {
		dedup = DefaultDedupPolicy()
	}
	return &Center{
		deps:    deps,
		dedup:   dedup,
		alerts:  make(chan model.Alert, deps.AlertBufferSize),
		changes: make(chan struct{}, 1),
	}
}

// Alerts はトランジェントアラートの配信チャネルを返す。
// UIシェルが1つのコンシューマとして消費する前提の単純なバッファ付きチャネルで、
// 消費が追いつかない場合のアラートは欠落する。
func (c *Center) Alerts() <-chan model.Alert {
	return c.alerts
}

// Changes は通知一覧の変化通知チャネルを返す。連続する変化は合流する。
func (c *Center) Changes() <-chan struct{} {
	return c.changes
}

func (c *Center) notifyChange() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// SetIdentity は監視対象アカウントを設定し、通知一覧を再構築して
// リアルタイム購読を張り直す。空文字列で監視を解除する。
func (c *Center) SetIdentity(ctx context.Context, accountID string) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.accountID = accountID
	c.notifications = nil
	c.mu.Unlock()
	c.notifyChange()

	if accountID == "" {
		return nil
	}

	remote, err := c.deps.Repo.ListByTarget(ctx, accountID)
	if err != nil {
		c.deps.Logger.Error("通知一覧の取得に失敗しました",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
		remote = nil
	}
	merged := c.blendSeed(accountID, remote)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	c.mu.Lock()
	if c.accountID != accountID {
		// 構築中に別のSetIdentityが走った場合は結果を破棄する
		c.mu.Unlock()
		return nil
	}
	c.notifications = merged
	c.mu.Unlock()
	c.notifyChange()

	if c.deps.Listener != nil {
		subCtx, cancel := context.WithCancel(ctx)
		ch, subErr := c.deps.Listener.Subscribe(subCtx, accountID)
		if subErr != nil {
			cancel()
			c.deps.Logger.Error("リアルタイム購読の開始に失敗しました",
				slog.String("account_id", accountID),
				slog.String("error", subErr.Error()),
			)
			return subErr
		}
		c.mu.Lock()
		c.cancel = cancel
		c.mu.Unlock()
		go c.consume(subCtx, ch)
	}
	return err
}

// blendSeed はリモート通知にシード由来のフォールバック通知を追加合成する。
// 追加のみで、リモート通知を置き換えたり削除したりはしない。
// 追加件数はSeedLimitまでで、重複排除キーが衝突するものは追加しない。
func (c *Center) blendSeed(accountID string, remote []model.Notification) []model.Notification {
	merged := append([]model.Notification(nil), remote...)
	if c.deps.Catalog == nil || c.deps.SeedLimit <= 0 {
		return merged
	}

	seen := make(map[string]bool, len(merged))
	for _, n := range merged {
		seen[c.dedup.key(n)] = true
	}

	added := 0
	for _, n := range c.deps.Catalog.FallbackNotifications(accountID) {
		if added >= c.deps.SeedLimit {
			break
		}
		if seen[c.dedup.key(n)] {
			continue
		}
		seen[c.dedup.key(n)] = true
		merged = append(merged, n)
		added++
	}
	return merged
}

// consume はリアルタイムチャネルから届く通知IDを取り込み続ける。
func (c *Center) consume(ctx context.Context, ch <-chan string) {
	for id := range ch {
		if err := c.deps.RefetchLimit.Wait(ctx); err != nil {
			return
		}
		n, err := c.deps.Repo.FindByID(ctx, id)
		if err != nil {
			c.deps.Logger.Error("通知の再取得に失敗しました",
				slog.String("notification_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		if n == nil {
			// 配信から取得までの間に削除された通知
			continue
		}
		c.Ingest(*n)
	}
}

// Ingest は通知1件を取り込む。重複排除キーが既存の通知と衝突する場合は
// 破棄してfalseを返す。取り込んだ通知はトランジェントアラートとしても配信される。
func (c *Center) Ingest(n model.Notification) bool {
	if n.Origin == "" {
		n.Origin = model.NotificationOriginRemote
	}

	c.mu.Lock()
	if c.accountID == "" || n.TargetAccountID != c.accountID {
		c.mu.Unlock()
		return false
	}
	key := c.dedup.key(n)
	for _, existing := range c.notifications {
		if c.dedup.key(existing) == key {
			c.mu.Unlock()
			c.deps.Metrics.RecordNotificationDeduped()
			c.deps.Logger.Info("重複通知を破棄しました",
				slog.String("notification_id", n.ID),
				slog.String("type", string(n.Type)),
			)
			return false
		}
	}
	c.notifications = append(c.notifications, n)
	sort.SliceStable(c.notifications, func(i, j int) bool {
		return c.notifications[i].CreatedAt.After(c.notifications[j].CreatedAt)
	})
	c.mu.Unlock()
	c.notifyChange()

	c.deps.Metrics.RecordNotificationIngested()
	c.emitAlert(n)
	return true
}

// emitAlert は通知をトランジェントアラートへ変換して配信する。
// バッファが満杯の場合は欠落させ、配信側をブロックしない。
func (c *Center) emitAlert(n model.Notification) {
	alert := model.Alert{
		Level:          model.AlertLevelInfo,
		Title:          alertTitle(n.Type),
		Message:        n.Payload.Message,
		NotificationID: n.ID,
	}
	select {
	case c.alerts <- alert:
	default:
		c.deps.Metrics.RecordAlertDropped()
		c.deps.Logger.Warn("アラートバッファが満杯のため破棄しました",
			slog.String("notification_id", n.ID),
		)
	}
}

func alertTitle(t model.NotificationType) string {
	switch t {
	case model.NotificationTypeNewFollower:
		return "新しいフォロワー"
	case model.NotificationTypeRecipeShared:
		return "レシピが共有されました"
	case model.NotificationTypeBrewLiked:
		return "いいねされました"
	case model.NotificationTypeRateRecipeReminder:
		return "レシピを評価しましょう"
	default:
		return "お知らせ"
	}
}

// Notifications は現在の通知一覧のコピーを新しい順で返す。
func (c *Center) Notifications() []model.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Notification(nil), c.notifications...)
}

// UnreadCount は未読件数を返す。独立したカウンタではなく一覧から都度導出する。
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, n := range c.notifications {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkAsRead は指定通知を既読にする。
// リモート由来の通知のみ既読フラグをリモートへ永続化する。
// シード由来の通知はローカルの表示状態だけを変更する。
func (c *Center) MarkAsRead(ctx context.Context, id string) {
	c.mu.Lock()
	var target *model.Notification
	for i := range c.notifications {
		if c.notifications[i].ID == id {
			if c.notifications[i].Read {
				c.mu.Unlock()
				return
			}
			c.notifications[i].Read = true
			n := c.notifications[i]
			target = &n
			break
		}
	}
	c.mu.Unlock()

	if target == nil {
		return
	}
	c.notifyChange()

	if target.Origin == model.NotificationOriginRemote {
		if err := c.deps.Repo.UpdateReadFlag(ctx, id, true); err != nil {
			c.deps.Logger.Error("既読フラグの永続化に失敗しました",
				slog.String("notification_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

// MarkAllAsRead は全通知を既読にする。冪等。
func (c *Center) MarkAllAsRead(ctx context.Context) {
	c.mu.Lock()
	var remoteIDs []string
	changed := false
	for i := range c.notifications {
		if c.notifications[i].Read {
			continue
		}
		c.notifications[i].Read = true
		changed = true
		if c.notifications[i].Origin == model.NotificationOriginRemote {
			remoteIDs = append(remoteIDs, c.notifications[i].ID)
		}
	}
	c.mu.Unlock()

	if !changed {
		return
	}
	c.notifyChange()

	for _, id := range remoteIDs {
		if err := c.deps.Repo.UpdateReadFlag(ctx, id, true); err != nil {
			c.deps.Logger.Error("既読フラグの永続化に失敗しました",
				slog.String("notification_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Delete は指定通知を一覧から除去する。存在しないIDは何もしない（冪等）。
func (c *Center) Delete(id string) {
	c.mu.Lock()
	out := c.notifications[:0]
	removed := false
	for _, n := range c.notifications {
		if n.ID == id {
			removed = true
			continue
		}
		out = append(out, n)
	}
	c.notifications = out
	c.mu.Unlock()

	if removed {
		c.notifyChange()
	}
}

// RemoveRateReminder は指定レシピの評価リマインダーを一覧から除去し、
// リモート側の同一複合キーのリマインダーもベストエフォートで削除する。
// レシピ評価後の呼び出しを想定している。
func (c *Center) RemoveRateReminder(ctx context.Context, recipeID string) {
	c.mu.Lock()
	accountID := c.accountID
	out := c.notifications[:0]
	removed := false
	for _, n := range c.notifications {
		if n.Type == model.NotificationTypeRateRecipeReminder && n.Payload.RecipeID == recipeID {
			removed = true
			continue
		}
		out = append(out, n)
	}
	c.notifications = out
	c.mu.Unlock()

	if removed {
		c.notifyChange()
	}
	if accountID == "" {
		return
	}
	if err := c.deps.Repo.DeleteRateReminder(ctx, recipeID, accountID); err != nil {
		c.deps.Logger.Error("評価リマインダーのリモート削除に失敗しました",
			slog.String("recipe_id", recipeID),
			slog.String("error", err.Error()),
		)
	}
}

// Clear は通知一覧を空にし、購読を解除する。サインアウト時に使用する。
func (c *Center) Clear() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.accountID = ""
	c.notifications = nil
	c.mu.Unlock()
	c.notifyChange()

	// 残留アラートも破棄する
	for {
		select {
		case <-c.alerts:
		default:
			return
		}
	}
}
