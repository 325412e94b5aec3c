package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/brewlog/internal/model"
	"github.com/hitoshi/brewlog/internal/repository"
	"github.com/hitoshi/brewlog/internal/seed"
)

// --- モック ---

type mockNotificationRepo struct {
	listByTargetFunc       func(ctx context.Context, accountID string) ([]model.Notification, error)
	findByIDFunc           func(ctx context.Context, id string) (*model.Notification, error)
	insertFunc             func(ctx context.Context, n *model.Notification) error
	updateReadFlagFunc     func(ctx context.Context, id string, read bool) error
	deleteRateReminderFunc func(ctx context.Context, recipeID, targetAccountID string) error
}

func (m *mockNotificationRepo) ListByTarget(ctx context.Context, accountID string) ([]model.Notification, error) {
	if m.listByTargetFunc != nil {
		return m.listByTargetFunc(ctx, accountID)
	}
	return nil, nil
}

func (m *mockNotificationRepo) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockNotificationRepo) Insert(ctx context.Context, n *model.Notification) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, n)
	}
	return nil
}

func (m *mockNotificationRepo) UpdateReadFlag(ctx context.Context, id string, read bool) error {
	if m.updateReadFlagFunc != nil {
		return m.updateReadFlagFunc(ctx, id, read)
	}
	return nil
}

func (m *mockNotificationRepo) DeleteRateReminder(ctx context.Context, recipeID, targetAccountID string) error {
	if m.deleteRateReminderFunc != nil {
		return m.deleteRateReminderFunc(ctx, recipeID, targetAccountID)
	}
	return nil
}

type mockListener struct {
	ch chan string
}

func (m *mockListener) Subscribe(ctx context.Context, accountID string) (<-chan string, error) {
	return m.ch, nil
}

// compile-time interface checks
var (
	_ repository.NotificationRepository = (*mockNotificationRepo)(nil)
	_ repository.NotificationListener   = (*mockListener)(nil)
)

// --- テストヘルパー ---

func newTestCenter(t *testing.T, modify func(deps *Deps)) *Center {
	t.Helper()

	catalog, err := seed.Load()
	if err != nil {
		t.Fatalf("シードカタログの読み込みに失敗: %v", err)
	}

	deps := Deps{
		Repo:            &mockNotificationRepo{},
		Catalog:         catalog,
		Logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		SeedLimit:       2,
		AlertBufferSize: 16,
	}
	if modify != nil {
		modify(&deps)
	}
	return NewCenter(deps)
}

func remoteNotification(id string, typ model.NotificationType, target string, createdAt time.Time) model.Notification {
	return model.Notification{
		ID:              id,
		Type:            typ,
		TargetAccountID: target,
		CreatedAt:       createdAt,
		Origin:          model.NotificationOriginRemote,
	}
}

// --- テスト ---

// TestCenter_SetIdentity_BlendsSeed はリモート通知にシード由来通知が
// 上限件数まで追加合成され、新しい順に整列されることをテストする。
func TestCenter_SetIdentity_BlendsSeed(t *testing.T) {
	remote := remoteNotification("rm-001", model.NotificationTypeBrewLiked, "hana",
		time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC))
	c := newTestCenter(t, func(deps *Deps) {
		deps.Repo = &mockNotificationRepo{
			listByTargetFunc: func(ctx context.Context, accountID string) ([]model.Notification, error) {
				return []model.Notification{remote}, nil
			},
		}
	})

	if err := c.SetIdentity(context.Background(), "hana"); err != nil {
		t.Fatalf("SetIdentity() error = %v", err)
	}

	got := c.Notifications()
	// リモート1件 + シード2件（hana宛は3件あるが上限で2件まで）
	if len(got) != 3 {
		t.Fatalf("len(Notifications) = %d, want 3", len(got))
	}
	if got[0].ID != "rm-001" {
		t.Errorf("Notifications[0].ID = %q, want %q（新しい順）", got[0].ID, "rm-001")
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.After(got[i-1].CreatedAt) {
			t.Errorf("通知が新しい順に整列されていない: [%d]=%v > [%d]=%v",
				i, got[i].CreatedAt, i-1, got[i-1].CreatedAt)
		}
	}
	seedCount := 0
	for _, n := range got {
		if n.Origin == model.NotificationOriginSeed {
			seedCount++
		}
	}
	if seedCount != 2 {
		t.Errorf("シード由来通知 = %d件, want 2件", seedCount)
	}
}

// TestCenter_SetIdentity_RemoteFailure はリモート取得失敗時もシード通知で
// 一覧が構成されることをテストする。
func TestCenter_SetIdentity_RemoteFailure(t *testing.T) {
	c := newTestCenter(t, func(deps *Deps) {
		deps.Repo = &mockNotificationRepo{
			listByTargetFunc: func(ctx context.Context, accountID string) ([]model.Notification, error) {
				return nil, errors.New("connection refused")
			},
		}
	})

	if err := c.SetIdentity(context.Background(), "hana"); err == nil {
		t.Error("SetIdentity() error = nil, want リモート取得エラー")
	}

	got := c.Notifications()
	if len(got) != 2 {
		t.Fatalf("len(Notifications) = %d, want シード2件", len(got))
	}
}

// TestCenter_Ingest_RateReminderDedup はrate_recipe_reminder型が
// (種別, レシピID, 宛先) の複合キーで重複排除されることをテストする。
func TestCenter_Ingest_RateReminderDedup(t *testing.T) {
	c := newTestCenter(t, nil)
	if err := c.SetIdentity(context.Background(), "hana"); err != nil {
		t.Fatalf("SetIdentity() error = %v", err)
	}

	first := remoteNotification("nt-a", model.NotificationTypeRateRecipeReminder, "hana", time.Now().UTC())
	first.Payload.RecipeID = "recipe-v60-kona"
	if !c.Ingest(first) {
		t.Fatal("1件目のIngest() = false, want true")
	}

	// IDが違っても複合キーが同じなら破棄される
	duplicate := remoteNotification("nt-b", model.NotificationTypeRateRecipeReminder, "hana", time.Now().UTC())
	duplicate.Payload.RecipeID = "recipe-v60-kona"
	if c.Ingest(duplicate) {
		t.Error("複合キー重複のIngest() = true, want false")
	}

	// レシピが違えば別の通知として取り込まれる
	other := remoteNotification("nt-c", model.NotificationTypeRateRecipeReminder, "hana", time.Now().UTC())
	other.Payload.RecipeID = "recipe-aero-yirga"
	if !c.Ingest(other) {
		t.Error("別レシピのIngest() = false, want true")
	}

	count := 0
	for _, n := range c.Notifications() {
		if n.Type == model.NotificationTypeRateRecipeReminder {
			count++
		}
	}
	if count != 2 {
		t.Errorf("リマインダー通知 = %d件, want 2件", count)
	}
}

// TestCenter_Ingest_SameIDDedup は同一IDの通知が2回取り込まれないことをテストする。
func TestCenter_Ingest_SameIDDedup(t *testing.T) {
	c := newTestCenter(t, nil)
	if err := c.SetIdentity(context.Background(), "hana"); err != nil {
		t.Fatalf("SetIdentity() error = %v", err)
	}

	n := remoteNotification("nt-dup", model.NotificationTypeBrewLiked, "hana", time.Now().UTC())
	if !c.Ingest(n) {
		t.Fatal("1件目のIngest() = false, want true")
	}
	if c.Ingest(n) {
		t.Error("同一IDの再Ingest() = true, want false")
	}
}

// TestCenter_Ingest_WrongTarget は別アカウント宛の通知が取り込まれない
// ことをテストする。
func TestCenter_Ingest_WrongTarget(t *testing.T) {
	c := newTestCenter(t, nil)
	if err := c.SetIdentity(context.Background(), "hana"); err != nil {
		t.Fatalf("SetIdentity() error = %v", err)
	}

	n := remoteNotification("nt-x", model.NotificationTypeBrewLiked, "kenji", time.Now().UTC())
	if c.Ingest(n) {
		t.Error("別アカウント宛のIngest() = true, want false")
	}
}

// TestCenter_Realtime_RefetchesByID はリアルタイムチャネルから届いたIDで
// 通知本体がリモートから再取得されることをテストする。
func TestCenter_Realtime_RefetchesByID(t *testing.T) {
	pushed := remoteNotification("rt-001", model.NotificationTypeNewFollower, "hana", time.Now().UTC())
	listener := &mockListener{ch: make(chan string, 1)}
	var mu sync.Mutex
	var fetchedID string

	c := newTestCenter(t, func(deps *Deps) {
		deps.Listener = listener
		deps.Repo = &mockNotificationRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.Notification, error) {
				mu.Lock()
				fetchedID = id
				mu.Unlock()
				n := pushed
				return &n, nil
			},
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.SetIdentity(ctx, "hana"); err != nil {
		t.Fatalf("SetIdentity() error = %v", err)
	}

	listener.ch <- "rt-001"

	deadline := time.After(2 * time.Second)
	for {
		found := false
		for _, n := range c.Notifications() {
			if n.ID == "rt-001" {
				found = true
			}
		}
		if found {
			break
		}
		select {
		case <-deadline:
			t.Fatal("リアルタイム通知が一覧に取り込まれなかった")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if fetchedID != "rt-001" {
		t.Errorf("再取得されたID = %q, want %q", fetchedID, "rt-001")
	}
}

// TestCenter_MarkAsRead は既読化とUnreadCountの導出、
// リモート由来通知のみの永続化をテストする。
func TestCenter_MarkAsRead(t *testing.T) {
	var mu sync.Mutex
	var persisted []string
	c := newTestCenter(t, func(deps *Deps) {
		deps.Repo = &mockNotificationRepo{
			listByTargetFunc: func(ctx context.Context, accountID string) ([]model.Notification, error) {
				return []model.Notification{
					remoteNotification("rm-001", model.NotificationTypeBrewLiked, "hana",
						time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)),
				}, nil
			},
			updateReadFlagFunc: func(ctx context.Context, id string, read bool) error {
				mu.Lock()
				persisted = append(persisted, id)
				mu.Unlock()
				return nil
			},
		}
	})
	ctx := context.Background()
	if err := c.SetIdentity(ctx, "hana"); err != nil {
		t.Fatalf("SetIdentity() error = %v", err)
	}

	// リモート1件 + シード2件 = 未読3件
	if got := c.UnreadCount(); got != 3 {
		t.Fatalf("UnreadCount() = %d, want 3", got)
	}

	// リモート由来の既読化は永続化される
	c.MarkAsRead(ctx, "rm-001")
	if got := c.UnreadCount(); got != 2 {
		t.Errorf("UnreadCount() = %d, want 2", got)
	}
	mu.Lock()
	if len(persisted) != 1 || persisted[0] != "rm-001" {
		t.Errorf("永続化されたID = %v, want [rm-001]", persisted)
	}
	mu.Unlock()

	// シード由来の既読化はローカルのみ
	var seedID string
	for _, n := range c.Notifications() {
		if n.Origin == model.NotificationOriginSeed {
			seedID = n.ID
			break
		}
	}
	c.MarkAsRead(ctx, seedID)
	if got := c.UnreadCount(); got != 1 {
		t.Errorf("UnreadCount() = %d, want 1", got)
	}
	mu.Lock()
	if len(persisted) != 1 {
		t.Errorf("シード由来の既読化が永続化された: %v", persisted)
	}
	mu.Unlock()

	// 既読済み通知の再既読化は何もしない（冪等）
	c.MarkAsRead(ctx, "rm-001")
	mu.Lock()
	if len(persisted) != 1 {
		t.Errorf("再既読化が永続化を重複実行した: %v", persisted)
	}
	mu.Unlock()
}

// TestCenter_MarkAllAsRead は全既読化の冪等性をテストする。
func TestCenter_MarkAllAsRead(t *testing.T) {
	c := newTestCenter(t, nil)
	ctx := context.Background()
	if err := c.SetIdentity(ctx, "hana"); err != nil {
		t.Fatalf("SetIdentity() error = %v", err)
	}

	c.MarkAllAsRead(ctx)
	if got := c.UnreadCount(); got != 0 {
		t.Errorf("UnreadCount() = %d, want 0", got)
	}

	c.MarkAllAsRead(ctx)
	if got := c.UnreadCount(); got != 0 {
		t.Errorf("2回目のMarkAllAsRead後 UnreadCount() = %d, want 0", got)
	}
}

// TestCenter_Delete_Idempotent は通知削除の冪等性をテストする。
func TestCenter_Delete_Idempotent(t *testing.T) {
	c := newTestCenter(t, nil)
	if err := c.SetIdentity(context.Background(), "hana"); err != nil {
		t.Fatalf("SetIdentity() error = %v", err)
	}
	before := len(c.Notifications())
	if before == 0 {
		t.Fatal("テストの前提: 通知が1件以上必要")
	}
	target := c.Notifications()[0].ID

	c.Delete(target)
	if got := len(c.Notifications()); got != before-1 {
		t.Fatalf("len(Notifications) = %d, want %d", got, before-1)
	}

	c.Delete(target)
	if got := len(c.Notifications()); got != before-1 {
		t.Errorf("2回目のDelete後 len(Notifications) = %d, want %d", got, before-1)
	}
}

// TestCenter_RemoveRateReminder は評価リマインダーのローカル除去と
// リモート側の複合キー削除をテストする。
func TestCenter_RemoveRateReminder(t *testing.T) {
	var mu sync.Mutex
	var deletedRecipe, deletedTarget string
	c := newTestCenter(t, func(deps *Deps) {
		deps.Repo = &mockNotificationRepo{
			deleteRateReminderFunc: func(ctx context.Context, recipeID, targetAccountID string) error {
				mu.Lock()
				deletedRecipe = recipeID
				deletedTarget = targetAccountID
				mu.Unlock()
				return nil
			},
		}
	})
	ctx := context.Background()
	if err := c.SetIdentity(ctx, "hana"); err != nil {
		t.Fatalf("SetIdentity() error = %v", err)
	}

	reminder := remoteNotification("nt-rem", model.NotificationTypeRateRecipeReminder, "hana", time.Now().UTC())
	reminder.Payload.RecipeID = "recipe-v60-kona"
	if !c.Ingest(reminder) {
		t.Fatal("Ingest() = false, want true")
	}

	c.RemoveRateReminder(ctx, "recipe-v60-kona")

	for _, n := range c.Notifications() {
		if n.Type == model.NotificationTypeRateRecipeReminder && n.Payload.RecipeID == "recipe-v60-kona" {
			t.Error("リマインダーが一覧から除去されていない")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if deletedRecipe != "recipe-v60-kona" || deletedTarget != "hana" {
		t.Errorf("DeleteRateReminder(%q, %q), want (%q, %q)",
			deletedRecipe, deletedTarget, "recipe-v60-kona", "hana")
	}
}

// TestCenter_AlertOverflow はアラートバッファ満杯時に配信側がブロックせず、
// 超過分が欠落することをテストする。
func TestCenter_AlertOverflow(t *testing.T) {
	c := newTestCenter(t, func(deps *Deps) {
		deps.SeedLimit = 0
		deps.AlertBufferSize = 1
	})
	if err := c.SetIdentity(context.Background(), "hana"); err != nil {
		t.Fatalf("SetIdentity() error = %v", err)
	}

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		n := remoteNotification("nt-of-"+string(rune('a'+i)), model.NotificationTypeBrewLiked, "hana", base.Add(time.Duration(i)*time.Second))
		if !c.Ingest(n) {
			t.Fatalf("Ingest(%d件目) = false, want true", i+1)
		}
	}

	received := 0
	for {
		select {
		case <-c.Alerts():
			received++
			continue
		default:
		}
		break
	}
	if received != 1 {
		t.Errorf("受信アラート = %d件, want 1件（超過分は欠落）", received)
	}
}

// TestCenter_Clear は一覧と残留アラートが破棄されることをテストする。
func TestCenter_Clear(t *testing.T) {
	c := newTestCenter(t, nil)
	if err := c.SetIdentity(context.Background(), "hana"); err != nil {
		t.Fatalf("SetIdentity() error = %v", err)
	}
	if !c.Ingest(remoteNotification("nt-clear", model.NotificationTypeBrewLiked, "hana", time.Now().UTC())) {
		t.Fatal("Ingest() = false, want true")
	}

	c.Clear()

	if got := len(c.Notifications()); got != 0 {
		t.Errorf("len(Notifications) = %d, want 0", got)
	}
	if got := c.UnreadCount(); got != 0 {
		t.Errorf("UnreadCount() = %d, want 0", got)
	}
	select {
	case a := <-c.Alerts():
		t.Errorf("残留アラートが破棄されていない: %+v", a)
	default:
	}

	// 解除後の取り込みは拒否される
	if c.Ingest(remoteNotification("nt-after", model.NotificationTypeBrewLiked, "hana", time.Now().UTC())) {
		t.Error("Clear後のIngest() = true, want false")
	}
}
