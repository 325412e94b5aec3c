package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/brewlog/internal/localstore"
	"github.com/hitoshi/brewlog/internal/metrics"
	"github.com/hitoshi/brewlog/internal/model"
	"github.com/hitoshi/brewlog/internal/repository"
	"github.com/hitoshi/brewlog/internal/security"
	"github.com/hitoshi/brewlog/internal/seed"
)

// --- モック ---

type mockEventRepo struct {
	listAllFunc     func(ctx context.Context) ([]model.BrewEvent, error)
	listByOwnerFunc func(ctx context.Context, accountID string) ([]model.BrewEvent, error)
	insertFunc      func(ctx context.Context, event *model.BrewEvent) error
	deleteFunc      func(ctx context.Context, id string) error
}

func (m *mockEventRepo) ListAll(ctx context.Context) ([]model.BrewEvent, error) {
	if m.listAllFunc != nil {
		return m.listAllFunc(ctx)
	}
	return nil, nil
}

func (m *mockEventRepo) ListByOwner(ctx context.Context, accountID string) ([]model.BrewEvent, error) {
	if m.listByOwnerFunc != nil {
		return m.listByOwnerFunc(ctx, accountID)
	}
	return nil, nil
}

func (m *mockEventRepo) Insert(ctx context.Context, event *model.BrewEvent) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, event)
	}
	return nil
}

func (m *mockEventRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

type mockCoffeeItemRepo struct {
	listByOwnerFunc func(ctx context.Context, accountID string) ([]model.CoffeeItem, error)
	upsertFunc      func(ctx context.Context, item *model.CoffeeItem) error
	deleteFunc      func(ctx context.Context, accountID, itemID string) error
}

func (m *mockCoffeeItemRepo) ListByOwner(ctx context.Context, accountID string) ([]model.CoffeeItem, error) {
	if m.listByOwnerFunc != nil {
		return m.listByOwnerFunc(ctx, accountID)
	}
	return nil, nil
}

func (m *mockCoffeeItemRepo) Upsert(ctx context.Context, item *model.CoffeeItem) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, item)
	}
	return nil
}

func (m *mockCoffeeItemRepo) Delete(ctx context.Context, accountID, itemID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, accountID, itemID)
	}
	return nil
}

type mockFavoriteRepo struct {
	listIDsByOwnerFunc func(ctx context.Context, accountID string) ([]string, error)
	addFunc            func(ctx context.Context, accountID, recipeID string) error
	removeFunc         func(ctx context.Context, accountID, recipeID string) error
}

func (m *mockFavoriteRepo) ListIDsByOwner(ctx context.Context, accountID string) ([]string, error) {
	if m.listIDsByOwnerFunc != nil {
		return m.listIDsByOwnerFunc(ctx, accountID)
	}
	return nil, nil
}

func (m *mockFavoriteRepo) Add(ctx context.Context, accountID, recipeID string) error {
	if m.addFunc != nil {
		return m.addFunc(ctx, accountID, recipeID)
	}
	return nil
}

func (m *mockFavoriteRepo) Remove(ctx context.Context, accountID, recipeID string) error {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, accountID, recipeID)
	}
	return nil
}

type mockRecipeRepo struct {
	listAllFunc func(ctx context.Context) ([]model.Recipe, error)
	upsertFunc  func(ctx context.Context, recipe *model.Recipe) error
}

func (m *mockRecipeRepo) ListAll(ctx context.Context) ([]model.Recipe, error) {
	if m.listAllFunc != nil {
		return m.listAllFunc(ctx)
	}
	return nil, nil
}

func (m *mockRecipeRepo) Upsert(ctx context.Context, recipe *model.Recipe) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, recipe)
	}
	return nil
}

// compile-time interface checks
var (
	_ repository.EventRepository      = (*mockEventRepo)(nil)
	_ repository.CoffeeItemRepository = (*mockCoffeeItemRepo)(nil)
	_ repository.FavoriteRepository   = (*mockFavoriteRepo)(nil)
	_ repository.RecipeRepository     = (*mockRecipeRepo)(nil)
)

// --- テストヘルパー ---

func newTestSession(t *testing.T, modify func(deps *Deps)) *Session {
	t.Helper()

	catalog, err := seed.Load()
	if err != nil {
		t.Fatalf("シードカタログの読み込みに失敗: %v", err)
	}

	deps := Deps{
		Catalog:     catalog,
		Registry:    NewRegistry(catalog.Accounts(), "hana"),
		States:      NewStateRepository(),
		Events:      &mockEventRepo{},
		Collection:  &mockCoffeeItemRepo{},
		Wishlist:    &mockCoffeeItemRepo{},
		Favorites:   &mockFavoriteRepo{},
		Recipes:     &mockRecipeRepo{},
		Local:       localstore.NewMemoryStore(),
		Sanitizer:   security.NewNoteSanitizer(),
		Logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Metrics:     metrics.NopCollector{},
		Exclusions:  []string{"barista-internal"},
		LoadTimeout: 5 * time.Second,
	}
	if modify != nil {
		modify(&deps)
	}
	return NewSession(deps)
}

func signIn(t *testing.T, s *Session, accountID string) {
	t.Helper()
	if err := s.SignIn(context.Background(), accountID); err != nil {
		t.Fatalf("SignIn(%q) error = %v", accountID, err)
	}
}

// --- テスト ---

// TestSession_SignIn_BuildsState はサインイン時にシードとリモートが統合された
// アカウント状態が構築されることをテストする。
func TestSession_SignIn_BuildsState(t *testing.T) {
	remoteEvent := model.BrewEvent{
		ID:             "remote-ev-001",
		CoffeeID:       "c-mandheling",
		CoffeeName:     "Mandheling",
		Rating:         4,
		Timestamp:      time.Date(2026, 8, 25, 7, 0, 0, 0, time.UTC),
		OwnerAccountID: "hana",
	}
	s := newTestSession(t, func(deps *Deps) {
		deps.Events = &mockEventRepo{
			listAllFunc: func(ctx context.Context) ([]model.BrewEvent, error) {
				return []model.BrewEvent{remoteEvent}, nil
			},
		}
		deps.Favorites = &mockFavoriteRepo{
			listIDsByOwnerFunc: func(ctx context.Context, accountID string) ([]string, error) {
				return []string{"recipe-v60-kona"}, nil
			},
		}
	})

	signIn(t, s, "hana")
	snap := s.Snapshot()

	if snap.Phase() != PhaseReady {
		t.Fatalf("Phase() = %q, want %q", snap.Phase(), PhaseReady)
	}
	if snap.Account.ID != "hana" {
		t.Errorf("Account.ID = %q, want %q", snap.Account.ID, "hana")
	}

	// リモート1件 + シード有効3件（除外アカウントと無効レコードは含まれない）
	if len(snap.Events) != 4 {
		t.Fatalf("len(Events) = %d, want 4", len(snap.Events))
	}
	if snap.Events[0].ID != "remote-ev-001" {
		t.Errorf("Events[0].ID = %q, want %q（新しい順）", snap.Events[0].ID, "remote-ev-001")
	}
	for _, e := range snap.Events {
		if e.OwnerAccountID == "barista-internal" {
			t.Errorf("除外アカウントのイベントがフィードに含まれている: %s", e.ID)
		}
	}

	// 自身のイベント: remote-ev-001とseed-ev-001
	if len(snap.CoffeeEvents) != 2 {
		t.Errorf("len(CoffeeEvents) = %d, want 2", len(snap.CoffeeEvents))
	}

	// コレクション: シード保存分（c-kona, c-homeroast-01）∪ イベント由来（c-mandheling）
	wantCollection := map[string]bool{"c-kona": true, "c-homeroast-01": true, "c-mandheling": true}
	if len(snap.Collection) != len(wantCollection) {
		t.Fatalf("len(Collection) = %d, want %d", len(snap.Collection), len(wantCollection))
	}
	for _, item := range snap.Collection {
		if !wantCollection[item.ID] {
			t.Errorf("予期しないコレクションアイテム: %s", item.ID)
		}
	}

	// IsSavedはお気に入りIDセットから再計算される
	for _, r := range snap.Recipes {
		want := r.ID == "recipe-v60-kona"
		if r.IsSaved != want {
			t.Errorf("Recipe %s IsSaved = %v, want %v", r.ID, r.IsSaved, want)
		}
	}
}

// TestSession_SignIn_UnknownAccount は未登録アカウントでのサインインが
// エラーとなり未サインイン状態が維持されることをテストする。
func TestSession_SignIn_UnknownAccount(t *testing.T) {
	s := newTestSession(t, nil)

	err := s.SignIn(context.Background(), "ghost")
	if err == nil {
		t.Fatal("SignIn(ghost) error = nil, want AccountNotFound")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAccountNotFound {
		t.Errorf("error = %v, want code %s", err, model.ErrCodeAccountNotFound)
	}

	if snap := s.Snapshot(); snap.Phase() != PhaseSignedOut {
		t.Errorf("Phase() = %q, want %q", snap.Phase(), PhaseSignedOut)
	}
}

// TestSession_SwitchAccount_RecomputesIsSaved はアカウント切り替えで
// IsSavedフラグが切り替え先アカウント基準で再計算されることをテストする。
func TestSession_SwitchAccount_RecomputesIsSaved(t *testing.T) {
	favorites := map[string][]string{
		"hana":  {"recipe-v60-kona"},
		"kenji": {"recipe-aero-yirga"},
	}
	s := newTestSession(t, func(deps *Deps) {
		deps.Favorites = &mockFavoriteRepo{
			listIDsByOwnerFunc: func(ctx context.Context, accountID string) ([]string, error) {
				return favorites[accountID], nil
			},
		}
	})

	signIn(t, s, "hana")
	if err := s.SwitchAccount(context.Background(), "kenji"); err != nil {
		t.Fatalf("SwitchAccount(kenji) error = %v", err)
	}

	snap := s.Snapshot()
	if snap.Account.ID != "kenji" {
		t.Fatalf("Account.ID = %q, want %q", snap.Account.ID, "kenji")
	}
	for _, r := range snap.Recipes {
		want := r.ID == "recipe-aero-yirga"
		if r.IsSaved != want {
			t.Errorf("Recipe %s IsSaved = %v, want %v", r.ID, r.IsSaved, want)
		}
	}
}

// TestSession_SwitchAccount_FallbackToDefault は未登録IDへの切り替えが
// エラーを返しつつデフォルトアカウントへフォールバックすることをテストする。
func TestSession_SwitchAccount_FallbackToDefault(t *testing.T) {
	s := newTestSession(t, nil)
	signIn(t, s, "kenji")

	err := s.SwitchAccount(context.Background(), "ghost")
	if err == nil {
		t.Fatal("SwitchAccount(ghost) error = nil, want AccountNotFound")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAccountNotFound {
		t.Errorf("error = %v, want code %s", err, model.ErrCodeAccountNotFound)
	}

	snap := s.Snapshot()
	if snap.Account.ID != "hana" {
		t.Errorf("Account.ID = %q, want デフォルトの %q", snap.Account.ID, "hana")
	}
	if snap.Phase() != PhaseReady {
		t.Errorf("Phase() = %q, want %q", snap.Phase(), PhaseReady)
	}
}

// TestSession_SwitchAccount_StaleLoadDiscarded は切り替えで追い越された
// 古い読み込みの結果が破棄されることをテストする。
func TestSession_SwitchAccount_StaleLoadDiscarded(t *testing.T) {
	kenjiStarted := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	s := newTestSession(t, func(deps *Deps) {
		deps.Events = &mockEventRepo{
			listAllFunc: func(ctx context.Context) ([]model.BrewEvent, error) {
				// kenjiの読み込みだけを保留し、miaへの切り替えに追い越させる
				select {
				case <-kenjiStarted:
					return nil, nil
				default:
				}
				once.Do(func() { close(kenjiStarted) })
				<-release
				return []model.BrewEvent{{
					ID:             "stale-ev",
					CoffeeID:       "c-kona",
					CoffeeName:     "Kona Extra Fancy",
					Timestamp:      time.Now().UTC(),
					OwnerAccountID: "kenji",
				}}, nil
			},
		}
	})

	// サインイン時の読み込みを先に通す
	s.lock()
	s.authenticated = true
	s.account, _ = s.deps.Registry.Resolve("hana")
	s.unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.SwitchAccount(context.Background(), "kenji")
	}()
	<-kenjiStarted

	if err := s.SwitchAccount(context.Background(), "mia"); err != nil {
		t.Fatalf("SwitchAccount(mia) error = %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("SwitchAccount(kenji) error = %v", err)
	}

	snap := s.Snapshot()
	if snap.Account.ID != "mia" {
		t.Fatalf("Account.ID = %q, want %q", snap.Account.ID, "mia")
	}
	for _, e := range snap.Events {
		if e.ID == "stale-ev" {
			t.Error("追い越された読み込みの結果が状態に書き込まれている")
		}
	}
	if snap.Loading {
		t.Error("Loading = true, want false")
	}
}

// TestSession_SwitchAccount_ReentrantLoad は同一アカウントの読み込み進行中に
// 同じアカウントへの切り替えが追加の読み込みを起動しないことをテストする。
func TestSession_SwitchAccount_ReentrantLoad(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	var once sync.Once

	s := newTestSession(t, func(deps *Deps) {
		deps.Events = &mockEventRepo{
			listAllFunc: func(ctx context.Context) ([]model.BrewEvent, error) {
				mu.Lock()
				calls++
				mu.Unlock()
				once.Do(func() { close(started) })
				<-release
				return nil, nil
			},
		}
	})

	s.lock()
	s.authenticated = true
	s.account, _ = s.deps.Registry.Resolve("hana")
	s.unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.SwitchAccount(context.Background(), "kenji")
	}()
	<-started

	// 進行中と同一アカウントへの切り替えは即座に戻る
	if err := s.SwitchAccount(context.Background(), "kenji"); err != nil {
		t.Fatalf("再入SwitchAccount(kenji) error = %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("SwitchAccount(kenji) error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("ListAll呼び出し回数 = %d, want 1", calls)
	}
}

// TestSession_LoadFailure_RestoresPriorState は読み込み失敗時にエラーが記録され、
// 保管済みの直前の正常状態が復元されることをテストする。
func TestSession_LoadFailure_RestoresPriorState(t *testing.T) {
	var fail bool
	var mu sync.Mutex
	s := newTestSession(t, func(deps *Deps) {
		deps.Events = &mockEventRepo{
			listAllFunc: func(ctx context.Context) ([]model.BrewEvent, error) {
				mu.Lock()
				defer mu.Unlock()
				if fail {
					return nil, errors.New("connection refused")
				}
				return nil, nil
			},
		}
	})

	signIn(t, s, "hana")
	if err := s.SwitchAccount(context.Background(), "kenji"); err != nil {
		t.Fatalf("SwitchAccount(kenji) error = %v", err)
	}

	mu.Lock()
	fail = true
	mu.Unlock()

	err := s.SwitchAccount(context.Background(), "hana")
	if err == nil {
		t.Fatal("SwitchAccount(hana) error = nil, want LoadFailure")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeLoadFailure {
		t.Errorf("error = %v, want code %s", err, model.ErrCodeLoadFailure)
	}

	snap := s.Snapshot()
	if snap.Err == nil {
		t.Error("Snapshot().Err = nil, want LoadFailure")
	}
	if snap.Loading {
		t.Error("Loading = true, want false")
	}
	// 初回サインイン時に保管されたhanaの状態が復元されている
	if len(snap.Events) == 0 {
		t.Error("直前の正常状態が復元されていない: Eventsが空")
	}
	if !snap.Authenticated {
		t.Error("Authenticated = false, want true（読み込み失敗でも認証は維持）")
	}
}

// TestSession_AddCoffeeEvent は抽出イベントの記録が楽観的に反映され、
// ID・タイムスタンプ・所有者が確定されることをテストする。
func TestSession_AddCoffeeEvent(t *testing.T) {
	inserted := make(chan model.BrewEvent, 1)
	s := newTestSession(t, func(deps *Deps) {
		deps.Events = &mockEventRepo{
			insertFunc: func(ctx context.Context, event *model.BrewEvent) error {
				inserted <- *event
				return nil
			},
		}
	})
	signIn(t, s, "hana")

	event, err := s.AddCoffeeEvent(model.BrewEventDraft{
		CoffeeID:   "c-geisha",
		CoffeeName: "Panama Geisha",
		Rating:     5,
		Notes:      `<script>alert("x")</script>ジャスミンの香り`,
	})
	if err != nil {
		t.Fatalf("AddCoffeeEvent() error = %v", err)
	}

	if event.ID == "" {
		t.Error("event.ID が採番されていない")
	}
	if event.OwnerAccountID != "hana" {
		t.Errorf("OwnerAccountID = %q, want %q", event.OwnerAccountID, "hana")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp が設定されていない")
	}
	if event.Notes != "ジャスミンの香り" {
		t.Errorf("Notes = %q, サニタイズされていない", event.Notes)
	}

	// リモート往復を待たずにフィードへ現れる
	snap := s.Snapshot()
	if snap.Events[0].ID != event.ID {
		t.Errorf("Events[0].ID = %q, want %q", snap.Events[0].ID, event.ID)
	}
	if snap.CoffeeEvents[0].ID != event.ID {
		t.Errorf("CoffeeEvents[0].ID = %q, want %q", snap.CoffeeEvents[0].ID, event.ID)
	}

	select {
	case got := <-inserted:
		if got.ID != event.ID {
			t.Errorf("Insertされたevent.ID = %q, want %q", got.ID, event.ID)
		}
	case <-time.After(2 * time.Second):
		t.Error("リモートへのInsertが呼ばれていない")
	}
}

// TestSession_AddCoffeeEvent_Validation は必須項目欠落時に部分的な書き込みが
// 発生しないことをテストする。
func TestSession_AddCoffeeEvent_Validation(t *testing.T) {
	s := newTestSession(t, nil)
	signIn(t, s, "hana")
	before := len(s.Snapshot().Events)

	drafts := []model.BrewEventDraft{
		{CoffeeName: "名無しブレンド"},
		{CoffeeID: "c-kona", CoffeeName: "Kona Extra Fancy", Rating: 6},
		{CoffeeID: "c-kona", CoffeeName: "Kona Extra Fancy", Rating: -1},
	}
	for _, draft := range drafts {
		_, err := s.AddCoffeeEvent(draft)
		if err == nil {
			t.Fatalf("AddCoffeeEvent(%+v) error = nil, want ValidationError", draft)
		}
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailure {
			t.Errorf("error = %v, want code %s", err, model.ErrCodeValidationFailure)
		}
	}

	if got := len(s.Snapshot().Events); got != before {
		t.Errorf("len(Events) = %d, want %d（部分的な書き込みなし）", got, before)
	}

	// 0（未評価）と5は有効
	for _, rating := range []int{0, 5} {
		if _, err := s.AddCoffeeEvent(model.BrewEventDraft{
			CoffeeID: "c-kona", CoffeeName: "Kona Extra Fancy", Rating: rating,
		}); err != nil {
			t.Errorf("AddCoffeeEvent(rating=%d) error = %v, want nil", rating, err)
		}
	}
}

// TestSession_RemoveCoffeeEvent はイベント除去が両リストへ波及し、
// 存在しないIDの除去が何もしないことをテストする。
func TestSession_RemoveCoffeeEvent(t *testing.T) {
	s := newTestSession(t, nil)
	signIn(t, s, "hana")

	event, err := s.AddCoffeeEvent(model.BrewEventDraft{CoffeeID: "c-kona", CoffeeName: "Kona Extra Fancy"})
	if err != nil {
		t.Fatalf("AddCoffeeEvent() error = %v", err)
	}

	s.RemoveCoffeeEvent(event.ID)
	snap := s.Snapshot()
	for _, e := range snap.Events {
		if e.ID == event.ID {
			t.Error("共有タイムラインからイベントが除去されていない")
		}
	}
	for _, e := range snap.CoffeeEvents {
		if e.ID == event.ID {
			t.Error("自身のイベントからイベントが除去されていない")
		}
	}

	// 冪等: 2回目の除去は状態を変えない
	before := s.Snapshot()
	s.RemoveCoffeeEvent(event.ID)
	after := s.Snapshot()
	if !reflect.DeepEqual(before.AccountState, after.AccountState) {
		t.Error("存在しないIDの除去が状態を変更した")
	}
}

// TestSession_AddToCollection_SetSemantics はコレクション追加のセット意味論と
// 正規化（所有者・プレースホルダ画像・タイムスタンプ）をテストする。
func TestSession_AddToCollection_SetSemantics(t *testing.T) {
	s := newTestSession(t, nil)
	signIn(t, s, "mia")
	before := len(s.Snapshot().Collection)

	first, err := s.AddToCollection(model.CoffeeItem{ID: "c-new", Name: "新しい豆"})
	if err != nil {
		t.Fatalf("AddToCollection() error = %v", err)
	}
	if first.OwnerAccountID != "mia" {
		t.Errorf("OwnerAccountID = %q, want %q", first.OwnerAccountID, "mia")
	}
	if first.ImageRef != model.PlaceholderImageRef {
		t.Errorf("ImageRef = %q, want %q", first.ImageRef, model.PlaceholderImageRef)
	}
	if first.Timestamp.IsZero() {
		t.Error("Timestamp が設定されていない")
	}

	// 同一IDの再追加は挿入せず、正規化済みアイテムを返す
	second, err := s.AddToCollection(model.CoffeeItem{ID: "c-new", Name: "新しい豆"})
	if err != nil {
		t.Fatalf("再追加のAddToCollection() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("再追加の戻り値 = %+v, want %+v", second, first)
	}
	if got := len(s.Snapshot().Collection); got != before+1 {
		t.Errorf("len(Collection) = %d, want %d", got, before+1)
	}
}

// TestSession_RemoveFromWishlist_Idempotent はウィッシュリスト除去の冪等性をテストする。
func TestSession_RemoveFromWishlist_Idempotent(t *testing.T) {
	s := newTestSession(t, nil)
	signIn(t, s, "hana")

	if _, err := s.AddToWishlist(model.CoffeeItem{ID: "c-wish", Name: "欲しい豆"}); err != nil {
		t.Fatalf("AddToWishlist() error = %v", err)
	}

	s.RemoveFromWishlist("c-wish")
	if got := len(s.Snapshot().Wishlist); got != 0 {
		t.Fatalf("len(Wishlist) = %d, want 0", got)
	}

	s.RemoveFromWishlist("c-wish")
	if got := len(s.Snapshot().Wishlist); got != 0 {
		t.Errorf("2回目の除去後 len(Wishlist) = %d, want 0", got)
	}
}

// TestSession_ToggleFavorite_DualWrite はお気に入りセットとIsSavedフラグが
// 常に同時に更新されることをテストする。
func TestSession_ToggleFavorite_DualWrite(t *testing.T) {
	s := newTestSession(t, nil)
	signIn(t, s, "hana")

	assertConsistent := func(t *testing.T, snap Snapshot, recipeID string, want bool) {
		t.Helper()
		inSet := false
		for _, id := range snap.FavoriteIDs {
			if id == recipeID {
				inSet = true
			}
		}
		if inSet != want {
			t.Errorf("FavoriteIDsの所属 = %v, want %v", inSet, want)
		}
		for _, r := range snap.Recipes {
			if r.ID == recipeID && r.IsSaved != want {
				t.Errorf("Recipe.IsSaved = %v, want %v", r.IsSaved, want)
			}
		}
	}

	if err := s.ToggleFavorite("recipe-v60-kona"); err != nil {
		t.Fatalf("ToggleFavorite() error = %v", err)
	}
	assertConsistent(t, s.Snapshot(), "recipe-v60-kona", true)

	// 2回のトグルで正確に元の状態へ戻る
	if err := s.ToggleFavorite("recipe-v60-kona"); err != nil {
		t.Fatalf("2回目のToggleFavorite() error = %v", err)
	}
	assertConsistent(t, s.Snapshot(), "recipe-v60-kona", false)
}

// TestSession_ToggleFavorite_UnknownRecipe は存在しないレシピのトグルが
// 状態を変更せずエラーを返すことをテストする。
func TestSession_ToggleFavorite_UnknownRecipe(t *testing.T) {
	s := newTestSession(t, nil)
	signIn(t, s, "hana")
	before := s.Snapshot()

	err := s.ToggleFavorite("recipe-ghost")
	if err == nil {
		t.Fatal("ToggleFavorite(ghost) error = nil, want RecipeNotFound")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRecipeNotFound {
		t.Errorf("error = %v, want code %s", err, model.ErrCodeRecipeNotFound)
	}

	after := s.Snapshot()
	if !reflect.DeepEqual(before.AccountState, after.AccountState) {
		t.Error("存在しないレシピのトグルが状態を変更した")
	}
}

// TestSession_UpdateRecipe_Upsert は既存IDの置き換えと未存在IDの追加（upsert意味論）
// をテストする。
func TestSession_UpdateRecipe_Upsert(t *testing.T) {
	s := newTestSession(t, nil)
	signIn(t, s, "hana")
	ctx := context.Background()

	// 既存IDは置き換え
	updated := model.Recipe{ID: "recipe-v60-kona", CoffeeID: "c-kona", Method: "V60", CoffeeGrams: 18, CreatorID: "hana"}
	if err := s.UpdateRecipe(ctx, updated); err != nil {
		t.Fatalf("UpdateRecipe() error = %v", err)
	}
	snap := s.Snapshot()
	found := false
	for _, r := range snap.Recipes {
		if r.ID == "recipe-v60-kona" {
			found = true
			if r.CoffeeGrams != 18 {
				t.Errorf("CoffeeGrams = %v, want 18", r.CoffeeGrams)
			}
		}
	}
	if !found {
		t.Fatal("更新対象のレシピが見つからない")
	}

	// 未存在IDは追加へフォールバック
	poolSize := len(snap.Recipes)
	if err := s.UpdateRecipe(ctx, model.Recipe{ID: "recipe-new", Method: "Siphon"}); err != nil {
		t.Fatalf("新規IDのUpdateRecipe() error = %v", err)
	}
	if got := len(s.Snapshot().Recipes); got != poolSize+1 {
		t.Errorf("len(Recipes) = %d, want %d", got, poolSize+1)
	}
}

// TestSession_SignOut_ResetsEverything はサインアウトで全フィールドが
// 初期値へ戻り、どこにも古い値が残らないことをテストする。
func TestSession_SignOut_ResetsEverything(t *testing.T) {
	s := newTestSession(t, func(deps *Deps) {
		deps.Favorites = &mockFavoriteRepo{
			listIDsByOwnerFunc: func(ctx context.Context, accountID string) ([]string, error) {
				return []string{"recipe-v60-kona"}, nil
			},
		}
	})
	signIn(t, s, "hana")
	if err := s.ToggleFavorite("recipe-aero-yirga"); err != nil {
		t.Fatalf("ToggleFavorite() error = %v", err)
	}

	s.SignOut()

	snap := s.Snapshot()
	if snap.Authenticated {
		t.Error("Authenticated = true, want false")
	}
	if snap.Loading {
		t.Error("Loading = true, want false")
	}
	if snap.Err != nil {
		t.Errorf("Err = %v, want nil", snap.Err)
	}
	if snap.Account != (model.Account{}) {
		t.Errorf("Account = %+v, want ゼロ値", snap.Account)
	}
	if !reflect.DeepEqual(snap.AccountState, AccountState{}.clone()) {
		t.Errorf("AccountState = %+v, want 空", snap.AccountState)
	}

	// サインアウト後のミューテーションは拒否される
	if _, err := s.AddToCollection(model.CoffeeItem{ID: "c-x", Name: "x"}); err == nil {
		t.Error("サインアウト後のAddToCollection error = nil, want NotSignedIn")
	}
}

// TestSession_Changes_Coalesced は変化通知が合流され、受信側をブロックしない
// ことをテストする。
func TestSession_Changes_Coalesced(t *testing.T) {
	s := newTestSession(t, nil)
	signIn(t, s, "hana")

	// 受信せずに複数回ミューテーションしてもブロックしない
	for i := 0; i < 5; i++ {
		if _, err := s.AddToWishlist(model.CoffeeItem{ID: "c-w" + string(rune('a'+i)), Name: "豆"}); err != nil {
			t.Fatalf("AddToWishlist() error = %v", err)
		}
	}

	select {
	case <-s.Changes():
	default:
		t.Error("変化通知が受信できない")
	}
}

// TestSession_LocalCacheFallback はコレクションのリモート取得失敗時に
// ローカルキャッシュへフォールバックすることをテストする。
func TestSession_LocalCacheFallback(t *testing.T) {
	local := localstore.NewMemoryStore()
	if err := local.Set("collection/hana", []byte(`[{"ID":"c-cached","Name":"キャッシュ豆","OwnerAccountID":"hana"}]`)); err != nil {
		t.Fatalf("キャッシュの準備に失敗: %v", err)
	}

	s := newTestSession(t, func(deps *Deps) {
		deps.Local = local
		deps.Collection = &mockCoffeeItemRepo{
			listByOwnerFunc: func(ctx context.Context, accountID string) ([]model.CoffeeItem, error) {
				return nil, errors.New("connection refused")
			},
		}
	})

	signIn(t, s, "hana")

	found := false
	for _, item := range s.Snapshot().Collection {
		if item.ID == "c-cached" {
			found = true
		}
	}
	if !found {
		t.Error("ローカルキャッシュのアイテムがコレクションに含まれていない")
	}
}
