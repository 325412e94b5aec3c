package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/brewlog/internal/feed"
	"github.com/hitoshi/brewlog/internal/localstore"
	"github.com/hitoshi/brewlog/internal/metrics"
	"github.com/hitoshi/brewlog/internal/model"
	"github.com/hitoshi/brewlog/internal/repository"
	"github.com/hitoshi/brewlog/internal/security"
	"github.com/hitoshi/brewlog/internal/seed"
)

// Phase はセッションの状態機械上の位置を表す。
type Phase string

const (
	// PhaseSignedOut は未サインイン状態。
	PhaseSignedOut Phase = "signed_out"
	// PhaseLoading はアカウントデータ読み込み中。
	PhaseLoading Phase = "loading"
	// PhaseReady は読み込み完了済み。
	PhaseReady Phase = "ready"
)

// Snapshot はUIが観測するセッション状態の不変コピー。
type Snapshot struct {
	Account       model.Account
	Authenticated bool
	Loading       bool
	Err           error
	AccountState
}

// Phase は状態機械上の現在位置を返す。
func (s Snapshot) Phase() Phase {
	switch {
	case !s.Authenticated:
		return PhaseSignedOut
	case s.Loading:
		return PhaseLoading
	default:
		return PhaseReady
	}
}

// Deps はSessionの依存関係を束ねる。
type Deps struct {
	Catalog    *seed.Catalog
	Registry   *Registry
	States     *StateRepository
	Events     repository.EventRepository
	Collection repository.CoffeeItemRepository
	Wishlist   repository.CoffeeItemRepository
	Favorites  repository.FavoriteRepository
	Recipes    repository.RecipeRepository
	Local      localstore.Store
	Sanitizer  security.NoteSanitizerService
	Logger     *slog.Logger
	Metrics    metrics.MetricsCollector
	// Exclusions は公開アクティビティを持たないアカウントの除外リスト。
	Exclusions []string
	// LoadTimeout はリモート読み込み全体のタイムアウト。
	LoadTimeout time.Duration
}

// Session はアカウントスコープのセッション状態を排他的に所有する。
// 全てのインメモリミューテーションはロック下で同期的・原子的に行われ、
// 呼び出し側から途中状態が観測されることはない。
// I/O（リモート読み込み・永続化）はロックの外で行う。
type Session struct {
	deps       Deps
	exclusions map[string]struct{}

	mu            chan struct{} // サイズ1のセマフォ（ロック中のチャネル送信を避けるためsync.Mutexではなく明示的に管理）
	account       model.Account
	authenticated bool
	loading       bool
	lastErr       error
	state         AccountState

	// loadToken は単調増加する「現在のアカウント」トークン。
	// 古い読み込みが後から結果を書き込むことを防ぐ（stale-load guard）。
	loadToken  uint64
	loadingFor string // 読み込み進行中のアカウントID（再入ガード）

	changes chan struct{}
}

// NewSession はSessionを生成する。
func NewSession(deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NopCollector{}
	}
	if deps.LoadTimeout <= 0 {
		deps.LoadTimeout = 15 * time.Second
	}
	s := &Session{
		deps:       deps,
		exclusions: feed.ExclusionSet(deps.Exclusions),
		mu:         make(chan struct{}, 1),
		changes:    make(chan struct{}, 1),
	}
	return s
}

func (s *Session) lock()   { s.mu <- struct{}{} }
func (s *Session) unlock() { <-s.mu }

// notifyChange は観測者へ状態変化を通知する。連続する変化は合流する。
func (s *Session) notifyChange() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Changes は状態変化の通知チャネルを返す。
// 通知は合流されるため、受信側は都度Snapshotを取り直すこと。
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

// Snapshot は現在のセッション状態の不変コピーを返す。
func (s *Session) Snapshot() Snapshot {
	s.lock()
	defer s.unlock()
	return Snapshot{
		Account:       s.account,
		Authenticated: s.authenticated,
		Loading:       s.loading,
		Err:           s.lastErr,
		AccountState:  s.state.clone(),
	}
}

// SignIn は認証状態を設定し、指定アカウントのデータを読み込む。
// 読み込み失敗はエラーとして報告されるが、認証状態は維持される。
// 未登録アカウントの場合は認証せずAccountNotFoundエラーを返す。
func (s *Session) SignIn(ctx context.Context, accountID string) error {
	account, err := s.deps.Registry.Resolve(accountID)
	if err != nil {
		return err
	}

	s.lock()
	s.authenticated = true
	s.account = account
	s.state = AccountState{}
	s.lastErr = nil
	s.loading = true
	s.loadToken++
	token := s.loadToken
	s.loadingFor = account.ID
	s.unlock()
	s.notifyChange()

	return s.load(ctx, account.ID, token)
}

// SignOut はセッション状態を全て初期値へ戻す。
// どのフィールドにも古い値が残らないことがテスト可能な性質として保証される。
func (s *Session) SignOut() {
	s.lock()
	s.account = model.Account{}
	s.authenticated = false
	s.loading = false
	s.lastErr = nil
	s.state = AccountState{}
	s.loadToken++ // 進行中の読み込みを無効化する
	s.loadingFor = ""
	s.unlock()

	s.deps.States.Clear()
	s.notifyChange()
}

// SwitchAccount はアクティブアカウントを切り替える。
// 未登録IDの場合はAccountNotFoundエラーを返しつつ、
// 設定済みデフォルトアカウントへフォールバックして処理を継続する。
//
// 切り替え時は新アカウントの読み込み開始前に現在の状態を必ずクリアする。
// このクリアとトークン更新は同一ロック内で行われるため、
// 2アカウントのデータが混在した状態が観測されることはない。
func (s *Session) SwitchAccount(ctx context.Context, accountID string) error {
	target, resolveErr := s.deps.Registry.Resolve(accountID)
	if resolveErr != nil {
		target = s.deps.Registry.Default()
		s.deps.Logger.Warn("未登録アカウントへの切り替え要求。デフォルトへフォールバックします",
			slog.String("requested", accountID),
			slog.String("fallback", target.ID),
		)
	}

	s.lock()
	if !s.authenticated {
		s.unlock()
		return model.NewNotSignedInError()
	}
	// 同一アカウントの読み込みが進行中なら追加の読み込みを起動しない（再入ガード）
	if s.loading && s.loadingFor == target.ID {
		s.unlock()
		return resolveErr
	}
	// 直前の正常状態を保管してからクリアする
	if !s.loading && s.account.ID != "" {
		s.deps.States.Put(s.account.ID, s.state)
	}
	s.state = AccountState{}
	s.account = target
	s.lastErr = nil
	s.loading = true
	s.loadToken++
	token := s.loadToken
	s.loadingFor = target.ID
	s.unlock()
	s.notifyChange()

	if err := s.load(ctx, target.ID, token); err != nil {
		return err
	}
	return resolveErr
}

// load は指定アカウントの状態を構築してセッションへ反映する。
// tokenが現在の「アカウントトークン」と一致しない場合、結果は破棄される。
// 失敗時はエラーをセッション状態へ取り込み、loadingは必ず解除される。
func (s *Session) load(ctx context.Context, accountID string, token uint64) error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.deps.LoadTimeout)
	defer cancel()

	built, err := s.buildState(ctx, accountID)

	s.lock()
	if s.loadToken != token {
		// 新しい切り替えに追い越された読み込みは結果を書き込まない
		s.unlock()
		s.deps.Logger.Info("古い読み込み結果を破棄しました",
			slog.String("account_id", accountID),
		)
		return nil
	}
	s.loading = false
	s.loadingFor = ""
	if err != nil {
		s.lastErr = err
		// 保管済みの直前状態があれば復元し、空画面ではなく最後の正常表示を残す
		if cached, ok := s.deps.States.Get(accountID); ok {
			s.state = cached
		}
		s.unlock()
		s.notifyChange()
		s.deps.Metrics.RecordLoadFailure(accountID)
		s.deps.Logger.Error("アカウントデータの読み込みに失敗しました",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
		return err
	}
	s.state = *built
	s.lastErr = nil
	s.unlock()
	s.notifyChange()

	s.deps.States.Put(accountID, *built)
	s.persistCaches(accountID, built)
	s.deps.Metrics.RecordLoadSuccess(accountID)
	s.deps.Metrics.RecordLoadLatency(time.Since(start))
	s.deps.Logger.Info("アカウントデータを読み込みました",
		slog.String("account_id", accountID),
		slog.Int("event_count", len(built.Events)),
	)
	return nil
}

// buildState はシード・リモート・ローカルキャッシュからアカウント状態を構築する。
func (s *Session) buildState(ctx context.Context, accountID string) (*AccountState, error) {
	// リモートイベントの取得。フィードの核のため、失敗は読み込み失敗として扱う。
	remoteEvents, err := s.deps.Events.ListAll(ctx)
	if err != nil {
		return nil, model.NewLoadFailureError(err.Error())
	}

	all := feed.Aggregate(s.deps.Catalog.Timeline(), remoteEvents, s.exclusions)
	own := feed.OwnedBy(all, accountID)

	// コレクション: 明示保存分（リモート∪シード）と自身のイベント由来の合成分の和集合
	stored := s.listCoffeeItems(ctx, s.deps.Collection, "collection", accountID)
	stored = append(s.deps.Catalog.SavedCoffees(accountID), stored...)
	collection := unionCoffeeItems(stored, synthesizeFromEvents(own, accountID))

	wishlist := unionCoffeeItems(s.listCoffeeItems(ctx, s.deps.Wishlist, "wishlist", accountID), nil)

	favoriteIDs := s.listFavoriteIDs(ctx, accountID)

	// 共有レシピプール: シードを基礎に、リモートの同一IDで置き換える
	recipes := mergeRecipes(s.deps.Catalog.Recipes(), s.listRecipes(ctx))
	favSet := make(map[string]bool, len(favoriteIDs))
	for _, id := range favoriteIDs {
		favSet[id] = true
	}
	// IsSavedは閲覧アカウント依存の派生フラグのため、切り替えのたびに再計算する
	for i := range recipes {
		recipes[i].IsSaved = favSet[recipes[i].ID]
	}

	graph := model.NewFollowGraph(s.deps.Catalog.FollowPolicy().Edges(s.deps.Registry.All()))

	return &AccountState{
		Events:       all,
		CoffeeEvents: own,
		Collection:   collection,
		Wishlist:     wishlist,
		FavoriteIDs:  favoriteIDs,
		Recipes:      recipes,
		Following:    graph.Following(accountID),
		Followers:    graph.Followers(accountID),
	}, nil
}

// --- ミューテーションAPI ---

// AddCoffeeEvent は抽出イベントを確定し、楽観的にフィードへ反映する。
// IDと現在時刻を採番し、所有者をアクティブアカウントに設定する。
// リモートへの永続化は非同期のベストエフォートで行い、
// イベントは往復を待たずに即座にフィードへ現れる。
func (s *Session) AddCoffeeEvent(draft model.BrewEventDraft) (model.BrewEvent, error) {
	if draft.CoffeeID == "" || draft.CoffeeName == "" {
		return model.BrewEvent{}, model.NewValidationError("coffee_idとcoffee_nameは必須です")
	}
	// 評価は1〜5、0は未評価を表す
	if draft.Rating < 0 || draft.Rating > 5 {
		return model.BrewEvent{}, model.NewValidationError("ratingは0〜5の範囲で指定してください")
	}

	notes := draft.Notes
	if s.deps.Sanitizer != nil {
		notes = s.deps.Sanitizer.Sanitize(notes)
	}

	s.lock()
	if !s.authenticated {
		s.unlock()
		return model.BrewEvent{}, model.NewNotSignedInError()
	}
	event := model.BrewEvent{
		ID:             uuid.New().String(),
		CoffeeID:       draft.CoffeeID,
		CoffeeName:     draft.CoffeeName,
		Roaster:        draft.Roaster,
		ImageRef:       draft.ImageRef,
		Rating:         draft.Rating,
		Timestamp:      time.Now().UTC(),
		BrewingMethod:  draft.BrewingMethod,
		GrindSize:      draft.GrindSize,
		Notes:          notes,
		OwnerAccountID: s.account.ID,
		Friends:        append([]string(nil), draft.Friends...),
	}
	// 自身のイベントと共有タイムラインの両方へ先頭追加する
	s.state.CoffeeEvents = append([]model.BrewEvent{event}, s.state.CoffeeEvents...)
	s.state.Events = append([]model.BrewEvent{event}, s.state.Events...)
	s.unlock()
	s.notifyChange()

	s.deps.Metrics.RecordEventLogged()
	go s.persistEvent(event)

	return event, nil
}

// persistEvent はイベントをリモートへベストエフォートで保存する。
func (s *Session) persistEvent(event model.BrewEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.LoadTimeout)
	defer cancel()
	if err := s.deps.Events.Insert(ctx, &event); err != nil {
		s.deps.Logger.Error("イベントのリモート保存に失敗しました",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
	}
}

// RemoveCoffeeEvent はイベントを自身のイベントと共有タイムラインの両方から除去する。
// 存在しないIDの除去は何もしない（冪等）。
func (s *Session) RemoveCoffeeEvent(eventID string) {
	s.lock()
	removed := false
	s.state.CoffeeEvents, removed = removeEvent(s.state.CoffeeEvents, eventID, removed)
	s.state.Events, removed = removeEvent(s.state.Events, eventID, removed)
	s.unlock()

	if !removed {
		return
	}
	s.notifyChange()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.deps.LoadTimeout)
		defer cancel()
		if err := s.deps.Events.Delete(ctx, eventID); err != nil {
			s.deps.Logger.Error("イベントのリモート削除に失敗しました",
				slog.String("event_id", eventID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func removeEvent(events []model.BrewEvent, id string, removed bool) ([]model.BrewEvent, bool) {
	out := events[:0]
	for _, e := range events {
		if e.ID == id {
			removed = true
			continue
		}
		out = append(out, e)
	}
	return out, removed
}

// AddToCollection はコーヒーをコレクションへ正規化して追加する。
// 既に同一IDが存在する場合は挿入せず、正規化済みアイテムをそのまま返す（冪等）。
func (s *Session) AddToCollection(item model.CoffeeItem) (model.CoffeeItem, error) {
	return s.addCoffeeItem(item, &s.state.Collection, s.deps.Collection, "collection")
}

// AddToWishlist はコーヒーをウィッシュリストへ正規化して追加する。
// 既に同一IDが存在する場合は挿入せず、正規化済みアイテムをそのまま返す（冪等）。
func (s *Session) AddToWishlist(item model.CoffeeItem) (model.CoffeeItem, error) {
	return s.addCoffeeItem(item, &s.state.Wishlist, s.deps.Wishlist, "wishlist")
}

// addCoffeeItem はコレクション／ウィッシュリスト共通の追加処理。
// targetはセッション状態内のスライスを指すため、ロック下でのみ参照する。
func (s *Session) addCoffeeItem(
	item model.CoffeeItem,
	target *[]model.CoffeeItem,
	repo repository.CoffeeItemRepository,
	cacheKind string,
) (model.CoffeeItem, error) {
	if item.ID == "" || item.Name == "" {
		return model.CoffeeItem{}, model.NewValidationError("idとnameは必須です")
	}

	s.lock()
	if !s.authenticated {
		s.unlock()
		return model.CoffeeItem{}, model.NewNotSignedInError()
	}

	normalized := item
	normalized.OwnerAccountID = s.account.ID
	if normalized.ImageRef == "" {
		normalized.ImageRef = model.PlaceholderImageRef
	}
	if normalized.Timestamp.IsZero() {
		normalized.Timestamp = time.Now().UTC()
	}

	exists := false
	for _, existing := range *target {
		if existing.ID == normalized.ID {
			exists = true
			normalized = existing
			break
		}
	}
	if !exists {
		*target = append(*target, normalized)
	}
	accountID := s.account.ID
	items := append([]model.CoffeeItem(nil), *target...)
	s.unlock()

	if exists {
		return normalized, nil
	}
	s.notifyChange()

	s.writeCache(cacheKind, accountID, items)
	go func(it model.CoffeeItem) {
		ctx, cancel := context.WithTimeout(context.Background(), s.deps.LoadTimeout)
		defer cancel()
		if err := repo.Upsert(ctx, &it); err != nil {
			s.deps.Logger.Error("アイテムのリモート保存に失敗しました",
				slog.String("item_id", it.ID),
				slog.String("kind", cacheKind),
				slog.String("error", err.Error()),
			)
		}
	}(normalized)

	return normalized, nil
}

// RemoveFromCollection はコレクションからアイテムを除去する。冪等。
func (s *Session) RemoveFromCollection(itemID string) {
	s.removeCoffeeItem(itemID, &s.state.Collection, s.deps.Collection, "collection")
}

// RemoveFromWishlist はウィッシュリストからアイテムを除去する。冪等。
func (s *Session) RemoveFromWishlist(itemID string) {
	s.removeCoffeeItem(itemID, &s.state.Wishlist, s.deps.Wishlist, "wishlist")
}

func (s *Session) removeCoffeeItem(
	itemID string,
	target *[]model.CoffeeItem,
	repo repository.CoffeeItemRepository,
	cacheKind string,
) {
	s.lock()
	out := (*target)[:0]
	removed := false
	for _, existing := range *target {
		if existing.ID == itemID {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	*target = out
	accountID := s.account.ID
	items := append([]model.CoffeeItem(nil), *target...)
	s.unlock()

	if !removed {
		return
	}
	s.notifyChange()

	s.writeCache(cacheKind, accountID, items)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.deps.LoadTimeout)
		defer cancel()
		if err := repo.Delete(ctx, accountID, itemID); err != nil {
			s.deps.Logger.Error("アイテムのリモート削除に失敗しました",
				slog.String("item_id", itemID),
				slog.String("kind", cacheKind),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// ToggleFavorite はお気に入りセットの所属と対象レシピのIsSavedフラグを
// 同一操作内で反転させる。2つのビューが食い違わないことは不変条件であり、
// 最適化ではない。対象レシピが存在しない場合は状態を変更せずエラーを返す。
func (s *Session) ToggleFavorite(recipeID string) error {
	s.lock()
	if !s.authenticated {
		s.unlock()
		return model.NewNotSignedInError()
	}

	recipeIdx := -1
	for i := range s.state.Recipes {
		if s.state.Recipes[i].ID == recipeID {
			recipeIdx = i
			break
		}
	}
	if recipeIdx < 0 {
		s.unlock()
		return model.NewRecipeNotFoundError(recipeID)
	}

	nowFavorite := !s.state.hasFavorite(recipeID)
	if nowFavorite {
		s.state.FavoriteIDs = append(s.state.FavoriteIDs, recipeID)
	} else {
		out := s.state.FavoriteIDs[:0]
		for _, id := range s.state.FavoriteIDs {
			if id != recipeID {
				out = append(out, id)
			}
		}
		s.state.FavoriteIDs = out
	}
	s.state.Recipes[recipeIdx].IsSaved = nowFavorite

	accountID := s.account.ID
	favorites := append([]string(nil), s.state.FavoriteIDs...)
	s.unlock()
	s.notifyChange()

	s.writeCache("favorites", accountID, favorites)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.deps.LoadTimeout)
		defer cancel()
		var err error
		if nowFavorite {
			err = s.deps.Favorites.Add(ctx, accountID, recipeID)
		} else {
			err = s.deps.Favorites.Remove(ctx, accountID, recipeID)
		}
		if err != nil {
			s.deps.Logger.Error("お気に入りのリモート更新に失敗しました",
				slog.String("recipe_id", recipeID),
				slog.String("error", err.Error()),
			)
		}
	}()

	return nil
}

// AddRecipe はレシピを共有プールへ追加する。
// 現在のミューテーションは同期的だが、将来のバッキングストア呼び出しに備えて
// 呼び出し側からは完了シグナル（エラー戻り値）付きの非同期操作として扱う。
func (s *Session) AddRecipe(ctx context.Context, recipe model.Recipe) error {
	if recipe.ID == "" || recipe.Method == "" {
		return model.NewValidationError("idとmethodは必須です")
	}

	s.lock()
	if !s.authenticated {
		s.unlock()
		return model.NewNotSignedInError()
	}
	recipe.IsSaved = s.state.hasFavorite(recipe.ID)
	s.state.Recipes = append(s.state.Recipes, recipe)
	s.unlock()
	s.notifyChange()

	go s.persistRecipe(recipe)
	return nil
}

// UpdateRecipe は同一IDのレシピを置き換える。見つからない場合はAddRecipeへ委譲する
// （upsert意味論）。
func (s *Session) UpdateRecipe(ctx context.Context, recipe model.Recipe) error {
	if recipe.ID == "" || recipe.Method == "" {
		return model.NewValidationError("idとmethodは必須です")
	}

	s.lock()
	if !s.authenticated {
		s.unlock()
		return model.NewNotSignedInError()
	}
	found := false
	for i := range s.state.Recipes {
		if s.state.Recipes[i].ID == recipe.ID {
			recipe.IsSaved = s.state.hasFavorite(recipe.ID)
			s.state.Recipes[i] = recipe
			found = true
			break
		}
	}
	s.unlock()

	if !found {
		return s.AddRecipe(ctx, recipe)
	}
	s.notifyChange()

	go s.persistRecipe(recipe)
	return nil
}

// persistRecipe はレシピをリモートへベストエフォートで保存する。
func (s *Session) persistRecipe(recipe model.Recipe) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.LoadTimeout)
	defer cancel()
	if err := s.deps.Recipes.Upsert(ctx, &recipe); err != nil {
		s.deps.Logger.Error("レシピのリモート保存に失敗しました",
			slog.String("recipe_id", recipe.ID),
			slog.String("error", err.Error()),
		)
	}
}

// --- 読み込みヘルパー ---

// listCoffeeItems はリモートからアイテム一覧を取得する。
// 失敗時はローカルキャッシュへフォールバックし、それも無ければ空を返す。
func (s *Session) listCoffeeItems(
	ctx context.Context,
	repo repository.CoffeeItemRepository,
	cacheKind, accountID string,
) []model.CoffeeItem {
	items, err := repo.ListByOwner(ctx, accountID)
	if err == nil {
		return items
	}
	s.deps.Logger.Warn("リモート取得に失敗したためローカルキャッシュを使用します",
		slog.String("kind", cacheKind),
		slog.String("error", err.Error()),
	)
	var cached []model.CoffeeItem
	s.readCache(cacheKind, accountID, &cached)
	return cached
}

// listFavoriteIDs はお気に入りID一覧を取得する。失敗時はローカルキャッシュを使用する。
func (s *Session) listFavoriteIDs(ctx context.Context, accountID string) []string {
	ids, err := s.deps.Favorites.ListIDsByOwner(ctx, accountID)
	if err == nil {
		return ids
	}
	s.deps.Logger.Warn("お気に入りのリモート取得に失敗したためローカルキャッシュを使用します",
		slog.String("error", err.Error()),
	)
	var cached []string
	s.readCache("favorites", accountID, &cached)
	return cached
}

// listRecipes はリモートのレシピプールを取得する。失敗時は空を返す（シードのみで構成）。
func (s *Session) listRecipes(ctx context.Context) []model.Recipe {
	recipes, err := s.deps.Recipes.ListAll(ctx)
	if err != nil {
		s.deps.Logger.Warn("レシピプールのリモート取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return recipes
}

// persistCaches は読み込み成功後の状態をローカルキャッシュへ書き出す。
func (s *Session) persistCaches(accountID string, state *AccountState) {
	s.writeCache("collection", accountID, state.Collection)
	s.writeCache("wishlist", accountID, state.Wishlist)
	s.writeCache("favorites", accountID, state.FavoriteIDs)
}

func cacheKey(kind, accountID string) string {
	return kind + "/" + accountID
}

// writeCache は値をJSONでローカルストアへ書き込む。失敗はログのみ。
func (s *Session) writeCache(kind, accountID string, value any) {
	if s.deps.Local == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.deps.Local.Set(cacheKey(kind, accountID), data); err != nil {
		s.deps.Logger.Warn("ローカルキャッシュの書き込みに失敗しました",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
}

// readCache はローカルストアからJSON値を読み出す。失敗は無視する。
func (s *Session) readCache(kind, accountID string, out any) {
	if s.deps.Local == nil {
		return
	}
	data, ok, err := s.deps.Local.Get(cacheKey(kind, accountID))
	if err != nil || !ok {
		return
	}
	_ = json.Unmarshal(data, out)
}

// --- 純粋ヘルパー ---

// unionCoffeeItems はIDベースのセット和集合を作る。先に出現したアイテムを優先する。
func unionCoffeeItems(primary, secondary []model.CoffeeItem) []model.CoffeeItem {
	seen := make(map[string]bool, len(primary)+len(secondary))
	out := make([]model.CoffeeItem, 0, len(primary)+len(secondary))
	for _, item := range primary {
		if item.ID == "" || seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	for _, item := range secondary {
		if item.ID == "" || seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out
}

// synthesizeFromEvents は自身の抽出イベントからコレクションアイテムを合成する。
// 記録済みの distinct CoffeeID ごとに1件を生成する。
func synthesizeFromEvents(events []model.BrewEvent, accountID string) []model.CoffeeItem {
	seen := make(map[string]bool, len(events))
	var items []model.CoffeeItem
	for _, e := range events {
		if e.CoffeeID == "" || seen[e.CoffeeID] {
			continue
		}
		seen[e.CoffeeID] = true
		imageRef := e.ImageRef
		if imageRef == "" {
			imageRef = model.PlaceholderImageRef
		}
		items = append(items, model.CoffeeItem{
			ID:             e.CoffeeID,
			Name:           e.CoffeeName,
			Roaster:        e.Roaster,
			ImageRef:       imageRef,
			Timestamp:      e.Timestamp,
			OwnerAccountID: accountID,
		})
	}
	return items
}

// mergeRecipes はシードのレシピプールにリモートのレシピを重ねる。
// 同一IDはリモート側で置き換え、新規IDは末尾へ追加する。
func mergeRecipes(seedRecipes, remoteRecipes []model.Recipe) []model.Recipe {
	out := append([]model.Recipe(nil), seedRecipes...)
	index := make(map[string]int, len(out))
	for i, r := range out {
		index[r.ID] = i
	}
	for _, r := range remoteRecipes {
		if i, ok := index[r.ID]; ok {
			out[i] = r
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}
