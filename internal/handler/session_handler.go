// Package handler はHTTP APIハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/brewlog/internal/middleware"
	"github.com/hitoshi/brewlog/internal/model"
	"github.com/hitoshi/brewlog/internal/session"
)

// SessionAPI はセッションハンドラーが必要とする操作のインターフェース。
type SessionAPI interface {
	Snapshot() session.Snapshot
	SignIn(ctx context.Context, accountID string) error
	SignOut()
	SwitchAccount(ctx context.Context, accountID string) error
	AddCoffeeEvent(draft model.BrewEventDraft) (model.BrewEvent, error)
	RemoveCoffeeEvent(eventID string)
	AddToCollection(item model.CoffeeItem) (model.CoffeeItem, error)
	RemoveFromCollection(itemID string)
	AddToWishlist(item model.CoffeeItem) (model.CoffeeItem, error)
	RemoveFromWishlist(itemID string)
	ToggleFavorite(recipeID string) error
	AddRecipe(ctx context.Context, recipe model.Recipe) error
	UpdateRecipe(ctx context.Context, recipe model.Recipe) error
}

// IdentityNotifier はサインイン・切り替え・サインアウトに追従して
// 通知の監視対象を更新するコラボレータ。
type IdentityNotifier interface {
	SetIdentity(ctx context.Context, accountID string) error
	Clear()
}

// SessionHandler はセッション操作のHTTPハンドラー。
type SessionHandler struct {
	session  SessionAPI
	notifier IdentityNotifier
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(session SessionAPI, notifier IdentityNotifier) *SessionHandler {
	return &SessionHandler{
		session:  session,
		notifier: notifier,
	}
}

// --- リクエスト/レスポンス型 ---

type accountRequest struct {
	AccountID string `json:"account_id"`
}

type accountResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref"`
}

type eventResponse struct {
	ID             string    `json:"id"`
	CoffeeID       string    `json:"coffee_id"`
	CoffeeName     string    `json:"coffee_name"`
	Roaster        string    `json:"roaster,omitempty"`
	ImageRef       string    `json:"image_ref,omitempty"`
	Rating         int       `json:"rating"`
	Timestamp      time.Time `json:"timestamp"`
	BrewingMethod  string    `json:"brewing_method,omitempty"`
	GrindSize      string    `json:"grind_size,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	OwnerAccountID string    `json:"owner_account_id"`
	Friends        []string  `json:"friends,omitempty"`
}

type eventRequest struct {
	CoffeeID      string   `json:"coffee_id"`
	CoffeeName    string   `json:"coffee_name"`
	Roaster       string   `json:"roaster"`
	ImageRef      string   `json:"image_ref"`
	Rating        int      `json:"rating"`
	BrewingMethod string   `json:"brewing_method"`
	GrindSize     string   `json:"grind_size"`
	Notes         string   `json:"notes"`
	Friends       []string `json:"friends"`
}

type coffeeItemRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Roaster    string `json:"roaster"`
	ImageRef   string `json:"image_ref"`
	Origin     string `json:"origin"`
	Process    string `json:"process"`
	RoastLevel string `json:"roast_level"`
}

type coffeeItemResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Roaster        string    `json:"roaster,omitempty"`
	ImageRef       string    `json:"image_ref"`
	Origin         string    `json:"origin,omitempty"`
	Process        string    `json:"process,omitempty"`
	RoastLevel     string    `json:"roast_level,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	OwnerAccountID string    `json:"owner_account_id"`
}

type recipeRequest struct {
	ID              string  `json:"id"`
	CoffeeID        string  `json:"coffee_id"`
	Method          string  `json:"method"`
	CoffeeGrams     float64 `json:"coffee_grams"`
	WaterGrams      float64 `json:"water_grams"`
	WaterTempC      float64 `json:"water_temp_c"`
	GrindSize       string  `json:"grind_size"`
	BrewTimeSeconds int     `json:"brew_time_seconds"`
}

type recipeResponse struct {
	ID              string  `json:"id"`
	CoffeeID        string  `json:"coffee_id"`
	Method          string  `json:"method"`
	CoffeeGrams     float64 `json:"coffee_grams"`
	WaterGrams      float64 `json:"water_grams"`
	WaterTempC      float64 `json:"water_temp_c"`
	GrindSize       string  `json:"grind_size,omitempty"`
	BrewTimeSeconds int     `json:"brew_time_seconds"`
	CreatorID       string  `json:"creator_id"`
	IsSaved         bool    `json:"is_saved"`
}

type snapshotResponse struct {
	Account       accountResponse      `json:"account"`
	Authenticated bool                 `json:"authenticated"`
	Loading       bool                 `json:"loading"`
	Phase         string               `json:"phase"`
	Error         string               `json:"error,omitempty"`
	Events        []eventResponse      `json:"events"`
	CoffeeEvents  []eventResponse      `json:"coffee_events"`
	Collection    []coffeeItemResponse `json:"collection"`
	Wishlist      []coffeeItemResponse `json:"wishlist"`
	FavoriteIDs   []string             `json:"favorite_ids"`
	Recipes       []recipeResponse     `json:"recipes"`
	Following     []string             `json:"following"`
	Followers     []string             `json:"followers"`
}

func toSnapshotResponse(snap session.Snapshot) snapshotResponse {
	resp := snapshotResponse{
		Account: accountResponse{
			ID:          snap.Account.ID,
			DisplayName: snap.Account.DisplayName,
			AvatarRef:   snap.Account.AvatarRef,
		},
		Authenticated: snap.Authenticated,
		Loading:       snap.Loading,
		Phase:         string(snap.Phase()),
		Events:        make([]eventResponse, 0, len(snap.Events)),
		CoffeeEvents:  make([]eventResponse, 0, len(snap.CoffeeEvents)),
		Collection:    make([]coffeeItemResponse, 0, len(snap.Collection)),
		Wishlist:      make([]coffeeItemResponse, 0, len(snap.Wishlist)),
		FavoriteIDs:   snap.FavoriteIDs,
		Recipes:       make([]recipeResponse, 0, len(snap.Recipes)),
		Following:     snap.Following,
		Followers:     snap.Followers,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	for _, e := range snap.Events {
		resp.Events = append(resp.Events, toEventResponse(e))
	}
	for _, e := range snap.CoffeeEvents {
		resp.CoffeeEvents = append(resp.CoffeeEvents, toEventResponse(e))
	}
	for _, item := range snap.Collection {
		resp.Collection = append(resp.Collection, toCoffeeItemResponse(item))
	}
	for _, item := range snap.Wishlist {
		resp.Wishlist = append(resp.Wishlist, toCoffeeItemResponse(item))
	}
	for _, r := range snap.Recipes {
		resp.Recipes = append(resp.Recipes, toRecipeResponse(r))
	}
	return resp
}

func toEventResponse(e model.BrewEvent) eventResponse {
	return eventResponse{
		ID:             e.ID,
		CoffeeID:       e.CoffeeID,
		CoffeeName:     e.CoffeeName,
		Roaster:        e.Roaster,
		ImageRef:       e.ImageRef,
		Rating:         e.Rating,
		Timestamp:      e.Timestamp,
		BrewingMethod:  e.BrewingMethod,
		GrindSize:      e.GrindSize,
		Notes:          e.Notes,
		OwnerAccountID: e.OwnerAccountID,
		Friends:        e.Friends,
	}
}

func toCoffeeItemResponse(item model.CoffeeItem) coffeeItemResponse {
	return coffeeItemResponse{
		ID:             item.ID,
		Name:           item.Name,
		Roaster:        item.Roaster,
		ImageRef:       item.ImageRef,
		Origin:         item.Origin,
		Process:        item.Process,
		RoastLevel:     item.RoastLevel,
		Timestamp:      item.Timestamp,
		OwnerAccountID: item.OwnerAccountID,
	}
}

func toRecipeResponse(r model.Recipe) recipeResponse {
	return recipeResponse{
		ID:              r.ID,
		CoffeeID:        r.CoffeeID,
		Method:          r.Method,
		CoffeeGrams:     r.CoffeeGrams,
		WaterGrams:      r.WaterGrams,
		WaterTempC:      r.WaterTempC,
		GrindSize:       r.GrindSize,
		BrewTimeSeconds: r.BrewTimeSeconds,
		CreatorID:       r.CreatorID,
		IsSaved:         r.IsSaved,
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteAPIError(w, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return false
	}
	return true
}

// --- ハンドラー ---

// GetSnapshot は現在のセッション状態を返す。
// GET /api/session
func (h *SessionHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSnapshotResponse(h.session.Snapshot()))
}

// SignIn はサインインしてアカウントデータを読み込む。
// POST /api/session/signin
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.session.SignIn(r.Context(), req.AccountID); err != nil {
		// 読み込み失敗でも認証済みであればセッション状態を返す
		if !h.session.Snapshot().Authenticated {
			middleware.WriteAPIError(w, err)
			return
		}
	}
	if h.notifier != nil {
		h.notifier.SetIdentity(r.Context(), h.session.Snapshot().Account.ID)
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(h.session.Snapshot()))
}

// SignOut はセッションを初期状態へ戻す。
// POST /api/session/signout
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.session.SignOut()
	if h.notifier != nil {
		h.notifier.Clear()
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(h.session.Snapshot()))
}

// SwitchAccount はアクティブアカウントを切り替える。
// POST /api/session/switch
// 未登録IDの場合はデフォルトアカウントへフォールバックした上で404を返す。
func (h *SessionHandler) SwitchAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.session.SwitchAccount(r.Context(), req.AccountID)
	if h.notifier != nil {
		h.notifier.SetIdentity(r.Context(), h.session.Snapshot().Account.ID)
	}
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(h.session.Snapshot()))
}

// AddEvent は抽出イベントを記録する。
// POST /api/events
func (h *SessionHandler) AddEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	event, err := h.session.AddCoffeeEvent(model.BrewEventDraft{
		CoffeeID:      req.CoffeeID,
		CoffeeName:    req.CoffeeName,
		Roaster:       req.Roaster,
		ImageRef:      req.ImageRef,
		Rating:        req.Rating,
		BrewingMethod: req.BrewingMethod,
		GrindSize:     req.GrindSize,
		Notes:         req.Notes,
		Friends:       req.Friends,
	})
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventResponse(event))
}

// RemoveEvent は抽出イベントを削除する。冪等。
// DELETE /api/events/{id}
func (h *SessionHandler) RemoveEvent(w http.ResponseWriter, r *http.Request) {
	h.session.RemoveCoffeeEvent(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// AddCollectionItem はコレクションへアイテムを追加する。
// POST /api/collection
func (h *SessionHandler) AddCollectionItem(w http.ResponseWriter, r *http.Request) {
	h.addItem(w, r, h.session.AddToCollection)
}

// RemoveCollectionItem はコレクションからアイテムを除去する。冪等。
// DELETE /api/collection/{id}
func (h *SessionHandler) RemoveCollectionItem(w http.ResponseWriter, r *http.Request) {
	h.session.RemoveFromCollection(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// AddWishlistItem はウィッシュリストへアイテムを追加する。
// POST /api/wishlist
func (h *SessionHandler) AddWishlistItem(w http.ResponseWriter, r *http.Request) {
	h.addItem(w, r, h.session.AddToWishlist)
}

// RemoveWishlistItem はウィッシュリストからアイテムを除去する。冪等。
// DELETE /api/wishlist/{id}
func (h *SessionHandler) RemoveWishlistItem(w http.ResponseWriter, r *http.Request) {
	h.session.RemoveFromWishlist(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) addItem(
	w http.ResponseWriter,
	r *http.Request,
	add func(item model.CoffeeItem) (model.CoffeeItem, error),
) {
	var req coffeeItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := add(model.CoffeeItem{
		ID:         req.ID,
		Name:       req.Name,
		Roaster:    req.Roaster,
		ImageRef:   req.ImageRef,
		Origin:     req.Origin,
		Process:    req.Process,
		RoastLevel: req.RoastLevel,
	})
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCoffeeItemResponse(item))
}

// AddRecipe はレシピを共有プールへ追加する。
// POST /api/recipes
func (h *SessionHandler) AddRecipe(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	recipe := recipeFromRequest(req, h.session.Snapshot().Account.ID)
	if err := h.session.AddRecipe(r.Context(), recipe); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecipeResponse(h.storedRecipe(recipe)))
}

// UpdateRecipe はレシピを更新する。未存在IDは追加として扱う。
// PUT /api/recipes/{id}
func (h *SessionHandler) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")

	recipe := recipeFromRequest(req, h.session.Snapshot().Account.ID)
	if err := h.session.UpdateRecipe(r.Context(), recipe); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecipeResponse(h.storedRecipe(recipe)))
}

// storedRecipe はセッションに保存された後のレシピを返す。
// セッションは保存時にIsSavedを再計算するため、リクエストから組み立てた
// レシピをそのまま返すとお気に入り状態が常にfalseになってしまう。
func (h *SessionHandler) storedRecipe(fallback model.Recipe) model.Recipe {
	for _, r := range h.session.Snapshot().Recipes {
		if r.ID == fallback.ID {
			return r
		}
	}
	return fallback
}

// ToggleFavorite はレシピのお気に入り状態を反転する。
// POST /api/recipes/{id}/favorite
func (h *SessionHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ToggleFavorite(chi.URLParam(r, "id")); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(h.session.Snapshot()))
}

func recipeFromRequest(req recipeRequest, creatorID string) model.Recipe {
	return model.Recipe{
		ID:              req.ID,
		CoffeeID:        req.CoffeeID,
		Method:          req.Method,
		CoffeeGrams:     req.CoffeeGrams,
		WaterGrams:      req.WaterGrams,
		WaterTempC:      req.WaterTempC,
		GrindSize:       req.GrindSize,
		BrewTimeSeconds: req.BrewTimeSeconds,
		CreatorID:       creatorID,
	}
}
