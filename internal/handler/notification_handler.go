package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/brewlog/internal/model"
)

// NotificationAPI は通知ハンドラーが必要とする操作のインターフェース。
type NotificationAPI interface {
	Notifications() []model.Notification
	UnreadCount() int
	MarkAsRead(ctx context.Context, id string)
	MarkAllAsRead(ctx context.Context)
	Delete(id string)
	RemoveRateReminder(ctx context.Context, recipeID string)
}

// NotificationHandler は通知管理のHTTPハンドラー。
type NotificationHandler struct {
	center NotificationAPI
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(center NotificationAPI) *NotificationHandler {
	return &NotificationHandler{center: center}
}

// --- レスポンス型 ---

type notificationResponse struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	ActorID        string    `json:"actor_id,omitempty"`
	ActorName      string    `json:"actor_name,omitempty"`
	ActorAvatarRef string    `json:"actor_avatar_ref,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Read           bool      `json:"read"`
	RecipeID       string    `json:"recipe_id,omitempty"`
	EventID        string    `json:"event_id,omitempty"`
	Message        string    `json:"message,omitempty"`
	ImageRef       string    `json:"image_ref,omitempty"`
}

type notificationListResponse struct {
	Notifications []notificationResponse `json:"notifications"`
	UnreadCount   int                    `json:"unread_count"`
}

func toNotificationResponse(n model.Notification) notificationResponse {
	return notificationResponse{
		ID:             n.ID,
		Type:           string(n.Type),
		ActorID:        n.ActorID,
		ActorName:      n.ActorName,
		ActorAvatarRef: n.ActorAvatarRef,
		CreatedAt:      n.CreatedAt,
		Read:           n.Read,
		RecipeID:       n.Payload.RecipeID,
		EventID:        n.Payload.EventID,
		Message:        n.Payload.Message,
		ImageRef:       n.Payload.ImageRef,
	}
}

// --- ハンドラー ---

// List は通知一覧と未読件数を返す。
// GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	notifications := h.center.Notifications()
	resp := notificationListResponse{
		Notifications: make([]notificationResponse, 0, len(notifications)),
		UnreadCount:   h.center.UnreadCount(),
	}
	for _, n := range notifications {
		resp.Notifications = append(resp.Notifications, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkAsRead は指定通知を既読にする。冪等。
// POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	h.center.MarkAsRead(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllAsRead は全通知を既読にする。冪等。
// POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	h.center.MarkAllAsRead(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Delete は指定通知を除去する。冪等。
// DELETE /api/notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.center.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// RemoveRateReminder は指定レシピの評価リマインダーを除去する。冪等。
// DELETE /api/notifications/rate-reminders/{recipeID}
func (h *NotificationHandler) RemoveRateReminder(w http.ResponseWriter, r *http.Request) {
	h.center.RemoveRateReminder(r.Context(), chi.URLParam(r, "recipeID"))
	w.WriteHeader(http.StatusNoContent)
}
