package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
)

// notifyChannel はnotificationsテーブルのINSERTトリガーが発行する
// pg_notifyチャネル名。ペイロードは "通知ID|宛先アカウントID" 形式。
const notifyChannel = "brewlog_notifications"

// pingInterval は通知が途絶えた際の接続ヘルスチェック間隔。
const pingInterval = 90 * time.Second

// NotificationListener は通知のリアルタイム購読プリミティブ。
type NotificationListener interface {
	// Subscribe は指定アカウント宛に挿入された通知のIDを配信するチャネルを返す。
	// コンテキストのキャンセルで購読は終了し、チャネルはクローズされる。
	Subscribe(ctx context.Context, accountID string) (<-chan string, error)
}

// ReconnectRecorder は再接続イベントの記録インターフェース。
type ReconnectRecorder interface {
	RecordRealtimeReconnect()
}

// PqNotificationListener はpq.ListenerによるLISTEN/NOTIFYベースの実装。
// 切断時の再接続はpq.ListenerがminRetry〜maxRetryのバックオフで行う。
type PqNotificationListener struct {
	databaseURL string
	minRetry    time.Duration
	maxRetry    time.Duration
	logger      *slog.Logger
	recorder    ReconnectRecorder
}

// NewPqNotificationListener はPqNotificationListenerを生成する。
// recorderはnil可（記録なし）。
func NewPqNotificationListener(
	databaseURL string,
	minRetry, maxRetry time.Duration,
	logger *slog.Logger,
	recorder ReconnectRecorder,
) *PqNotificationListener {
	return &PqNotificationListener{
		databaseURL: databaseURL,
		minRetry:    minRetry,
		maxRetry:    maxRetry,
		logger:      logger,
		recorder:    recorder,
	}
}

// Subscribe は指定アカウント宛の通知IDチャネルを返す。
func (l *PqNotificationListener) Subscribe(ctx context.Context, accountID string) (<-chan string, error) {
	listener := pq.NewListener(l.databaseURL, l.minRetry, l.maxRetry,
		func(ev pq.ListenerEventType, err error) {
			switch ev {
			case pq.ListenerEventReconnected:
				l.logger.Info("通知チャネルへ再接続しました",
					slog.String("account_id", accountID),
				)
				if l.recorder != nil {
					l.recorder.RecordRealtimeReconnect()
				}
			case pq.ListenerEventConnectionAttemptFailed:
				if err != nil {
					l.logger.Error("通知チャネルへの接続に失敗しました",
						slog.String("error", err.Error()),
					)
				}
			}
		},
	)

	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("通知チャネルの購読に失敗しました: %w", err)
	}

	ch := make(chan string, 16)

	go func() {
		defer close(ch)
		defer listener.Close()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				// 再接続直後はnilが届くことがある
				if n == nil {
					continue
				}
				id, target, ok := parseNotifyPayload(n.Extra)
				if !ok {
					l.logger.Warn("不正な通知ペイロードを無視しました",
						slog.String("payload", n.Extra),
					)
					continue
				}
				if target != accountID {
					continue
				}
				select {
				case ch <- id:
				case <-ctx.Done():
					return
				}
			case <-ticker.C:
				if err := listener.Ping(); err != nil {
					l.logger.Error("通知チャネルのヘルスチェックに失敗しました",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}()

	return ch, nil
}

// parseNotifyPayload は "通知ID|宛先アカウントID" 形式のペイロードを分解する。
func parseNotifyPayload(payload string) (id, target string, ok bool) {
	parts := strings.SplitN(payload, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// compile-time interface check
var _ NotificationListener = (*PqNotificationListener)(nil)
