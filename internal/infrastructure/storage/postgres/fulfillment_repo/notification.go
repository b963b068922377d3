package fulfillment_repo

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"fieldops/internal/domain/notification"
	"fieldops/internal/infrastructure/storage/postgres"
)

const notificationsTable = "notifications"

var notificationColumns = postgres.ExtractDBColumns[notification.Notification]()

// NotificationRepo implements notification.Repository.
type NotificationRepo struct{ base }

// NewNotificationRepo creates a notification repository.
func NewNotificationRepo(txm *postgres.TxManager) *NotificationRepo {
	return &NotificationRepo{base{txm: txm}}
}

var _ notification.Repository = (*NotificationRepo)(nil)

func (r *NotificationRepo) InsertBatch(ctx context.Context, items []notification.Notification) error {
	if len(items) == 0 {
		return nil
	}
	_, err := exec(ctx, r.querier(ctx), "insert notifications", insertNotifications(items))
	return err
}

func insertNotifications(items []notification.Notification) sq.InsertBuilder {
	stmt := psql.Insert(notificationsTable).Columns(notificationColumns...)
	for i := range items {
		n := &items[i]
		stmt = stmt.Values(n.ID, n.UserID, n.Type, n.Title, n.Content, n.Data, n.IsRead, n.CreatedAt)
	}
	return stmt
}
