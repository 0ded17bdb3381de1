package service

import (
	"context"

	"github.com/reqtrack/reqtrack/internal/model"
)

// NotificationService exposes a user's own notifications.
type NotificationService struct {
	clock
	notes NotificationStore
}

func NewNotificationService(notes NotificationStore) *NotificationService {
	return &NotificationService{notes: notes}
}

type NotificationQuery struct {
	UnreadOnly bool `query:"unread"`
	PageParams
}

func (s *NotificationService) List(ctx context.Context, actor *model.User, q NotificationQuery) ([]model.Notification, Pagination, int64, error) {
	rows, total, err := s.notes.List(ctx, actor.ID, q.UnreadOnly, q.repo())
	if err != nil {
		return nil, Pagination{}, 0, internalErr("list notifications", err)
	}
	unread, err := s.notes.CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, Pagination{}, 0, internalErr("count unread", err)
	}
	return rows, paginate(q.PageParams, total), unread, nil
}

// MarkRead marks one of the actor's notifications read. Other users'
// notifications are reported as missing.
func (s *NotificationService) MarkRead(ctx context.Context, actor *model.User, id string) error {
	nid, err := ParseID("id", id)
	if err != nil {
		return err
	}
	if err := s.notes.MarkRead(ctx, nid, actor.ID, s.now()); err != nil {
		return storeErr("mark read", "notification", err)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor *model.User) (int64, error) {
	n, err := s.notes.MarkAllRead(ctx, actor.ID, s.now())
	if err != nil {
		return 0, internalErr("mark all read", err)
	}
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, actor *model.User, id string) error {
	nid, err := ParseID("id", id)
	if err != nil {
		return err
	}
	if err := s.notes.Delete(ctx, nid, actor.ID); err != nil {
		return storeErr("delete notification", "notification", err)
	}
	return nil
}
