package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/fileflow/fileflow-server/internal/store"
)

// Common errors for friend operations.
var (
	ErrCannotFriendSelf     = errors.New("cannot send friend request to yourself")
	ErrAlreadyFriends       = errors.New("already friends")
	ErrRequestAlreadyExists = errors.New("friend request already exists")
	ErrRequestNotFound      = errors.New("friend request not found")
	ErrUserNotFound         = errors.New("user not found")
)

// Notification types emitted by friend operations.
const (
	NotificationFriendRequest  = "friend_request"
	NotificationFriendAccepted = "friend_accepted"
)

// PendingRequest joins a pending friendship with its requester.
type PendingRequest struct {
	Friendship *store.Friendship
	From       *store.User
}

// Service provides friend management business logic.
type Service struct {
	store store.Store
}

// New creates a new friend service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// SendRequest sends a friend request to the user registered under friendEmail.
func (s *Service) SendRequest(ctx context.Context, fromUserID int64, friendEmail string) (*store.Friendship, error) {
	friend, err := s.store.GetUserByEmail(ctx, friendEmail)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if fromUserID == friend.ID {
		return nil, ErrCannotFriendSelf
	}

	existing, err := s.store.GetFriendship(ctx, fromUserID, friend.ID)
	if err == nil && existing != nil {
		switch existing.Status {
		case store.FriendStatusAccepted:
			return nil, ErrAlreadyFriends
		case store.FriendStatusPending:
			return nil, ErrRequestAlreadyExists
		}
	}

	friendship, err := s.store.CreateFriendRequest(ctx, fromUserID, friend.ID)
	if err != nil {
		return nil, fmt.Errorf("create friend request: %w", err)
	}

	s.notify(ctx, friend.ID, NotificationFriendRequest, fromUserID,
		func(from *store.User) string {
			return fmt.Sprintf("%s sent you a friend request", from.Name)
		})

	return friendship, nil
}

// AcceptRequest accepts a pending friend request addressed to userID.
func (s *Service) AcceptRequest(ctx context.Context, friendshipID, userID int64) error {
	existing, err := s.store.GetFriendshipByID(ctx, friendshipID)
	if err != nil {
		return ErrRequestNotFound
	}

	// Must be pending and directed to the accepting user.
	if existing.Status != store.FriendStatusPending || existing.FriendID != userID {
		return ErrRequestNotFound
	}

	if err := s.store.UpdateFriendshipStatus(ctx, friendshipID, store.FriendStatusAccepted); err != nil {
		return fmt.Errorf("accept request: %w", err)
	}

	s.notify(ctx, existing.UserID, NotificationFriendAccepted, userID,
		func(from *store.User) string {
			return fmt.Sprintf("%s accepted your friend request", from.Name)
		})

	return nil
}

// RejectRequest rejects a pending friend request addressed to userID by
// deleting it.
func (s *Service) RejectRequest(ctx context.Context, friendshipID, userID int64) error {
	existing, err := s.store.GetFriendshipByID(ctx, friendshipID)
	if err != nil {
		return ErrRequestNotFound
	}

	if existing.Status != store.FriendStatusPending || existing.FriendID != userID {
		return ErrRequestNotFound
	}

	if err := s.store.DeleteFriendship(ctx, friendshipID); err != nil {
		return fmt.Errorf("reject request: %w", err)
	}
	return nil
}

// ListFriends lists accepted friends as user records.
func (s *Service) ListFriends(ctx context.Context, userID int64) ([]*store.User, error) {
	return s.store.ListFriends(ctx, userID)
}

// ListPendingRequests lists incoming pending requests with requester info.
func (s *Service) ListPendingRequests(ctx context.Context, userID int64) ([]*PendingRequest, error) {
	friendships, err := s.store.ListPendingRequests(ctx, userID)
	if err != nil {
		return nil, err
	}

	requests := make([]*PendingRequest, 0, len(friendships))
	for _, f := range friendships {
		req := &PendingRequest{Friendship: f}
		if from, err := s.store.GetUserByID(ctx, f.UserID); err == nil {
			from.PasswordHash = ""
			req.From = from
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// notify records a notification for userID attributed to fromUserID.
// Notification failures never fail the operation that triggered them.
func (s *Service) notify(ctx context.Context, userID int64, kind string, fromUserID int64, content func(*store.User) string) {
	from, err := s.store.GetUserByID(ctx, fromUserID)
	if err != nil {
		return
	}
	refID := fromUserID
	_ = s.store.CreateNotification(ctx, &store.Notification{
		UserID:  userID,
		Type:    kind,
		Content: content(from),
		RefID:   &refID,
	})
}
