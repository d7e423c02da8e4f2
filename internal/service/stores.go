package service

import (
	"context"
	"time"

	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/repository"
)

// The interfaces below are the slices of *repository.Repository and *cache.Cache
// each service needs. Tests substitute in-memory fakes.

// UserReader loads accounts.
type UserReader interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// UserStore persists accounts and refresh tokens.
type UserStore interface {
	UserReader
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	DeleteAccount(ctx context.Context, id string) ([]string, error)
	CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error
	GetRefreshTokensByPrefix(ctx context.Context, prefix string) ([]*model.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldID string, next *model.RefreshToken) error
	RevokeRefreshToken(ctx context.Context, id string) error
}

// SessionStore revokes access tokens before they expire.
type SessionStore interface {
	DenyToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	RevokeUserTokens(ctx context.Context, userID string, at time.Time, ttl time.Duration) error
}

// UsageStore reads and increments usage counters.
type UsageStore interface {
	ConsumeUsage(ctx context.Context, userID string, quota repository.UsageQuota) (int, error)
	GetUsageCount(ctx context.Context, userID string, feature model.Feature, periodStart time.Time) (int, error)
	GetUsageHistory(ctx context.Context, userID string, since time.Time) (map[string]map[model.Feature]int, error)
}

// ProfileReader loads profiles by owner id.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	GetProfiles(ctx context.Context, userIDs []string) (map[string]*model.Profile, error)
}

// BlockChecker reports blocks in either direction.
type BlockChecker interface {
	IsBlockedEither(ctx context.Context, a, b string) (bool, error)
}

// VisibilityChecker narrows ids to the profiles a viewer may see.
type VisibilityChecker interface {
	VisibleProfileIDs(ctx context.Context, viewerID string, ids []string, viewerIsFree bool) ([]string, error)
}

// ProfileStore persists profiles and serves discovery queries.
type ProfileStore interface {
	ProfileReader
	BlockChecker
	CreateProfile(ctx context.Context, p *model.Profile) error
	UpdateProfile(ctx context.Context, p *model.Profile) error
	BoostProfile(ctx context.Context, userID string, until time.Time, quota repository.UsageQuota) (int, error)
	SearchProfiles(ctx context.Context, filter repository.ProfileFilter, cursor string, limit int) ([]*model.Profile, string, error)
	ListProfileViewers(ctx context.Context, viewedID string, limit int) ([]*model.ProfileView, error)
}

// ProfileCache caches profiles by owner id.
type ProfileCache interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	SetProfile(ctx context.Context, p *model.Profile) error
	DeleteProfile(ctx context.Context, userID string) error
}

// ViewPublisher hands profile views to the analytics pipeline.
type ViewPublisher interface {
	PublishProfileView(ctx context.Context, view *model.ProfileView)
}

// ImageValidator checks profile image URLs.
type ImageValidator interface {
	ValidateImageURLs(ctx context.Context, urls []string) (int, error)
}

// InterestStore persists interests and matches.
type InterestStore interface {
	ProfileReader
	BlockChecker
	SendInterest(ctx context.Context, in *model.Interest, quota repository.UsageQuota) (*repository.SendInterestResult, error)
	RespondInterest(ctx context.Context, id, recipientID string, status model.InterestStatus, now time.Time) (*model.Interest, *model.Match, error)
	WithdrawInterest(ctx context.Context, id, senderID string, now time.Time) (*model.Interest, error)
	ListSentInterests(ctx context.Context, userID string, limit int) ([]*model.Interest, error)
	ListReceivedInterests(ctx context.Context, userID string, status model.InterestStatus, limit int) ([]*model.Interest, error)
	ListMatches(ctx context.Context, userID string) ([]*model.Match, error)
	Unmatch(ctx context.Context, matchID, userID string) (*model.Match, error)
}

// ShortlistStore persists shortlist entries.
type ShortlistStore interface {
	ProfileReader
	VisibilityChecker
	AddShortlist(ctx context.Context, entry *model.ShortlistEntry, capacity int) error
	RemoveShortlist(ctx context.Context, userID, shortlistedUserID string) error
	ListShortlist(ctx context.Context, userID string) ([]*model.ShortlistEntry, error)
}

// MessageStore persists chat messages.
type MessageStore interface {
	ProfileReader
	BlockChecker
	GetActiveMatchByConversation(ctx context.Context, conversationID string) (*model.Match, error)
	SendMessage(ctx context.Context, msg *model.Message, quota repository.UsageQuota) (int, error)
	ListMessages(ctx context.Context, conversationID, before string, limit int) ([]*model.Message, string, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID string, now time.Time) (int64, error)
	ListConversations(ctx context.Context, userID string) ([]*repository.ConversationRow, error)
}

// QuickPickStore selects candidates and records actions.
type QuickPickStore interface {
	ProfileReader
	VisibilityChecker
	ListQuickPickCandidates(ctx context.Context, f repository.QuickPickFilter) ([]*model.Profile, error)
	RecordQuickPickAction(ctx context.Context, a *model.QuickPickAction) error
}

// QuickPickCache stores the daily selection.
type QuickPickCache interface {
	GetQuickPicks(ctx context.Context, userID, day string) ([]string, error)
	SetQuickPicks(ctx context.Context, userID, day string, ids []string, expireAt time.Time) error
	RemoveQuickPick(ctx context.Context, userID, day, targetID string) error
}

// SafetyStore persists blocks and reports.
type SafetyStore interface {
	ProfileReader
	UserReader
	BlockUser(ctx context.Context, block *model.Block) (*model.Match, error)
	UnblockUser(ctx context.Context, blockerID, blockedID string) error
	ListBlocks(ctx context.Context, blockerID string) ([]*model.Block, error)
	CreateReport(ctx context.Context, report *model.Report) error
}

// NotificationStore persists device tokens and notifications.
type NotificationStore interface {
	UpsertDevice(ctx context.Context, device *model.DeviceToken) error
	DeleteDevice(ctx context.Context, userID, token string) error
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID string, ids []string, now time.Time) (int64, error)
}

// AdminStore serves the moderation dashboard.
type AdminStore interface {
	GetAdminStats(ctx context.Context, dayStart time.Time) (*model.AdminStats, error)
	ListUsersAdmin(ctx context.Context, filter repository.AdminUserFilter, cursor string, limit int) ([]*model.AdminProfile, string, error)
	SetUserBan(ctx context.Context, id string, banned bool, reason string) (*model.User, error)
	SetUserPlan(ctx context.Context, id string, plan model.Plan, expiresAt *time.Time) (*model.User, error)
	ListReports(ctx context.Context, filter repository.ReportFilter, cursor string, limit int) ([]*model.Report, string, error)
	UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus) (*model.Report, error)
}

// Notifier enqueues a notification for push delivery.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind model.NotificationType, title, body string, data map[string]string)
}

// EventPublisher fans realtime events out to a user's connections.
type EventPublisher interface {
	Publish(ctx context.Context, userID string, event model.Event)
}

// PresenceChecker reports whether a user has a live connection.
type PresenceChecker interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, model.NotificationType, string, string, map[string]string) {
}

type noopEvents struct{}

func (noopEvents) Publish(context.Context, string, model.Event) {}
