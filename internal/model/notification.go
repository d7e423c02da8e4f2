package model

import "time"

// DevicePlatform identifies the push channel of a device.
type DevicePlatform string

const (
	PlatformIOS     DevicePlatform = "ios"
	PlatformAndroid DevicePlatform = "android"
	PlatformWeb     DevicePlatform = "web"
)

// IsValid checks if the platform is known.
func (p DevicePlatform) IsValid() bool {
	return p == PlatformIOS || p == PlatformAndroid || p == PlatformWeb
}

// DeviceToken is a registered push destination.
type DeviceToken struct {
	Token      string         `json:"token"`
	UserID     string         `json:"userId"`
	Platform   DevicePlatform `json:"platform"`
	Disabled   bool           `json:"disabled"`
	CreatedAt  time.Time      `json:"createdAt"`
	LastSeenAt time.Time      `json:"lastSeenAt"`
}

// NotificationType identifies what happened.
type NotificationType string

const (
	NotifyNewInterest      NotificationType = "new_interest"
	NotifyInterestAccepted NotificationType = "interest_accepted"
	NotifyNewMatch         NotificationType = "new_match"
	NotifyNewMessage       NotificationType = "new_message"
)

// NotificationStatus tracks push delivery.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationDelivered NotificationStatus = "delivered"
	NotificationFailed    NotificationStatus = "failed"
	NotificationExhausted NotificationStatus = "exhausted"
)

// MaxNotificationAttempts is the push retry budget.
const MaxNotificationAttempts = 5

// Notification is an in-app notification with push delivery state.
type Notification struct {
	ID            string             `json:"id"`
	UserID        string             `json:"userId"`
	Type          NotificationType   `json:"type"`
	Title         string             `json:"title"`
	Body          string             `json:"body"`
	Data          map[string]string  `json:"data,omitempty"`
	Status        NotificationStatus `json:"status"`
	AttemptCount  int                `json:"-"`
	NextAttemptAt *time.Time         `json:"-"`
	LastError     string             `json:"-"`
	ReadAt        *time.Time         `json:"readAt,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	DeliveredAt   *time.Time         `json:"deliveredAt,omitempty"`
}

// IsRetryable returns true if another push attempt is allowed.
func (n *Notification) IsRetryable() bool {
	return n.Status == NotificationFailed && n.AttemptCount < MaxNotificationAttempts
}
