package model

import "time"

// Customer is keyed by phone number and created at checkout verification.
type Customer struct {
	ID          int64     `json:"id" db:"id"`
	PhoneNumber string    `json:"phoneNumber" db:"phone_number"`
	Username    string    `json:"username" db:"username"`
	Government  string    `json:"government" db:"government"`
	Address     string    `json:"address" db:"address"`
	IsVerified  bool      `json:"isVerified" db:"is_verified"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Platform identifies a push notification target.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// DeviceToken is a registered push target.
type DeviceToken struct {
	ID          int64     `json:"id" db:"id"`
	Token       string    `json:"token" db:"token"`
	Platform    Platform  `json:"platform" db:"platform"`
	PhoneNumber *string   `json:"phoneNumber,omitempty" db:"phone_number"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// DeviceRequest registers or refreshes a device token.
type DeviceRequest struct {
	Token       string  `json:"token"`
	Platform    string  `json:"platform"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
}

// Alert is an admin broadcast to every registered device.
type Alert struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Message   string    `json:"message" db:"message"`
	IsSent    bool      `json:"isSent" db:"is_sent"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// BroadcastRequest is the payload for an admin broadcast.
type BroadcastRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// BroadcastResponse reports how many devices were queued.
type BroadcastResponse struct {
	AlertID int64 `json:"alertId"`
	Queued  int   `json:"queued"`
}
