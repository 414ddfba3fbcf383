package domain

import "time"

// DeviceCodeStatus represents the status of a device authorization request.
type DeviceCodeStatus string

const (
	DeviceCodeStatusPending  DeviceCodeStatus = "pending"
	DeviceCodeStatusApproved DeviceCodeStatus = "approved"
	DeviceCodeStatusDenied   DeviceCodeStatus = "denied"
	DeviceCodeStatusRedeemed DeviceCodeStatus = "redeemed"
)

// DeviceCode holds the credential state for a device authorization grant
// (RFC 8628). It transitions pending -> approved|denied at most once, and a
// token is issued from it at most once (status redeemed).
type DeviceCode struct {
	ID           string           `bson:"_id" json:"id"`
	DeviceCode   string           `bson:"device_code" json:"device_code"`
	UserCode     string           `bson:"user_code" json:"user_code"`
	ClientID     string           `bson:"client_id" json:"client_id"`
	Scope        string           `bson:"scope" json:"scope"`
	Status       DeviceCodeStatus `bson:"status" json:"status"`
	UserID       string           `bson:"user_id,omitempty" json:"user_id,omitempty"`
	ExpiresAt    time.Time        `bson:"expires_at" json:"expires_at"`
	Interval     int              `bson:"interval" json:"interval"`
	CreatedAt    time.Time        `bson:"created_at" json:"created_at"`
	LastPolledAt time.Time        `bson:"last_polled_at,omitempty" json:"last_polled_at,omitempty"`
}

// Expired reports whether the credential has passed its expiry.
func (d *DeviceCode) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}
