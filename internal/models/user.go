package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// User is the friend-graph record of one identity.
type User struct {
	// ID is the identity itself: opaque, case and whitespace sensitive.
	ID string `gorm:"primaryKey" json:"id"`
	// Friends holds confirmed, bidirectional edges.
	Friends pq.StringArray `gorm:"type:text[];not null" json:"friends"`
	// PendingRequests holds identities that asked to be friends and were not accepted yet.
	PendingRequests pq.StringArray `gorm:"type:text[];not null" json:"pendingRequests"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// NewUser returns an empty record for id.
func NewUser(id string) *User {
	return &User{ID: id, Friends: pq.StringArray{}, PendingRequests: pq.StringArray{}}
}

// BeforeCreate keeps both arrays non-NULL in PostgreSQL.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.Friends == nil {
		u.Friends = pq.StringArray{}
	}
	if u.PendingRequests == nil {
		u.PendingRequests = pq.StringArray{}
	}
	return
}

func (u *User) HasFriend(id string) bool  { return lo.Contains(u.Friends, id) }
func (u *User) HasPending(id string) bool { return lo.Contains(u.PendingRequests, id) }

// AddPending records a request from id unless it is already pending or id is a friend.
// It reports whether the record changed.
func (u *User) AddPending(id string) bool {
	if u.HasPending(id) || u.HasFriend(id) {
		return false
	}
	u.PendingRequests = append(u.PendingRequests, id)
	return true
}

// RemovePending drops id from the pending set.
func (u *User) RemovePending(id string) {
	u.PendingRequests = lo.Without(u.PendingRequests, id)
}

// AddFriend records a confirmed edge to id.
func (u *User) AddFriend(id string) {
	if !u.HasFriend(id) {
		u.Friends = append(u.Friends, id)
	}
}
