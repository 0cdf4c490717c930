package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusDeleted UserStatus = "deleted"
)

// User represents a registered user. ID is assigned by storage and is
// stable for the lifetime of the account.
type User struct {
	ID          int64      `json:"id"`
	UserName    string     `json:"userName"`
	DisplayName string     `json:"displayName"`
	AvatarURL   string     `json:"avatarUrl,omitempty"`
	Status      UserStatus `json:"status"`
}

type ChatType string

const (
	ChatTypeSingle ChatType = "SINGLE"
	ChatTypeGroup  ChatType = "GROUP"
)

// Message is a persisted chat message. ID and CreateTime are assigned
// by storage; a message is immutable once saved and is forwarded to
// clients verbatim.
type Message struct {
	ID              int64     `json:"id"`
	SenderID        int64     `json:"senderId"`
	ReceiverID      int64     `json:"receiverId,omitempty"`
	ReceiverGroupID int64     `json:"receiverGroupId,omitempty"`
	ChatType        ChatType  `json:"chatType"`
	Content         string    `json:"content"`
	MessageType     string    `json:"messageType"` // "TEXT", "IMAGE", "FILE", ...
	CreateTime      time.Time `json:"createTime"`
}
