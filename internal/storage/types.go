package storage

import (
	"encoding"
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBUser struct {
	ID           int64  `msgpack:"id"`
	UserName     string `msgpack:"userName"`
	DisplayName  string `msgpack:"displayName"`
	AvatarURL    string `msgpack:"avatarUrl"`
	PasswordHash string `msgpack:"passwordHash"`
	Status       string `msgpack:"status"`
}

func (u *DBUser) Key() []byte {
	return idKey(u.ID)
}

func (u *DBUser) MarshalBinary() (data []byte, err error) {
	type alias DBUser
	return msgpack.Marshal((*alias)(u))
}

func (u *DBUser) UnmarshalBinary(data []byte) error {
	type alias DBUser
	return msgpack.Unmarshal(data, (*alias)(u))
}

type DBMessage struct {
	ID              int64  `msgpack:"id"`
	SenderID        int64  `msgpack:"senderId"`
	ReceiverID      int64  `msgpack:"receiverId"`
	ReceiverGroupID int64  `msgpack:"receiverGroupId"`
	ChatType        string `msgpack:"chatType"`
	Content         string `msgpack:"content"`
	MessageType     string `msgpack:"messageType"`
	CreateTime      int64  `msgpack:"createTime"` // Unix milliseconds
}

func (m *DBMessage) Key() []byte {
	return idKey(m.ID)
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

type DBFile struct {
	ID        string `msgpack:"id"`
	Hash      string `msgpack:"hash"`
	MimeType  string `msgpack:"mimeType"`
	Size      int64  `msgpack:"size"`
	CreatedAt int64  `msgpack:"createdAt"`
	UserID    int64  `msgpack:"userId"`
}

func (f *DBFile) Key() []byte {
	return []byte(f.ID)
}

func (f *DBFile) MarshalBinary() (data []byte, err error) {
	type alias DBFile
	return msgpack.Marshal((*alias)(f))
}

func (f *DBFile) UnmarshalBinary(data []byte) error {
	type alias DBFile
	return msgpack.Unmarshal(data, (*alias)(f))
}

func idKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

// conversationKey identifies the sub-bucket holding one conversation's
// messages. Single chats use the participant pair in ascending id
// order so both directions land in the same bucket.
func conversationKey(userID1, userID2 int64) []byte {
	if userID1 > userID2 {
		userID1, userID2 = userID2, userID1
	}
	return fmt.Appendf(nil, "s:%d:%d", userID1, userID2)
}

func groupConversationKey(groupID int64) []byte {
	return fmt.Appendf(nil, "g:%d", groupID)
}
