package storage

import (
	"fmt"
	"time"

	"easychat/internal/auth"
	"easychat/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketUsers     = []byte("users")
	bucketUserNames = []byte("usernames")
	bucketMessages  = []byte("messages")
	bucketFiles     = []byte("files")
)

type BboltStorage struct {
	db  *bbolt.DB
	now func() time.Time
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketUsers); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketUserNames); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMessages); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketFiles); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db, now: time.Now}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// CreateCredentials stores a new user, assigning the next user id.
// Fails with auth.ErrUserExists when the username is taken.
func (s *BboltStorage) CreateCredentials(creds auth.UserCredentials) (auth.UserCredentials, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		names := tx.Bucket(bucketUserNames)
		if names.Get([]byte(creds.UserName)) != nil {
			return auth.ErrUserExists
		}

		users := tx.Bucket(bucketUsers)
		seq, err := users.NextSequence()
		if err != nil {
			return err
		}
		creds.ID = int64(seq)

		dbUser := &DBUser{
			ID:           creds.ID,
			UserName:     creds.UserName,
			DisplayName:  creds.DisplayName,
			AvatarURL:    creds.AvatarURL,
			PasswordHash: creds.PasswordHash,
			Status:       string(creds.Status),
		}
		data, err := dbUser.MarshalBinary()
		if err != nil {
			return err
		}
		if err := users.Put(dbUser.Key(), data); err != nil {
			return err
		}
		return names.Put([]byte(creds.UserName), dbUser.Key())
	})
	if err != nil {
		return auth.UserCredentials{}, err
	}
	return creds, nil
}

// UpsertCredentials stores updated credentials for an existing user.
func (s *BboltStorage) UpsertCredentials(creds auth.UserCredentials) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		dbUser := &DBUser{
			ID:           creds.ID,
			UserName:     creds.UserName,
			DisplayName:  creds.DisplayName,
			AvatarURL:    creds.AvatarURL,
			PasswordHash: creds.PasswordHash,
			Status:       string(creds.Status),
		}
		data, err := dbUser.MarshalBinary()
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketUsers).Put(dbUser.Key(), data); err != nil {
			return err
		}
		return tx.Bucket(bucketUserNames).Put([]byte(creds.UserName), dbUser.Key())
	})
}

// ListCredentials returns all user credentials stored in the database.
func (s *BboltStorage) ListCredentials() ([]auth.UserCredentials, error) {
	var credentials []auth.UserCredentials
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		return b.ForEach(func(k, v []byte) error {
			var dbUser DBUser
			if err := dbUser.UnmarshalBinary(v); err != nil {
				return err
			}
			credentials = append(credentials, auth.UserCredentials{
				User: models.User{
					ID:          dbUser.ID,
					UserName:    dbUser.UserName,
					DisplayName: dbUser.DisplayName,
					AvatarURL:   dbUser.AvatarURL,
					Status:      models.UserStatus(dbUser.Status),
				},
				PasswordHash: dbUser.PasswordHash,
			})
			return nil
		})
	})
	return credentials, err
}

// GetUser returns the user record for the given id.
func (s *BboltStorage) GetUser(id int64) (models.User, error) {
	var user models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get(idKey(id))
		if data == nil {
			return models.ErrNotFound
		}
		var dbUser DBUser
		if err := dbUser.UnmarshalBinary(data); err != nil {
			return err
		}
		user = models.User{
			ID:          dbUser.ID,
			UserName:    dbUser.UserName,
			DisplayName: dbUser.DisplayName,
			AvatarURL:   dbUser.AvatarURL,
			Status:      models.UserStatus(dbUser.Status),
		}
		return nil
	})
	return user, err
}

// SaveMessage persists a chat message, assigning its id and creation
// timestamp, and returns the stored representation. The returned
// message is what gets forwarded to clients.
func (s *BboltStorage) SaveMessage(message models.Message) (models.Message, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketMessages)

		var convKey []byte
		switch message.ChatType {
		case models.ChatTypeSingle:
			convKey = conversationKey(message.SenderID, message.ReceiverID)
		case models.ChatTypeGroup:
			convKey = groupConversationKey(message.ReceiverGroupID)
		default:
			return fmt.Errorf("unknown chat type %q", message.ChatType)
		}

		conv, err := root.CreateBucketIfNotExists(convKey)
		if err != nil {
			return fmt.Errorf("failed to create conversation bucket: %w", err)
		}

		// Message ids are global: the sequence lives on the root
		// bucket, the record in the conversation sub-bucket.
		seq, err := root.NextSequence()
		if err != nil {
			return err
		}
		message.ID = int64(seq)
		message.CreateTime = s.now().UTC().Truncate(time.Millisecond)

		dbMessage := DBMessage{
			ID:              message.ID,
			SenderID:        message.SenderID,
			ReceiverID:      message.ReceiverID,
			ReceiverGroupID: message.ReceiverGroupID,
			ChatType:        string(message.ChatType),
			Content:         message.Content,
			MessageType:     message.MessageType,
			CreateTime:      message.CreateTime.UnixMilli(),
		}
		data, err := dbMessage.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		return conv.Put(dbMessage.Key(), data)
	})
	if err != nil {
		return models.Message{}, err
	}
	return message, nil
}

// ListConversation returns the single-chat messages exchanged between
// the two users, ascending by message id.
func (s *BboltStorage) ListConversation(userID1, userID2 int64) ([]models.Message, error) {
	return s.listMessages(conversationKey(userID1, userID2))
}

// ListGroupConversation returns a group's messages ascending by id.
func (s *BboltStorage) ListGroupConversation(groupID int64) ([]models.Message, error) {
	return s.listMessages(groupConversationKey(groupID))
}

func (s *BboltStorage) listMessages(convKey []byte) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		conv := tx.Bucket(bucketMessages).Bucket(convKey)
		if conv == nil {
			return nil // no messages yet
		}
		return conv.ForEach(func(k, v []byte) error {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, models.Message{
				ID:              dbMsg.ID,
				SenderID:        dbMsg.SenderID,
				ReceiverID:      dbMsg.ReceiverID,
				ReceiverGroupID: dbMsg.ReceiverGroupID,
				ChatType:        models.ChatType(dbMsg.ChatType),
				Content:         dbMsg.Content,
				MessageType:     dbMsg.MessageType,
				CreateTime:      time.UnixMilli(dbMsg.CreateTime).UTC(),
			})
			return nil
		})
	})
	return messages, err
}
