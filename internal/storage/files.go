package storage

import (
	"fmt"

	"go.etcd.io/bbolt"
)

// FileMetadata describes an uploaded blob. The blob content itself
// lives in the filestore, addressed by Hash.
type FileMetadata struct {
	ID        string
	Hash      string
	MimeType  string
	Size      int64
	CreatedAt int64
	UserID    int64
}

func (s *BboltStorage) UpsertFileMetadata(meta FileMetadata) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		dbFile := &DBFile{
			ID:        meta.ID,
			Hash:      meta.Hash,
			MimeType:  meta.MimeType,
			Size:      meta.Size,
			CreatedAt: meta.CreatedAt,
			UserID:    meta.UserID,
		}
		data, err := dbFile.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal file metadata: %w", err)
		}
		return tx.Bucket(bucketFiles).Put(dbFile.Key(), data)
	})
}

func (s *BboltStorage) GetFileMetadata(id string) (FileMetadata, error) {
	var meta FileMetadata
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketFiles).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("file metadata not found for id %s", id)
		}
		var dbFile DBFile
		if err := dbFile.UnmarshalBinary(data); err != nil {
			return err
		}
		meta = FileMetadata{
			ID:        dbFile.ID,
			Hash:      dbFile.Hash,
			MimeType:  dbFile.MimeType,
			Size:      dbFile.Size,
			CreatedAt: dbFile.CreatedAt,
			UserID:    dbFile.UserID,
		}
		return nil
	})
	return meta, err
}
