package storage

import "gorm.io/gorm"

// PrivateMessage represents an ORM row for a direct message between two
// persons. No community context applies to these.
type PrivateMessage struct {
	ID          string `gorm:"primaryKey"`
	Content     string
	CreatorID   string `gorm:"index"`
	RecipientID string `gorm:"index"`
	Deleted     bool
}

type PrivateMessages interface {
	FindPrivateMessage(iri string) (*PrivateMessage, error)
	SavePrivateMessage(pm *PrivateMessage) error
}

func (s *sqliteDatabase) FindPrivateMessage(iri string) (*PrivateMessage, error) {
	var pm PrivateMessage
	tx := s.db.First(&pm, PrivateMessage{ID: iri})
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &pm, nil
}

func (s *sqliteDatabase) SavePrivateMessage(pm *PrivateMessage) error {
	tx := s.db.Save(pm)
	return tx.Error
}
