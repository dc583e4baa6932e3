package storage

import "gorm.io/gorm"

// Comment represents an ORM row for a local or remote comment (Note object).
type Comment struct {
	ID          string `gorm:"primaryKey"`
	Content     string
	CreatorID   string `gorm:"index"`
	PostID      string `gorm:"index"`
	CommunityID string `gorm:"index"`
	Deleted     bool
}

type Comments interface {
	FindComment(iri string) (*Comment, error)
	SaveComment(c *Comment) error
}

func (s *sqliteDatabase) FindComment(iri string) (*Comment, error) {
	var comment Comment
	tx := s.db.First(&comment, Comment{ID: iri})
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &comment, nil
}

func (s *sqliteDatabase) SaveComment(c *Comment) error {
	tx := s.db.Save(c)
	return tx.Error
}
