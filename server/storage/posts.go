package storage

import "gorm.io/gorm"

// Post represents an ORM row for a local or remote post (Page object).
type Post struct {
	ID          string `gorm:"primaryKey"`
	Title       string
	CreatorID   string `gorm:"index"`
	CommunityID string `gorm:"index"`
	Deleted     bool
}

type Posts interface {
	FindPost(iri string) (*Post, error)
	SavePost(p *Post) error
}

func (s *sqliteDatabase) FindPost(iri string) (*Post, error) {
	var post Post
	tx := s.db.First(&post, Post{ID: iri})
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &post, nil
}

func (s *sqliteDatabase) SavePost(p *Post) error {
	tx := s.db.Save(p)
	return tx.Error
}
