package storage

import "gorm.io/gorm"

// Community visibility values, which drive outbound addressing.
const (
	VisibilityPublic        = "public"
	VisibilityFollowersOnly = "followers"
)

// Community represents an ORM row for a local or remote community actor.
type Community struct {
	ID            string `gorm:"primaryKey"`
	Name          string `gorm:"index:idx_community_name_domain"`
	Domain        string `gorm:"index:idx_community_name_domain"`
	Local         bool
	Inbox         string
	SharedInbox   string
	FollowersURL  string
	PublicKeyPEM  string
	PrivateKeyPEM string
	Visibility    string
	Deleted       bool
	Removed       bool // removed by an admin, distinct from deleted by its mods
}

type Communities interface {
	FindCommunity(iri string) (*Community, error)
	FindCommunityByName(name string, includeDeleted bool) (*Community, error)
	FindCommunityByNameAndDomain(name, domain string) (*Community, error)
	SaveCommunity(c *Community) error
}

func (s *sqliteDatabase) FindCommunity(iri string) (*Community, error) {
	var community Community
	tx := s.db.First(&community, Community{ID: iri})
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &community, nil
}

func (s *sqliteDatabase) FindCommunityByName(name string, includeDeleted bool) (*Community, error) {
	var community Community
	tx := s.db.Where(&Community{Name: name, Local: true})
	if !includeDeleted {
		tx = tx.Where("deleted = ?", false)
	}
	tx = tx.First(&community)
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &community, nil
}

func (s *sqliteDatabase) FindCommunityByNameAndDomain(name, domain string) (*Community, error) {
	var community Community
	tx := s.db.First(&community, Community{Name: name, Domain: domain})
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &community, nil
}

func (s *sqliteDatabase) SaveCommunity(c *Community) error {
	tx := s.db.Save(c)
	return tx.Error
}
