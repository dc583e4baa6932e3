package storage

import "gorm.io/gorm"

// CommunityModerator records moderator authority of a person over a
// community. Admins are flagged on the Person row instead.
type CommunityModerator struct {
	CommunityID string `gorm:"primaryKey"`
	PersonID    string `gorm:"primaryKey"`
}

type Moderators interface {
	IsModerator(communityIRI, personIRI string) (bool, error)
	SaveModerator(m *CommunityModerator) error
}

func (s *sqliteDatabase) IsModerator(communityIRI, personIRI string) (bool, error) {
	var mod CommunityModerator
	tx := s.db.First(&mod, CommunityModerator{CommunityID: communityIRI, PersonID: personIRI})
	if tx.Error == gorm.ErrRecordNotFound {
		return false, nil
	} else if tx.Error != nil {
		return false, tx.Error
	}
	return true, nil
}

func (s *sqliteDatabase) SaveModerator(m *CommunityModerator) error {
	tx := s.db.Save(m)
	return tx.Error
}
