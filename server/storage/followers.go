package storage

import "gorm.io/gorm"

// Follow request status values.
const (
	FollowPending  = "pending"
	FollowAccepted = "accepted"
)

// CommunityFollower represents a follow relationship between a person and
// a community. The pair of IRIs is the key.
type CommunityFollower struct {
	CommunityID string `gorm:"primaryKey"`
	FollowerID  string `gorm:"primaryKey"`
	RequestID   string // id of the Follow activity that created this
	Status      string // pending or accepted
}

type Followers interface {
	FindFollower(communityIRI, followerIRI string) (*CommunityFollower, error)
	SaveFollower(f *CommunityFollower) error
	DeleteFollower(communityIRI, followerIRI string) error
	ListFollowers(communityIRI string) ([]Person, error)
}

func (s *sqliteDatabase) FindFollower(communityIRI, followerIRI string) (*CommunityFollower, error) {
	var follow CommunityFollower
	tx := s.db.First(&follow, CommunityFollower{CommunityID: communityIRI, FollowerID: followerIRI})
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &follow, nil
}

func (s *sqliteDatabase) SaveFollower(f *CommunityFollower) error {
	tx := s.db.Save(f)
	return tx.Error
}

func (s *sqliteDatabase) DeleteFollower(communityIRI, followerIRI string) error {
	tx := s.db.Delete(&CommunityFollower{CommunityID: communityIRI, FollowerID: followerIRI})
	return tx.Error
}

// ListFollowers returns the person rows of every accepted follower of the
// community. Fan-out expansion reads inboxes off these rows at send time.
func (s *sqliteDatabase) ListFollowers(communityIRI string) ([]Person, error) {
	var persons []Person
	tx := s.db.
		Joins("JOIN community_followers ON community_followers.follower_id = people.id").
		Where("community_followers.community_id = ? AND community_followers.status = ?",
			communityIRI, FollowAccepted).
		Find(&persons)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return persons, nil
}
