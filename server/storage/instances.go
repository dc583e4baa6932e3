package storage

import "gorm.io/gorm"

// Instance represents a known remote server. One row per domain, used for
// all-instances fan-out (person deletion broadcasts).
type Instance struct {
	Domain      string `gorm:"primaryKey"`
	SharedInbox string
}

type Instances interface {
	FindInstance(domain string) (*Instance, error)
	SaveInstance(i *Instance) error
	ListInstances() ([]Instance, error)
}

func (s *sqliteDatabase) FindInstance(domain string) (*Instance, error) {
	var instance Instance
	tx := s.db.First(&instance, Instance{Domain: domain})
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &instance, nil
}

func (s *sqliteDatabase) SaveInstance(i *Instance) error {
	tx := s.db.Save(i)
	return tx.Error
}

func (s *sqliteDatabase) ListInstances() ([]Instance, error) {
	var instances []Instance
	tx := s.db.Find(&instances)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return instances, nil
}
