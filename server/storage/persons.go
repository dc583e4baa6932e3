package storage

import "gorm.io/gorm"

// Person represents an ORM row for a local or remote person actor.
// The ID is the actor's IRI. PrivateKeyPEM is set only for local rows.
type Person struct {
	ID            string `gorm:"primaryKey"`
	Name          string `gorm:"index:idx_person_name_domain"`
	Domain        string `gorm:"index:idx_person_name_domain"`
	Local         bool
	Inbox         string
	SharedInbox   string
	PublicKeyPEM  string
	PrivateKeyPEM string
	Admin         bool
	Deleted       bool
}

type Persons interface {
	FindPerson(iri string) (*Person, error)
	FindPersonByName(name string, includeDeleted bool) (*Person, error)
	FindPersonByNameAndDomain(name, domain string) (*Person, error)
	SavePerson(p *Person) error
	PurgePersonContent(creatorIRI string) error
}

func (s *sqliteDatabase) FindPerson(iri string) (*Person, error) {
	var person Person
	tx := s.db.First(&person, Person{ID: iri})
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &person, nil
}

func (s *sqliteDatabase) FindPersonByName(name string, includeDeleted bool) (*Person, error) {
	var person Person
	tx := s.db.Where(&Person{Name: name, Local: true})
	if !includeDeleted {
		tx = tx.Where("deleted = ?", false)
	}
	tx = tx.First(&person)
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &person, nil
}

func (s *sqliteDatabase) FindPersonByNameAndDomain(name, domain string) (*Person, error) {
	var person Person
	tx := s.db.First(&person, Person{Name: name, Domain: domain})
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &person, nil
}

func (s *sqliteDatabase) SavePerson(p *Person) error {
	tx := s.db.Save(p)
	return tx.Error
}

// PurgePersonContent marks every post and comment attributed to the person
// as deleted. Used for person deletion with removeData set.
func (s *sqliteDatabase) PurgePersonContent(creatorIRI string) error {
	if tx := s.db.Model(&Post{}).Where("creator_id = ?", creatorIRI).Update("deleted", true); tx.Error != nil {
		return tx.Error
	}
	tx := s.db.Model(&Comment{}).Where("creator_id = ?", creatorIRI).Update("deleted", true)
	return tx.Error
}
