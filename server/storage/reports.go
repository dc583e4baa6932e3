package storage

import "gorm.io/gorm"

// Report object kinds.
const (
	ReportedPost    = "post"
	ReportedComment = "comment"
)

// Report represents a stored report (Flag activity) against a post or
// comment. The ID is the Flag activity's own IRI, which deduplicates
// redelivered reports.
type Report struct {
	ID         string `gorm:"primaryKey"`
	CreatorID  string
	ObjectID   string `gorm:"index"`
	ObjectType string // post or comment
	Reason     string
	Resolved   bool
}

type Reports interface {
	FindReport(iri string) (*Report, error)
	SaveReport(r *Report) error
}

func (s *sqliteDatabase) FindReport(iri string) (*Report, error) {
	var report Report
	tx := s.db.First(&report, Report{ID: iri})
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &report, nil
}

func (s *sqliteDatabase) SaveReport(r *Report) error {
	tx := s.db.Save(r)
	return tx.Error
}
