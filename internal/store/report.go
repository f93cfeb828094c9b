package store

import "github.com/brandwacht/warnmelder/internal/report"

// ReportStore persists the situation-report cache entry as one JSON file.
// It implements report.Store.
type ReportStore struct {
	path string
}

// NewReportStore creates a ReportStore at path. The file is created on
// first save.
func NewReportStore(path string) *ReportStore {
	return &ReportStore{path: path}
}

func (s *ReportStore) Load() (report.Entry, bool, error) {
	var e report.Entry
	found, err := readFileJSON(s.path, &e)
	if err != nil {
		return report.Entry{}, false, err
	}
	return e, found, nil
}

func (s *ReportStore) Save(e report.Entry) error {
	return writeFileAtomic(s.path, e)
}
