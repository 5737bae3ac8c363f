package model

import "sort"

// EvidenceRecord is the persisted outcome of processing one candidate link
// for one company.
type EvidenceRecord struct {
	Link    CandidateLink `json:"link" bson:"link"`
	Pages   PageSet       `json:"pages" bson:"pages"`
	Summary string        `json:"summary" bson:"summary"`
}

// SortRecords orders records by link so that every read of a partition yields
// the same sequence.
func SortRecords(records []EvidenceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Link < records[j].Link
	})
}
