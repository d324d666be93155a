package models

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// BulkFailure identifies a single failed item inside a bulk operation.
type BulkFailure struct {
	StudentID string `json:"student_id"`
	Message   string `json:"message"`
}

// BulkResult aggregates the outcome of a bulk operation. Items are applied
// independently: committed items are never rolled back when later ones fail.
type BulkResult struct {
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Failures  []BulkFailure `json:"failures,omitempty"`
}

// RecordFailure appends a failure entry and bumps the counter.
func (r *BulkResult) RecordFailure(studentID string, err error) {
	r.Failed++
	msg := "operation failed"
	if err != nil {
		msg = err.Error()
	}
	r.Failures = append(r.Failures, BulkFailure{StudentID: studentID, Message: msg})
}
