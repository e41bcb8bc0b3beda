// Package indexing holds the run-scoped progress report produced by the
// batch indexing engine.
package indexing

import "time"

// HospitalError names a single hospital that failed during a run.
type HospitalError struct {
	HospitalID   string `json:"hospitalId"`
	HospitalName string `json:"hospitalName"`
	Error        string `json:"error"`
}

// Progress accumulates the outcome of one indexing run. It is mutated as
// batches complete and frozen once Complete is called.
type Progress struct {
	Total      int             `json:"total"`
	Processed  int             `json:"processed"`
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	Errors     []HospitalError `json:"errors"`
	Batches    int             `json:"batches"`
	IsComplete bool            `json:"isComplete"`
	StartedAt  time.Time       `json:"startedAt"`
	EndedAt    time.Time       `json:"endedAt,omitempty"`
}

// NewProgress starts a run report over the given candidate count.
func NewProgress(total int) *Progress {
	return &Progress{Total: total, StartedAt: time.Now().UTC()}
}

// RecordSuccess counts one hospital embedded and written.
func (p *Progress) RecordSuccess() {
	if p.IsComplete {
		return
	}
	p.Processed++
	p.Successful++
}

// RecordFailure counts one hospital that failed, keeping the error in
// input order for caller inspection and retry.
func (p *Progress) RecordFailure(id, name string, err error) {
	if p.IsComplete {
		return
	}
	p.Processed++
	p.Failed++
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	p.Errors = append(p.Errors, HospitalError{
		HospitalID:   id,
		HospitalName: name,
		Error:        msg,
	})
}

// RecordBatch counts one completed batch.
func (p *Progress) RecordBatch() {
	if p.IsComplete {
		return
	}
	p.Batches++
}

// Complete stamps the end of the run. Further mutation is ignored.
func (p *Progress) Complete() {
	if p.IsComplete {
		return
	}
	p.IsComplete = true
	p.EndedAt = time.Now().UTC()
}
