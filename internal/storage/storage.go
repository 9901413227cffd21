package storage

import "vaultFees/internal/model"

// MismatchSink records reports whose fee engines disagree.
type MismatchSink interface {
	PutMismatch(m model.Mismatch) error
}

// JsonlMismatches appends mismatches to a JSONL file.
type JsonlMismatches struct {
	file *Jsonl[model.Mismatch]
}

func NewJsonlMismatches(path string) *JsonlMismatches {
	return &JsonlMismatches{file: NewJsonl[model.Mismatch](path)}
}

func (s *JsonlMismatches) PutMismatch(m model.Mismatch) error {
	return s.file.Append([]model.Mismatch{m})
}

// ReadAll returns every recorded mismatch.
func (s *JsonlMismatches) ReadAll() ([]model.Mismatch, error) {
	return s.file.ReadAll()
}
