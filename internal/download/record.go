package download

import (
	"bytes"
	"time"
)

// Record is the plain data of a task: everything needed to persist it and show it.
type Record struct {
	ID              ID        `json:"id"`
	Name            string    `json:"name"`
	Source          string    `json:"source"`
	SavedPath       string    `json:"saved_path,omitempty"`
	Resumable       bool      `json:"resumable"`
	AllowBackground bool      `json:"allow_background"`
	Progress        float64   `json:"progress"`
	State           State     `json:"state"`
	Checkpoint      []byte    `json:"checkpoint,omitempty"`
	Error           string    `json:"error,omitempty"`
	Order           int       `json:"order"`
	AddedAt         time.Time `json:"added_at"`

	// Cause is the error behind Error, only available in the process where it happened.
	Cause error `json:"-" diff:"-"`
}

func (r Record) Clone() Record {
	if r.Checkpoint != nil {
		r.Checkpoint = append([]byte(nil), r.Checkpoint...)
	}
	return r
}

// Equal compares the persisted fields of two records.
func (r Record) Equal(other Record) bool {
	return r.ID == other.ID &&
		r.Name == other.Name &&
		r.Source == other.Source &&
		r.SavedPath == other.SavedPath &&
		r.Resumable == other.Resumable &&
		r.AllowBackground == other.AllowBackground &&
		r.Progress == other.Progress &&
		r.State == other.State &&
		bytes.Equal(r.Checkpoint, other.Checkpoint) &&
		r.Error == other.Error &&
		r.Order == other.Order &&
		r.AddedAt.Equal(other.AddedAt)
}

// OnlyProgressDiffers returns true if the records are the same apart from Progress.
func (r Record) OnlyProgressDiffers(other Record) bool {
	if r.Progress == other.Progress {
		return false
	}
	other.Progress = r.Progress
	return r.Equal(other)
}
