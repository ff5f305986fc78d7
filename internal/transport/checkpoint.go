package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const checkpointVersion = 1

// Checkpoint is the decoded form of the opaque resume blob produced by RequestCheckpoint.
type Checkpoint struct {
	Version   int    `json:"version"`
	URL       string `json:"url"`
	TempPath  string `json:"temp_path"`
	Offset    int64  `json:"offset"`
	Validator string `json:"validator,omitempty"`
	Name      string `json:"name,omitempty"`
}

func (c *Checkpoint) Encode() ([]byte, error) {
	c.Version = checkpointVersion
	return json.Marshal(c)
}

func DecodeCheckpoint(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheckpoint, err)
	}
	if c.Version != checkpointVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrInvalidCheckpoint, c.Version)
	}
	if c.URL == "" || c.TempPath == "" || c.Offset < 0 {
		return nil, fmt.Errorf("%w: incomplete", ErrInvalidCheckpoint)
	}
	return &c, nil
}

// decodeCheckpointFor decodes data, requiring that it was produced by a transfer of url. Empty data gives nil.
func decodeCheckpointFor(data []byte, url string) (*Checkpoint, error) {
	if len(data) == 0 {
		return nil, nil
	}
	c, err := DecodeCheckpoint(data)
	if err != nil {
		return nil, err
	}
	if c.URL != url {
		return nil, fmt.Errorf("%w: checkpoint is for %v", ErrInvalidCheckpoint, c.URL)
	}
	return c, nil
}

// A Discarder can release whatever a checkpoint holds on to, for checkpoints that will never be resumed.
type Discarder interface {
	Discard(checkpoint []byte) error
}

// DiscardCheckpoint removes the staging file of a checkpoint produced by this package.
func DiscardCheckpoint(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	c, err := DecodeCheckpoint(data)
	if err != nil {
		return err
	}
	if err := os.Remove(c.TempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (t *HTTP) Discard(checkpoint []byte) error     { return DiscardCheckpoint(checkpoint) }
func (t *File) Discard(checkpoint []byte) error     { return DiscardCheckpoint(checkpoint) }
func (r *Registry) Discard(checkpoint []byte) error { return DiscardCheckpoint(checkpoint) }
