// Package boltdb stores task records in a bbolt database file.
package boltdb

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/alanbriolat/download-manager/internal/download"
	"github.com/alanbriolat/download-manager/internal/session"
)

var Buckets = struct {
	Metadata []byte
	Tasks    []byte
}{
	Metadata: []byte("__metadata__"),
	Tasks:    []byte("tasks"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

type Database interface {
	Close() error

	session.Database
}

type database struct {
	*bbolt.DB
}

func New(path string) (_ Database, err error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) (err error) {
		// Ensure buckets exist
		var metadata *bbolt.Bucket
		if metadata, err = tx.CreateBucketIfNotExists(Buckets.Metadata); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Tasks); err != nil {
			return err
		}

		// Get the current version of the database
		var version int
		if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes == nil {
			version = 0
		} else if err = json.Unmarshal(versionBytes, &version); err != nil {
			return err
		}
		if version > currentVersion {
			return fmt.Errorf("database version %d is newer than supported version %d", version, currentVersion)
		}

		// Set the current version of the database
		if versionBytes, err := json.Marshal(currentVersion); err != nil {
			return err
		} else if err = metadata.Put(MetadataKeys.Version, versionBytes); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &database{db}, nil
}

func (d database) ListTasks() (tasks []download.Record, err error) {
	err = d.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Tasks)
		return bucket.ForEach(func(k, v []byte) error {
			var rec download.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("task %s: %w", k, err)
			}
			tasks = append(tasks, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (d database) WriteTask(rec *download.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Tasks).Put([]byte(rec.ID), data)
	})
}

func (d database) DeleteTask(rec *download.Record) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Tasks).Delete([]byte(rec.ID))
	})
}
