package storage

import (
	"context"
	"geomesh/common"
	"github.com/hauke96/sigolo/v2"
	"github.com/pkg/errors"
	"os"
	"path/filepath"
	"sync"
)

const storeFileExtension = ".sqlite"

type Mode string

const (
	ModeCreate Mode = "create"
	ModeInsert Mode = "insert"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeCreate:
		return ModeCreate, nil
	case ModeInsert:
		return ModeInsert, nil
	}
	return "", common.NewConfigurationError("mode", "'%s' is not valid, valid modes are '%s' and '%s'", s, ModeCreate, ModeInsert)
}

// DatasetPath returns the file of the dataset within the database directory.
func DatasetPath(databaseDir string, dataset string) string {
	return filepath.Join(databaseDir, dataset+storeFileExtension)
}

// DatasetExists checks whether the store file of the dataset exists.
func DatasetExists(databaseDir string, dataset string) bool {
	_, err := os.Stat(DatasetPath(databaseDir, dataset))
	return err == nil
}

// Writes to different datasets don't share locks, writes to the same dataset are serialized.
var datasetLocks = sync.Map{}

func lockDataset(path string) func() {
	lock, _ := datasetLocks.LoadOrStore(path, &sync.Mutex{})
	mutex := lock.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}

// Writer persists the tables of one pipeline run into the store of a dataset.
type Writer struct {
	DatabaseDir string
	Dataset     string
}

func NewWriter(databaseDir string, dataset string) *Writer {
	return &Writer{
		DatabaseDir: databaseDir,
		Dataset:     dataset,
	}
}

// Write persists all tables in one transaction. In create mode the store must not exist yet, in insert mode every
// existing table must have exactly the columns of the incoming table. When writing fails, the dataset is left as it
// was before, a store created by this call is removed again.
func (w *Writer) Write(ctx context.Context, tables []common.Table, mode Mode) (err error) {
	path := DatasetPath(w.DatabaseDir, w.Dataset)

	unlock := lockDataset(path)
	defer unlock()

	storeExists := DatasetExists(w.DatabaseDir, w.Dataset)
	if mode == ModeCreate && storeExists {
		return common.NewDatasetExistsError(w.Dataset)
	}

	if err := os.MkdirAll(w.DatabaseDir, os.ModePerm); err != nil {
		return errors.Wrapf(err, "Unable to create database directory %s", w.DatabaseDir)
	}

	store, err := OpenSQLite(path, true)
	if err != nil {
		return err
	}

	createdStore := !storeExists
	defer func() {
		closeErr := store.Close()
		if err == nil && closeErr != nil {
			err = errors.Wrapf(closeErr, "Unable to close store %s", path)
		}
		if err != nil && createdStore {
			sigolo.Debugf("Remove store %s after failed write", path)
			removeStoreFiles(path)
		}
	}()

	if storeExists {
		if err := w.checkSchemas(ctx, store, tables); err != nil {
			return err
		}
	}

	sigolo.Infof("Write %d tables to dataset '%s' at %s in mode '%s'", len(tables), w.Dataset, path, mode)
	return store.Write(ctx, tables)
}

// Remove deletes the store of the dataset, e.g. when a created dataset could not be registered.
func (w *Writer) Remove() {
	path := DatasetPath(w.DatabaseDir, w.Dataset)

	unlock := lockDataset(path)
	defer unlock()

	sigolo.Debugf("Remove store %s", path)
	removeStoreFiles(path)
}

func (w *Writer) checkSchemas(ctx context.Context, store Store, tables []common.Table) error {
	for _, table := range tables {
		exists, err := store.TableExists(ctx, table.Name)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}

		existing, err := store.Columns(ctx, table.Name)
		if err != nil {
			return err
		}
		if !existing.Equal(table.Schema) {
			return common.NewSchemaMismatchError(w.Dataset, table.Name, existing.SortedNames(), table.Schema.SortedNames())
		}
	}
	return nil
}

func removeStoreFiles(path string) {
	for _, suffix := range []string{"", "-journal", "-wal", "-shm"} {
		err := os.Remove(path + suffix)
		if err != nil && !os.IsNotExist(err) {
			sigolo.Warnf("Unable to remove %s: %+v", path+suffix, err)
		}
	}
}
