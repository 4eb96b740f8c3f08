package dbbadger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/hashlock-labs/swapd/internal/core/domain"
	"github.com/hashlock-labs/swapd/internal/core/ports"
)

// repoManager opens (or creates if not exists) the badger store on disk and
// gives access to the repositories built on top of it.
type repoManager struct {
	store          *badgerhold.Store
	swapRepository domain.SwapRepository
}

// NewRepoManager expects a base data dir and an optional logger. It creates
// a dedicated directory for the swap registry.
func NewRepoManager(baseDbDir string, logger badger.Logger) (ports.RepoManager, error) {
	swapDb, err := createDb(filepath.Join(baseDbDir, "swaps"), logger)
	if err != nil {
		return nil, fmt.Errorf("opening swaps db: %w", err)
	}

	return &repoManager{
		store:          swapDb,
		swapRepository: NewSwapRepositoryImpl(swapDb),
	}, nil
}

func (d *repoManager) SwapRepository() domain.SwapRepository {
	return d.swapRepository
}

func (d *repoManager) Close() {
	d.store.Close()
}

// JSONEncode is a custom JSON based encoder for badger
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer

	en := json.NewEncoder(&buff)

	err := en.Encode(value)
	if err != nil {
		return nil, err
	}

	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger
func JSONDecode(data []byte, value interface{}) error {
	var buff bytes.Buffer
	de := json.NewDecoder(&buff)

	_, err := buff.Write(data)
	if err != nil {
		return err
	}

	return de.Decode(value)
}

func createDb(dbDir string, logger badger.Logger) (db *badgerhold.Store, err error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	db, err = badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})

	return
}
