package cmd

import (
	"os"
	"sync"

	"github.com/Daskott/relief/utils"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// fileStorage is a session.Storage kept in its own yaml file, apart from
// .relief.yaml so env provided secrets never get written next to tokens.
type fileStorage struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

func newFileStorage(path string) (*fileStorage, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if utils.FileExist(path) {
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "unable to read %v", path)
		}
	}

	return &fileStorage{v: v, path: path}, nil
}

func (fs *fileStorage) Get(key string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	value := fs.v.GetString(storageKey(key))
	if value == "" {
		return nil, nil
	}
	return []byte(value), nil
}

func (fs *fileStorage) Set(key string, value []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.v.Set(storageKey(key), string(value))
	return fs.write()
}

// Delete blanks key; a blank value reads back as absent.
func (fs *fileStorage) Delete(key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.v.Set(storageKey(key), "")
	return fs.write()
}

func (fs *fileStorage) write() error {
	if err := fs.v.WriteConfigAs(fs.path); err != nil {
		return errors.Wrapf(err, "unable to write %v", fs.path)
	}
	return os.Chmod(fs.path, 0600)
}

func storageKey(key string) string {
	return "storage." + key
}
