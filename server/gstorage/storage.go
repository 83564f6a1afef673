// Package gstorage backs up and restores files (the sqlite store) to a Google
// Cloud Storage bucket.
package gstorage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Daskott/relief/server/logger"
	"google.golang.org/api/option"
)

const TRANSFER_TIMEOUT = 50 * time.Second

var (
	ErrObjectNotExist = storage.ErrObjectNotExist

	logg = logger.NewLogger()
)

// Bucket is the subset of object storage the backup job needs.
type Bucket interface {
	UploadFile(ctx context.Context, filePath string) error
	DownloadFile(ctx context.Context, destFilePath string) error
}

type GStorage struct {
	storageClient *storage.Client
	bucket        string
	prefix        string
}

// NewGStorage creates a client for objects under '<bucket>/<prefix>/'. An empty
// credentialsFilePath falls back to application default credentials.
func NewGStorage(ctx context.Context, credentialsFilePath string, bucket string, prefix string) (*GStorage, error) {
	var client *storage.Client
	var err error

	if credentialsFilePath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsFilePath))
	} else {
		client, err = storage.NewClient(ctx)
	}

	if err != nil {
		return nil, fmt.Errorf("NewGStorage: %v", err)
	}

	return &GStorage{storageClient: client, bucket: bucket, prefix: prefix}, nil
}

func (gs *GStorage) Close() error {
	return gs.storageClient.Close()
}

// ObjectName returns the object a local file is stored as.
func ObjectName(prefix string, filePath string) string {
	return path.Join(prefix, filepath.Base(filePath))
}

// UploadFile uploads filePath as '<prefix>/<base name>'.
func (gs *GStorage) UploadFile(ctx context.Context, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("os.Open: %v", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, TRANSFER_TIMEOUT)
	defer cancel()

	object := ObjectName(gs.prefix, filePath)
	wc := gs.storageClient.Bucket(gs.bucket).Object(object).NewWriter(ctx)
	if _, err = io.Copy(wc, f); err != nil {
		wc.Close()
		return fmt.Errorf("io.Copy: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %v", err)
	}

	logg.Infof("Blob %v uploaded to bucket %v", object, gs.bucket)
	return nil
}

// DownloadFile downloads '<prefix>/<base name of destFilePath>' to
// destFilePath. ErrObjectNotExist is returned unwrapped when there is no
// backup yet, leaving destFilePath untouched.
func (gs *GStorage) DownloadFile(ctx context.Context, destFilePath string) error {
	ctx, cancel := context.WithTimeout(ctx, TRANSFER_TIMEOUT)
	defer cancel()

	object := ObjectName(gs.prefix, destFilePath)
	rc, err := gs.storageClient.Bucket(gs.bucket).Object(object).NewReader(ctx)
	if err == storage.ErrObjectNotExist {
		return err
	}
	if err != nil {
		return fmt.Errorf("Object(%q).NewReader: %v", object, err)
	}
	defer rc.Close()

	// write next to the destination first so a failed transfer never leaves a
	// truncated database behind
	tmpPath := destFilePath + ".download"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("os.OpenFile: %v", err)
	}

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("io.Copy: %v", err)
	}

	if err = f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("f.Close: %v", err)
	}

	if err = os.Rename(tmpPath, destFilePath); err != nil {
		return fmt.Errorf("os.Rename: %v", err)
	}

	logg.Infof("Blob %v downloaded to local file %v", object, destFilePath)
	return nil
}
