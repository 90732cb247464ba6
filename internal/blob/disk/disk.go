package disk

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	blobpkg "github.com/cirruslabs/imagecache/internal/blob"
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

const (
	fileInfo = "info.json"
	fileBlob = "blob.bin"

	// Blobs being written live next to the accepted ones, so that
	// accepting them is a same-filesystem rename
	tmpPrefix = "."
)

var ErrLimitExceeded = errors.New("disk limit exceeded")

type Disk struct {
	dir        string
	limitBytes uint64
	mtx        sync.Mutex
}

func New(dir string, limitBytes uint64) (*Disk, error) {
	disk := &Disk{
		dir:        dir,
		limitBytes: limitBytes,
	}

	// Pre-create the disk's directory if not created yet
	if err := os.MkdirAll(dir, 0755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}

	return disk, nil
}

func (disk *Disk) Get(_ context.Context, id string) (io.ReadCloser, blobpkg.Metadata, error) {
	disk.mtx.Lock()
	defer disk.mtx.Unlock()

	blobFile, err := os.Open(disk.path(id))
	if err != nil {
		// Convert the error for consumer's convenience
		if errors.Is(err, os.ErrNotExist) {
			return nil, blobpkg.Metadata{}, blobpkg.ErrNotFound
		}

		return nil, blobpkg.Metadata{}, fmt.Errorf("failed to open blob %q: %w", id, err)
	}

	blobReader, info, err := disk.getInner(blobFile)
	if err != nil {
		_ = blobFile.Close()

		return nil, blobpkg.Metadata{}, fmt.Errorf("failed to read blob %q: %w", id, err)
	}

	return &Reader{
		blobFile:   blobFile,
		blobReader: blobReader,
	}, info.Metadata, nil
}

func (disk *Disk) Put(_ context.Context, id string, metadata blobpkg.Metadata, blobReader io.Reader) (int64, error) {
	tmpFile, err := os.CreateTemp(disk.dir, tmpPrefix+"put-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create a temporary file for the blob %q: %w", id, err)
	}

	// Spool the payload first, we need to know its size
	// before writing the info file
	n, err := io.Copy(tmpFile, blobReader)
	if err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpFile.Name())

		return 0, fmt.Errorf("failed to spool blob %q: %w", id, err)
	}

	metadata.Size = n

	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpFile.Name())

		return 0, fmt.Errorf("failed to rewind blob %q: %w", id, err)
	}

	entryFile, err := os.CreateTemp(disk.dir, tmpPrefix+"entry-*")
	if err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpFile.Name())

		return 0, fmt.Errorf("failed to create a temporary file for the blob %q: %w", id, err)
	}

	err = writeEntry(entryFile, Info{ID: id, Metadata: metadata}, tmpFile)

	_ = tmpFile.Close()
	_ = os.Remove(tmpFile.Name())

	if err != nil {
		_ = entryFile.Close()
		_ = os.Remove(entryFile.Name())

		return 0, fmt.Errorf("failed to write blob %q: %w", id, err)
	}

	if err := entryFile.Close(); err != nil {
		_ = os.Remove(entryFile.Name())

		return 0, fmt.Errorf("failed to close blob %q: %w", id, err)
	}

	if err := disk.accept(id, entryFile.Name()); err != nil {
		_ = os.Remove(entryFile.Name())

		return 0, fmt.Errorf("failed to accept blob %q: %w", id, err)
	}

	return n, nil
}

func (disk *Disk) Delete(_ context.Context, id string) error {
	disk.mtx.Lock()
	defer disk.mtx.Unlock()

	if err := os.Remove(disk.path(id)); err != nil {
		// Convert the error for consumer's convenience
		if errors.Is(err, os.ErrNotExist) {
			return blobpkg.ErrNotFound
		}

		return err
	}

	return nil
}

// Purge removes every blob left over from a previous process.
// Blobs that are still being written are left alone.
func (disk *Disk) Purge() error {
	disk.mtx.Lock()
	defer disk.mtx.Unlock()

	dirEntries, err := disk.blobEntries()
	if err != nil {
		return err
	}

	for _, dirEntry := range dirEntries {
		if err := os.RemoveAll(filepath.Join(disk.dir, dirEntry.Name())); err != nil {
			return err
		}
	}

	return nil
}

func (disk *Disk) path(id string) string {
	// On macOS, the maximum filename length is 255 characters (inclusive),
	// so the safest way to avoid errors is to hash the blob's ID
	hash := sha256.Sum256([]byte(id))

	return filepath.Join(disk.dir, hex.EncodeToString(hash[:]))
}

func (disk *Disk) getInner(blobFile *os.File) (fs.File, Info, error) {
	fi, err := blobFile.Stat()
	if err != nil {
		// Convert the error for consumer's convenience
		if errors.Is(err, os.ErrNotExist) {
			return nil, Info{}, blobpkg.ErrNotFound
		}

		return nil, Info{}, fmt.Errorf("stat(2) failed: %w", err)
	}

	zipReader, err := zip.NewReader(blobFile, fi.Size())
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to open as a ZIP file: %w", err)
	}

	info, err := readInfo(zipReader)
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to read from ZIP file: %w", err)
	}

	blobReader, err := zipReader.Open(fileBlob)
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to read from ZIP file: %w", err)
	}

	return blobReader, *info, nil
}

func (disk *Disk) accept(id string, path string) error {
	disk.mtx.Lock()
	defer disk.mtx.Unlock()

	fi, err := os.Stat(path)
	if err != nil {
		return err
	}

	// Eviction is the cache's business, here we only refuse
	// to grow past the configured limit
	usedBytes, err := disk.usedBytes()
	if err != nil {
		return err
	}

	if usedBytes+uint64(fi.Size()) > disk.limitBytes {
		return fmt.Errorf("%w: blob of %s doesn't fit into %s (%s used)", ErrLimitExceeded,
			humanize.IBytes(uint64(fi.Size())), humanize.IBytes(disk.limitBytes), humanize.IBytes(usedBytes))
	}

	return os.Rename(path, disk.path(id))
}

func (disk *Disk) usedBytes() (uint64, error) {
	dirEntries, err := disk.blobEntries()
	if err != nil {
		return 0, err
	}

	var sizes []uint64

	for _, dirEntry := range dirEntries {
		fi, err := dirEntry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			return 0, err
		}

		sizes = append(sizes, uint64(fi.Size()))
	}

	return lo.Sum(sizes), nil
}

// blobEntries lists the accepted blobs.
func (disk *Disk) blobEntries() ([]os.DirEntry, error) {
	dirEntries, err := os.ReadDir(disk.dir)
	if err != nil {
		return nil, err
	}

	return lo.Filter(dirEntries, func(dirEntry os.DirEntry, _ int) bool {
		return !strings.HasPrefix(dirEntry.Name(), tmpPrefix)
	}), nil
}
