package disk

import (
	"io/fs"
	"os"
)

type Reader struct {
	blobFile   *os.File
	blobReader fs.File
}

func (reader *Reader) Read(p []byte) (int, error) {
	return reader.blobReader.Read(p)
}

func (reader *Reader) Close() error {
	if err := reader.blobReader.Close(); err != nil {
		return err
	}

	return reader.blobFile.Close()
}
