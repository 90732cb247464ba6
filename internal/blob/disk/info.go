package disk

import (
	"archive/zip"
	"encoding/json"
	"io"

	blobpkg "github.com/cirruslabs/imagecache/internal/blob"
)

type Info struct {
	ID       string           `json:"id"`
	Metadata blobpkg.Metadata `json:"metadata"`
}

func readInfo(zipReader *zip.Reader) (*Info, error) {
	infoReader, err := zipReader.Open(fileInfo)
	if err != nil {
		return nil, err
	}

	var info Info

	if err := json.NewDecoder(infoReader).Decode(&info); err != nil {
		return nil, err
	}

	if err := infoReader.Close(); err != nil {
		return nil, err
	}

	return &info, nil
}

func writeEntry(w io.Writer, info Info, blobReader io.Reader) error {
	zipWriter := zip.NewWriter(w)

	infoWriter, err := zipWriter.CreateHeader(&zip.FileHeader{
		Name:   fileInfo,
		Method: zip.Store,
	})
	if err != nil {
		return err
	}

	if err := json.NewEncoder(infoWriter).Encode(&info); err != nil {
		return err
	}

	blobWriter, err := zipWriter.CreateHeader(&zip.FileHeader{
		Name:   fileBlob,
		Method: zip.Store,
	})
	if err != nil {
		return err
	}

	if _, err := io.Copy(blobWriter, blobReader); err != nil {
		return err
	}

	return zipWriter.Close()
}
