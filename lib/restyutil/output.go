// Package restyutil dumps raw HTTP exchanges from a resty client to
// disk for offline inspection. Target sites drift their markup and API
// responses constantly, so the dumps are how a broken scrape gets
// diagnosed after the fact.
package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
)

type InstrumentOutput interface {
	Write(id string, contents string)
}

// FilesystemOutput writes one file per HTTP exchange. The directory is
// wiped on construction, it only ever holds the latest run.
type FilesystemOutput struct {
	directory string
}

func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	os.RemoveAll(dir)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
