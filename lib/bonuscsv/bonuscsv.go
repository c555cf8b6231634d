// Package bonuscsv appends scraped bonuses to an on-disk CSV log. The
// file is append-only history, it is never rewritten and the same bonus
// may appear once per run.
package bonuscsv

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"bonuswatch-backend/lib/bonus"
)

// Append writes the given bonuses to the CSV file at path, creating it
// (and its parent directory) with a header row when it doesn't exist or
// is empty.
func Append(path string, bonuses []bonus.Bonus) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		err = writer.Write(bonus.Header())
		if err != nil {
			return err
		}
	}
	for _, b := range bonuses {
		err = writer.Write(b.Record())
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
