package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"

	"github.com/nao1215/sitemirror/internal/model"
)

// Export file names written by ExportAll.
const (
	URLListFile     = "urls.txt"
	EntriesJSONFile = "entries.json"
	EntriesCSVFile  = "entries.csv"
)

// csvHeader is the column order of WriteEntriesCSV.
var csvHeader = []string{
	"original_url", "mime", "extension", "local_path",
	"replace", "replaced", "downloaded", "status_code", "size", "hash", "error",
}

// WriteURLList writes the original URL of every entry, one per line.
func WriteURLList(w io.Writer, entries []model.Entry) error {
	for i := range entries {
		if _, err := fmt.Fprintln(w, entries[i].OriginalURL); err != nil {
			return err
		}
	}
	return nil
}

// WriteEntriesJSON writes the entries as an indented JSON array.
func WriteEntriesJSON(w io.Writer, entries []model.Entry) error {
	if entries == nil {
		entries = []model.Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// WriteEntriesCSV writes the entries as CSV with a header row.
func WriteEntriesCSV(w io.Writer, entries []model.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i := range entries {
		e := &entries[i]
		record := []string{
			e.OriginalURL,
			e.Mime,
			e.Extension,
			e.LocalPath,
			strconv.FormatBool(e.Replace),
			strconv.FormatBool(e.Replaced),
			strconv.FormatBool(e.Downloaded),
			strconv.Itoa(e.StatusCode),
			strconv.FormatInt(e.Size, 10),
			e.Hash,
			e.Error,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportAll writes the URL list, JSON and CSV exports of report into dir
// and returns the paths written.
func ExportAll(fs afero.Fs, dir string, report *model.MirrorReport) ([]string, error) {
	if err := fs.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	exports := []struct {
		name  string
		write func(io.Writer, []model.Entry) error
	}{
		{URLListFile, WriteURLList},
		{EntriesJSONFile, WriteEntriesJSON},
		{EntriesCSVFile, WriteEntriesCSV},
	}

	paths := make([]string, 0, len(exports))
	for _, e := range exports {
		path := filepath.Join(dir, e.name)
		if err := writeFile(fs, path, report.Entries, e.write); err != nil {
			return paths, fmt.Errorf("failed to export %s: %w", e.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(fs afero.Fs, path string, entries []model.Entry, write func(io.Writer, []model.Entry) error) (err error) {
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return write(f, entries)
}
