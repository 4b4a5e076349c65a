package recorder

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rafidiit-ops/ReverseGoGo/internal/log"
	"github.com/rafidiit-ops/ReverseGoGo/internal/study"
)

// FileName is the participant file inside the data directory.
const FileName = "ParticipantData.csv"

type CSV struct {
	dir  string
	path string
	log  *slog.Logger
}

func NewCSV(dir string, logger *slog.Logger) *CSV {
	return &CSV{
		dir:  dir,
		path: filepath.Join(dir, FileName),
		log:  log.Or(logger).With("component", "recorder", "backend", "csv"),
	}
}

func (c *CSV) Path() string { return c.path }
func (c *CSV) Close() error { return nil }

// Init creates the data directory and writes the header if the file does
// not exist yet. An existing file is left untouched.
func (c *CSV) Init() error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("recorder: create %s: %w", c.dir, err)
	}
	_, err := os.Stat(c.path)
	switch {
	case err == nil:
		c.log.Info("using existing data file", "path", c.path)
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("recorder: stat %s: %w", c.path, err)
	}
	if err := os.WriteFile(c.path, []byte(Header+"\n"), 0644); err != nil {
		return &WriteError{Path: c.path, Err: err}
	}
	c.log.Info("created data file", "path", c.path)
	return nil
}

// Append adds one row.
func (c *CSV) Append(r study.TrialRecord) error {
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &WriteError{Path: c.path, Err: err}
	}
	w := csv.NewWriter(f)
	if err := w.Write(FormatRow(r)); err != nil {
		f.Close()
		return &WriteError{Path: c.path, Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return &WriteError{Path: c.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &WriteError{Path: c.path, Err: err}
	}
	c.log.Info("logged participant", "participant", r.ParticipantID)
	return nil
}

// NextParticipantID reads the id on the last row and adds one. A missing
// file, a header-only file or an unreadable id all yield "001".
func (c *CSV) NextParticipantID() string {
	f, err := os.Open(c.path)
	if err != nil {
		return FirstParticipantID
	}
	defer f.Close()

	var last string
	rows := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		rows++
		last = line
	}
	if err := sc.Err(); err != nil {
		c.log.Error("failed to read participant id", "path", c.path, "err", err)
		return FirstParticipantID
	}
	if rows <= 1 {
		return FirstParticipantID
	}
	id, _, _ := strings.Cut(last, ",")
	return NextID(id)
}

// Records parses every data row. Malformed rows are skipped and logged.
func (c *CSV) Records() ([]study.TrialRecord, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("recorder: read %s: %w", c.path, err)
	}

	var out []study.TrialRecord
	for i, row := range rows {
		if i == 0 && strings.Join(row, ",") == Header {
			continue
		}
		rec, err := ParseRow(row)
		if err != nil {
			c.log.Warn("skipping row", "line", i+1, "err", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
