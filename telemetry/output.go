package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/starfield/config"
)

// csvFile appends gocsv records, writing the header once.
type csvFile struct {
	f             *os.File
	headerWritten bool
}

func createCSV(dir, name string) (*csvFile, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvFile{f: f}, nil
}

func (c *csvFile) append(records any) error {
	if !c.headerWritten {
		if err := gocsv.Marshal(records, c.f); err != nil {
			return err
		}
		c.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, c.f)
}

// OutputManager writes run output into one directory.
type OutputManager struct {
	dir       string
	perf      *csvFile
	bookmarks *csvFile
}

// NewOutputManager creates the directory, perf.csv and bookmarks.csv.
// Returns nil if dir is empty (output disabled); every method accepts a nil receiver.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	perf, err := createCSV(dir, "perf.csv")
	if err != nil {
		return nil, err
	}
	bookmarks, err := createCSV(dir, "bookmarks.csv")
	if err != nil {
		perf.f.Close()
		return nil, err
	}
	return &OutputManager{dir: dir, perf: perf, bookmarks: bookmarks}, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WritePerf appends one row to perf.csv.
func (om *OutputManager) WritePerf(r PerfRecord) error {
	if om == nil {
		return nil
	}
	if err := om.perf.append([]PerfRecord{r}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteBookmarks appends bookmarks to bookmarks.csv.
func (om *OutputManager) WriteBookmarks(bs []Bookmark) error {
	if om == nil || len(bs) == 0 {
		return nil
	}
	if err := om.bookmarks.append(bs); err != nil {
		return fmt.Errorf("writing bookmarks: %w", err)
	}
	return nil
}

// WriteRecords writes a complete CSV file of gocsv-tagged records, such as
// benchmark results.
func (om *OutputManager) WriteRecords(name string, records any) error {
	if om == nil {
		return nil
	}
	f, err := os.Create(filepath.Join(om.dir, name))
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	if err := gocsv.Marshal(records, f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return f.Close()
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close closes all open files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	return errors.Join(om.perf.f.Close(), om.bookmarks.f.Close())
}
