// Package corpus loads the question/answer records that an index is built from.
package corpus

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// Record is one question/answer pair. Its position in the corpus is the row
// of its vector in the document matrix.
type Record struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// Sentinel replaces an empty or unusable corpus so a fit always has at least
// one document.
var Sentinel = Record{Question: "default", Answer: "default"}

var (
	ErrNotFound   = errors.New("corpus file not found")
	ErrUnreadable = errors.New("corpus file unreadable")
	ErrMalformed  = errors.New("corpus file malformed")
)

// LoadError describes why a corpus source could not be used.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("corpus %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Quarantined is an entry that was skipped during load.
type Quarantined struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Report summarizes a load.
type Report struct {
	Path         string        `json:"path"`
	Loaded       int           `json:"loaded"`
	Quarantined  []Quarantined `json:"quarantined,omitempty"`
	UsedSentinel bool          `json:"used_sentinel"`
	Err          error         `json:"-"`
}

// rawRecord accepts both the long and the short field names.
type rawRecord struct {
	Question string `json:"question" yaml:"question"`
	Q        string `json:"q" yaml:"q"`
	Answer   string `json:"answer" yaml:"answer"`
	A        string `json:"a" yaml:"a"`
}

func (r rawRecord) record() (Record, string) {
	rec := Record{
		Question: strings.TrimSpace(firstNonEmpty(r.Question, r.Q)),
		Answer:   strings.TrimSpace(firstNonEmpty(r.Answer, r.A)),
	}
	switch {
	case rec.Question == "" && rec.Answer == "":
		return rec, "missing question and answer"
	case rec.Question == "":
		return rec, "missing question"
	case rec.Answer == "":
		return rec, "missing answer"
	}
	return rec, ""
}

// Load reads records from a JSON array or, for .yaml/.yml files, a YAML
// sequence. Entries without a question or answer are quarantined and listed
// in the report rather than failing the load.
func Load(path string) ([]Record, Report, error) {
	report := Report{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		kind := ErrUnreadable
		if errors.Is(err, fs.ErrNotExist) {
			kind = ErrNotFound
		}
		return nil, report, &LoadError{Path: path, Err: fmt.Errorf("%w: %v", kind, err)}
	}

	var records []Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		records, report.Quarantined, err = decodeYAML(data)
	default:
		records, report.Quarantined, err = decodeJSON(data)
	}
	if err != nil {
		return nil, report, &LoadError{Path: path, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	report.Loaded = len(records)
	return records, report, nil
}

// LoadOrSentinel never fails: when the source is missing, unreadable,
// malformed or has no valid entry, the corpus is the single Sentinel record.
func LoadOrSentinel(path string, logger *log.Logger) ([]Record, Report) {
	if logger == nil {
		logger = log.Default()
	}

	records, report, err := Load(path)
	if err != nil {
		logger.Warn("corpus unavailable, using sentinel", "path", path, "err", err)
		report.Err = err
	} else if len(records) == 0 {
		logger.Warn("corpus has no valid entries, using sentinel", "path", path)
	}
	for _, q := range report.Quarantined {
		logger.Warn("corpus entry quarantined", "path", path, "index", q.Index, "reason", q.Reason)
	}

	if len(records) == 0 {
		report.UsedSentinel = true
		report.Loaded = 1
		return []Record{Sentinel}, report
	}
	return records, report
}

// Questions returns the questions of records in order.
func Questions(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Question
	}
	return out
}

// Fingerprint returns the hex sha256 of the file at path.
func Fingerprint(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}

func decodeJSON(data []byte) ([]Record, []Quarantined, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, nil, err
	}

	var (
		records     []Record
		quarantined []Quarantined
	)
	for i, item := range items {
		var raw rawRecord
		if err := json.Unmarshal(item, &raw); err != nil {
			quarantined = append(quarantined, Quarantined{Index: i, Reason: "not an object with string fields"})
			continue
		}
		rec, reason := raw.record()
		if reason != "" {
			quarantined = append(quarantined, Quarantined{Index: i, Reason: reason})
			continue
		}
		records = append(records, rec)
	}
	return records, quarantined, nil
}

func decodeYAML(data []byte) ([]Record, []Quarantined, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, nil
	}

	var items []yaml.Node
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, nil, err
	}

	var (
		records     []Record
		quarantined []Quarantined
	)
	for i := range items {
		var raw rawRecord
		if items[i].Kind != yaml.MappingNode {
			quarantined = append(quarantined, Quarantined{Index: i, Reason: "not a mapping"})
			continue
		}
		if err := items[i].Decode(&raw); err != nil {
			quarantined = append(quarantined, Quarantined{Index: i, Reason: "not a mapping with string fields"})
			continue
		}
		rec, reason := raw.record()
		if reason != "" {
			quarantined = append(quarantined, Quarantined{Index: i, Reason: reason})
			continue
		}
		records = append(records, rec)
	}
	return records, quarantined, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
