// Package corpus loads the reference dataset of statutory sections.
//
// A Corpus is immutable after construction and safe for concurrent reads.
package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

var (
	// ErrCorpusNotFound is returned when the data file does not exist.
	ErrCorpusNotFound = errors.New("corpus data file not found")

	// ErrCorpusMalformed is returned when the data file cannot be decoded.
	ErrCorpusMalformed = errors.New("corpus data file is malformed")
)

// Entry is one statutory section.
type Entry struct {
	SectionID   string
	Title       string
	Description string
}

// Text is the string fed to the embedding provider for this entry.
func (e Entry) Text() string {
	return e.Title + " " + e.Description
}

// record mirrors the on-disk JSON layout of the dataset.
type record struct {
	Section     sectionID `json:"Section"`
	Title       string    `json:"section_title"`
	Description string    `json:"section_desc"`
}

// sectionID accepts both "302" and 302 in the data file.
type sectionID string

func (s *sectionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = sectionID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("section id: %w", err)
	}
	*s = sectionID(num.String())
	return nil
}

// Corpus is the ordered, de-duplicated set of sections.
type Corpus struct {
	entries []Entry
	byID    map[string]int
}

// Option configures corpus construction.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report data quality problems.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
	}
}

// Empty returns a corpus with no entries.
func Empty() *Corpus {
	return &Corpus{byID: map[string]int{}}
}

// New builds a corpus from entries. Entries without a section id are dropped and
// only the first occurrence of a duplicated section id is kept.
func New(entries []Entry, opts ...Option) *Corpus {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("component", "corpus")

	c := &Corpus{
		entries: make([]Entry, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		e.SectionID = strings.TrimSpace(e.SectionID)
		if e.SectionID == "" {
			logger.Warn("dropping entry without section id", "position", i, "title", e.Title)
			continue
		}
		key := normalizeID(e.SectionID)
		if first, dup := c.byID[key]; dup {
			logger.Warn("duplicate section id, keeping first occurrence",
				"section", e.SectionID, "position", i, "first_position", first)
			continue
		}
		c.byID[key] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c
}

// Load reads a JSON array of section records from path.
func Load(path string, opts ...Option) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCorpusNotFound, path)
		}
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorpusMalformed, path, err)
	}

	entries := make([]Entry, len(records))
	for i, r := range records {
		entries[i] = Entry{
			SectionID:   string(r.Section),
			Title:       r.Title,
			Description: r.Description,
		}
	}
	return New(entries, opts...), nil
}

// Len returns the number of entries.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// At returns the entry at position i.
func (c *Corpus) At(i int) Entry {
	return c.entries[i]
}

// Entries returns a copy of the ordered entries.
func (c *Corpus) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lookup finds an entry by section id, ignoring case.
func (c *Corpus) Lookup(id string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	i, ok := c.byID[normalizeID(id)]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Texts returns the embedding input for every entry, index-aligned with the corpus.
func (c *Corpus) Texts() []string {
	if c == nil {
		return nil
	}
	texts := make([]string, len(c.entries))
	for i, e := range c.entries {
		texts[i] = e.Text()
	}
	return texts
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
