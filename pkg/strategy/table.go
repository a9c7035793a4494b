package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMissingStrategy is returned for a key the table has no entry for.
var ErrMissingStrategy = errors.New("strategy: no entry for key")

// Key names a strategy. Classifier intent labels are used verbatim as keys.
type Key string

// Initiation keys, used for the first outbound message of a session.
const (
	KeyRemindUnpaidBill   Key = "remind unpaid bill"
	KeyCollectMissingInfo Key = "collect missing info"
	KeyRecommendProduct   Key = "recommend product"
	KeyGenericOutreach    Key = "generic outreach"
)

// InitiationKeys lists every key Initiate may select.
func InitiationKeys() []Key {
	return []Key{KeyRemindUnpaidBill, KeyCollectMissingInfo, KeyRecommendProduct, KeyGenericOutreach}
}

// Entry is one dialogue strategy.
type Entry struct {
	Key               Key    `json:"key"`
	Name              string `json:"name"`
	Instruction       string `json:"instruction"`
	RequiresRetrieval bool   `json:"requires_retrieval"`
	NeedsFollowup     bool   `json:"needs_followup"`
}

// Table is an immutable key to strategy mapping.
type Table struct {
	entries map[Key]Entry
}

// NewTable builds a table and checks that every key in required has an
// entry. A table that fails this check must not be used.
func NewTable(entries []Entry, required ...Key) (*Table, error) {
	t := &Table{entries: make(map[Key]Entry, len(entries))}
	for _, e := range entries {
		if e.Key == "" {
			return nil, fmt.Errorf("strategy %q has an empty key", e.Name)
		}
		if _, dup := t.entries[e.Key]; dup {
			return nil, fmt.Errorf("duplicate strategy key %q", e.Key)
		}
		if strings.TrimSpace(e.Instruction) == "" {
			return nil, fmt.Errorf("strategy %q has an empty instruction", e.Key)
		}
		t.entries[e.Key] = e
	}

	var missing []string
	for _, k := range required {
		if _, ok := t.entries[k]; !ok {
			missing = append(missing, string(k))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingStrategy, strings.Join(missing, ", "))
	}
	return t, nil
}

func (t *Table) Lookup(key Key) (Entry, error) {
	e, ok := t.entries[key]
	if !ok {
		return Entry{}, fmt.Errorf("%w %q", ErrMissingStrategy, key)
	}
	return e, nil
}

// Keys returns the table keys sorted alphabetically.
func (t *Table) Keys() []Key {
	keys := make([]Key, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
