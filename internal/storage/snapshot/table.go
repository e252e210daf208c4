package snapshot

import (
	"slices"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
)

// table is the in-memory account table, ordered by email.
type table struct {
	rows map[string]model.Account
	keys []string
}

func newTable() *table {
	return &table{rows: make(map[string]model.Account)}
}

func (t *table) clone() *table {
	rows := make(map[string]model.Account, len(t.rows))
	for k, v := range t.rows {
		rows[k] = v
	}
	return &table{rows: rows, keys: slices.Clone(t.keys)}
}

func (t *table) get(email string) (model.Account, bool) {
	a, ok := t.rows[email]
	return a, ok
}

func (t *table) put(a model.Account) {
	if _, ok := t.rows[a.Email]; !ok {
		i, _ := slices.BinarySearch(t.keys, a.Email)
		t.keys = slices.Insert(t.keys, i, a.Email)
	}
	t.rows[a.Email] = a
}

func (t *table) remove(email string) bool {
	if _, ok := t.rows[email]; !ok {
		return false
	}
	delete(t.rows, email)
	if i, found := slices.BinarySearch(t.keys, email); found {
		t.keys = slices.Delete(t.keys, i, i+1)
	}
	return true
}

// ordered returns a copy of every row in key order.
func (t *table) ordered() []model.Account {
	out := make([]model.Account, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.rows[k])
	}
	return out
}

// first returns the first row in key order matching fn.
func (t *table) first(fn func(model.Account) bool) (model.Account, bool) {
	for _, k := range t.keys {
		if a := t.rows[k]; fn(a) {
			return a, true
		}
	}
	return model.Account{}, false
}
