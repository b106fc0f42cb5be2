//go:build !cgo

package sqlite

import (
	"fmt"

	"github.com/victornm/quizdesk/internal/store"
)

// Open fails: go-sqlite3 needs cgo.
func Open(path string) (store.Store, error) {
	return nil, fmt.Errorf("sqlite: open %s: binary built without cgo", path)
}
