package inmemdb

import (
	"maps"
	"sync"

	"github.com/excellacademy/academia/core/attendance"
	"github.com/excellacademy/academia/core/finance"
	"github.com/excellacademy/academia/core/grading"
	"github.com/excellacademy/academia/core/notification"
	"github.com/excellacademy/academia/core/reportcard"
	"github.com/excellacademy/academia/core/school"
	"github.com/excellacademy/academia/core/user"
)

// DB is an in-memory database for tests and local runs.
// Writes and transactions are serialized by txMu; a failed or panicking transaction restores the tables as they were before it.
// Reads are not isolated from a running transaction.
type DB struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	t    tables
}

type tables struct {
	users       map[string]user.User
	classes     map[string]school.Class
	subjects    map[string]school.Subject
	parents     map[string]school.Parent
	teachers    map[string]school.Teacher
	students    map[string]school.Student
	attendance  map[string]attendance.Record
	scores      map[string]grading.ScoreEntry
	reportCards map[string]reportcard.Record
	fees        map[string]finance.FeeStructure
	invoices    map[string]finance.Invoice
	payments    map[string]finance.Payment
	inbox       map[string]notification.Notification
}

func Open() *DB {
	return &DB{t: tables{
		users:       make(map[string]user.User),
		classes:     make(map[string]school.Class),
		subjects:    make(map[string]school.Subject),
		parents:     make(map[string]school.Parent),
		teachers:    make(map[string]school.Teacher),
		students:    make(map[string]school.Student),
		attendance:  make(map[string]attendance.Record),
		scores:      make(map[string]grading.ScoreEntry),
		reportCards: make(map[string]reportcard.Record),
		fees:        make(map[string]finance.FeeStructure),
		invoices:    make(map[string]finance.Invoice),
		payments:    make(map[string]finance.Payment),
		inbox:       make(map[string]notification.Notification),
	}}
}

func (t tables) clone() tables {
	return tables{
		users:       maps.Clone(t.users),
		classes:     maps.Clone(t.classes),
		subjects:    maps.Clone(t.subjects),
		parents:     maps.Clone(t.parents),
		teachers:    maps.Clone(t.teachers),
		students:    maps.Clone(t.students),
		attendance:  maps.Clone(t.attendance),
		scores:      maps.Clone(t.scores),
		reportCards: maps.Clone(t.reportCards),
		fees:        maps.Clone(t.fees),
		invoices:    maps.Clone(t.invoices),
		payments:    maps.Clone(t.payments),
		inbox:       maps.Clone(t.inbox),
	}
}

func (db *DB) read(fn func(t *tables)) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	fn(&db.t)
}

// write runs fn with the tables locked. Outside a transaction it also waits for running transactions.
func (db *DB) write(inTx bool, fn func(t *tables) error) error {
	if !inTx {
		db.txMu.Lock()
		defer db.txMu.Unlock()
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(&db.t)
}

// withinTx runs fn in a transaction. Nested transactions join the outer one.
func (db *DB) withinTx(inTx bool, fn func() error) error {
	if inTx {
		return fn()
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.t.clone()
	db.mu.RUnlock()

	rollback := func() {
		db.mu.Lock()
		db.t = snapshot
		db.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err := fn(); err != nil {
		rollback()
		return err
	}
	return nil
}

// Reset empties every table.
func (db *DB) Reset() {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.t = Open().t
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}
