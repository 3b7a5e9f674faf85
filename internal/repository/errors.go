// Package repository implements data access over the four persisted
// collections: environments, holds, queue entries and settings, plus the
// admin registry.  Sentinel errors defined here let higher layers
// distinguish failure scenarios with errors.Is instead of string matching.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrEnvNotFound is returned when an environment lookup by name finds no
// active (non-archived) row.
var ErrEnvNotFound = errors.New("environment not found")

// ErrNameTaken is returned when a create or rename collides with an
// existing environment name.
var ErrNameTaken = errors.New("environment name already taken")

// ErrAdminNotFound is returned when an admin lookup finds no row.
var ErrAdminNotFound = errors.New("admin not found")

// ErrBadLogLevel is returned when a log-level write names an unknown level.
var ErrBadLogLevel = errors.New("log level must be error, warning or info")

// IsDuplicateEntry reports whether err is a MySQL duplicate-key violation
// (error 1062).  The engine relies on this to recognize lost acquisition
// races on the one-active-hold unique key and double-enqueue attempts on
// the per-(env,user) queue key.
func IsDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
