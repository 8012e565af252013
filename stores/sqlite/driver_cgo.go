//go:build cgo

package sqlite

import _ "github.com/mattn/go-sqlite3"

// CGOEnabled reports whether the store runs on the cgo go-sqlite3 driver.
// Without cgo the pure-Go modernc driver is used instead.
const CGOEnabled = true

const driverName = "sqlite3"
