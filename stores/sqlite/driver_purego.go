//go:build !cgo

package sqlite

import _ "modernc.org/sqlite"

const CGOEnabled = false

const driverName = "sqlite"
