package dbx

import "strings"

// sqliteParams are the connection parameters every SQLite handle needs:
// foreign keys enforce ON DELETE RESTRICT, busy_timeout makes writers wait
// instead of failing with SQLITE_BUSY, and _txlock=immediate takes the write
// lock at BEGIN so a read-then-write transaction cannot interleave with
// another writer.
var sqliteParams = []struct{ marker, param string }{
	{"foreign_keys", "_pragma=foreign_keys(1)"},
	{"busy_timeout", "_pragma=busy_timeout(5000)"},
	{"_txlock", "_txlock=immediate"},
}

// SQLiteDSN appends the parameters in sqliteParams that dsn does not already
// set. Parameters present in dsn are kept as they are.
func SQLiteDSN(dsn string) string {
	for _, p := range sqliteParams {
		if strings.Contains(dsn, p.marker) {
			continue
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + p.param
		} else {
			dsn += "?" + p.param
		}
	}
	return dsn
}
