// Package store owns the relational schema (§6 "Database tables") and the
// single *sql.DB handle shared by the Database Writer. No other package may
// issue mutations against it directly.
package store

import (
	"database/sql"
	"strings"
)

// Open opens the relational store and creates any tables that are absent.
// Mirrors the `create_table` calls the original uaas modules ran once at
// startup before loading in-memory state.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS blocks (
	height     INT UNSIGNED NOT NULL,
	hash       VARCHAR(64) NOT NULL,
	version    INT UNSIGNED NOT NULL,
	prev_hash  VARCHAR(64) NOT NULL,
	merkle_root VARCHAR(64) NOT NULL,
	timestamp  INT UNSIGNED NOT NULL,
	bits       INT UNSIGNED NOT NULL,
	nonce      INT UNSIGNED NOT NULL,
	offset     BIGINT UNSIGNED NOT NULL,
	blocksize  INT UNSIGNED NOT NULL,
	numtxs     INT UNSIGNED NOT NULL,
	PRIMARY KEY (hash)
);

CREATE TABLE IF NOT EXISTS orphans (
	height     INT UNSIGNED NOT NULL,
	hash       VARCHAR(64) NOT NULL,
	version    INT UNSIGNED NOT NULL,
	prev_hash  VARCHAR(64) NOT NULL,
	merkle_root VARCHAR(64) NOT NULL,
	timestamp  INT UNSIGNED NOT NULL,
	bits       INT UNSIGNED NOT NULL,
	nonce      INT UNSIGNED NOT NULL,
	created_at INT UNSIGNED NOT NULL
);

CREATE TABLE IF NOT EXISTS tx (
	hash       VARCHAR(64) NOT NULL,
	height     INT UNSIGNED NOT NULL,
	blockindex INT UNSIGNED NOT NULL,
	txsize     INT UNSIGNED NOT NULL,
	satoshis   BIGINT UNSIGNED NOT NULL,
	PRIMARY KEY (hash)
);

CREATE TABLE IF NOT EXISTS mempool (
	hash     VARCHAR(64) NOT NULL,
	locktime INT UNSIGNED NOT NULL,
	fee      BIGINT NOT NULL,
	time     BIGINT UNSIGNED NOT NULL,
	tx       LONGTEXT NOT NULL
);
CREATE INDEX mempool_hash ON mempool (hash);

CREATE TABLE IF NOT EXISTS utxo (
	hash       VARCHAR(64) NOT NULL,
	pos        INT UNSIGNED NOT NULL,
	satoshis   BIGINT UNSIGNED NOT NULL,
	height     INT NOT NULL,
	pubkeyhash VARCHAR(64),
	CONSTRAINT PK_Entry PRIMARY KEY (hash, pos)
);
CREATE INDEX speed_key ON utxo (pubkeyhash);

CREATE TABLE IF NOT EXISTS addr (
	ip       VARCHAR(64) NOT NULL,
	services BIGINT UNSIGNED NOT NULL,
	port     INT UNSIGNED NOT NULL
);

CREATE TABLE IF NOT EXISTS connect (
	date  BIGINT UNSIGNED NOT NULL,
	ip    VARCHAR(64) NOT NULL,
	event VARCHAR(32) NOT NULL
);

CREATE TABLE IF NOT EXISTS collection (
	hash VARCHAR(64) NOT NULL,
	name VARCHAR(128) NOT NULL,
	tx   LONGTEXT NOT NULL,
	PRIMARY KEY (hash, name)
);
CREATE INDEX collection_hash_name ON collection (hash, name);

CREATE TABLE IF NOT EXISTS collection_monitor (
	name                  VARCHAR(128) NOT NULL,
	track_descendants     TINYINT(1) NOT NULL,
	locking_script_regex  VARCHAR(512),
	PRIMARY KEY (name)
);
`

// createTables executes the schema DDL statement by statement; MySQL's
// driver does not support multi-statement exec in a single call by default.
// CREATE TABLE uses IF NOT EXISTS; CREATE INDEX has no such clause in MySQL,
// so a duplicate-key error on a repeat startup is tolerated here.
func createTables(db *sql.DB) error {
	for _, stmt := range splitStatements(schemaDDL) {
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			if isCreateIndex(stmt) && isDuplicateKeyErr(err) {
				continue
			}
			return err
		}
	}
	return nil
}

func isCreateIndex(stmt string) bool {
	return strings.HasPrefix(strings.ToUpper(stmt), "CREATE INDEX")
}

// isDuplicateKeyErr recognises MySQL error 1061 (duplicate key name) without
// importing the driver's error type, so store stays driver-agnostic at the
// type level.
func isDuplicateKeyErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Duplicate key name") || strings.Contains(msg, "1061")
}

func splitStatements(ddl string) []string {
	var stmts []string
	var cur []byte
	for i := 0; i < len(ddl); i++ {
		c := ddl[i]
		cur = append(cur, c)
		if c == ';' {
			stmts = append(stmts, trimSpace(string(cur)))
			cur = cur[:0]
		}
	}
	return stmts
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == ';'
}
