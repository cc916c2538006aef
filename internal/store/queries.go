package store

import (
	"database/sql"
	"strings"
)

// Queries wraps a *sql.DB with the parameterized statements the Database
// Writer issues. Every statement here has a direct counterpart in
// uaas::database's exec_batch/exec_drop calls; DELETE-by-height and the
// orphans/connect table writes are additions the original left implicit in
// its batching layer.
type Queries struct {
	db *sql.DB
}

// NewQueries wraps db for use by the Database Writer.
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

func (q *Queries) UtxoBatchWrite(entries []UtxoEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := q.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`REPLACE INTO utxo (hash, pos, satoshis, height, pubkeyhash) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.Exec(e.Hash, e.Pos, e.Satoshis, e.Height, e.PubKeyHash); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (q *Queries) UtxoBatchDelete(outs []UtxoOutpoint) error {
	if len(outs) == 0 {
		return nil
	}
	tx, err := q.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`DELETE FROM utxo WHERE hash = ? AND pos = ?`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, o := range outs {
		if _, err := stmt.Exec(o.Hash, o.Pos); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// UtxoDeleteAtHeight removes every utxo row created at or above height. Used
// on the one-step reorg path (§5 Block Manager) to unwind entries the
// replaced tip introduced.
func (q *Queries) UtxoDeleteAtHeight(height uint64) error {
	_, err := q.db.Exec(`DELETE FROM utxo WHERE height >= ?`, height)
	return err
}

func (q *Queries) TxBatchWrite(entries []TxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := q.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO tx (hash, height, blockindex, txsize, satoshis) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.Exec(e.Hash, e.Height, e.BlockIndex, e.Size, e.Satoshis); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// TxDeleteAtHeight removes confirmed-tx rows at or above height, the
// transaction-store counterpart to UtxoDeleteAtHeight on a one-step reorg.
func (q *Queries) TxDeleteAtHeight(height uint64) error {
	_, err := q.db.Exec(`DELETE FROM tx WHERE height >= ?`, height)
	return err
}

// AllConfirmedTxHashes returns every hash in the tx table, used to seed the
// Tx Store's confirmed set on restart when startup_load_from_database is
// set (§4.F setup()).
func (q *Queries) AllConfirmedTxHashes() ([]string, error) {
	rows, err := q.db.Query(`SELECT hash FROM tx`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		out = append(out, hash)
	}
	return out, rows.Err()
}

// AllMempoolTxHashes returns every hash in the mempool table, used to seed
// the Tx Store's pending-mempool set on restart.
func (q *Queries) AllMempoolTxHashes() ([]string, error) {
	rows, err := q.db.Query(`SELECT hash FROM mempool`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		out = append(out, hash)
	}
	return out, rows.Err()
}

// AllUtxoEntries returns every row in the utxo table, used to seed the Utxo
// Set's in-memory index on restart.
func (q *Queries) AllUtxoEntries() ([]UtxoEntry, error) {
	rows, err := q.db.Query(`SELECT hash, pos, satoshis, height, pubkeyhash FROM utxo`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UtxoEntry
	for rows.Next() {
		var e UtxoEntry
		if err := rows.Scan(&e.Hash, &e.Pos, &e.Satoshis, &e.Height, &e.PubKeyHash); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *Queries) MempoolWrite(e MempoolEntry) error {
	_, err := q.db.Exec(`INSERT INTO mempool (hash, locktime, fee, time, tx) VALUES (?, ?, ?, ?, ?)`,
		e.Hash, e.LockTime, e.Fee, e.Age, e.TxHex)
	return err
}

func (q *Queries) MempoolBatchDelete(hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	tx, err := q.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`DELETE FROM mempool WHERE hash = ?`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, h := range hashes {
		if _, err := stmt.Exec(h); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (q *Queries) BlockHeaderWrite(table string, h BlockHeaderEntry) error {
	query := `INSERT INTO ` + table + ` (height, hash, version, prev_hash, merkle_root, timestamp, bits, nonce, offset, blocksize, numtxs) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.db.Exec(query, h.Height, h.Hash, h.Version, h.PrevHash, h.MerkleRoot, h.Timestamp, h.Bits, h.Nonce, h.Offset, h.BlockSize, h.NumTxs)
	return err
}

// BlockHeaderDelete removes a header row by hash from blocks, the reverse of
// BlockHeaderWrite on the one-step reorg path.
func (q *Queries) BlockHeaderDelete(hash string) error {
	_, err := q.db.Exec(`DELETE FROM blocks WHERE hash = ?`, hash)
	return err
}

// OrphanHeaderWrite files the header of a tip unwound by the one-step reorg
// path into the orphans table (§4.G), stamped with createdAt. The orphans
// table has no offset/blocksize/numtxs columns.
func (q *Queries) OrphanHeaderWrite(h BlockHeaderEntry, createdAt uint32) error {
	_, err := q.db.Exec(`INSERT INTO orphans (height, hash, version, prev_hash, merkle_root, timestamp, bits, nonce, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.Height, h.Hash, h.Version, h.PrevHash, h.MerkleRoot, h.Timestamp, h.Bits, h.Nonce, createdAt)
	return err
}

// ConnectionLogWrite appends a peer-connection audit row (SUPPLEMENTED
// FEATURES — connection log, grounded on uaas::connection).
func (q *Queries) ConnectionLogWrite(e ConnectionLogEntry) error {
	_, err := q.db.Exec(`INSERT INTO connect (date, ip, event) VALUES (?, ?, ?)`, e.Date, e.IP, e.Event)
	return err
}

// AddrWrite records the first sighting of a peer address (component E).
func (q *Queries) AddrWrite(ip string, services uint64, port uint16) error {
	_, err := q.db.Exec(`INSERT INTO addr (ip, services, port) VALUES (?, ?, ?)`, ip, services, port)
	return err
}

// AddrExists reports whether ip has already been recorded in the addr table.
func (q *Queries) AddrExists(ip string) (bool, error) {
	var count int
	err := q.db.QueryRow(`SELECT COUNT(*) FROM addr WHERE ip = ?`, ip).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CollectionTxWrite records that hash matched the named collection,
// replacing the original's per-collection dynamic CREATE TABLE with a
// single shared table keyed by (hash, name).
func (q *Queries) CollectionTxWrite(hash, name, txHex string) error {
	_, err := q.db.Exec(`INSERT INTO collection (hash, name, tx) VALUES (?, ?, ?)`, hash, name, txHex)
	return err
}

// CollectionTxsForName returns every tx hash previously matched into the
// named collection, used at startup to seed its known-tx set.
func (q *Queries) CollectionTxsForName(name string) ([]string, error) {
	rows, err := q.db.Query(`SELECT hash FROM collection WHERE name = ?`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		out = append(out, hash)
	}
	return out, rows.Err()
}

// CollectionMonitorWrite persists a dynamically-added monitor definition so
// it survives restarts (SUPPLEMENTED FEATURES — dynamic collection
// persistence).
func (q *Queries) CollectionMonitorWrite(name string, trackDescendants bool, lockingScriptRegex string) error {
	_, err := q.db.Exec(`REPLACE INTO collection_monitor (name, track_descendants, locking_script_regex) VALUES (?, ?, ?)`,
		name, trackDescendants, lockingScriptRegex)
	return err
}

// CollectionMonitorDelete removes a dynamically-added monitor definition by
// name.
func (q *Queries) CollectionMonitorDelete(name string) error {
	_, err := q.db.Exec(`DELETE FROM collection_monitor WHERE name = ?`, name)
	return err
}

// CollectionMonitorLoadAll returns every persisted monitor definition, used
// at startup to restore dynamically-added monitors alongside the static
// config list.
func (q *Queries) CollectionMonitorLoadAll() ([]CollectionMonitorRow, error) {
	rows, err := q.db.Query(`SELECT name, track_descendants, locking_script_regex FROM collection_monitor`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CollectionMonitorRow
	for rows.Next() {
		var r CollectionMonitorRow
		var regex sql.NullString
		if err := rows.Scan(&r.Name, &r.TrackDescendants, &regex); err != nil {
			return nil, err
		}
		r.LockingScriptRegex = regex.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllBlockHeaders returns every persisted header ordered by height, used at
// startup to seed the Block Manager's in-memory header chain.
func (q *Queries) AllBlockHeaders() ([]BlockHeaderEntry, error) {
	rows, err := q.db.Query(`SELECT height, hash, version, prev_hash, merkle_root, timestamp, bits, nonce, offset, blocksize, numtxs
		FROM blocks ORDER BY height ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BlockHeaderEntry
	for rows.Next() {
		var h BlockHeaderEntry
		if err := rows.Scan(&h.Height, &h.Hash, &h.Version, &h.PrevHash, &h.MerkleRoot, &h.Timestamp, &h.Bits, &h.Nonce, &h.Offset, &h.BlockSize, &h.NumTxs); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ChainTipHeader returns the header row for the highest block height known,
// reporting false when the blocks table is empty.
func (q *Queries) ChainTipHeader() (BlockHeaderEntry, bool, error) {
	var h BlockHeaderEntry
	row := q.db.QueryRow(`SELECT height, hash, version, prev_hash, merkle_root, timestamp, bits, nonce, offset, blocksize, numtxs
		FROM blocks ORDER BY height DESC LIMIT 1`)
	err := row.Scan(&h.Height, &h.Hash, &h.Version, &h.PrevHash, &h.MerkleRoot, &h.Timestamp, &h.Bits, &h.Nonce, &h.Offset, &h.BlockSize, &h.NumTxs)
	if err == sql.ErrNoRows {
		return BlockHeaderEntry{}, false, nil
	}
	if err != nil {
		return BlockHeaderEntry{}, false, err
	}
	return h, true, nil
}

// UtxoSatoshis looks up the value of a single outpoint in the utxo table,
// reporting false when no row matches.
func (q *Queries) UtxoSatoshis(hash string, pos uint32) (uint64, bool, error) {
	var satoshis uint64
	err := q.db.QueryRow(`SELECT satoshis FROM utxo WHERE hash = ? AND pos = ?`, hash, pos).Scan(&satoshis)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return satoshis, true, nil
}

// TxExists reports whether hash has already been recorded as confirmed in
// the tx table.
func (q *Queries) TxExists(hash string) (bool, error) {
	var count int
	err := q.db.QueryRow(`SELECT COUNT(*) FROM tx WHERE hash = ?`, strings.ToLower(hash)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
