package repositories

import (
	"database/sql"
	"fmt"
)

// execQueryer is satisfied by both *sql.DB and *sql.Tx.
type execQueryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// NextSequence increments and returns the counter kept in the single-row <table>_sequence table.
//
// Pass the transaction that inserts the numbered row so a rolled-back insert does not consume a number.
func NextSequence(q execQueryer, table string) (int, error) {
	var sequence int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := q.QueryRow(query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment %s sequence: %w", table, err)
	}
	return sequence, nil
}
