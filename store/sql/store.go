// Package sqlstore is the bun-backed persistence layer for webhook
// records, orders and order items.
package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
)

func requireRow(res sql.Result, sentinel error, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", sentinel, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
