// Package repository holds the sqlx/MySQL persistence layer. Create methods
// translate unique-constraint violations into domain.ErrAlreadyExists so
// services can treat a lost create race as a normal control-flow branch.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}
