package common

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

// Общие ошибки для всех репозиториев
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
)

// IsUniqueViolation сообщает, нарушено ли ограничение уникальности.
// Если constraint не пуст, сверяется и имя ограничения.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsForeignKeyViolation сообщает о ссылке на несуществующую запись.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.ForeignKeyViolation
}
