package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgreSQLのSQLSTATEコード。
const (
	pqUniqueViolation     pq.ErrorCode = "23505"
	pqForeignKeyViolation pq.ErrorCode = "23503"
)

// isUniqueViolation はerrが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// isForeignKeyViolation はerrが外部キー制約違反かどうかを判定する。
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}

// isUUID はidがUUIDとして解釈できるかを判定する。
// id列はすべてUUID型のため、解釈できないidは問い合わせずに「存在しない」として扱う。
func isUUID(id string) bool {
	return uuid.Validate(id) == nil
}
