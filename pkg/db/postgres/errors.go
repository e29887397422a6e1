package postgres

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrDuplicateCode  = pq.ErrorCode("23505")
	ErrForeignKeyCode = pq.ErrorCode("23503")
)

func IsDuplicateKeyErr(err error) bool {
	var pgErr *pq.Error
	if err != nil {
		if errors.As(err, &pgErr) {
			return pgErr.Code == ErrDuplicateCode
		}
	}
	return false
}

func IsForeignKeyErr(err error) bool {
	var pgErr *pq.Error
	if err != nil {
		if errors.As(err, &pgErr) {
			return pgErr.Code == ErrForeignKeyCode
		}
	}
	return false
}
