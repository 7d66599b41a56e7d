package repository

import (
	stderrors "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = stderrors.New("record not found")
	ErrDuplicate = stderrors.New("duplicate record")
)

// pgUniqueViolation postgres unique_violation
const pgUniqueViolation = "23505"

// translate 将驱动层错误收敛为本包的哨兵错误
func translate(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// IsUniqueViolation 兼容开启 TranslateError 和直接返回驱动错误两种情况
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	// sqlite 未翻译时的兜底
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
