package gormlog

import (
	"errors"

	"gorm.io/gorm"
)

func errorsIsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
