package repository

import (
	"errors"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	ErrUnknownNode = model.ErrUnknownNode
	ErrNoTimestamp = errors.New("reading has no timestamp")
)
