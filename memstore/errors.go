package memstore

import "errors"

var errDuplicateToken = errors.New("duplicate session token")
