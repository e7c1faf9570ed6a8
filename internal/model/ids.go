package model

import "github.com/google/uuid"

// NewID returns a prefixed random identifier such as "tx_<uuid>".
func NewID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}
