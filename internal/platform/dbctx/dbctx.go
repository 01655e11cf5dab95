package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
// Repos run against Tx when set and the base handle otherwise, so read
// paths and transactional write flows share one signature.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}
