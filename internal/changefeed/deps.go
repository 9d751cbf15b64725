package changefeed

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the connections a feed may need; unused ones stay nil.
type Deps struct {
	Redis *redis.Client
	DB    *gorm.DB
	DSN   string
}
