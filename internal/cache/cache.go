package cache

import "time"

// Cache хранит ответы API между запросами пользователей.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	Delete(key string)
}
