package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных консоли в Redis
	RedisNamespace = "nftconsole"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanSessionRevoked: сигнал "key:true" при logout/истечении сессии
	RedisChanSessionRevoked = RedisNamespace + ":session:revoked"
)

// SessionKey: ключ хранения сессии (token + user JSON).
func SessionKey(key string) string {
	return fmt.Sprintf("%s:session:%s", RedisNamespace, key)
}
