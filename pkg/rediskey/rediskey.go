package rediskey

import "fmt"

// Key prefixes shared by every process talking to the same redis.
const (
	SweepLockPrefix = "lock:sweep"
	SequencePrefix  = "seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSweepLockKey returns "lock:sweep:{name}"
func BuildSweepLockKey(name string) string {
	return NamespaceKey(SweepLockPrefix, name)
}

// BuildDailySequenceKey returns "seq:{prefix}:{scope}:{yymmdd}"
func BuildDailySequenceKey(prefix, scope, day string) string {
	return NamespaceKey(SequencePrefix, fmt.Sprintf("%s:%s:%s", prefix, scope, day))
}
