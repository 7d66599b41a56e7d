// Package cache Redis 上的一次性令牌、限流窗口和分布式锁
package cache

import "strings"

const defaultPrefix = "aurin"

func buildKey(prefix string, parts ...string) string {
	if prefix == "" {
		prefix = defaultPrefix
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	for _, part := range parts {
		if part != "" {
			sb.WriteString(":")
			sb.WriteString(part)
		}
	}
	return sb.String()
}
