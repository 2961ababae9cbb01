package common

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientIP resolves the caller's IP, preferring proxy headers over the
// socket address. Returns "" for localhost so callers can skip IP-based
// checks during local development.
func ClientIP(c *gin.Context) string {
	ip := rawClientIP(c)

	if ip == "" || ip == "::1" || ip == "127.0.0.1" || ip == "::ffff:127.0.0.1" {
		return ""
	}

	return ip
}

func rawClientIP(c *gin.Context) string {
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		// X-Forwarded-For may carry multiple IPs, the first is the client
		ips := strings.Split(ip, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}

	if ip := c.GetHeader("CF-Connecting-IP"); ip != "" {
		return ip
	}

	return c.ClientIP()
}
