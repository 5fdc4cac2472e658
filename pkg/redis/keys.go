package redis

import "strings"

// Every key lives under this namespace so the app can share an instance.
const namespace = "fo"

// key joins the namespace and the non-empty parts with ':'.
func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

func (c *Client) IdempotencyKey(scope, id string) string { return key("idempotency", scope, id) }

// AccessSessionKey marks a live access token by its jti.
func (c *Client) AccessSessionKey(accessID string) string { return key("session", "access", accessID) }

func (c *Client) CartKey(userID string) string { return key("cart", userID) }

func (c *Client) MenuSnapshotKey() string { return key("menu", "snapshot") }

// CronLockKey is held by the cron worker running the current cycle of env.
func (c *Client) CronLockKey(env string) string { return key("cron", "lock", env) }
