// Package registry tracks live connection identities for the Snake Duel server.
//
// Each transport-level link gets an opaque UUID identity on connect. The
// registry maps that identity to the session code the connection currently
// belongs to, giving the broker an O(1) lookup to route inbound events
// without requiring clients to echo a session code on every message.
//
// Connections are not owned by sessions: closing a connection never requires
// its session to still exist, and Unregister is idempotent because close
// notifications can race with session teardown.
package registry
