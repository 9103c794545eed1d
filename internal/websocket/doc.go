// Package websocket pushes live events to browser clients.
//
// A Hub owns the connected clients and fans out monitor triggers and
// pipeline step transitions as JSON messages. Each client has a write pump
// that also pings the peer, and a read pump that only processes control
// frames. Clients that cannot keep up are disconnected instead of blocking
// the hub.
package websocket
