// Package realtime pushes task updates to connected clients.
//
// The Broadcaster is the sole owner of the connection set. Connections are
// added and removed through Connect and Disconnect; Broadcast sends to a
// snapshot of the set and prunes every connection whose send failed.
package realtime
