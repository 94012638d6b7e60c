// Package hub ties the media subsystems to the JSON-RPC control plane. A Hub
// owns the method registry, tracks registered domain modules and the browser,
// player and playlist instances they provide, and exposes the built-in
// "module", "browser", "player" and "playlist" method groups that dispatch to
// those instances by id.
package hub
