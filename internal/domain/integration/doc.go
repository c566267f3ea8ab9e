// Package integration contains the store integration bounded context.
// It models the connection between a warehouse client and an external
// commerce platform, and the state needed to keep the two in sync.
//
// Key concepts:
//   - Integration: one client-platform connection with typed Settings
//   - ProductMapping: links an internal product to an external variant and inventory item
//   - SyncLogEntry: append-only record of one sync attempt
//   - PlatformGateway: port implemented by platform adapters (Shopify)
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
