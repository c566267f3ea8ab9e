// Package models contains GORM persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities carry no GORM tags
// 2. Persistence models contain all GORM annotations and table mappings
// 3. ToDomain / FromDomain convert between the two
// 4. Repositories use persistence models for database operations
//
// Structure:
//   - base.go: BaseModel
//   - integration.go: integrations, product_mappings
//   - warehouse.go: read models over WMS tables (products, stock_levels,
//     orders, returns, inbound orders)
//   - sync_log.go: sync_logs
//   - outbox.go: outbox_tasks
package models
