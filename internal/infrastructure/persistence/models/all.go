package models

// All returns every model owned or read by the sync engine, in dependency
// order. Repository tests auto-migrate these into sqlite.
func All() []any {
	return []any{
		&IntegrationModel{},
		&ProductModel{},
		&ProductMappingModel{},
		&StockLevelModel{},
		&OrderModel{},
		&OrderItemModel{},
		&ReturnModel{},
		&ReturnItemModel{},
		&InboundOrderModel{},
		&InboundLineModel{},
		&SyncLogModel{},
		&OutboxTaskModel{},
	}
}
