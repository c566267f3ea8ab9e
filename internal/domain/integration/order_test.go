package integration

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestExternalOrder_IsRush(t *testing.T) {
	tests := []struct {
		name   string
		tags   []string
		method string
		want   bool
	}{
		{"rush tag with standard shipping", []string{"RUSH"}, "Standard", true},
		{"empty tag with overnight shipping", []string{""}, "Overnight Express", true},
		{"neither", []string{"wholesale"}, "Standard", false},
		{"no tags no method", nil, "", false},
		{"priority mail", nil, "USPS Priority Mail", true},
		{"express tag lowercase", []string{"vip", "express"}, "Ground", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := ExternalOrder{Tags: tt.tags, ShippingMethod: tt.method}
			assert.Equal(t, tt.want, o.IsRush())
		})
	}
}

func TestExternalOrder_OrderNumber(t *testing.T) {
	assert.Equal(t, "SH-1001", ExternalOrder{ID: "450789469", Name: "#1001"}.OrderNumber())
	assert.Equal(t, "SH-450789469", ExternalOrder{ID: "450789469"}.OrderNumber())
	assert.Equal(t, "SH-1001-789469", ExternalOrder{ID: "450789469", Name: "#1001"}.FallbackOrderNumber())
	assert.Equal(t, "SH-1001-42", ExternalOrder{ID: "42", Name: "#1001"}.FallbackOrderNumber())
}

func TestExternalLineItem(t *testing.T) {
	assert.True(t, ExternalLineItem{RequiresShipping: true, FulfillableQuantity: 1}.IsShippable())
	assert.False(t, ExternalLineItem{RequiresShipping: false, FulfillableQuantity: 1}.IsShippable())
	assert.False(t, ExternalLineItem{RequiresShipping: true, FulfillableQuantity: 0}.IsShippable())

	assert.Equal(t, "Tee", ExternalLineItem{Title: "Tee", VariantTitle: "Default Title"}.DisplayName())
	assert.Equal(t, "Tee - Red / M", ExternalLineItem{Title: "Tee", VariantTitle: "Red / M"}.DisplayName())
}

func TestInternalOrder_IsLinkedTo(t *testing.T) {
	id := uuid.New()
	linked := &InternalOrder{ExternalOrderID: "1", ExternalPlatform: PlatformShopify, IntegrationID: &id}
	assert.True(t, linked.IsLinkedTo(PlatformShopify))
	assert.False(t, linked.IsLinkedTo(Platform("amazon")))
	assert.False(t, (&InternalOrder{}).IsLinkedTo(PlatformShopify))
}
