package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wms/shopsync/internal/domain/integration"
)

const (
	ordersPageLimit = 250

	inventorySetQuantitiesMutation = `mutation inventorySetQuantities($input: InventorySetQuantitiesInput!) {
  inventorySetQuantities(input: $input) {
    inventoryAdjustmentGroup { id }
    userErrors { field message code }
  }
}`

	metafieldsSetMutation = `mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields { id }
    userErrors { field message code }
  }
}`
)

// Gateway implements integration.PlatformGateway on top of the Admin API
type Gateway struct {
	client *Client
}

// NewGateway wraps a client
func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

// PrimaryLocationID returns the shop's primary location, falling back to the
// first active location
func (g *Gateway) PrimaryLocationID(ctx context.Context) (string, error) {
	var shop shopEnvelope
	if err := g.client.Get(ctx, "shop.json", &shop); err != nil {
		return "", err
	}
	if shop.Shop.PrimaryLocationID != 0 {
		return formatID(shop.Shop.PrimaryLocationID), nil
	}

	var locs locationsEnvelope
	if err := g.client.Get(ctx, "locations.json", &locs); err != nil {
		return "", err
	}
	for _, loc := range locs.Locations {
		if loc.Active && !loc.Legacy {
			return formatID(loc.ID), nil
		}
	}
	return "", integration.ErrNoLocation
}

// SetInventoryQuantities sets absolute "available" quantities with one
// inventorySetQuantities mutation
func (g *Gateway) SetInventoryQuantities(ctx context.Context, reason string, quantities []integration.InventoryQuantity) ([]integration.PlatformUserError, error) {
	if len(quantities) == 0 {
		return nil, nil
	}
	if reason == "" {
		reason = "correction"
	}

	items := make([]map[string]any, 0, len(quantities))
	for _, q := range quantities {
		items = append(items, map[string]any{
			"inventoryItemId": GID("InventoryItem", q.InventoryItemID),
			"locationId":      GID("Location", q.LocationID),
			"quantity":        q.Quantity,
		})
	}
	vars := map[string]any{
		"input": map[string]any{
			"name":                  "available",
			"reason":                reason,
			"ignoreCompareQuantity": true,
			"quantities":            items,
		},
	}

	var data inventorySetQuantitiesData
	if err := g.client.GraphQL(ctx, inventorySetQuantitiesMutation, vars, &data); err != nil {
		return nil, err
	}
	return toUserErrors(data.InventorySetQuantities.UserErrors), nil
}

// SetInventoryLevel sets one absolute available quantity over REST
func (g *Gateway) SetInventoryLevel(ctx context.Context, q integration.InventoryQuantity) error {
	itemID, err := parseID(q.InventoryItemID)
	if err != nil {
		return fmt.Errorf("shopify: invalid inventory item id %q: %w", q.InventoryItemID, err)
	}
	locationID, err := parseID(q.LocationID)
	if err != nil {
		return fmt.Errorf("shopify: invalid location id %q: %w", q.LocationID, err)
	}
	body := inventoryLevelSet{LocationID: locationID, InventoryItemID: itemID, Available: q.Quantity}
	return g.client.Post(ctx, "inventory_levels/set.json", body, nil)
}

// UpdateVariantPrice sets a variant's price
func (g *Gateway) UpdateVariantPrice(ctx context.Context, variantID string, price decimal.Decimal) error {
	id, err := parseID(variantID)
	if err != nil {
		return fmt.Errorf("shopify: invalid variant id %q: %w", variantID, err)
	}
	var body variantPriceUpdate
	body.Variant.ID = id
	body.Variant.Price = price.StringFixed(2)
	return g.client.Put(ctx, fmt.Sprintf("variants/%d.json", id), body, nil)
}

// ListOpenOrders pulls open unfulfilled orders created after the query's
// CreatedAtMin, following Link header pagination
func (g *Gateway) ListOpenOrders(ctx context.Context, query integration.OrderQuery) ([]integration.ExternalOrder, error) {
	limit := query.Limit
	if limit <= 0 || limit > ordersPageLimit {
		limit = ordersPageLimit
	}
	params := url.Values{}
	params.Set("status", "open")
	params.Set("fulfillment_status", "unfulfilled")
	params.Set("limit", fmt.Sprintf("%d", limit))
	if !query.CreatedAtMin.IsZero() {
		params.Set("created_at_min", query.CreatedAtMin.UTC().Format(time.RFC3339))
	}

	var out []integration.ExternalOrder
	next := "orders.json?" + params.Encode()
	for next != "" {
		var page struct {
			Orders []json.RawMessage `json:"orders"`
		}
		nextURL, err := g.client.GetPage(ctx, next, &page)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Orders {
			var o order
			if err := json.Unmarshal(raw, &o); err != nil {
				return nil, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
			}
			out = append(out, toExternalOrder(o, raw))
		}
		next = nextURL
	}
	return out, nil
}

// GetOrder fetches one order
func (g *Gateway) GetOrder(ctx context.Context, orderID string) (*integration.ExternalOrder, error) {
	var env struct {
		Order json.RawMessage `json:"order"`
	}
	if err := g.client.Get(ctx, fmt.Sprintf("orders/%s.json", LegacyID(orderID)), &env); err != nil {
		return nil, err
	}
	var o order
	if err := json.Unmarshal(env.Order, &o); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	ext := toExternalOrder(o, env.Order)
	return &ext, nil
}

// ListFulfillmentOrders lists an order's fulfillment orders
func (g *Gateway) ListFulfillmentOrders(ctx context.Context, orderID string) ([]integration.FulfillmentOrder, error) {
	var env fulfillmentOrdersEnvelope
	if err := g.client.Get(ctx, fmt.Sprintf("orders/%s/fulfillment_orders.json", LegacyID(orderID)), &env); err != nil {
		return nil, err
	}
	out := make([]integration.FulfillmentOrder, 0, len(env.FulfillmentOrders))
	for _, fo := range env.FulfillmentOrders {
		lines := make([]integration.FulfillmentOrderLine, 0, len(fo.LineItems))
		for _, li := range fo.LineItems {
			lines = append(lines, integration.FulfillmentOrderLine{
				ID:                  formatID(li.ID),
				LineItemID:          formatID(li.LineItemID),
				VariantID:           formatID(li.VariantID),
				FulfillableQuantity: li.FulfillableQuantity,
			})
		}
		out = append(out, integration.FulfillmentOrder{
			ID:        formatID(fo.ID),
			Status:    integration.FulfillmentOrderStatus(fo.Status),
			LineItems: lines,
		})
	}
	return out, nil
}

// CreateFulfillment creates a fulfillment across one or more fulfillment orders
func (g *Gateway) CreateFulfillment(ctx context.Context, request integration.FulfillmentRequest) (string, error) {
	var body fulfillmentCreate
	for _, sel := range request.Orders {
		foID, err := parseID(sel.FulfillmentOrderID)
		if err != nil {
			return "", fmt.Errorf("shopify: invalid fulfillment order id %q: %w", sel.FulfillmentOrderID, err)
		}
		group := lineItemsByFulfillmentOrder{FulfillmentOrderID: foID}
		for _, line := range sel.Lines {
			lineID, err := parseID(line.FulfillmentOrderLineID)
			if err != nil {
				return "", fmt.Errorf("shopify: invalid fulfillment order line id %q: %w", line.FulfillmentOrderLineID, err)
			}
			group.FulfillmentOrderLineItems = append(group.FulfillmentOrderLineItems,
				fulfillmentOrderLineItemRef{ID: lineID, Quantity: line.Quantity})
		}
		body.Fulfillment.LineItemsByFulfillmentOrder = append(body.Fulfillment.LineItemsByFulfillmentOrder, group)
	}
	body.Fulfillment.TrackingInfo = trackingInfo{
		Number:  request.TrackingNumber,
		Company: request.TrackingCompany,
		URL:     request.TrackingURL,
	}
	body.Fulfillment.NotifyCustomer = request.NotifyCustomer

	var env fulfillmentEnvelope
	if err := g.client.Post(ctx, "fulfillments.json", body, &env); err != nil {
		return "", err
	}
	return formatID(env.Fulfillment.ID), nil
}

// CalculateRefund prices a refund and returns the calculated refund object
func (g *Gateway) CalculateRefund(ctx context.Context, orderID string, lines []integration.RefundLine) (json.RawMessage, error) {
	var body refundCalculate
	body.Refund.Shipping = map[string]any{"full_refund": false}
	for _, line := range lines {
		lineItemID, err := parseID(line.LineItemID)
		if err != nil {
			return nil, fmt.Errorf("shopify: invalid line item id %q: %w", line.LineItemID, err)
		}
		item := refundLineItem{LineItemID: lineItemID, Quantity: line.Quantity, RestockType: string(line.RestockType)}
		if line.LocationID != "" {
			loc, err := parseID(line.LocationID)
			if err != nil {
				return nil, fmt.Errorf("shopify: invalid location id %q: %w", line.LocationID, err)
			}
			item.LocationID = &loc
		}
		body.Refund.RefundLineItems = append(body.Refund.RefundLineItems, item)
	}

	var env struct {
		Refund json.RawMessage `json:"refund"`
	}
	if err := g.client.Post(ctx, fmt.Sprintf("orders/%s/refunds/calculate.json", LegacyID(orderID)), body, &env); err != nil {
		return nil, err
	}
	if len(env.Refund) == 0 {
		return nil, fmt.Errorf("%w: empty calculated refund", integration.ErrPlatformInvalidResponse)
	}
	return env.Refund, nil
}

// CreateRefund creates a refund from a calculated refund. The payload is sent
// as calculated; only suggested transactions are relabelled as refunds.
func (g *Gateway) CreateRefund(ctx context.Context, orderID string, calculated json.RawMessage) (string, error) {
	refund, err := RefundFromCalculation(calculated)
	if err != nil {
		return "", err
	}
	var env refundEnvelope
	if err := g.client.Post(ctx, fmt.Sprintf("orders/%s/refunds.json", LegacyID(orderID)), map[string]any{"refund": refund}, &env); err != nil {
		return "", err
	}
	return formatID(env.Refund.ID), nil
}

// RefundFromCalculation turns a calculated refund into a create payload.
// Numbers are kept as json.Number so amounts are not re-rounded.
func RefundFromCalculation(calculated json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(calculated))
	dec.UseNumber()
	var refund map[string]any
	if err := dec.Decode(&refund); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if txs, ok := refund["transactions"].([]any); ok {
		for _, tx := range txs {
			if m, ok := tx.(map[string]any); ok && m["kind"] == "suggested_refund" {
				m["kind"] = "refund"
			}
		}
	}
	return refund, nil
}

// SetProductMetafield upserts a product metafield with metafieldsSet
func (g *Gateway) SetProductMetafield(ctx context.Context, productID string, m integration.Metafield) error {
	vars := map[string]any{
		"metafields": []map[string]any{{
			"ownerId":   GID("Product", productID),
			"namespace": m.Namespace,
			"key":       m.Key,
			"type":      m.Type,
			"value":     m.Value,
		}},
	}
	var data metafieldsSetData
	if err := g.client.GraphQL(ctx, metafieldsSetMutation, vars, &data); err != nil {
		return err
	}
	if errs := data.MetafieldsSet.UserErrors; len(errs) > 0 {
		return fmt.Errorf("%w: metafieldsSet: %s", integration.ErrPlatformRequestFailed, errs[0].Message)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Conversion
// ---------------------------------------------------------------------------

func toUserErrors(in []userError) []integration.PlatformUserError {
	if len(in) == 0 {
		return nil
	}
	out := make([]integration.PlatformUserError, 0, len(in))
	for _, e := range in {
		out = append(out, integration.PlatformUserError{Field: e.Field, Message: e.Message, Code: e.Code})
	}
	return out
}

func toExternalOrder(o order, raw json.RawMessage) integration.ExternalOrder {
	ext := integration.ExternalOrder{
		ID:         formatID(o.ID),
		Name:       o.Name,
		Email:      o.Email,
		Phone:      o.Phone,
		Note:       o.Note,
		Tags:       splitTags(o.Tags),
		Currency:   o.Currency,
		TotalPrice: o.TotalPrice,
		CreatedAt:  o.CreatedAt,
		Raw:        []byte(raw),
	}
	if len(o.ShippingLines) > 0 {
		ext.ShippingMethod = o.ShippingLines[0].Title
	}
	if a := o.ShippingAddress; a != nil {
		name := a.Name
		if name == "" {
			name = strings.TrimSpace(a.FirstName + " " + a.LastName)
		}
		ext.ShippingAddress = &integration.ShippingAddress{
			Name:         name,
			Company:      a.Company,
			Address1:     a.Address1,
			Address2:     a.Address2,
			City:         a.City,
			Province:     a.Province,
			ProvinceCode: a.ProvinceCode,
			Zip:          a.Zip,
			Country:      a.Country,
			CountryCode:  a.CountryCode,
			Phone:        a.Phone,
		}
	}
	for _, li := range o.LineItems {
		ext.LineItems = append(ext.LineItems, integration.ExternalLineItem{
			ID:                  formatID(li.ID),
			ProductID:           formatOptionalID(li.ProductID),
			VariantID:           formatOptionalID(li.VariantID),
			SKU:                 li.SKU,
			Title:               li.Title,
			VariantTitle:        li.VariantTitle,
			Quantity:            li.Quantity,
			FulfillableQuantity: li.FulfillableQuantity,
			RequiresShipping:    li.RequiresShipping,
			Price:               li.Price,
		})
	}
	return ext
}

// ParseOrder decodes a single order payload, as delivered by order webhooks
func ParseOrder(raw []byte) (integration.ExternalOrder, error) {
	var o order
	if err := json.Unmarshal(raw, &o); err != nil {
		return integration.ExternalOrder{}, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if o.ID == 0 {
		return integration.ExternalOrder{}, fmt.Errorf("%w: order id missing", integration.ErrPlatformInvalidResponse)
	}
	return toExternalOrder(o, raw), nil
}

func splitTags(tags string) []string {
	if strings.TrimSpace(tags) == "" {
		return nil
	}
	parts := strings.Split(tags, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Ensure Gateway implements PlatformGateway
var _ integration.PlatformGateway = (*Gateway)(nil)
