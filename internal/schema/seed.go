package schema

import "math"

// Seed data for the demo storefront. Sales and order totals are derived
// rather than hand-written so the numbers stay internally consistent.

// Products is the seed product catalog.
var Products = []Row{
	{"sku": "LNR-001", "name": "Lunar Lamp", "category": "Lighting", "unit_price": 49.00, "inventory": 125, "status": "active"},
	{"sku": "SLR-002", "name": "Solar Speaker", "category": "Audio", "unit_price": 89.00, "inventory": 82, "status": "active"},
	{"sku": "GLX-003", "name": "Galaxy Projector", "category": "Lighting", "unit_price": 129.00, "inventory": 48, "status": "active"},
	{"sku": "AUR-004", "name": "Aurora Clock", "category": "Home", "unit_price": 75.00, "inventory": 60, "status": "active"},
	{"sku": "COS-005", "name": "Cosmic Candle", "category": "Home", "unit_price": 25.00, "inventory": 210, "status": "active"},
	{"sku": "STL-006", "name": "Starlight Charger", "category": "Accessories", "unit_price": 39.00, "inventory": 155, "status": "active"},
	{"sku": "MET-007", "name": "Meteor Mug", "category": "Kitchen", "unit_price": 19.00, "inventory": 260, "status": "active"},
	{"sku": "NEB-008", "name": "Nebula Diffuser", "category": "Wellness", "unit_price": 59.00, "inventory": 95, "status": "active"},
	{"sku": "ORB-009", "name": "Orbit Headphones", "category": "Audio", "unit_price": 139.00, "inventory": 70, "status": "backorder"},
	{"sku": "ECL-010", "name": "Eclipse Watch", "category": "Wearables", "unit_price": 199.00, "inventory": 38, "status": "preorder"},
}

// Customers is the seed customer list.
var Customers = []Row{
	{"id": 1, "name": "Aisha Khan", "email": "aisha.khan@example.com", "segment": "Premium", "city": "Seattle", "country": "USA", "lifetime_value": 4820.50, "joined_date": "2022-03-14"},
	{"id": 2, "name": "Leo Martinez", "email": "leo.martinez@example.com", "segment": "Loyal", "city": "Austin", "country": "USA", "lifetime_value": 3655.20, "joined_date": "2021-11-02"},
	{"id": 3, "name": "Harper Chen", "email": "harper.chen@example.com", "segment": "New", "city": "San Francisco", "country": "USA", "lifetime_value": 940.75, "joined_date": "2024-01-18"},
	{"id": 4, "name": "Mateo Silva", "email": "mateo.silva@example.com", "segment": "At Risk", "city": "Toronto", "country": "Canada", "lifetime_value": 2110.40, "joined_date": "2020-07-09"},
	{"id": 5, "name": "Sofia Ibarra", "email": "sofia.ibarra@example.com", "segment": "Premium", "city": "Miami", "country": "USA", "lifetime_value": 5320.10, "joined_date": "2019-05-27"},
	{"id": 6, "name": "Noah Becker", "email": "noah.becker@example.com", "segment": "Loyal", "city": "Berlin", "country": "Germany", "lifetime_value": 2985.90, "joined_date": "2023-04-06"},
}

type salesDay struct {
	date  string
	total float64
}

var salesBase = []salesDay{
	{"2025-10-01", 500}, {"2025-10-02", 720}, {"2025-10-03", 610},
	{"2025-10-04", 680}, {"2025-10-05", 455}, {"2025-10-06", 790},
	{"2025-10-07", 1020}, {"2025-10-08", 880}, {"2025-10-09", 940},
	{"2025-10-10", 560}, {"2025-10-11", 730}, {"2025-10-12", 845},
	{"2025-10-13", 620}, {"2025-10-14", 970}, {"2025-10-15", 1090},
	{"2025-10-16", 780}, {"2025-10-17", 830}, {"2025-10-18", 675},
	{"2025-10-19", 940}, {"2025-10-20", 995}, {"2025-10-21", 1105},
	{"2025-10-22", 910}, {"2025-10-23", 765}, {"2025-10-24", 830},
	{"2025-10-25", 1190}, {"2025-10-26", 880}, {"2025-10-27", 970},
	{"2025-10-28", 1050}, {"2025-10-29", 990}, {"2025-10-30", 1125},
	{"2025-10-31", 1230},
}

func buildSalesRows() []Row {
	rows := make([]Row, 0, len(salesBase))
	for _, day := range salesBase {
		orders := int(math.Round(day.total / 22))
		if orders < 18 {
			orders = 18
		}
		newCustomers := orders / 5
		if newCustomers < 2 {
			newCustomers = 2
		}
		avgOrderValue := math.Round(day.total/float64(orders)*100) / 100
		rows = append(rows, Row{
			"date":            day.date,
			"total":           day.total,
			"orders":          orders,
			"avg_order_value": avgOrderValue,
			"new_customers":   newCustomers,
		})
	}
	return rows
}

// Sales is the seed daily sales series for October 2025.
var Sales = buildSalesRows()

type orderLine struct {
	productSKU string
	quantity   int
}

type orderTemplate struct {
	id         string
	customerID int
	orderDate  string
	status     string
	channel    string
	items      []orderLine
}

var orderTemplates = []orderTemplate{
	{"SO-1001", 1, "2025-10-01", "fulfilled", "online", []orderLine{{"LNR-001", 1}, {"STL-006", 2}}},
	{"SO-1002", 3, "2025-10-02", "fulfilled", "online", []orderLine{{"GLX-003", 1}, {"COS-005", 2}}},
	{"SO-1003", 4, "2025-10-03", "fulfilled", "retail", []orderLine{{"ORB-009", 1}}},
	{"SO-1004", 2, "2025-10-04", "fulfilled", "online", []orderLine{{"NEB-008", 1}, {"MET-007", 4}}},
	{"SO-1005", 5, "2025-10-05", "fulfilled", "online", []orderLine{{"ECL-010", 1}}},
	{"SO-1006", 6, "2025-10-06", "processing", "online", []orderLine{{"SLR-002", 1}, {"COS-005", 3}}},
	{"SO-1007", 1, "2025-10-07", "fulfilled", "retail", []orderLine{{"AUR-004", 1}, {"COS-005", 2}, {"MET-007", 2}}},
	{"SO-1008", 2, "2025-10-08", "fulfilled", "online", []orderLine{{"LNR-001", 2}, {"NEB-008", 1}}},
	{"SO-1009", 3, "2025-10-09", "fulfilled", "online", []orderLine{{"STL-006", 1}, {"MET-007", 4}}},
	{"SO-1010", 4, "2025-10-10", "fulfilled", "retail", []orderLine{{"AUR-004", 2}, {"COS-005", 1}}},
	{"SO-1011", 5, "2025-10-11", "processing", "online", []orderLine{{"ORB-009", 1}, {"MET-007", 2}}},
	{"SO-1012", 6, "2025-10-12", "fulfilled", "online", []orderLine{{"GLX-003", 1}, {"SLR-002", 1}}},
}

func buildOrders() ([]Row, []Row) {
	priceLookup := make(map[string]float64, len(Products))
	for _, p := range Products {
		priceLookup[p["sku"].(string)] = p["unit_price"].(float64)
	}

	orders := make([]Row, 0, len(orderTemplates))
	var items []Row
	for _, tpl := range orderTemplates {
		total := 0.0
		for _, line := range tpl.items {
			unitPrice := priceLookup[line.productSKU]
			total += unitPrice * float64(line.quantity)
			items = append(items, Row{
				"order_id":    tpl.id,
				"product_sku": line.productSKU,
				"quantity":    line.quantity,
				"unit_price":  unitPrice,
			})
		}
		orders = append(orders, Row{
			"id":          tpl.id,
			"customer_id": tpl.customerID,
			"order_date":  tpl.orderDate,
			"status":      tpl.status,
			"channel":     tpl.channel,
			"total":       math.Round(total*100) / 100,
		})
	}
	return orders, items
}

// Orders and OrderItems are the seed order history; totals are summed
// from the line items at current catalog prices.
var Orders, OrderItems = buildOrders()

// SeedRows returns the seed rows for a table, nil for unknown tables.
func SeedRows(table string) []Row {
	switch table {
	case "products":
		return Products
	case "sales":
		return Sales
	case "customers":
		return Customers
	case "orders":
		return Orders
	case "order_items":
		return OrderItems
	default:
		return nil
	}
}
