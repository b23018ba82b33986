package catalog_test

const sampleCatalog = `{
  "products": [
    {"id": "p1", "name": "Mug", "amount": 10, "size": "SMALL", "tags": ["kitchen"], "stock": 5, "discountCode": "X", "category": "home"},
    {"id": "p2", "name": "Poster", "amount": "12.50", "size": "LARGE", "stock": 2, "discountCode": ["Y", "Z"], "category": "art"}
  ],
  "discounts": [
    {"code": "X", "amount": 10, "type": "PERCENT", "available": true}
  ],
  "coupons": [
    {"code": "SAVE10", "amount": 10, "type": "FLAT", "available": true, "shippingConditions": {"freeShippingThreshold": 100}}
  ],
  "shipping": [
    {"code": "STD", "name": "Standard", "price": 4.5, "estimatedDays": "3-5",
     "discount": {"minimumAmount": 20, "maximumAmount": 200, "startDay": "2025-01-01T00:00:00Z", "endDay": "2025-12-31T23:59:59Z", "type": "FLAT", "value": 2}}
  ]
}`
