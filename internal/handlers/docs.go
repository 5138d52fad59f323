package handlers

import (
	"encoding/json"
	"net/http"
)

func jsonContent(schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		"application/json": map[string]interface{}{"schema": schema},
	}
}

func envelopeSchema(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"success": map[string]string{"type": "boolean"},
			"data":    data,
			"error":   map[string]string{"type": "string"},
			"message": map[string]string{"type": "string"},
			"details": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"code":    map[string]string{"type": "string"},
						"field":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
					},
				},
			},
		},
	}
}

func errorResponse(description string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content":     jsonContent(envelopeSchema(map[string]string{"type": "object"})),
	}
}

var nullableNumberMap = map[string]interface{}{
	"type":                 "object",
	"additionalProperties": map[string]interface{}{"type": "number", "nullable": true},
}

var aggregateSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"source":                  map[string]string{"type": "string"},
		"window_days":             map[string]string{"type": "integer"},
		"category":                map[string]string{"type": "string"},
		"avg_price_per_km":        nullableNumberMap,
		"median_of_daily_medians": nullableNumberMap,
		"median_exact":            nullableNumberMap,
		"offers_by_field": map[string]interface{}{
			"type":                 "object",
			"additionalProperties": map[string]string{"type": "integer"},
		},
		"total_count":       map[string]string{"type": "integer"},
		"days_with_data":    map[string]string{"type": "integer"},
		"excluded_outliers": map[string]string{"type": "integer"},
		"outliers":          map[string]interface{}{"type": "array", "items": map[string]string{"type": "object"}},
		"top_carriers":      map[string]interface{}{"type": "array", "items": map[string]string{"type": "object"}},
		"categories": map[string]interface{}{
			"type":                 "object",
			"additionalProperties": map[string]string{"type": "object"},
		},
	},
}

// OpenAPISpec returns the OpenAPI 3.0 document for the Route Pricing API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Route Pricing API",
			"description": "Freight rate quotes per EUR/km aggregated from two spot exchanges and completed order history",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"ApiKeyAuth": map[string]string{"type": "apiKey", "in": "header", "name": "X-API-Key"},
				"BearerAuth": map[string]string{"type": "http", "scheme": "bearer"},
			},
		},
		"paths": map[string]interface{}{
			"/api/pricing": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Quote a route",
					"description": "Aggregate price statistics per source and lookback window for an origin/destination pair",
					"security": []map[string][]string{
						{"ApiKeyAuth": {}},
						{"BearerAuth": {}},
					},
					"requestBody": map[string]interface{}{
						"required": true,
						"content": jsonContent(map[string]interface{}{
							"type":     "object",
							"required": []string{"start_postal_code", "end_postal_code"},
							"properties": map[string]interface{}{
								"start_postal_code": map[string]interface{}{"type": "string", "example": "PL50", "maxLength": 10},
								"end_postal_code":   map[string]interface{}{"type": "string", "example": "DE10", "maxLength": 10},
								"sources": map[string]interface{}{
									"type":  "array",
									"items": map[string]interface{}{"type": "string", "enum": []string{"timocom", "transeu", "orders"}},
								},
								"include_distance": map[string]interface{}{"type": "boolean", "default": true},
							},
						}),
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Quote with at least one source present",
							"content": jsonContent(envelopeSchema(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"start_postal_code": map[string]string{"type": "string"},
									"end_postal_code":   map[string]string{"type": "string"},
									"start_region_id":   map[string]string{"type": "integer"},
									"end_region_id":     map[string]string{"type": "integer"},
									"pricing": map[string]interface{}{
										"type": "object",
										"additionalProperties": map[string]interface{}{
											"type":                 "object",
											"additionalProperties": aggregateSchema,
										},
									},
									"absent": map[string]interface{}{
										"type": "object",
										"additionalProperties": map[string]interface{}{
											"type":                 "object",
											"additionalProperties": map[string]string{"type": "string"},
										},
									},
									"data_sources": map[string]interface{}{
										"type":                 "object",
										"additionalProperties": map[string]string{"type": "boolean"},
									},
									"route_match": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"start_deviation_km": map[string]string{"type": "number"},
											"end_deviation_km":   map[string]string{"type": "number"},
											"accuracy": map[string]interface{}{
												"type": "string",
												"enum": []string{"exact", "high", "medium", "low"},
											},
										},
									},
									"distance": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"distance_km": map[string]string{"type": "number"},
											"method":      map[string]string{"type": "string"},
										},
									},
									"currency": map[string]string{"type": "string"},
									"unit":     map[string]string{"type": "string"},
								},
							})),
						},
						"400": errorResponse("Invalid postal code or body"),
						"401": errorResponse("API key missing"),
						"403": errorResponse("API key invalid"),
						"404": errorResponse("Unknown postal code or no pricing data"),
						"500": errorResponse("Internal error"),
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check database connectivity and the newest observation per source",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "API is healthy",
							"content":     jsonContent(envelopeSchema(map[string]string{"type": "object"})),
						},
						"503": errorResponse("Database unavailable"),
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
