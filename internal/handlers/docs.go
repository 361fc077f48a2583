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

func textContent() map[string]interface{} {
	return map[string]interface{}{
		"text/plain": map[string]interface{}{"schema": map[string]string{"type": "string"}},
	}
}

func ref(name string) map[string]string {
	return map[string]string{"$ref": "#/components/schemas/" + name}
}

var stationCodeParam = map[string]interface{}{
	"name":        "code",
	"in":          "path",
	"description": "Station code, matched exactly after trimming surrounding whitespace",
	"required":    true,
	"schema":      map[string]string{"type": "string"},
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the dashboard API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	stringList := map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}}
	nullableStringMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": map[string]interface{}{"type": "string", "nullable": true},
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Kok Monitoring Dashboard API",
			"description": "Read-only access to river water and soil quality measurements per monitoring station",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/stations": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List stations",
					"description": "Every station, sorted by river then station code",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content":     jsonContent(map[string]interface{}{"type": "array", "items": ref("Station")}),
						},
						"500": map[string]interface{}{"description": "Store failure", "content": jsonContent(ref("Error"))},
					},
				},
			},
			"/api/stations/{code}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get station detail",
					"description": "A station with its water and soil pivot tables",
					"parameters":  []map[string]interface{}{stationCodeParam},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"station": ref("Station"),
									"water":   ref("PivotTable"),
									"soil":    ref("PivotTable"),
								},
							}),
						},
						"404": map[string]interface{}{"description": "Station not found", "content": jsonContent(ref("Error"))},
						"500": map[string]interface{}{"description": "Store failure", "content": jsonContent(ref("Error"))},
					},
				},
			},
			"/api/filters": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get station filters",
					"description": "Distinct rivers, provinces, amphoes and tambons plus the province > amphoe > tambon hierarchy",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"rivers":    stringList,
									"provinces": stringList,
									"tambons":   stringList,
									"amphoes":   stringList,
									"location_hierarchy": map[string]interface{}{
										"type": "object",
										"additionalProperties": map[string]interface{}{
											"type":                 "object",
											"additionalProperties": stringList,
										},
									},
								},
							}),
						},
					},
				},
			},
			"/station/{code}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Station detail page",
					"parameters": []map[string]interface{}{stationCodeParam},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Rendered HTML page"},
						"404": map[string]interface{}{"description": "Station not found", "content": textContent()},
						"500": map[string]interface{}{"description": "Store failure", "content": textContent()},
					},
				},
			},
			"/test": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Liveness text",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Fixed text", "content": textContent()},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check that the API is running and the store is reachable",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "API is healthy",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"status":    map[string]string{"type": "string"},
									"database":  map[string]string{"type": "string"},
									"timestamp": map[string]string{"type": "string", "format": "date-time"},
								},
							}),
						},
						"503": map[string]interface{}{"description": "Store unreachable"},
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
							"content":     textContent(),
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Station": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":       map[string]string{"type": "integer"},
						"river":    map[string]string{"type": "string"},
						"station":  map[string]string{"type": "string"},
						"location": map[string]string{"type": "string"},
						"tambon":   map[string]string{"type": "string"},
						"amphoe":   map[string]string{"type": "string"},
						"province": map[string]string{"type": "string"},
					},
				},
				"PivotRow": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"parameter":    map[string]string{"type": "string"},
						"unit":         map[string]string{"type": "string"},
						"check_values": nullableStringMap,
						"numeric_values": map[string]interface{}{
							"type":                 "object",
							"additionalProperties": map[string]string{"type": "number"},
						},
					},
				},
				"PivotTable": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"dataset":    map[string]interface{}{"type": "string", "enum": []string{"water", "soil"}},
						"parameters": stringList,
						"check_numbers": map[string]interface{}{
							"type":        "array",
							"description": "Integer check numbers ascending, then text labels",
							"items":       map[string]interface{}{"oneOf": []map[string]string{{"type": "integer"}, {"type": "string"}}},
						},
						"units": map[string]interface{}{
							"type":                 "object",
							"additionalProperties": map[string]string{"type": "string"},
						},
						"pivot": map[string]interface{}{
							"type":                 "object",
							"additionalProperties": nullableStringMap,
						},
						"pivot_list":          map[string]interface{}{"type": "array", "items": ref("PivotRow")},
						"pivot_list_filtered": map[string]interface{}{"type": "array", "items": ref("PivotRow")},
					},
				},
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
