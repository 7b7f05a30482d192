// Package docs registers the generated OpenAPI document with swag.
// Code generated by swag init; edits belong in the handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/cart": {
            "get": {
                "produces": ["application/json"],
                "summary": "Current cart",
                "responses": {
                    "200": {"description": "OK"},
                    "204": {"description": "No Content"}
                }
            }
        },
        "/api/cart/lines": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Add item",
                "responses": {"202": {"description": "Accepted"}}
            }
        },
        "/api/cart/lines/{id}": {
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Change quantity",
                "responses": {"202": {"description": "Accepted"}}
            },
            "delete": {
                "produces": ["application/json"],
                "summary": "Remove item",
                "responses": {"202": {"description": "Accepted"}}
            }
        },
        "/api/cart/checkout": {
            "post": {
                "produces": ["application/json"],
                "summary": "Checkout",
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Conflict"},
                    "502": {"description": "Bad Gateway"}
                }
            }
        },
        "/api/products": {
            "get": {
                "produces": ["application/json"],
                "summary": "List products",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/products/{handle}": {
            "get": {
                "produces": ["application/json"],
                "summary": "Get product",
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Storefront API",
	Description:      "Cart and checkout API with optimistic updates",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
