// Package api carries the embedded HTTP contract.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPISpec []byte
