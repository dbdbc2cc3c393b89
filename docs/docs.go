// Package docs embeds the OpenAPI description of the HTTP API.
package docs

import "embed"

//go:embed swagger.yml
var FS embed.FS
