// Package appfs embeds the SQL migrations, the email templates and the static assets into the binaries.
package appfs

import "embed"

//go:embed migrations/*.sql all:templates assets
var FS embed.FS
