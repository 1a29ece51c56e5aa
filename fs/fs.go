package appfs

import "embed"

// FS holds the SQL migrations, the common passwords list and the email templates.
//
//go:embed migrations passwords templates templates/email/_*
var FS embed.FS
