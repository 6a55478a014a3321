package accounts

import (
	"embed"
	"io/fs"
)

//go:embed data/templates
var templatesFS embed.FS

// GetTemplatesFS returns the email templates shipped with this package,
// rooted at the templates directory.
func GetTemplatesFS() fs.FS {
	sub, err := fs.Sub(templatesFS, "data/templates")
	if err != nil {
		panic(err)
	}
	return sub
}
