package report

import "encoding/base64"

//go:generate templ generate -f page.templ

func chartURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
