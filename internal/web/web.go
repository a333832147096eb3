// Package web holds the embedded static pages served by the local HTTP
// server: currently only the OAuth success page shown in the browser after
// a completed Spotify authorization.
package web

import _ "embed"

//go:embed success.html
var successPage []byte

// SuccessPage returns the HTML shown after a successful OAuth callback.
func SuccessPage() []byte {
	return successPage
}
