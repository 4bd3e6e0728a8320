// Package frontend embeds the built web assets served to the Wails webview.
package frontend

import "embed"

//go:embed all:dist
var Assets embed.FS
