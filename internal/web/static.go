package web

import (
	"embed"
)

// staticFiles holds the embedded HTML for the preview page.
//
//go:embed static/*
var staticFiles embed.FS
