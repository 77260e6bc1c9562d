package web

import (
	"embed"
)

// staticFiles holds the tracker UI: the page, its script and styles.
//
//go:embed static/*
var staticFiles embed.FS
