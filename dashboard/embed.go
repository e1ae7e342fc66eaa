// Package dashboard provides the embedded web client for WorldSync.
//
// The page draws every entity that has numeric x and y attributes on a
// canvas, keeps itself current from the /subscribe stream, and places the
// browser's own entity wherever the canvas is clicked.
//
// The embedded assets are served by the server package at the root path ("/").
// Users of the worldsync library should not need to interact with this
// package directly.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the web client.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Canvas client with inline CSS and JavaScript
//
// The page contains a {{.Title}} placeholder that the server replaces with
// the configured title.
//
//go:embed assets/*
var Assets embed.FS
