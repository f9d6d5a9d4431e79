// Package dashboard provides the embedded web UI assets for HostMap.
//
// This package uses Go's embed directive to include the dashboard HTML, CSS,
// and JavaScript at compile time. This enables single-binary deployment
// without external asset files.
//
// The page loads the current snapshot from /api/hosts, then applies every
// record pushed over /ws as it arrives.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Map page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
