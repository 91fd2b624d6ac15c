// Package panel serves the browser console as embedded static assets.
//
// The console is a single page (index.html, app.js, style.css) that talks to
// the REST API under /api/v1 and listens on the WebSocket for plot, control,
// error log and pin events. Assets are embedded with go:embed so the binary
// has no runtime dependency on external files.
//
// During UI work Handler can serve a directory instead, so edits show up
// without a rebuild. Unknown paths fall back to index.html.
package panel
