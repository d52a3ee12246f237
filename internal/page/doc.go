// Package page provides the host page capabilities a session needs: the
// current location, navigation to the authorization server, and storage.
//
// Two hosts are provided. Headless records navigations and lets the caller
// set the location; it backs non-interactive commands and tests. Loopback
// is the desktop host: it opens the system browser and receives the
// redirect on a local callback server.
package page
