// Package atclient implements the authenticated record client for an AT
// Protocol personal data server (PDS): session creation and refresh, generic
// record create/get/delete over the com.atproto.repo XRPC endpoints, and the
// composite checkin-with-address create used by Anchor.
//
// The PDS only offers single-record atomic writes, so the composite create
// runs a manual two-phase sequence: the address record is created first, the
// checkin referencing it by StrongRef second, and a failed checkin create
// triggers one best-effort compensating delete of the address. The
// compensation is not guaranteed; occasional orphaned address records must be
// tolerated by callers.
//
// The client holds no mutable state beyond its transport and logger, so a
// single instance may be shared across goroutines as long as the Transport is
// safe for concurrent use. There is no retry, backoff, or automatic token
// refresh anywhere in the package: every failure surfaces immediately, and
// refreshing an expired session is the caller's responsibility.
package atclient
