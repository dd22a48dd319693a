// Package tunnel is the embedded tunneling endpoint mounted under a single
// path prefix. It answers three kinds of traffic: a JSON manifest at the
// prefix root, an HTTP relay that forwards a request to the absolute URL in
// X-Tunnel-URL, and a websocket upgrade that bridges binary frames to a TCP
// remote named by the "remote" query parameter. The dispatcher treats it as
// an opaque capability and only calls ShouldRoute, RouteRequest and
// RouteUpgrade.
package tunnel
