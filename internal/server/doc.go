// Package server hosts the inbound side of the gateway. A Dispatcher sits
// directly on the shared listener and classifies every exchange as tunnel or
// application traffic; upgrade handshakes that the tunnel does not claim are
// closed without a response. Application traffic is served by a Fiber app
// whose middleware chain runs redirects, the asset mirror, the static tree,
// the page route table and finally the not-found page. The package also owns
// the shared upstream http.Client so mirror fetches and tunnel relays reuse
// one connection pool.
package server
