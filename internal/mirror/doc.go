// Package mirror maps request paths onto upstream asset origins. A Resolver
// holds the ordered prefix table loaded from config and performs a first-match
// linear scan; later, more specific prefixes are shadowed by earlier broader
// ones, so declaration order is part of the configuration contract.
package mirror
