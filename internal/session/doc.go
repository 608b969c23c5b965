// Package session manages browser sessions backed by the identity provider.
//
// The Manager exchanges credentials for a provider grant, mints an opaque
// cookie token, and persists the session in the store. Expired sessions are
// removed lazily on access and swept periodically by CleanupLoop. Sign-in and
// sign-out events are published on a Broadcaster for interested listeners.
package session
