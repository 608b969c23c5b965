// Package identity talks to an external GoTrue-style identity provider.
//
// # Overview
//
// truvy-web never stores passwords. Sign-up, sign-in, and sign-out are
// delegated to the provider's /auth/v1 endpoints; the provider answers with
// a Grant (access token, refresh token, user record).
//
// Provider failures surface as *AuthError carrying the HTTP status and the
// provider's own message, so handlers can show it to the user verbatim.
//
// # Token Verification
//
// When the provider's HS256 JWT secret is configured, JWTVerifier validates
// access tokens locally without a round trip:
//
//	verifier := identity.NewJWTVerifier([]byte(secret))
//	userID, err := verifier.Verify(accessToken)
package identity
