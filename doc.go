// Package members provides the authorization and verification core for a
// membership feature: cookie backed authorization sessions, single use
// account verification codes, and provider seeded registration merged into a
// canonical account record.
//
// Authorization sessions:
//   - A Session is built per request from the raw authorization cookie value
//     and never outlives the request. The cookie carries a signed token minted
//     by TokenCodec; there is no server side session table. A missing or
//     undecodable cookie degrades to an anonymous session, never an error.
//   - After the handler runs, WriteAuthorizationCookie either sets a fresh
//     cookie or actively clears it. A cleared session never leaves a previous
//     cookie behind.
//
// Verification:
//   - VerificationToken is a dedicated single use token entity (code, owning
//     account, issued-at) with a unique code constraint. AccountVerifyHandler
//     consumes a code exactly once: the verified flag write is committed
//     before the token is deleted, so a crash between the two leaves a
//     verified account and a harmless dangling token.
//
// Registration:
//   - RegisterAccountHandler merges local form input, optionally seeded from a
//     TransitionalRegistration payload handed over by an identity provider,
//     into exactly one Account. The repository uniqueness constraints are the
//     backstop against double submission.
package members
