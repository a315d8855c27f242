// Package stackchat is a scraping client for Stack Exchange chat, which has no
// public write API.
//
// It provides three layers:
//   - Session: owns the cookie jar and runs the browser-style login pipeline
//     (login page fkey, credential POST, activation check, chat home fkey and
//     user id). FetchDocument turns any request into a goquery document.
//   - ScrapeMessages: maps search-result and transcript pages into Message
//     records, one per .message element, tolerating malformed entries.
//   - Client: room-scoped operations built on the two (SendMessage, Search,
//     Transcript). Each is a single HTTP round trip and fails fast with
//     ErrNotConnected until the session has logged in.
//
// Login requires an account on security.stackexchange.com; the chat fkey is
// read from chat.stackexchange.com once the login cookies are set.
package stackchat
