// Package bot keeps small per-room state snapshots durable by posting them into the
// chat rooms themselves.
//
// A snapshot is JSON, percent-encoded into a link under the project's web host and
// posted as an image link; the chat service oneboxes it, so the bot's own search
// results double as its storage. On startup Recover walks those search results newest
// first and keeps the first snapshot found per room. KeepAlive re-posts snapshots that
// ask for it before they age out of easy reach.
package bot
