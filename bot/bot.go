package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/chatkeeper/stackchat"
	"github.com/onnwee/chatkeeper/telemetry"
)

const (
	DefaultMaxAge         = 4 * time.Hour
	DefaultSearchPageSize = 100
	defaultConcurrency    = 4

	// recoverySearchText matches messages that carry an oneboxed image, which state links render as.
	recoverySearchText = "img"
)

// Chat is the part of the chat client the bot needs.
type Chat interface {
	SendMessage(ctx context.Context, roomID int64, body string) (*stackchat.Ack, error)
	Search(ctx context.Context, q stackchat.SearchQuery) ([]stackchat.Message, error)
	UserID() int64
}

// Options tune recovery and keep-alive. Zero values take the defaults.
type Options struct {
	MaxAge         time.Duration // keep-alive threshold
	SearchPageSize int
	Concurrency    int // rooms signed in parallel during a keep-alive pass
	Now            func() time.Time
}

// Bot tracks the current snapshot of every room it has state for.
type Bot struct {
	chat  Chat
	codec *Codec
	opts  Options

	mu    sync.Mutex
	rooms map[int64]Snapshot
}

// New returns a bot with no tracked rooms. Call Recover once the chat is connected.
func New(chat Chat, codec *Codec, opts Options) *Bot {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.SearchPageSize <= 0 {
		opts.SearchPageSize = DefaultSearchPageSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Bot{chat: chat, codec: codec, opts: opts, rooms: make(map[int64]Snapshot)}
}

// Codec returns the codec used for state links.
func (b *Bot) Codec() *Codec { return b.codec }

// MaxAge returns the keep-alive threshold.
func (b *Bot) MaxAge() time.Duration { return b.opts.MaxAge }

// State returns a copy of roomID's current snapshot.
func (b *Bot) State(roomID int64) (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.rooms[roomID]
	if !ok {
		return Snapshot{}, false
	}
	return s.Clone(), true
}

// Rooms returns the tracked room ids in ascending order.
func (b *Bot) Rooms() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]int64, 0, len(b.rooms))
	for id := range b.rooms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Recover loads the newest snapshot of each room from the bot's own recent posts and
// returns how many rooms it found. Rooms already tracked are left alone. Undecodable
// links are logged and skipped; only a failed search is returned.
func (b *Bot) Recover(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "bot", "state.recover")
	defer span.End()

	msgs, err := b.chat.Search(ctx, stackchat.SearchQuery{
		Text:     recoverySearchText,
		UserID:   b.chat.UserID(),
		Page:     1,
		PageSize: b.opts.SearchPageSize,
		Sort:     stackchat.SortNewest,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("search own messages: %w", err)
	}
	slog.Info("state search returned", slog.Int("messages", len(msgs)), slog.String("component", "bot"))

	recovered := 0
	for _, m := range msgs {
		link := m.ImageLink()
		if link == "" || !b.codec.Recognized(link) {
			continue
		}
		if m.RoomID == 0 || m.MessageID == 0 {
			slog.Debug("skipping state without room or message id",
				slog.Int64("room_id", m.RoomID),
				slog.Int64("message_id", m.MessageID),
				slog.String("component", "bot"))
			continue
		}
		if b.tracked(m.RoomID) {
			continue
		}
		s, err := b.codec.Decode(link)
		if err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				de.MessageID = m.MessageID
			}
			telemetry.RecordDecodeFailure()
			slog.Warn("skipping undecodable state",
				slog.Int64("room_id", m.RoomID),
				slog.Int64("message_id", m.MessageID),
				slog.Any("err", err),
				slog.String("component", "bot"))
			continue
		}
		s.PreviousMessageID = m.MessageID

		b.mu.Lock()
		if _, ok := b.rooms[m.RoomID]; !ok {
			b.rooms[m.RoomID] = s
			recovered++
		}
		telemetry.SetTrackedRooms(len(b.rooms))
		b.mu.Unlock()
		slog.Info("found state",
			slog.Int64("room_id", m.RoomID),
			slog.Int64("message_id", m.MessageID),
			slog.Int64("t", s.T),
			slog.String("component", "bot"))
	}
	telemetry.SetSpanSuccess(span)
	return recovered, nil
}

func (b *Bot) tracked(roomID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.rooms[roomID]
	return ok
}

// SignState stamps roomID's snapshot with the current time, stores it, and posts it.
// When the post returns a message id the next signature replies to it.
// Concurrent calls for the same room are not serialized.
func (b *Bot) SignState(ctx context.Context, roomID int64) (*stackchat.Ack, error) {
	ctx, span := telemetry.StartSpan(ctx, "bot", "state.sign", telemetry.RoomAttr(roomID))
	defer span.End()

	now := b.opts.Now().UnixMilli()
	b.mu.Lock()
	old, had := b.rooms[roomID]
	next := old.Clone()
	next.PreviousMessageID = 0
	next.T = now
	next.DT = 0
	if had && old.T != 0 {
		next.DT = now - old.T
	}
	b.rooms[roomID] = next
	telemetry.SetTrackedRooms(len(b.rooms))
	b.mu.Unlock()

	token, err := b.codec.Encode(next)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	ack, err := b.chat.SendMessage(ctx, roomID, MessageBody(old.PreviousMessageID, token))
	if err != nil {
		// the last posted message is still the one to reply to
		b.mu.Lock()
		if cur, ok := b.rooms[roomID]; ok && cur.T == next.T {
			cur.PreviousMessageID = old.PreviousMessageID
			b.rooms[roomID] = cur
		}
		b.mu.Unlock()
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("post state to room %d: %w", roomID, err)
	}
	telemetry.RecordSignature()

	if ack != nil && ack.ID != 0 {
		b.mu.Lock()
		if cur, ok := b.rooms[roomID]; ok && cur.T == next.T {
			cur.PreviousMessageID = ack.ID
			b.rooms[roomID] = cur
		}
		b.mu.Unlock()
	}
	telemetry.SetSpanSuccess(span)
	return ack, nil
}

// Update merges fields into roomID's snapshot, then signs it. The reserved t/dt keys are ignored.
func (b *Bot) Update(ctx context.Context, roomID int64, fields map[string]json.RawMessage) (*stackchat.Ack, error) {
	b.mu.Lock()
	cur := b.rooms[roomID].Clone()
	for k, v := range fields {
		if k == fieldTime || k == fieldDelta {
			continue
		}
		cur.Fields[k] = v
	}
	b.rooms[roomID] = cur
	b.mu.Unlock()
	return b.SignState(ctx, roomID)
}

// KeepAlive re-signs every keep-alive room whose snapshot is older than MaxAge.
// Rooms are signed concurrently; every failure is logged and joined into the result.
func (b *Bot) KeepAlive(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "bot", "state.keepalive")
	defer span.End()

	var (
		errMu sync.Mutex
		errs  []error
	)
	telemetry.TimeFunc(telemetry.KeepAliveDuration, func() {
		var g errgroup.Group
		g.SetLimit(b.opts.Concurrency)
		now := b.opts.Now()
		for _, roomID := range b.Rooms() {
			s, ok := b.State(roomID)
			if !ok || !s.KeepAlive() {
				continue
			}
			age := now.Sub(time.UnixMilli(s.T))
			if age <= b.opts.MaxAge {
				slog.Info("no keep-alive necessary",
					slog.Int64("room_id", roomID),
					slog.Duration("age", age),
					slog.String("component", "bot"))
				continue
			}
			slog.Info("triggering keep-alive",
				slog.Int64("room_id", roomID),
				slog.Duration("age", age),
				slog.Duration("max_age", b.opts.MaxAge),
				slog.String("component", "bot"))
			g.Go(func() error {
				if _, err := b.SignState(ctx, roomID); err != nil {
					slog.Warn("keep-alive failed", slog.Int64("room_id", roomID), slog.Any("err", err), slog.String("component", "bot"))
					errMu.Lock()
					errs = append(errs, err)
					errMu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
	})

	err := errors.Join(errs...)
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetSpanSuccess(span)
	}
	return err
}
