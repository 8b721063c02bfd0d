// Package session holds the per-user conversation state machine.
//
// A Session tracks which conversation is open, its transcript, and whether an
// assistant reply is outstanding. Store and AI calls happen outside the lock;
// results are applied only if the conversation they belong to is still the
// current one. A reply for conversation A is persisted to A even when the user
// has moved on to B, but it is never appended to B's transcript.
package session

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/tributaria/internal/domain"
	"github.com/tbourn/tributaria/internal/reply"
)

// Fallback is stored as the assistant answer when the AI call fails.
const Fallback = "Estamos enfrentando dificuldades técnicas. Como alternativa, sugiro consultar o site da Receita Federal para informações oficiais sobre a reforma tributária."

// Banner texts shown to the user.
const (
	BannerLoadFailed   = "Não foi possível carregar a conversa. Tente novamente."
	BannerCreateFailed = "Não foi possível criar uma nova conversa. Tente novamente."
	BannerSendFailed   = "Não foi possível enviar sua mensagem. Tente novamente."
	BannerSaveFailed   = "A resposta não pôde ser salva no histórico."
)

var (
	ErrEmptyInput     = errors.New("message is empty")
	ErrNoConversation = errors.New("no conversation selected")
	ErrBusy           = errors.New("a reply is still pending")
	ErrClosed         = errors.New("session closed")
)

// Chats is the part of the chat store a session needs.
type Chats interface {
	Create(ctx context.Context, userID, title string) (*domain.Chat, error)
	Get(ctx context.Context, userID, chatID string) (*domain.Chat, error)
}

// Messages is the part of the message store a session needs.
type Messages interface {
	List(ctx context.Context, userID, chatID string) ([]domain.Message, error)
	Append(ctx context.Context, userID, chatID, role, text string) (*domain.Message, error)
}

// Options tunes a Session.
type Options struct {
	// ReplyTimeout bounds one AI call. Zero leaves it to the replier.
	ReplyTimeout time.Duration
	Logger       *zerolog.Logger
}

// Session is safe for concurrent use.
type Session struct {
	userID  string
	chats   Chats
	msgs    Messages
	replier reply.Replier
	opts    Options
	log     zerolog.Logger

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    State
	conv     *domain.Chat
	entries  []Entry
	draft    string
	banner   string
	pending  map[string]bool
	turns    map[string]uint64
	localSeq int
	version  uint64
	closed   bool
	subs     map[int]chan Snapshot
	nextSub  int
}

// New returns a Session for userID in state NoConversation.
func New(userID string, chats Chats, msgs Messages, r reply.Replier, opts Options) *Session {
	l := log.Logger
	if opts.Logger != nil {
		l = *opts.Logger
	}
	base, cancel := context.WithCancel(context.Background())
	return &Session{
		userID:  userID,
		chats:   chats,
		msgs:    msgs,
		replier: r,
		opts:    opts,
		log:     l.With().Str("component", "session").Str("user_id", userID).Logger(),
		base:    base,
		cancel:  cancel,
		state:   NoConversation,
		pending: make(map[string]bool),
		turns:   make(map[string]uint64),
		subs:    make(map[int]chan Snapshot),
	}
}

// UserID returns the owner of the session.
func (s *Session) UserID() string { return s.userID }

// SelectConversation opens chatID and loads its history. On failure the
// previous conversation stays open and the state becomes Error.
func (s *Session) SelectConversation(ctx context.Context, chatID string) error {
	for attempt := 0; ; attempt++ {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		seen := s.turns[chatID]
		s.mu.Unlock()

		chat, history, err := s.load(ctx, chatID)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		if err != nil {
			s.failLocked(BannerLoadFailed)
			s.publishLocked()
			s.mu.Unlock()
			s.log.Warn().Err(err).Str("chat_id", chatID).Msg("load conversation failed")
			return err
		}
		// A turn for chatID finished while loading; its messages may be
		// missing from history.
		if s.turns[chatID] != seen && attempt < 2 {
			s.mu.Unlock()
			continue
		}
		s.conv = chat
		s.entries = entriesFrom(history)
		s.draft = ""
		s.banner = ""
		if s.pending[chatID] {
			s.state = AwaitingReply
		} else {
			s.state = Idle
		}
		s.publishLocked()
		s.mu.Unlock()
		return nil
	}
}

func (s *Session) load(ctx context.Context, chatID string) (*domain.Chat, []domain.Message, error) {
	chat, err := s.chats.Get(ctx, s.userID, chatID)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.msgs.List(ctx, s.userID, chatID)
	if err != nil {
		return nil, nil, err
	}
	return chat, history, nil
}

// StartNewConversation creates a conversation and makes it current with an
// empty transcript. On failure nothing but the state and banner change.
func (s *Session) StartNewConversation(ctx context.Context, title string) (*domain.Chat, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.mu.Unlock()

	chat, err := s.chats.Create(ctx, s.userID, title)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if err != nil {
		s.failLocked(BannerCreateFailed)
		s.publishLocked()
		s.log.Warn().Err(err).Msg("create conversation failed")
		return nil, err
	}
	s.conv = chat
	s.entries = []Entry{}
	s.draft = ""
	s.banner = ""
	s.state = Idle
	s.publishLocked()
	return chat, nil
}

// Submit sends text in the current conversation. Rejections leave the
// session untouched. Otherwise the turn runs in the background and the
// returned channel is closed once it is fully resolved.
func (s *Session) Submit(ctx context.Context, text string) (<-chan struct{}, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, ErrClosed
	case s.conv == nil:
		s.mu.Unlock()
		return nil, ErrNoConversation
	case s.pending[s.conv.ID]:
		s.mu.Unlock()
		return nil, ErrBusy
	}

	chatID := s.conv.ID
	s.dropFailedLocked()
	s.localSeq++
	localID := "local-" + strconv.Itoa(s.localSeq)
	s.entries = append(s.entries, Entry{
		ID:        localID,
		Role:      domain.RoleUser,
		Content:   text,
		CreatedAt: time.Now().UTC(),
		Pending:   true,
	})
	s.draft = text
	s.banner = ""
	s.state = AwaitingReply
	s.pending[chatID] = true
	s.publishLocked()

	done := make(chan struct{})
	s.wg.Add(1)
	s.mu.Unlock()

	trace := zerolog.Ctx(ctx)
	go func() {
		defer s.wg.Done()
		defer close(done)
		s.turn(chatID, localID, text, trace)
	}()
	return done, nil
}

// turn persists the user message, asks the AI, and persists the answer.
// trace carries the submitting request's logger fields, if any.
func (s *Session) turn(chatID, localID, text string, trace *zerolog.Logger) {
	lg := s.log.With().Str("chat_id", chatID).Logger()
	if trace != nil && trace.GetLevel() != zerolog.Disabled {
		lg = trace.With().Str("component", "session").Str("chat_id", chatID).Logger()
	}
	ctx := lg.WithContext(s.base)

	userMsg, err := s.msgs.Append(ctx, s.userID, chatID, domain.RoleUser, text)
	if err != nil {
		lg.Warn().Err(err).Msg("persist user message failed")
		s.mu.Lock()
		delete(s.pending, chatID)
		s.turns[chatID]++
		if s.isCurrentLocked(chatID) {
			s.markFailedLocked(localID)
			s.state = Error
			s.banner = BannerSendFailed
			s.publishLocked()
		}
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if s.isCurrentLocked(chatID) {
		s.replaceLocked(localID, entryFrom(*userMsg))
		if s.draft == text {
			s.draft = ""
		}
		s.publishLocked()
	}
	s.mu.Unlock()

	answer := s.ask(ctx, lg, text, chatID)

	asstMsg, perr := s.msgs.Append(ctx, s.userID, chatID, domain.RoleAssistant, answer)
	if perr != nil {
		lg.Error().Err(perr).Msg("persist assistant message failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, chatID)
	s.turns[chatID]++
	if !s.isCurrentLocked(chatID) {
		return
	}
	if perr != nil {
		s.localSeq++
		s.entries = append(s.entries, Entry{
			ID:        "local-" + strconv.Itoa(s.localSeq),
			Role:      domain.RoleAssistant,
			Content:   Fallback,
			CreatedAt: time.Now().UTC(),
			Failed:    true,
		})
		s.banner = BannerSaveFailed
	} else {
		s.appendOnceLocked(entryFrom(*asstMsg))
	}
	s.state = Idle
	s.publishLocked()
}

func (s *Session) ask(ctx context.Context, lg zerolog.Logger, text, chatID string) string {
	if s.opts.ReplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ReplyTimeout)
		defer cancel()
	}
	start := time.Now()
	answer, err := s.replier.Ask(ctx, text, chatID, s.userID)
	if err != nil || strings.TrimSpace(answer) == "" {
		lg.Warn().Err(err).Dur("latency", time.Since(start)).Msg("ai reply failed, using fallback")
		return Fallback
	}
	lg.Debug().Dur("latency", time.Since(start)).Int("reply_len", len(answer)).Msg("ai reply received")
	return answer
}

// Snapshot returns a copy of the visible state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe delivers a Snapshot after every change. The channel holds only
// the latest snapshot; a slow reader skips intermediate ones. cancel is
// idempotent. The channel is closed by cancel or Close.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.nextSub++
	id := s.nextSub
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close stops accepting calls and closes subscriber channels. In-flight
// turns still persist their messages but no longer touch local state.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, c := range s.subs {
		delete(s.subs, id)
		close(c)
	}
}

// Abort closes the session and cancels in-flight AI calls and writes.
func (s *Session) Abort() {
	s.Close()
	s.cancel()
}

// Wait blocks until every in-flight turn has finished.
func (s *Session) Wait() { s.wg.Wait() }

// failLocked records a failed navigation. A reply still pending for the
// open conversation keeps the session in AwaitingReply.
func (s *Session) failLocked(banner string) {
	s.banner = banner
	if s.conv != nil && s.pending[s.conv.ID] {
		s.state = AwaitingReply
		return
	}
	s.state = Error
}

func (s *Session) isCurrentLocked(chatID string) bool {
	return !s.closed && s.conv != nil && s.conv.ID == chatID
}

func (s *Session) dropFailedLocked() {
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Failed && e.Role == domain.RoleUser {
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
}

func (s *Session) markFailedLocked(localID string) {
	for i := range s.entries {
		if s.entries[i].ID == localID {
			s.entries[i].Pending = false
			s.entries[i].Failed = true
			return
		}
	}
}

// replaceLocked swaps the optimistic entry for the stored one. A reload may
// already have brought in the stored entry, in which case the local one is
// just dropped.
func (s *Session) replaceLocked(localID string, e Entry) {
	if s.hasEntryLocked(e.ID) {
		s.removeLocked(localID)
		return
	}
	for i := range s.entries {
		if s.entries[i].ID == localID {
			s.entries[i] = e
			return
		}
	}
	s.entries = append(s.entries, e)
}

func (s *Session) appendOnceLocked(e Entry) {
	if !s.hasEntryLocked(e.ID) {
		s.entries = append(s.entries, e)
	}
}

func (s *Session) hasEntryLocked(id string) bool {
	for _, e := range s.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) removeLocked(id string) {
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version: s.version,
		State:   s.state,
		Typing:  s.state == AwaitingReply,
		Entries: append([]Entry(nil), s.entries...),
		Draft:   s.draft,
		Banner:  s.banner,
	}
	if snap.Entries == nil {
		snap.Entries = []Entry{}
	}
	if s.conv != nil {
		c := *s.conv
		snap.Conversation = &c
	}
	return snap
}

// publishLocked bumps the version and offers the new snapshot to every
// subscriber, replacing any snapshot they have not read yet.
func (s *Session) publishLocked() {
	s.version++
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
