// Package services – ChatService
//
// This file implements the ChatService, which manages the lifecycle of
// conversations. It normalizes titles, enforces ownership, and coordinates
// repository operations for creating, listing (with pagination), fetching
// and renaming conversations.
//
// Every failure is returned as a *StoreError so handlers and the session
// controller can tell not-found, permission and transport failures apart.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/tributaria/internal/domain"
)

// DefaultTitle prefixes the timestamped placeholder given to untitled chats.
const DefaultTitle = "Nova conversa"

// placeholderTitleRE matches titles produced by placeholderTitle.
var placeholderTitleRE = regexp.MustCompile(`^Nova conversa(?: \d{2}/\d{2}/\d{2} \d{2}:\d{2})?$`)

// ChatRepo defines the repository contract required by ChatService.
type ChatRepo interface {
	CreateChat(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Chat, error)
	ListChats(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error)
	FindChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error)
	UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error
	CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error)
	ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error)
}

// ChatService provides conversation-level operations for a single owner.
type ChatService struct {
	DB   *gorm.DB
	Repo ChatRepo

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// Location is used to render the placeholder timestamp.
	Location *time.Location
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewChatService constructs a ChatService with defaults for title handling.
func NewChatService(db *gorm.DB, r ChatRepo) *ChatService {
	return &ChatService{
		DB:          db,
		Repo:        r,
		TitleMaxLen: 80,
		Location:    time.UTC,
		Now:         time.Now,
	}
}

// Create inserts a new conversation owned by userID. A blank title becomes
// the timestamped placeholder, e.g. "Nova conversa 14/10/26 10:30".
func (s *ChatService) Create(ctx context.Context, userID, title string) (*domain.Chat, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	title = normalizeTitle(title)
	if title == "" {
		title = s.placeholderTitle()
	}
	c, err := s.Repo.CreateChat(ctx, s.DB, userID, s.clip(title))
	if err != nil {
		span.RecordError(err)
		return nil, storeErr("create_conversation", err)
	}
	return c, nil
}

// List returns all conversations of userID, most recent first.
func (s *ChatService) List(ctx context.Context, userID string) ([]domain.Chat, error) {
	items, err := s.Repo.ListChats(ctx, s.DB, userID)
	if err != nil {
		return nil, storeErr("list_conversations", err)
	}
	if items == nil {
		items = []domain.Chat{}
	}
	return items, nil
}

// ListPage returns a page of conversations plus the total count.
// Invalid page/pageSize fall back to 1 and 20.
func (s *ChatService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountChats(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, storeErr("count_conversations", err)
	}
	if total == 0 {
		return []domain.Chat{}, 0, nil
	}

	items, err := s.Repo.ListChatsPage(ctx, s.DB, userID, offset, pageSize)
	if err != nil {
		return nil, 0, storeErr("list_conversations", err)
	}
	return items, total, nil
}

// Get returns the conversation if it belongs to userID.
func (s *ChatService) Get(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	return ownedChat(ctx, s.DB, s.Repo.FindChat, "get_conversation", userID, chatID)
}

// UpdateTitle renames a conversation owned by userID. A blank title resets
// it to the placeholder.
func (s *ChatService) UpdateTitle(ctx context.Context, userID, chatID, title string) error {
	if _, err := s.Get(ctx, userID, chatID); err != nil {
		return err
	}
	title = normalizeTitle(title)
	if title == "" {
		title = s.placeholderTitle()
	}
	if err := s.Repo.UpdateChatTitle(ctx, s.DB, chatID, userID, s.clip(title)); err != nil {
		return storeErr("update_title", err)
	}
	return nil
}

func (s *ChatService) placeholderTitle() string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s %s", DefaultTitle, now().In(loc).Format("02/01/06 15:04"))
}

// clip truncates a title to the configured maximum rune length.
func (s *ChatService) clip(title string) string {
	return clipRunes(title, s.TitleMaxLen)
}

// findChatFunc looks a chat up by ID regardless of owner.
type findChatFunc func(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error)

// ownedChat loads chatID and checks it belongs to userID.
func ownedChat(ctx context.Context, db *gorm.DB, find findChatFunc, op, userID, chatID string) (*domain.Chat, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, &StoreError{Kind: ErrNotFound, Op: op}
	}
	c, err := find(ctx, db, chatID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if c.UserID != userID {
		return nil, &StoreError{Kind: ErrPermission, Op: op}
	}
	return c, nil
}

// IsPlaceholderTitle reports whether title was generated rather than chosen.
func IsPlaceholderTitle(title string) bool {
	return placeholderTitleRE.MatchString(strings.TrimSpace(title))
}

// clipRunes truncates s to max runes; max <= 0 disables clipping.
func clipRunes(s string, max int) string {
	if max > 0 && utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// isNotFound reports whether err is a not-found store error.
func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
