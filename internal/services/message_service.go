// Package services – MessageService
//
// This file implements MessageService, which owns the append-only transcript
// of a conversation. It normalizes and validates message text, checks
// conversation ownership, and persists messages. When the first user message
// lands in a conversation that still carries the placeholder title, a short
// title is derived from it in the same transaction.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include chat/user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/tributaria/internal/domain"
	"github.com/tbourn/tributaria/internal/repo"
)

// MessageService coordinates transcript reads and appends.
type MessageService struct {
	DB *gorm.DB

	// MaxPromptRunes rejects longer user messages with ErrTooLong.
	MaxPromptRunes int
	// MaxReplyRunes clips longer assistant messages.
	MaxReplyRunes int

	// AutoTitle derives a title from the first user message.
	AutoTitle   bool
	TitleLocale language.Tag
	TitleMaxLen int
}

// NewMessageService returns a MessageService with the default limits.
func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{
		DB:             db,
		MaxPromptRunes: 5000,
		MaxReplyRunes:  20000,
		AutoTitle:      true,
		TitleLocale:    language.BrazilianPortuguese,
		TitleMaxLen:    80,
	}
}

// List returns the whole transcript of chatID, oldest first.
func (s *MessageService) List(ctx context.Context, userID, chatID string) ([]domain.Message, error) {
	ctx, span := s.tracer().Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	if _, err := ownedChat(ctx, s.DB, repo.FindChat, "list_messages", userID, chatID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	items, err := repo.ListMessages(ctx, s.DB, chatID, 0)
	if err != nil {
		span.RecordError(err)
		return nil, storeErr("list_messages", err)
	}
	if items == nil {
		items = []domain.Message{}
	}
	return items, nil
}

// ListPage returns paginated messages for a chat plus the total count.
func (s *MessageService) ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error) {
	ctx, span := s.tracer().Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if _, err := ownedChat(ctx, s.DB, repo.FindChat, "list_messages", userID, chatID); err != nil {
		return nil, 0, err
	}

	total, err := repo.CountMessages(ctx, s.DB, chatID)
	if err != nil {
		return nil, 0, storeErr("count_messages", err)
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, chatID, offset, pageSize)
	if err != nil {
		return nil, 0, storeErr("list_messages", err)
	}
	return items, total, nil
}

// Get returns a single message if its conversation belongs to userID.
func (s *MessageService) Get(ctx context.Context, userID, messageID string) (*domain.Message, error) {
	m, err := repo.GetMessage(ctx, s.DB, messageID)
	if err != nil {
		return nil, storeErr("get_message", err)
	}
	if _, err := ownedChat(ctx, s.DB, repo.FindChat, "get_message", userID, m.ChatID); err != nil {
		return nil, err
	}
	return m, nil
}

// Append stores one message at the end of chatID's transcript. It is a pure
// append: nothing is ever edited or deleted.
func (s *MessageService) Append(ctx context.Context, userID, chatID, role, text string) (*domain.Message, error) {
	ctx, span := s.tracer().Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("user.id", userID),
			attribute.String("message.role", role),
		),
	)
	defer span.End()

	switch role {
	case domain.RoleUser:
		text = SanitizeMessage(text)
		if text == "" {
			return nil, ErrEmptyPrompt
		}
		if s.MaxPromptRunes > 0 && utf8.RuneCountInString(text) > s.MaxPromptRunes {
			return nil, ErrTooLong
		}
	case domain.RoleAssistant:
		text = strings.TrimSpace(normalizeNewlines(text))
		if text == "" {
			return nil, ErrEmptyPrompt
		}
		text = clipRunes(text, s.MaxReplyRunes)
	default:
		return nil, ErrInvalidRole
	}

	chat, err := ownedChat(ctx, s.DB, repo.FindChat, "append_message", userID, chatID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var out *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(ctx, tx, chatID, role, text)
		if err != nil {
			return err
		}
		out = m

		// Auto-title if placeholder
		if role == domain.RoleUser && s.AutoTitle && IsPlaceholderTitle(chat.Title) {
			if gen := clipRunes(s.generateTitle(text), s.titleMax()); gen != "" {
				if uerr := repo.UpdateChatTitle(ctx, tx, chatID, userID, gen); uerr == nil {
					chat.Title = gen
				}
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, storeErr("append_message", err)
	}
	return out, nil
}

func (s *MessageService) tracer() trace.Tracer {
	return otel.Tracer("services/MessageService")
}

func (s *MessageService) titleMax() int {
	if s.TitleMaxLen <= 0 {
		return 80
	}
	return s.TitleMaxLen
}

// generateTitle derives a concise title from the first words of a message.
// Acronyms such as "IBS" or "CBS" keep their casing.
func (s *MessageService) generateTitle(text string) string {
	toks := titleWordRE.FindAllString(text, -1)
	if len(toks) == 0 {
		return ""
	}
	tag := s.TitleLocale
	if tag == language.Und {
		tag = language.BrazilianPortuguese
	}
	caser := cases.Title(tag)

	out := make([]string, 0, 6)
	for _, w := range toks {
		low := strings.ToLower(w)
		if _, skip := titleStopWords[low]; skip {
			continue
		}
		if isAcronym(w) {
			out = append(out, w)
		} else {
			out = append(out, caser.String(low))
		}
		if len(out) >= 6 {
			break
		}
	}
	return strings.Join(out, " ")
}

// SanitizeMessage normalizes user input before it is stored: CRLF becomes LF,
// angle brackets are removed, runs of blank lines collapse to one, and
// surrounding whitespace is trimmed.
func SanitizeMessage(s string) string {
	s = normalizeNewlines(s)
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	s = blankLinesRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func isAcronym(w string) bool {
	if utf8.RuneCountInString(w) < 2 {
		return false
	}
	for _, r := range w {
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

var (
	// words: letters with optional trailing digits (e.g. "ec132")
	titleWordRE  = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)
	blankLinesRE = regexp.MustCompile(`\n{3,}`)
)

// Portuguese function words dropped from generated titles.
var titleStopWords = map[string]struct{}{
	"o": {}, "a": {}, "os": {}, "as": {}, "um": {}, "uma": {}, "de": {}, "do": {}, "da": {},
	"dos": {}, "das": {}, "e": {}, "é": {}, "em": {}, "no": {}, "na": {}, "nos": {}, "nas": {},
	"que": {}, "para": {}, "por": {}, "com": {}, "como": {}, "qual": {}, "quais": {},
	"se": {}, "ao": {}, "aos": {}, "me": {}, "eu": {}, "sobre": {}, "isso": {}, "meu": {}, "minha": {},
}
