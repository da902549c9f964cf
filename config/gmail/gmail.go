package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/brpix/pix-processor/utils"
)

// MailSource is the reconciliation engine's view of the mailbox. The engine
// only ever lists candidate messages, reads their stripped bodies and flips
// their read/failed/archived state.
type MailSource interface {
	ListUnread(ctx context.Context) utils.Result[[]string]
	ListBefore(ctx context.Context, cutoff time.Time) utils.Result[[]string]
	GetBody(ctx context.Context, id string) utils.Result[string]
	ClearUnread(ctx context.Context, id string) error
	TagFailed(ctx context.Context, id string) error
	ArchiveOrDelete(ctx context.Context, id string) error
}

type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Sender       string
	SubjectTerms []string
	// Gmail label applied to messages that could not be parsed. Must exist
	// in the mailbox beforehand.
	FailedLabelID string
}

type GmailSource struct {
	service *gmailapi.Service
	config  GmailConfig
	logger  *slog.Logger
}

func NewGmailSource(ctx context.Context, cfg GmailConfig) (*GmailSource, error) {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	httpClient := oauthConfig.Client(ctx, token)

	service, err := gmailapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	logger = logger.With("component", "gmail")

	return &GmailSource{
		service: service,
		config:  cfg,
		logger:  logger,
	}, nil
}

func (s *GmailSource) ListUnread(ctx context.Context) utils.Result[[]string] {
	query := fmt.Sprintf("%s is:unread", s.filterQuery())
	return s.list(ctx, query)
}

func (s *GmailSource) ListBefore(ctx context.Context, cutoff time.Time) utils.Result[[]string] {
	query := fmt.Sprintf("%s before:%s", s.filterQuery(), cutoff.Format("2006/01/02"))
	return s.list(ctx, query)
}

func (s *GmailSource) list(ctx context.Context, query string) utils.Result[[]string] {
	response, err := s.service.Users.Messages.List("me").
		Q(query).
		MaxResults(100).
		Context(ctx).
		Do()
	if err != nil {
		return utils.FailedResult[[]string](err)
	}

	ids := make([]string, 0, len(response.Messages))
	for _, message := range response.Messages {
		ids = append(ids, message.Id)
	}

	return utils.SuccessResult(ids)
}

func (s *GmailSource) GetBody(ctx context.Context, id string) utils.Result[string] {
	message, err := s.service.Users.Messages.Get("me", id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return utils.FailedResult[string](err)
	}

	return utils.SuccessResult(decodeBody(message))
}

func (s *GmailSource) ClearUnread(ctx context.Context, id string) error {
	_, err := s.service.Users.Messages.Modify("me", id, &gmailapi.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	return err
}

func (s *GmailSource) TagFailed(ctx context.Context, id string) error {
	request := &gmailapi.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}
	if s.config.FailedLabelID != "" {
		request.AddLabelIds = []string{s.config.FailedLabelID}
	}

	_, err := s.service.Users.Messages.Modify("me", id, request).Context(ctx).Do()
	return err
}

func (s *GmailSource) ArchiveOrDelete(ctx context.Context, id string) error {
	_, err := s.service.Users.Messages.Trash("me", id).Context(ctx).Do()
	return err
}

func (s *GmailSource) filterQuery() string {
	subjects := make([]string, 0, len(s.config.SubjectTerms))
	for _, term := range s.config.SubjectTerms {
		subjects = append(subjects, fmt.Sprintf("subject:%q", term))
	}

	return fmt.Sprintf("from:%s (%s)", s.config.Sender, strings.Join(subjects, " OR "))
}

var (
	softBreakPattern  = regexp.MustCompile(`=\r?\n`)
	markupPattern     = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// decodeBody extracts a plain-text rendition of the message. HTML parts are
// preferred since the banks send multipart messages whose text/plain part is
// often empty; markup is stripped and whitespace collapsed so the parser
// only ever sees free text.
func decodeBody(message *gmailapi.Message) string {
	if message.Payload == nil {
		return ""
	}

	parts := message.Payload.Parts
	if len(parts) == 0 {
		parts = []*gmailapi.MessagePart{message.Payload}
	}

	if html := findPart(parts, "text/html"); html != "" {
		stripped := softBreakPattern.ReplaceAllString(html, "")
		stripped = markupPattern.ReplaceAllString(stripped, " ")
		return strings.TrimSpace(whitespacePattern.ReplaceAllString(stripped, " "))
	}

	return strings.TrimSpace(findPart(parts, "text/plain"))
}

func findPart(parts []*gmailapi.MessagePart, mimeType string) string {
	for _, part := range parts {
		if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
			return decodeData(part.Body.Data)
		}

		if len(part.Parts) > 0 {
			if body := findPart(part.Parts, mimeType); body != "" {
				return body
			}
		}
	}

	return ""
}

func decodeData(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}

	return string(decoded)
}
