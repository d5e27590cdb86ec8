package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

const (
	fieldContent = "content"
	fieldRoom    = "room"
	fieldAt      = "at"
)

// MessageIndex is the full-text index of chat messages.
// Only ids are returned by a search; the messages themselves are read back from badger.
type MessageIndex struct {
	writer   *bluge.Writer
	log      *slog.Logger
	pageSize int
}

var _ contract.MessageIndexer = (*MessageIndex)(nil)

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger, pageSize int) *MessageIndex {
	return &MessageIndex{writer: writer, log: log, pageSize: pageSize}
}

// Index adds or replaces the message document. Messages without text are skipped.
func (i *MessageIndex) Index(msg domain.Message) error {
	if strings.TrimSpace(msg.Content) == "" {
		return nil
	}
	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewTextField(fieldContent, msg.Content)).
		AddField(bluge.NewKeywordField(fieldRoom, roomTerm(msg.RoomID))).
		AddField(bluge.NewDateTimeField(fieldAt, msg.CreatedAt).Sortable())
	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("%w: index message %s: %v", errors.ErrPersistence, msg.ID, err)
	}
	return nil
}

// Search returns one page of message ids matching query in the room, newest first,
// and the total number of matches.
func (i *MessageIndex) Search(ctx context.Context, roomID domain.RoomID, query string, page int) ([]uuid.UUID, uint64, error) {
	ids := make([]uuid.UUID, 0)
	if strings.TrimSpace(query) == "" {
		return ids, 0, nil
	}
	if page < 0 {
		page = 0
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open index reader: %v", errors.ErrPersistence, err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Debug("Closing index reader", "error", err)
		}
	}()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField(fieldContent)).
		AddMust(bluge.NewTermQuery(roomTerm(roomID)).SetField(fieldRoom))
	request := bluge.NewTopNSearch(i.pageSize, q).
		SetFrom(page * i.pageSize).
		SortBy([]string{"-" + fieldAt}).
		WithStandardAggregations()

	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: search: %v", errors.ErrPersistence, err)
	}

	match, err := matches.Next()
	for err == nil && match != nil {
		var visitErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field != "_id" {
				return true
			}
			id, parseErr := uuid.ParseBytes(value)
			if parseErr != nil {
				visitErr = parseErr
				return false
			}
			ids = append(ids, id)
			return false
		})
		if err == nil {
			err = visitErr
		}
		if err == nil {
			match, err = matches.Next()
		}
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read search results: %v", errors.ErrPersistence, err)
	}
	return ids, matches.Aggregations().Count(), nil
}

func roomTerm(roomID domain.RoomID) string {
	return strconv.FormatInt(int64(roomID), 10)
}
