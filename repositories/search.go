package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"fmt"
	"strings"

	"github.com/blugelabs/bluge"
)

var _ contract.IUserIndex = (*UserIndex)(nil)

const (
	usernameField = "username"
	nameField     = "name"
)

// UserIndex is an in-memory Bluge index over usernames and display names.
// Both fields are indexed lower-cased as single keyword terms, so a
// wildcard query gives a case-insensitive substring match.
type UserIndex struct {
	writer *bluge.Writer
}

func NewUserIndex() (*UserIndex, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	return &UserIndex{writer: writer}, nil
}

// Index adds or replaces the document of user.
func (i *UserIndex) Index(_ context.Context, user domain.User) error {
	doc := bluge.NewDocument(user.ID).
		AddField(bluge.NewKeywordField(usernameField, strings.ToLower(user.Username)).StoreValue()).
		AddField(bluge.NewKeywordField(nameField, strings.ToLower(user.Name)).StoreValue())
	return i.writer.Update(doc.ID(), doc)
}

// Search returns the ids of users whose username or name contains query,
// ignoring case. An empty query matches nothing.
func (i *UserIndex) Search(ctx context.Context, query string) ([]string, error) {
	needle := strings.ToLower(query)
	if needle == "" {
		return []string{}, nil
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("bluge reader: %w", err)
	}
	defer reader.Close()

	pattern := "*" + needle + "*"
	q := bluge.NewBooleanQuery().
		AddShould(bluge.NewWildcardQuery(pattern).SetField(usernameField)).
		AddShould(bluge.NewWildcardQuery(pattern).SetField(nameField))

	matches, err := reader.Search(ctx, bluge.NewAllMatches(q))
	if err != nil {
		return nil, err
	}

	ids := []string{}
	next, err := matches.Next()
	for err == nil && next != nil {
		var id, username, name string
		err = next.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				id = string(value)
			case usernameField:
				username = string(value)
			case nameField:
				name = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		// '*' and '?' typed by the user are wildcards to bluge; keep literal semantics.
		if strings.Contains(username, needle) || strings.Contains(name, needle) {
			ids = append(ids, id)
		}
		next, err = matches.Next()
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (i *UserIndex) Close() error {
	return i.writer.Close()
}
