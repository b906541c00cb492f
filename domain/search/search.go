package search

import (
	"strconv"
	"strings"
)

const DefaultLimit = 10

// Query is a parsed message search.
// It decouples the raw command typed by the user from the index engine.
type Query struct {
	RawInput       string
	Terms          string
	ConversationID string // empty means every conversation
	Limit          int
}

// Hit is one matching message.
type Hit struct {
	MessageID      string
	ConversationID string
	Content        string
	SenderID       string
	Timestamp      int64
	Score          float64
}

// NewSearchQuery parses command-line style arguments.
// Example: /search "pedido" --conversation order-7 --limit 5
func NewSearchQuery(input string) Query {
	query := Query{RawInput: input, Limit: DefaultLimit}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			val := parts[i+1]
			switch strings.TrimPrefix(part, "--") {
			case "conversation":
				query.ConversationID = val
			case "limit":
				if limit, err := strconv.Atoi(val); err == nil && limit > 0 {
					query.Limit = limit
				}
			}
			i++ // value consumed
			continue
		}

		// the command itself is not a term
		if !strings.HasPrefix(part, "/") {
			textTerms = append(textTerms, strings.Trim(part, `"`))
		}
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}
