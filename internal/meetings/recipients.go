package meetings

import (
	"strings"

	"leadify-meeting-orchestrator/internal/types"
)

// recipientsFor returns the explicit recipients when given, otherwise one
// per lead contact. A lead without contacts is notified directly.
func recipientsFor(explicit []types.Recipient, lead types.Lead, contacts []types.Contact) []types.Recipient {
	if len(explicit) > 0 {
		return explicit
	}

	if len(contacts) == 0 {
		return []types.Recipient{withChannel(types.Recipient{
			Name:     lead.Name,
			Email:    strings.TrimSpace(lead.Email),
			Phone:    strings.TrimSpace(lead.Phone),
			Language: lead.Language,
		})}
	}

	out := make([]types.Recipient, 0, len(contacts))
	for _, c := range contacts {
		language := c.Language
		if language == "" {
			language = lead.Language
		}
		out = append(out, withChannel(types.Recipient{
			Name:      c.Name,
			Email:     strings.TrimSpace(c.Email),
			Phone:     strings.TrimSpace(c.Phone),
			Language:  language,
			ContactID: c.ID,
		}))
	}
	return out
}

// withChannel prefers email and falls back to chat. A recipient with
// neither keeps an empty channel and is skipped at dispatch.
func withChannel(r types.Recipient) types.Recipient {
	switch {
	case r.Email != "":
		r.Channel = types.ChannelEmail
	case r.Phone != "":
		r.Channel = types.ChannelChat
	}
	return r
}
