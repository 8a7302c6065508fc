package imap

import (
	"fmt"
	"strconv"
	"strings"

	imapv2 "github.com/emersion/go-imap/v2"
)

// Selector identifies the target messages of a step: either an explicit UID
// set string ("7", "1,3:5") or a Message-ID header value resolved against
// the selected mailbox.
type Selector struct {
	UIDSet    string
	MessageID string
}

func (sel Selector) validate() error {
	if sel.UIDSet == "" && sel.MessageID == "" {
		return fmt.Errorf("either a UID set or a Message-ID is required")
	}
	if sel.UIDSet != "" && sel.MessageID != "" {
		return fmt.Errorf("UID set and Message-ID are mutually exclusive")
	}
	return nil
}

// Resolve turns a Selector into a concrete UID set. Message-ID selectors
// run a UID SEARCH on the Message-Id header; an empty result is ErrNoMatch.
func (s *Session) Resolve(sel Selector) (imapv2.UIDSet, error) {
	if err := sel.validate(); err != nil {
		return nil, err
	}
	if err := s.requireSelected(); err != nil {
		return nil, err
	}

	if sel.UIDSet != "" {
		return ParseUIDSet(sel.UIDSet)
	}

	criteria := &imapv2.SearchCriteria{
		Header: []imapv2.SearchCriteriaHeaderField{
			{Key: "Message-Id", Value: sel.MessageID},
		},
	}

	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search Message-Id %q: %w", sel.MessageID, err)
	}

	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, fmt.Errorf("message-id %q: %w", sel.MessageID, ErrNoMatch)
	}

	set := imapv2.UIDSetNum(uids...)
	return set, nil
}

// SearchUIDs runs a UID SEARCH with the given criteria and returns the
// matching UIDs in server order.
func (s *Session) SearchUIDs(criteria *imapv2.SearchCriteria) ([]imapv2.UID, error) {
	if err := s.requireSelected(); err != nil {
		return nil, err
	}
	if criteria == nil {
		criteria = &imapv2.SearchCriteria{}
	}

	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}
	return data.AllUIDs(), nil
}

// ParseUIDSet parses a textual UID set such as "7", "1,4", or "2:9".
func ParseUIDSet(text string) (imapv2.UIDSet, error) {
	var set imapv2.UIDSet

	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, found := strings.Cut(part, ":")
		start, err := parseUID(lo)
		if err != nil {
			return nil, fmt.Errorf("uid set %q: %w", text, err)
		}

		if !found {
			set.AddNum(start)
			continue
		}

		stop, err := parseUID(hi)
		if err != nil {
			return nil, fmt.Errorf("uid set %q: %w", text, err)
		}
		if stop < start {
			start, stop = stop, start
		}
		set.AddRange(start, stop)
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("uid set %q is empty", text)
	}
	return set, nil
}

func parseUID(text string) (imapv2.UID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(text), 10, 32)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid uid %q", text)
	}
	return imapv2.UID(v), nil
}

// ParseFlags maps user-facing flag names to IMAP flags. Well-known names
// are accepted with or without the leading backslash; anything else is
// treated as a custom keyword.
func ParseFlags(names []string) ([]imapv2.Flag, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one flag is required")
	}

	flags := make([]imapv2.Flag, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		switch strings.ToLower(strings.TrimPrefix(name, `\`)) {
		case "seen":
			flags = append(flags, imapv2.FlagSeen)
		case "answered":
			flags = append(flags, imapv2.FlagAnswered)
		case "flagged":
			flags = append(flags, imapv2.FlagFlagged)
		case "deleted":
			flags = append(flags, imapv2.FlagDeleted)
		case "draft":
			flags = append(flags, imapv2.FlagDraft)
		default:
			if strings.HasPrefix(name, `\`) {
				return nil, fmt.Errorf("unknown system flag %q", name)
			}
			flags = append(flags, imapv2.Flag(name))
		}
	}

	if len(flags) == 0 {
		return nil, fmt.Errorf("at least one flag is required")
	}
	return flags, nil
}
