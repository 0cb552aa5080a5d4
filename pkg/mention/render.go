package mention

import (
	"sort"
	"strings"
)

type SegmentKind string

const (
	SegmentText    SegmentKind = "text"
	SegmentMention SegmentKind = "mention"
)

// Segment is either plain text or a mention. For mentions Text holds the
// display form ("@jane") and Username the bare name.
type Segment struct {
	Kind     SegmentKind `json:"type"`
	Text     string      `json:"text"`
	Username string      `json:"username,omitempty"`
}

func Text(s string) Segment {
	return Segment{Kind: SegmentText, Text: s}
}

func MentionOf(username string) Segment {
	return Segment{Kind: SegmentMention, Text: "@" + username, Username: username}
}

// Render splits text into plain and mention segments. Empty text yields nil
// so callers can skip rendering entirely.
func Render(text string) []Segment {
	if text == "" {
		return nil
	}

	mentions := Extract(text)
	if len(mentions) == 0 {
		return []Segment{Text(text)}
	}
	sort.Slice(mentions, func(i, j int) bool {
		return mentions[i].Start < mentions[j].Start
	})

	segments := make([]Segment, 0, 2*len(mentions)+1)
	last := 0
	for _, m := range mentions {
		if m.Start > last {
			segments = append(segments, Text(text[last:m.Start]))
		}
		segments = append(segments, MentionOf(m.Username))
		last = m.End
	}
	if last < len(text) {
		segments = append(segments, Text(text[last:]))
	}
	return segments
}

// Join concatenates segment texts back into the source string.
func Join(segments []Segment) string {
	var sb strings.Builder
	for _, s := range segments {
		sb.WriteString(s.Text)
	}
	return sb.String()
}
