package mention

import "strings"

// MaxSuggestions caps the dropdown length.
const MaxSuggestions = 5

// Candidate is a user that can be suggested for a mention.
type Candidate struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}

// DefaultCandidates is used when no user directory is available.
var DefaultCandidates = []Candidate{
	{ID: "1", Username: "john_doe", DisplayName: "John Doe"},
	{ID: "2", Username: "jane_smith", DisplayName: "Jane Smith"},
	{ID: "3", Username: "alex_wilson", DisplayName: "Alex Wilson"},
	{ID: "4", Username: "sarah_johnson", DisplayName: "Sarah Johnson"},
	{ID: "5", Username: "mike_brown", DisplayName: "Mike Brown"},
	{ID: "6", Username: "emily_davis", DisplayName: "Emily Davis"},
	{ID: "7", Username: "david_miller", DisplayName: "David Miller"},
	{ID: "8", Username: "lisa_garcia", DisplayName: "Lisa Garcia"},
}

// Match filters candidates whose username or display name contains query,
// case-insensitively, keeping source order and at most MaxSuggestions entries.
// An empty query returns the first MaxSuggestions candidates.
func Match(query string, candidates []Candidate) []Candidate {
	result := make([]Candidate, 0, MaxSuggestions)
	q := strings.ToLower(query)

	for _, c := range candidates {
		if len(result) == MaxSuggestions {
			break
		}
		if q == "" ||
			strings.Contains(strings.ToLower(c.Username), q) ||
			strings.Contains(strings.ToLower(c.DisplayName), q) {
			result = append(result, c)
		}
	}
	return result
}
