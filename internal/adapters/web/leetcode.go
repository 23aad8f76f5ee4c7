package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultLeetCodeEndpoint = "https://leetcode.com/graphql/"

const leetcodeProfileQuery = `query leetcodeProfileInfo($username: String!) {
  matchedUser(username: $username) {
    profile {
      ranking
      reputation
    }
    submitStatsGlobal {
      acSubmissionNum {
        difficulty
        count
      }
    }
  }
}`

// LeetCodeStrategy reads public profile statistics from the LeetCode GraphQL
// API, since profile pages are rendered client side and reject scrapers.
type LeetCodeStrategy struct {
	client   *http.Client
	endpoint string
}

// NewLeetCodeStrategy creates a LeetCode strategy. An empty endpoint uses the public API.
func NewLeetCodeStrategy(client *http.Client, endpoint string) *LeetCodeStrategy {
	if endpoint == "" {
		endpoint = defaultLeetCodeEndpoint
	}
	return &LeetCodeStrategy{client: client, endpoint: endpoint}
}

func isLeetCodeProfile(u *url.URL) bool {
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return host == "leetcode.com" && strings.HasPrefix(u.Path, "/u/")
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

type leetcodeResponse struct {
	Data struct {
		MatchedUser *struct {
			Profile struct {
				Ranking    int `json:"ranking"`
				Reputation int `json:"reputation"`
			} `json:"profile"`
			SubmitStatsGlobal struct {
				AcSubmissionNum []struct {
					Difficulty string `json:"difficulty"`
					Count      int    `json:"count"`
				} `json:"acSubmissionNum"`
			} `json:"submitStatsGlobal"`
		} `json:"matchedUser"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Fetch queries the profile named in u and renders its statistics as a report.
func (s *LeetCodeStrategy) Fetch(ctx context.Context, u *url.URL) (string, error) {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	username := segments[len(segments)-1]
	if len(segments) < 2 || username == "" {
		return "", errors.New("no username in profile URL")
	}

	payload, err := json.Marshal(graphQLRequest{
		Query:         leetcodeProfileQuery,
		Variables:     map[string]any{"username": username},
		OperationName: "leetcodeProfileInfo",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://leetcode.com/u/"+username+"/")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("GraphQL HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result leetcodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Errors) > 0 {
		return "", errors.New(result.Errors[0].Message)
	}
	user := result.Data.MatchedUser
	if user == nil {
		return "", fmt.Errorf("user %q not found", username)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "LeetCode Profile Data for %s:\n", username)
	fmt.Fprintf(&sb, "Ranking: %d\n", user.Profile.Ranking)
	fmt.Fprintf(&sb, "Reputation: %d\n", user.Profile.Reputation)
	for _, stat := range user.SubmitStatsGlobal.AcSubmissionNum {
		fmt.Fprintf(&sb, "%s Problems Solved: %d\n", stat.Difficulty, stat.Count)
	}
	return sb.String(), nil
}
