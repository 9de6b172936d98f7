package feed

import (
	"encoding/json"
	"strings"

	"github.com/iov-one/weave/errors"
	"github.com/tendermint/tendermint/libs/log"
)

// Candidate is a single feed comment reduced to the fields the faucet
// cares about. Address and Proof are carried verbatim as written by the
// author and are not yet verified.
type Candidate struct {
	ID        uint64
	Login     string
	CreatedAt string
	Address   string
	Proof     string
}

// comment mirrors the relevant subset of a feed entry.
type comment struct {
	ID        uint64 `json:"id"`
	CreatedAt string `json:"created_at"`
	Body      string `json:"body"`
	User      struct {
		Login string `json:"login"`
	} `json:"user"`
}

// Parse extracts claim candidates from a raw feed payload. The payload
// is a JSON array of comments. Each comment body is scanned line by
// line for "key: value" pairs naming an address and a homework proof.
// Every comment yields a candidate, even one without claim lines; the
// empty address is rejected and logged during proof verification.
// Malformed body lines are logged and skipped without affecting the
// rest of the comment.
func Parse(raw []byte, logger log.Logger) ([]*Candidate, error) {
	var comments []comment
	if err := json.Unmarshal(raw, &comments); err != nil {
		return nil, errors.Wrap(ErrFormat, err.Error())
	}

	cands := make([]*Candidate, 0, len(comments))
	for _, c := range comments {
		cand := &Candidate{
			ID:        c.ID,
			Login:     c.User.Login,
			CreatedAt: c.CreatedAt,
		}
		for _, line := range strings.Split(c.Body, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			chunks := strings.Split(line, ":")
			if len(chunks) != 2 {
				logger.Info("skipping malformed feed line",
					"comment", c.ID, "line", line)
				continue
			}
			key := strings.ToLower(strings.TrimSpace(chunks[0]))
			value := strings.TrimSpace(chunks[1])
			switch {
			case strings.Contains(key, "address"):
				cand.Address = value
			case strings.Contains(key, "homework"):
				cand.Proof = value
			}
		}
		cands = append(cands, cand)
	}
	return cands, nil
}
