package feed

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"unicode/utf8"

	"github.com/iov-one/weave/errors"
)

// defaultUserAgent is sent when the Fetcher has none configured. Some
// feed hosts reject requests without one.
const defaultUserAgent = "weave-faucet"

// Fetcher downloads the raw comment feed.
type Fetcher struct {
	Client    *http.Client
	URL       string
	UserAgent string
}

// Fetch downloads the feed body. The payload must be valid UTF-8.
// Escaped windows line endings are normalized so that the parser only
// has to deal with a single line separator.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	ua := f.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept-Charset", "UTF-8")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(errors.ErrNetwork, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrNetwork, "unexpected status %d", resp.StatusCode)
	}
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrNetwork, err.Error())
	}
	if !utf8.Valid(body) {
		return nil, errors.Wrap(ErrFormat, "response is not valid UTF-8")
	}
	body = bytes.Replace(body, []byte(`\r\n`), []byte(`\n`), -1)
	return body, nil
}
