package feed

import (
	"bytes"
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iov-one/weave-faucet/x/faucet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tendermint/libs/db"
	"github.com/tendermint/tendermint/libs/log"
)

type recordingSubmitter struct {
	calls [][]*faucet.FaucetRecord
	err   error
}

func (s *recordingSubmitter) Disburse(ctx context.Context, recs []*faucet.FaucetRecord) error {
	s.calls = append(s.calls, recs)
	return s.err
}

type staticState struct {
	state *State
	err   error
}

func (s *staticState) State(ctx context.Context) (*State, error) {
	return s.state, s.err
}

// feedBody returns a single comment feed with a valid proof of
// knowledge.
func feedBody() string {
	payload := bytes.Repeat([]byte{7}, 32)
	return `[{
		"id": 9,
		"created_at": "2019-04-01T12:00:00Z",
		"user": {"login": "alice"},
		"body": "address: ` + encodeAddress(payload) + `\nhomework: ` + hex.EncodeToString(payload) + `"
	}]`
}

func newTestPoller(url string, submit Submitter, chain StateLoader) *Poller {
	return &Poller{
		Fetcher:  &Fetcher{URL: url},
		Chain:    chain,
		Submit:   submit,
		DB:       dbm.NewMemDB(),
		Interval: time.Hour,
		Logger:   log.NewNopLogger(),
	}
}

func TestPollSubmitsVerifiedRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedBody()))
	}))
	defer srv.Close()

	submit := &recordingSubmitter{}
	poller := newTestPoller(srv.URL, submit, &staticState{state: testState()})

	require.NoError(t, poller.Poll(context.Background()))
	require.Len(t, submit.calls, 1)
	require.Len(t, submit.calls[0], 1)
	assert.Equal(t, uint64(9), submit.calls[0][0].ID)
}

func TestPollThrottlesRepeatedRuns(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(feedBody()))
	}))
	defer srv.Close()

	submit := &recordingSubmitter{}
	poller := newTestPoller(srv.URL, submit, &staticState{state: testState()})

	require.NoError(t, poller.Poll(context.Background()))
	// Within the interval a second cycle must not touch the feed.
	require.NoError(t, poller.Poll(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Len(t, submit.calls, 1)

	// Move the clock past the interval and the feed is fetched again.
	poller.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.NoError(t, poller.Poll(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestPollMarksAttemptBeforeFetching(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	submit := &recordingSubmitter{}
	poller := newTestPoller(srv.URL, submit, &staticState{state: testState()})

	require.Error(t, poller.Poll(context.Background()))
	// The attempt timestamp was written even though the fetch failed,
	// so the next cycle within the interval stays silent.
	require.NoError(t, poller.Poll(context.Background()))
	assert.Len(t, submit.calls, 0)
}

func TestPollSkipsSubmissionWhenNothingPasses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 1, "created_at": "2019-04-01T10:00:00Z", "user": {"login": "x"}, "body": "no claims here"}]`))
	}))
	defer srv.Close()

	submit := &recordingSubmitter{}
	poller := newTestPoller(srv.URL, submit, &staticState{state: testState()})

	require.NoError(t, poller.Poll(context.Background()))
	assert.Len(t, submit.calls, 0)
}
