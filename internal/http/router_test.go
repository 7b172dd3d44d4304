package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"realtime-voting/internal/domain/poll"
	"realtime-voting/internal/domain/vote"
	"realtime-voting/internal/platform/session"
	"realtime-voting/internal/pubsub"
	"realtime-voting/internal/worker"
)

type testPollRepo struct {
	mu    sync.Mutex
	polls map[string]*poll.Poll
	opts  map[string][]poll.Option
}

func newTestPollRepo() *testPollRepo {
	return &testPollRepo{
		polls: make(map[string]*poll.Poll),
		opts:  make(map[string][]poll.Option),
	}
}

func (r *testPollRepo) Create(ctx context.Context, p *poll.Poll, options []poll.Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	copyPoll := *p
	r.polls[p.ID] = &copyPoll

	cloned := make([]poll.Option, len(options))
	for i := range options {
		options[i].CreatedAt = now
		cloned[i] = options[i]
	}
	r.opts[p.ID] = cloned
	return nil
}

func (r *testPollRepo) GetByID(ctx context.Context, id string) (*poll.Poll, []poll.Option, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[id]
	if !ok {
		return nil, nil, poll.ErrPollNotFound
	}
	copyPoll := *p
	opts := make([]poll.Option, len(r.opts[id]))
	copy(opts, r.opts[id])
	return &copyPoll, opts, nil
}

func (r *testPollRepo) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.polls[id]
	return ok, nil
}

func (r *testPollRepo) OptionBelongsToPoll(ctx context.Context, pollID, optionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.opts[pollID] {
		if o.ID == optionID {
			return true, nil
		}
	}
	return false, nil
}

type testLedger struct {
	mu       sync.Mutex
	votes    map[string]*vote.Vote
	pollRepo *testPollRepo
}

func newTestLedger(pollRepo *testPollRepo) *testLedger {
	return &testLedger{
		votes:    make(map[string]*vote.Vote),
		pollRepo: pollRepo,
	}
}

func ledgerKey(pollID, sessionID string) string {
	return pollID + "|" + sessionID
}

func (l *testLedger) Find(ctx context.Context, pollID, sessionID string) (*vote.Vote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, v := range l.votes {
		if v.PollID == pollID && v.SessionID == sessionID {
			copyVote := *v
			return &copyVote, nil
		}
	}
	return nil, vote.ErrVoteNotFound
}

func (l *testLedger) Insert(ctx context.Context, v *vote.Vote) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.votes {
		if ledgerKey(existing.PollID, existing.SessionID) == ledgerKey(v.PollID, v.SessionID) {
			return vote.ErrDuplicateKey
		}
	}
	v.CreatedAt = time.Now()
	copyVote := *v
	l.votes[v.ID] = &copyVote
	return nil
}

func (l *testLedger) Delete(ctx context.Context, voteID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.votes[voteID]; !ok {
		return vote.ErrVoteNotFound
	}
	delete(l.votes, voteID)
	return nil
}

func (l *testLedger) Tally(ctx context.Context, pollID string) (map[string]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[string]int64)
	for _, o := range l.pollRepo.opts[pollID] {
		counts[o.ID] = 0
	}
	for _, v := range l.votes {
		if v.PollID == pollID {
			counts[v.OptionID]++
		}
	}
	return counts, nil
}

func setupServer(t *testing.T) (*httptest.Server, *pubsub.Bus, func()) {
	t.Helper()
	pollRepo := newTestPollRepo()
	ledger := newTestLedger(pollRepo)
	bus := pubsub.NewBus()

	pollSvc := poll.NewService(pollRepo)
	voteSvc := vote.NewService(ledger, pollRepo, bus)
	sessions := session.NewManager("test-secret", "test", time.Hour)
	voteCh := make(chan worker.VoteEvent, 100)

	server := httptest.NewServer(NewRouter(pollSvc, voteSvc, sessions, bus, voteCh, nil))
	cleanup := func() {
		server.Close()
		close(voteCh)
	}
	return server, bus, cleanup
}

func newClientWithJar(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func createPollViaAPI(t *testing.T, client *http.Client, serverURL, title string, options []string) (string, map[string]string) {
	t.Helper()
	body, _ := json.Marshal(createPollRequest{Title: title, Options: options})
	resp, err := client.Post(serverURL+"/api/v1/polls", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create poll request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 creating poll, got %d", resp.StatusCode)
	}
	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode create poll: %v", err)
	}
	pollID := payload["poll_id"]
	if pollID == "" {
		t.Fatalf("poll id missing in response")
	}

	getResp, err := client.Get(serverURL + "/api/v1/polls/" + pollID)
	if err != nil {
		t.Fatalf("get poll: %v", err)
	}
	defer getResp.Body.Close()
	var pr pollResponse
	if err := json.NewDecoder(getResp.Body).Decode(&pr); err != nil {
		t.Fatalf("decode poll: %v", err)
	}

	optionIDs := make(map[string]string, len(pr.Options))
	for _, o := range pr.Options {
		optionIDs[o.Title] = o.ID
	}
	return pollID, optionIDs
}

func castVote(t *testing.T, client *http.Client, serverURL, pollID, optionID string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(castVoteRequest{OptionID: optionID})
	resp, err := client.Post(serverURL+"/api/v1/polls/"+pollID+"/votes", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("vote request: %v", err)
	}
	return resp
}

func fetchTally(t *testing.T, client *http.Client, serverURL, pollID string) map[string]int64 {
	t.Helper()
	resp, err := client.Get(serverURL + "/api/v1/polls/" + pollID + "/tally")
	if err != nil {
		t.Fatalf("tally request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 tally, got %d", resp.StatusCode)
	}
	var snap vote.TallySnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode tally: %v", err)
	}
	return snap.Counts
}

func decodeError(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return payload
}

func TestVoteLifecycleOverHTTP(t *testing.T) {
	server, _, cleanup := setupServer(t)
	defer cleanup()

	client := newClientWithJar(t)
	pollID, optionIDs := createPollViaAPI(t, client, server.URL, "Favorite color", []string{"Red", "Blue"})

	// First cast issues the session cookie and lands as accepted.
	resp := castVote(t, client, server.URL, pollID, optionIDs["Red"])
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 on first cast, got %d", resp.StatusCode)
	}
	var cast castVoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&cast); err != nil {
		t.Fatalf("decode cast: %v", err)
	}
	resp.Body.Close()
	if cast.Outcome != "accepted" {
		t.Fatalf("expected accepted outcome, got %q", cast.Outcome)
	}

	if got := fetchTally(t, client, server.URL, pollID); got[optionIDs["Red"]] != 1 || got[optionIDs["Blue"]] != 0 {
		t.Fatalf("expected {Red:1 Blue:0}, got %v", got)
	}

	// Same session, different option: a change.
	resp = castVote(t, client, server.URL, pollID, optionIDs["Blue"])
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 on change, got %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&cast); err != nil {
		t.Fatalf("decode cast: %v", err)
	}
	resp.Body.Close()
	if cast.Outcome != "changed" || cast.PreviousOptionID != optionIDs["Red"] {
		t.Fatalf("expected change from Red, got %+v", cast)
	}

	if got := fetchTally(t, client, server.URL, pollID); got[optionIDs["Red"]] != 0 || got[optionIDs["Blue"]] != 1 {
		t.Fatalf("expected {Red:0 Blue:1}, got %v", got)
	}

	// Same option again: rejected duplicate, tally unchanged.
	resp = castVote(t, client, server.URL, pollID, optionIDs["Blue"])
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", resp.StatusCode)
	}
	payload := decodeError(t, resp)
	resp.Body.Close()
	if payload["error"] != "already_voted" {
		t.Fatalf("expected already_voted, got %v", payload)
	}

	if got := fetchTally(t, client, server.URL, pollID); got[optionIDs["Blue"]] != 1 {
		t.Fatalf("tally changed after duplicate: %v", got)
	}
}

func TestDistinctSessionsCountSeparately(t *testing.T) {
	server, _, cleanup := setupServer(t)
	defer cleanup()

	first := newClientWithJar(t)
	pollID, optionIDs := createPollViaAPI(t, first, server.URL, "Lunch", []string{"Pizza", "Sushi"})

	resp := castVote(t, first, server.URL, pollID, optionIDs["Pizza"])
	resp.Body.Close()

	second := newClientWithJar(t)
	resp = castVote(t, second, server.URL, pollID, optionIDs["Pizza"])
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for second session, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	if got := fetchTally(t, first, server.URL, pollID); got[optionIDs["Pizza"]] != 2 {
		t.Fatalf("expected 2 votes for Pizza, got %v", got)
	}
}

func TestVoteValidationOverHTTP(t *testing.T) {
	server, _, cleanup := setupServer(t)
	defer cleanup()

	client := newClientWithJar(t)
	pollID, _ := createPollViaAPI(t, client, server.URL, "Lunch", []string{"Pizza", "Sushi"})

	resp := castVote(t, client, server.URL, "missing-poll", "some-option")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing poll, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = castVote(t, client, server.URL, pollID, "foreign-option")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for foreign option, got %d", resp.StatusCode)
	}
	payload := decodeError(t, resp)
	resp.Body.Close()
	if payload["error"] != "invalid_option" {
		t.Fatalf("expected invalid_option, got %v", payload)
	}

	resp = castVote(t, client, server.URL, pollID, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty option, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestResultStreamDeliversSnapshots(t *testing.T) {
	server, bus, cleanup := setupServer(t)
	defer cleanup()

	client := newClientWithJar(t)
	pollID, optionIDs := createPollViaAPI(t, client, server.URL, "Favorite color", []string{"Red", "Blue"})

	// A vote cast before the stream opens must not be replayed.
	resp := castVote(t, client, server.URL, pollID, optionIDs["Red"])
	resp.Body.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/polls/" + pollID + "/results"
	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	if wsResp != nil {
		wsResp.Body.Close()
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if bus.Subscribers(pollID) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if bus.Subscribers(pollID) != 1 {
		t.Fatalf("expected stream subscription to register")
	}

	resp = castVote(t, client, server.URL, pollID, optionIDs["Blue"])
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snap vote.TallySnapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.PollID != pollID {
		t.Fatalf("expected snapshot for %q, got %q", pollID, snap.PollID)
	}
	if snap.Counts[optionIDs["Red"]] != 0 || snap.Counts[optionIDs["Blue"]] != 1 {
		t.Fatalf("expected {Red:0 Blue:1}, got %v", snap.Counts)
	}
}

func TestResultStreamRejectsUnknownPoll(t *testing.T) {
	server, _, cleanup := setupServer(t)
	defer cleanup()

	resp, err := http.Get(server.URL + "/api/v1/polls/missing/results")
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown poll, got %d", resp.StatusCode)
	}
}

func TestStreamUnsubscribesOnClientClose(t *testing.T) {
	server, bus, cleanup := setupServer(t)
	defer cleanup()

	client := newClientWithJar(t)
	pollID, _ := createPollViaAPI(t, client, server.URL, "Lunch", []string{"Pizza", "Sushi"})

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/polls/" + pollID + "/results"
	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	if wsResp != nil {
		wsResp.Body.Close()
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if bus.Subscribers(pollID) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if bus.Subscribers(pollID) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected subscription released after client close")
}
