package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/llm"
	"github.com/Raj-Randive/chatdocs/internal/model"
	"github.com/Raj-Randive/chatdocs/internal/repository"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

type memFiles struct {
	mu    sync.Mutex
	files map[string]*model.File
	log   *[]string
}

func newMemFiles(log *[]string) *memFiles {
	return &memFiles{files: map[string]*model.File{}, log: log}
}

func (m *memFiles) add(f model.File) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.ID] = &f
}

func (m *memFiles) CreateIfAbsent(ctx context.Context, f *model.File) (*model.File, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.files {
		if existing.Key == f.Key {
			cp := *existing
			return &cp, false, nil
		}
	}
	cp := *f
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now()
	m.files[cp.ID] = &cp
	out := cp
	return &out, true, nil
}

func (m *memFiles) GetFile(ctx context.Context, fileID string) (*model.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memFiles) GetUserFile(ctx context.Context, fileID, userID string) (*model.File, error) {
	f, err := m.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.UserID != userID {
		return nil, fmt.Errorf("file %s: %w", fileID, repository.ErrNotFound)
	}
	return f, nil
}

func (m *memFiles) GetUserFileByKey(ctx context.Context, key, userID string) (*model.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files {
		if f.Key == key && f.UserID == userID {
			cp := *f
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memFiles) ListUserFiles(ctx context.Context, userID string) ([]model.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.File{}
	for _, f := range m.files {
		if f.UserID == userID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *memFiles) UpdateStatus(ctx context.Context, fileID string, status model.UploadStatus, upd repository.StatusDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return repository.ErrNotFound
	}
	if !f.UploadStatus.Terminal() {
		f.UploadStatus = status
	}
	return nil
}

func (m *memFiles) DeleteUserFile(ctx context.Context, fileID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok || f.UserID != userID {
		return repository.ErrNotFound
	}
	delete(m.files, fileID)
	if m.log != nil {
		*m.log = append(*m.log, "row")
	}
	return nil
}

type memMessages struct {
	mu   sync.Mutex
	msgs []model.Message
	tick time.Time
}

func newMemMessages() *memMessages {
	return &memMessages{tick: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memMessages) CreateMessage(ctx context.Context, fileID, userID, text string, isUserMessage bool) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tick = m.tick.Add(time.Second)
	msg := model.Message{ID: uuid.NewString(), Text: text, IsUserMessage: isUserMessage, UserID: userID, FileID: fileID, CreatedAt: m.tick}
	m.msgs = append(m.msgs, msg)
	return &msg, nil
}

// newestFirst returns the file's messages ordered by (created_at, id) descending.
func (m *memMessages) newestFirst(fileID string) []model.Message {
	var out []model.Message
	for _, msg := range m.msgs {
		if msg.FileID == fileID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *memMessages) ListRecent(ctx context.Context, fileID string, n int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.newestFirst(fileID)
	if len(all) > n {
		all = all[:n]
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

func (m *memMessages) ListPage(ctx context.Context, fileID, cursor string, limit int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.newestFirst(fileID)
	start := 0
	if cursor != "" {
		start = -1
		for i, msg := range all {
			if msg.ID == cursor {
				start = i
				break
			}
		}
		if start < 0 {
			return nil, repository.ErrNotFound
		}
	}
	all = all[start:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memMessages) all() []model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Message(nil), m.msgs...)
}

type memVectors struct {
	passages   []model.Passage
	searchedNS string
	searchedK  int
	deleted    []string
	log        *[]string
}

func (v *memVectors) ReplaceNamespace(ctx context.Context, namespace string, vecs []repository.PageVector) error {
	return nil
}

func (v *memVectors) Search(ctx context.Context, namespace string, query []float32, k int) ([]model.Passage, error) {
	v.searchedNS = namespace
	v.searchedK = k
	return v.passages, nil
}

func (v *memVectors) DeleteNamespace(ctx context.Context, namespace string) error {
	v.deleted = append(v.deleted, namespace)
	if v.log != nil {
		*v.log = append(*v.log, "vectors")
	}
	return nil
}

func (v *memVectors) CountNamespace(ctx context.Context, namespace string) (int, error) {
	return 0, nil
}

type memUsers struct {
	users     map[string]*model.User
	customers map[string]string
}

func newMemUsers(users ...*model.User) *memUsers {
	m := &memUsers{users: map[string]*model.User{}, customers: map[string]string{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) EnsureUser(ctx context.Context, id, email string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	u := &model.User{ID: id, Email: email}
	m.users[id] = u
	return u, nil
}

func (m *memUsers) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return m.users[id], nil
}

func (m *memUsers) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	for _, u := range m.users {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error {
	m.customers[userID] = customerID
	if u, ok := m.users[userID]; ok {
		u.StripeCustomerID = &customerID
	}
	return nil
}

type memUsage struct {
	used  map[string]int
	start time.Time
}

func (m *memUsage) ReserveUpload(ctx context.Context, userID string, start, end time.Time, limit int) error {
	if m.used == nil {
		m.used = map[string]int{}
	}
	m.start = start
	if limit > 0 && m.used[userID] >= limit {
		return repository.ErrUploadLimitExceeded
	}
	m.used[userID]++
	return nil
}

func (m *memUsage) CountUploads(ctx context.Context, userID string, start, end time.Time) (int, error) {
	return m.used[userID], nil
}

type subCall struct {
	op             string
	userID         string
	customerID     string
	subscriptionID string
	priceID        string
	periodEnd      time.Time
}

type memSubscriptions struct {
	calls    []subCall
	renewErr error
}

func (m *memSubscriptions) UpsertStripeSubscription(ctx context.Context, userID, customerID, subscriptionID, priceID string, periodEnd time.Time) error {
	m.calls = append(m.calls, subCall{"upsert", userID, customerID, subscriptionID, priceID, periodEnd})
	return nil
}

func (m *memSubscriptions) UpdatePeriodBySubscriptionID(ctx context.Context, subscriptionID, priceID string, periodEnd time.Time) error {
	m.calls = append(m.calls, subCall{op: "renew", subscriptionID: subscriptionID, priceID: priceID, periodEnd: periodEnd})
	return m.renewErr
}

func (m *memSubscriptions) ClearSubscription(ctx context.Context, subscriptionID string) error {
	m.calls = append(m.calls, subCall{op: "clear", subscriptionID: subscriptionID})
	return nil
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

type scriptedGenerator struct {
	chunks  []string
	failAt  int // index of the chunk that errors instead, -1 for none
	prompts []llm.Prompt
}

func (g *scriptedGenerator) Stream(ctx context.Context, p llm.Prompt) (llm.Stream, error) {
	g.prompts = append(g.prompts, p)
	return &scriptedStream{chunks: g.chunks, failAt: g.failAt}, nil
}

type scriptedStream struct {
	chunks []string
	failAt int
	pos    int
	closed bool
}

func (s *scriptedStream) Next() (string, error) {
	if s.pos == s.failAt {
		return "", errors.New("upstream reset")
	}
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type memStore struct {
	deleted []string
	log     *[]string
	getErr  error
}

func (m *memStore) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	return "https://bucket.example/" + key + "?put", nil
}

func (m *memStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	return "https://bucket.example/" + key + "?get", nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	if m.log != nil {
		*m.log = append(*m.log, "object")
	}
	return nil
}

type memEnqueuer struct {
	jobs []model.IngestionJob
	err  error
}

func (m *memEnqueuer) Enqueue(ctx context.Context, job model.IngestionJob) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

type fakeStripe struct {
	subs            map[string]*stripe.Subscription
	checkoutParams  *stripe.CheckoutSessionParams
	portalCustomer  string
	createdCustomer int
}

func (f *fakeStripe) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	f.createdCustomer++
	return "cus_new", nil
}

func (f *fakeStripe) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (string, error) {
	f.checkoutParams = params
	return "https://checkout.stripe.test/session", nil
}

func (f *fakeStripe) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	f.portalCustomer = customerID
	return "https://billing.stripe.test/portal", nil
}

func (f *fakeStripe) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	sub, ok := f.subs[subscriptionID]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	return sub, nil
}
