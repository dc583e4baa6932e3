package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fedforumdev/fedforum/server/fetch"
	"github.com/fedforumdev/fedforum/server/storage"
)

const testHost = "forum.example"

// testInbox wires a full receive path over an in-memory database:
// real storage, real fetcher, real pipeline. Signature checking is off
// so activities can be injected as plain JSON.
type testInbox struct {
	store    storage.Database
	fetcher  *fetch.Fetcher
	pipeline *OutputPipeline
	outbox   *ActivityOutbox
	inbox    *ActivityInbox
}

func newTestInbox(t *testing.T) *testInbox {
	t.Helper()
	store := storage.NewDatabase(":memory:")
	require.NoError(t, store.Open())
	t.Cleanup(store.Close)

	fetcher := fetch.NewFetcher(store)
	pipeline := NewPipeline()
	outbox := &ActivityOutbox{
		host:         testHost,
		store:        store,
		pipeline:     pipeline,
		sendUnsigned: true,
	}
	return &testInbox{
		store:    store,
		fetcher:  fetcher,
		pipeline: pipeline,
		outbox:   outbox,
		inbox: &ActivityInbox{
			store:          store,
			fetcher:        fetcher,
			outbox:         outbox,
			acceptUnsigned: true,
		},
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// mockOutboxStore stands in for storage during fan-out expansion tests.
type mockOutboxStore struct {
	mock.Mock
}

func (m *mockOutboxStore) FindPerson(iri string) (*storage.Person, error) {
	args := m.Called(iri)
	person, _ := args.Get(0).(*storage.Person)
	return person, args.Error(1)
}

func (m *mockOutboxStore) ListInstances() ([]storage.Instance, error) {
	args := m.Called()
	instances, _ := args.Get(0).([]storage.Instance)
	return instances, args.Error(1)
}

func (m *mockOutboxStore) ListFollowers(communityIRI string) ([]storage.Person, error) {
	args := m.Called(communityIRI)
	followers, _ := args.Get(0).([]storage.Person)
	return followers, args.Error(1)
}
