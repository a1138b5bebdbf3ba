package eventsourced_test

import (
	"context"
	"errors"
	"sync"

	"eventcore/domain/eventsourced"
	"eventcore/eventing"
	"eventcore/eventing/serializer"
	"eventcore/eventing/store"
	"eventcore/eventing/store/snapshot"
)

type accountOpened struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
}

type moneyDeposited struct {
	Amount int `json:"amount"`
}

var errOverdraft = errors.New("insufficient funds")

type moneyWithdrawn struct {
	Amount int `json:"amount"`
}

type bankAccount struct {
	eventsourced.AggregateRoot

	ID      string `json:"id"`
	Owner   string `json:"owner"`
	Balance int    `json:"balance"`
	History []int  `json:"history"`
}

func newBankAccount() *bankAccount { return &bankAccount{} }

func (a *bankAccount) AggregateRootID() any { return a.ID }

func (a *bankAccount) ApplyEvent(payload any) error {
	switch e := payload.(type) {
	case *accountOpened:
		a.ID, a.Owner = e.ID, e.Owner
	case *moneyDeposited:
		a.Balance += e.Amount
		a.History = append(a.History, e.Amount)
	case *moneyWithdrawn:
		if e.Amount > a.Balance {
			return errOverdraft
		}
		a.Balance -= e.Amount
		a.History = append(a.History, -e.Amount)
	default:
		return errors.New("unknown event")
	}
	return nil
}

func (a *bankAccount) Open(id, owner string) error {
	return eventsourced.RecordThat(a, &accountOpened{ID: id, Owner: owner})
}

func (a *bankAccount) Deposit(amount int) error {
	return eventsourced.RecordThat(a, &moneyDeposited{Amount: amount})
}

func (a *bankAccount) Withdraw(amount int) error {
	return eventsourced.RecordThat(a, &moneyWithdrawn{Amount: amount})
}

func newRegistry() *serializer.Registry {
	r := serializer.NewRegistry()
	r.MustRegister("bank.account", (*bankAccount)(nil))
	r.MustRegister("bank.account_opened", (*accountOpened)(nil))
	r.MustRegister("bank.money_deposited", (*moneyDeposited)(nil))
	r.MustRegister("bank.money_withdrawn", (*moneyWithdrawn)(nil))
	return r
}

// spyStore 记录对事件存储的调用
type spyStore struct {
	inner store.IEventStore

	mu        sync.Mutex
	appends   int
	loads     int
	tails     []int64
	appendErr error
}

func newSpyStore() *spyStore { return &spyStore{inner: store.NewMemoryEventStore()} }

func (s *spyStore) Append(ctx context.Context, id any, stream eventing.DomainEventStream) error {
	s.mu.Lock()
	s.appends++
	err := s.appendErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.inner.Append(ctx, id, stream)
}

func (s *spyStore) Load(ctx context.Context, id any) (eventing.DomainEventStream, error) {
	s.mu.Lock()
	s.loads++
	s.mu.Unlock()
	return s.inner.Load(ctx, id)
}

func (s *spyStore) LoadFromPlayhead(ctx context.Context, id any, playhead int64) (eventing.DomainEventStream, error) {
	s.mu.Lock()
	s.tails = append(s.tails, playhead)
	s.mu.Unlock()
	return s.inner.LoadFromPlayhead(ctx, id, playhead)
}

func (s *spyStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends + s.loads + len(s.tails)
}

// spySnapshots 记录快照保存的 playhead
type spySnapshots struct {
	inner   snapshot.ISnapshotStore
	mu      sync.Mutex
	saved   []int64
	saveErr error
	loadErr error
}

func newSpySnapshots(ser serializer.ISerializer) *spySnapshots {
	return &spySnapshots{inner: snapshot.NewMemoryStore(ser)}
}

func (s *spySnapshots) Load(ctx context.Context, id any) (*snapshot.Snapshot, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.inner.Load(ctx, id)
}

func (s *spySnapshots) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	s.saved = append(s.saved, snap.Playhead)
	s.mu.Unlock()
	return s.inner.Save(ctx, snap)
}

func (s *spySnapshots) savedPlayheads() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.saved...)
}
