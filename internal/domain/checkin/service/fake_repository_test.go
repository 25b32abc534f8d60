package service

import (
	"context"
	"fitclub/internal/domain/checkin/model"
	"fitclub/internal/domain/checkin/repository"
	membershipModel "fitclub/internal/domain/membership/model"
	membershipRepo "fitclub/internal/domain/membership/repository"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryState 内存版数据，整体加一把锁模拟行锁串行化。
// 事务之间完全串行，所以基于它的并发用例只验证服务层逻辑，
// 条件更新的 SQL 和加锁顺序由 lock_order_test.go 与仓库层的 sqlmock 用例覆盖，
// 真实数据库上的竞争见 ledger_integration_test.go（integration 标签）。
type memoryState struct {
	mu          sync.Mutex
	tokens      map[string]model.CheckInToken
	memberships map[string]membershipModel.Membership
	visits      []model.Visit
	createErr   error
}

// fakeRepository 内存实现的 CheckInRepository，事务失败时整体回滚
type fakeRepository struct {
	state *memoryState
	inTx  bool
}

func newFakeRepository(memberships ...*membershipModel.Membership) *fakeRepository {
	state := &memoryState{
		tokens:      make(map[string]model.CheckInToken),
		memberships: make(map[string]membershipModel.Membership),
	}
	for _, m := range memberships {
		state.memberships[m.ID] = *m
	}
	return &fakeRepository{state: state}
}

func (r *fakeRepository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.state.mu.Lock()
	return r.state.mu.Unlock
}

func (r *fakeRepository) Transaction(ctx context.Context, fn func(tx repository.CheckInRepository) error) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	tokens := make(map[string]model.CheckInToken, len(r.state.tokens))
	for k, v := range r.state.tokens {
		tokens[k] = v
	}
	memberships := make(map[string]membershipModel.Membership, len(r.state.memberships))
	for k, v := range r.state.memberships {
		memberships[k] = v
	}
	visits := append([]model.Visit(nil), r.state.visits...)

	if err := fn(&fakeRepository{state: r.state, inTx: true}); err != nil {
		r.state.tokens = tokens
		r.state.memberships = memberships
		r.state.visits = visits
		return err
	}
	return nil
}

func (r *fakeRepository) CreateToken(ctx context.Context, token *model.CheckInToken) error {
	defer r.lock()()
	if r.state.createErr != nil {
		err := r.state.createErr
		r.state.createErr = nil
		return err
	}
	if _, ok := r.state.tokens[token.Value]; ok {
		return repository.ErrTokenCollision
	}
	r.state.tokens[token.Value] = *token
	return nil
}

func (r *fakeRepository) GetToken(ctx context.Context, value string) (*model.CheckInToken, error) {
	defer r.lock()()
	t, ok := r.state.tokens[value]
	if !ok {
		return nil, repository.ErrTokenNotFound
	}
	return &t, nil
}

func (r *fakeRepository) GetTokenForUpdate(ctx context.Context, value string) (*model.CheckInToken, error) {
	return r.GetToken(ctx, value)
}

func (r *fakeRepository) FindLiveToken(ctx context.Context, membershipID string, now time.Time) (*model.CheckInToken, error) {
	defer r.lock()()
	var live *model.CheckInToken
	for _, t := range r.state.tokens {
		if t.MembershipID != membershipID || !t.Live(now) {
			continue
		}
		if live == nil || t.ExpiresAt.After(live.ExpiresAt) {
			t := t
			live = &t
		}
	}
	return live, nil
}

func (r *fakeRepository) RevokeLiveTokens(ctx context.Context, membershipID string, now time.Time) (int64, error) {
	defer r.lock()()
	var n int64
	for k, t := range r.state.tokens {
		if t.MembershipID == membershipID && t.ConsumedAt == nil && t.RevokedAt == nil {
			revoked := now
			t.RevokedAt = &revoked
			r.state.tokens[k] = t
			n++
		}
	}
	return n, nil
}

func (r *fakeRepository) MarkTokenConsumed(ctx context.Context, value string, now time.Time) error {
	defer r.lock()()
	t, ok := r.state.tokens[value]
	if !ok || !t.Live(now) {
		return repository.ErrTokenNotConsumable
	}
	consumed := now
	t.ConsumedAt = &consumed
	r.state.tokens[value] = t
	return nil
}

func (r *fakeRepository) DeleteStaleTokens(ctx context.Context, before time.Time) (int64, error) {
	defer r.lock()()
	var n int64
	for k, t := range r.state.tokens {
		if t.ConsumedAt != nil {
			continue
		}
		if t.ExpiresAt.Before(before) || (t.RevokedAt != nil && t.RevokedAt.Before(before)) {
			delete(r.state.tokens, k)
			n++
		}
	}
	return n, nil
}

func (r *fakeRepository) GetMembership(ctx context.Context, id string) (*membershipModel.Membership, error) {
	defer r.lock()()
	m, ok := r.state.memberships[id]
	if !ok {
		return nil, membershipRepo.ErrMembershipNotFound
	}
	return &m, nil
}

func (r *fakeRepository) GetMembershipForUpdate(ctx context.Context, id string) (*membershipModel.Membership, error) {
	return r.GetMembership(ctx, id)
}

func (r *fakeRepository) ListMembershipsForUpdate(ctx context.Context, userID string) ([]membershipModel.Membership, error) {
	defer r.lock()()
	var list []membershipModel.Membership
	for _, m := range r.state.memberships {
		if m.UserID == userID {
			list = append(list, m)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].EndDate.Before(list[j].EndDate) })
	return list, nil
}

func (r *fakeRepository) IncrementUsedVisits(ctx context.Context, membershipID string, now time.Time) error {
	defer r.lock()()
	m, ok := r.state.memberships[membershipID]
	if !ok || m.Status != membershipModel.StatusActive {
		return repository.ErrQuotaGuard
	}
	if m.MaxVisits != nil && m.UsedVisits >= *m.MaxVisits {
		return repository.ErrQuotaGuard
	}
	m.UsedVisits++
	m.UpdatedAt = now
	r.state.memberships[membershipID] = m
	return nil
}

func (r *fakeRepository) CreateVisit(ctx context.Context, visit *model.Visit) error {
	defer r.lock()()
	if visit.ID == "" {
		visit.ID = uuid.New().String()
	}
	r.state.visits = append(r.state.visits, *visit)
	return nil
}

func (r *fakeRepository) ListVisitsByUser(ctx context.Context, userID string, offset, limit int) ([]model.Visit, int64, error) {
	return r.listVisits(func(v model.Visit) bool { return v.UserID == userID }, offset, limit)
}

func (r *fakeRepository) ListVisitsByMembership(ctx context.Context, membershipID string, offset, limit int) ([]model.Visit, int64, error) {
	return r.listVisits(func(v model.Visit) bool { return v.MembershipID == membershipID }, offset, limit)
}

func (r *fakeRepository) listVisits(match func(model.Visit) bool, offset, limit int) ([]model.Visit, int64, error) {
	defer r.lock()()
	var all []model.Visit
	for _, v := range r.state.visits {
		if match(v) {
			all = append(all, v)
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// 测试辅助

func (r *fakeRepository) membership(id string) membershipModel.Membership {
	defer r.lock()()
	return r.state.memberships[id]
}

func (r *fakeRepository) setStatus(id string, status membershipModel.Status) {
	defer r.lock()()
	m := r.state.memberships[id]
	m.Status = status
	r.state.memberships[id] = m
}

func (r *fakeRepository) visitCount() int {
	defer r.lock()()
	return len(r.state.visits)
}

func (r *fakeRepository) liveTokens(membershipID string, now time.Time) int {
	defer r.lock()()
	n := 0
	for _, t := range r.state.tokens {
		if t.MembershipID == membershipID && t.Live(now) {
			n++
		}
	}
	return n
}
