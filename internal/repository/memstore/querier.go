package memstore

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/repository"
)

var (
	_ repository.Store  = (*Store)(nil)
	_ repository.Seeder = (*Store)(nil)
)

func (s *Store) InTx(ctx context.Context, fn func(q repository.Querier) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&querier{s: s, tx: true}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// querier serves both transactional and standalone calls; standalone calls take
// the store lock per call.
type querier struct {
	s  *Store
	tx bool
}

func (q *querier) lock() func() {
	if q.tx {
		return func() {}
	}
	q.s.mu.Lock()
	return q.s.mu.Unlock
}

func (s *Store) standalone() *querier {
	return &querier{s: s}
}

// Accounts

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	return s.standalone().GetAccount(ctx, id)
}

func (q *querier) GetAccount(_ context.Context, id uuid.UUID) (domain.Account, error) {
	defer q.lock()()
	a, ok := q.s.st.accounts[id]
	if !ok {
		return domain.Account{}, repository.ErrNoRows
	}
	return a, nil
}

func (s *Store) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	return s.standalone().GetAccountForUpdate(ctx, id)
}

func (q *querier) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	return q.GetAccount(ctx, id)
}

func (s *Store) GetAccountByUser(ctx context.Context, tenantID, userID string) (domain.Account, error) {
	return s.standalone().GetAccountByUser(ctx, tenantID, userID)
}

func (q *querier) GetAccountByUser(_ context.Context, tenantID, userID string) (domain.Account, error) {
	defer q.lock()()
	for _, a := range q.s.st.accounts {
		if a.TenantID == tenantID && a.UserID == userID {
			return a, nil
		}
	}
	return domain.Account{}, repository.ErrNoRows
}

func (s *Store) LoyaltyNumberExists(ctx context.Context, number string) (bool, error) {
	return s.standalone().LoyaltyNumberExists(ctx, number)
}

func (q *querier) LoyaltyNumberExists(_ context.Context, number string) (bool, error) {
	defer q.lock()()
	for _, a := range q.s.st.accounts {
		if a.LoyaltyNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) InsertAccount(ctx context.Context, acc domain.Account) (bool, error) {
	return s.standalone().InsertAccount(ctx, acc)
}

func (q *querier) InsertAccount(_ context.Context, acc domain.Account) (bool, error) {
	defer q.lock()()
	for _, a := range q.s.st.accounts {
		if a.TenantID == acc.TenantID && a.UserID == acc.UserID {
			return false, nil
		}
		if a.LoyaltyNumber == acc.LoyaltyNumber {
			return false, repository.ErrLoyaltyNumberTaken
		}
	}
	if err := checkAccount(acc); err != nil {
		return false, err
	}
	acc.Progress = nil
	acc.UpdatedAt = acc.CreatedAt
	q.s.st.accounts[acc.ID] = acc
	return true, nil
}

func (s *Store) UpdateAccount(ctx context.Context, acc domain.Account) error {
	return s.standalone().UpdateAccount(ctx, acc)
}

func (q *querier) UpdateAccount(_ context.Context, acc domain.Account) error {
	defer q.lock()()
	existing, ok := q.s.st.accounts[acc.ID]
	if !ok {
		return repository.ErrNoRows
	}
	// Identity columns are immutable.
	acc.LoyaltyNumber = existing.LoyaltyNumber
	acc.UserID = existing.UserID
	acc.TenantID = existing.TenantID
	acc.CreatedAt = existing.CreatedAt
	if err := checkAccount(acc); err != nil {
		return err
	}
	acc.Progress = nil
	q.s.st.accounts[acc.ID] = acc
	return nil
}

var (
	errCheckViolation  = errors.New("memstore: check constraint violated")
	errUniqueViolation = errors.New("memstore: unique constraint violated")
)

// checkAccount mirrors the accounts table CHECK constraints.
func checkAccount(a domain.Account) error {
	if a.CurrentPoints < 0 || !a.BalanceConsistent() {
		return errCheckViolation
	}
	return nil
}

// Ledger

func cloneTxn(t domain.Transaction) domain.Transaction {
	t.Metadata.Notes = maps.Clone(t.Metadata.Notes)
	return t
}

func (s *Store) InsertTransaction(ctx context.Context, txn domain.Transaction) (domain.Transaction, error) {
	return s.standalone().InsertTransaction(ctx, txn)
}

func (q *querier) InsertTransaction(_ context.Context, txn domain.Transaction) (domain.Transaction, error) {
	defer q.lock()()
	if txn.Kind == domain.TxKindEarned && txn.OrderID != nil {
		for _, t := range q.s.st.txns {
			if t.Kind == domain.TxKindEarned && t.TenantID == txn.TenantID && t.OrderID != nil && *t.OrderID == *txn.OrderID {
				return domain.Transaction{}, repository.ErrDuplicateEarned
			}
		}
	}
	if txn.BalanceAfter < 0 {
		return domain.Transaction{}, errCheckViolation
	}
	q.s.st.seq++
	txn.Seq = q.s.st.seq
	q.s.st.txns = append(q.s.st.txns, cloneTxn(txn))
	return cloneTxn(txn), nil
}

func (s *Store) GetEarnedByOrder(ctx context.Context, tenantID, orderID string) (domain.Transaction, error) {
	return s.standalone().GetEarnedByOrder(ctx, tenantID, orderID)
}

func (q *querier) GetEarnedByOrder(_ context.Context, tenantID, orderID string) (domain.Transaction, error) {
	defer q.lock()()
	for _, t := range q.s.st.txns {
		if t.Kind == domain.TxKindEarned && t.TenantID == tenantID && t.OrderID != nil && *t.OrderID == orderID {
			return cloneTxn(t), nil
		}
	}
	return domain.Transaction{}, repository.ErrNoRows
}

func matchesReference(t domain.Transaction, accountID uuid.UUID, kind domain.TxKind, ref string) bool {
	return t.AccountID == accountID && t.Kind == kind && t.ReferenceID != nil && *t.ReferenceID == ref
}

func (s *Store) GetTransactionByReference(ctx context.Context, accountID uuid.UUID, kind domain.TxKind, referenceID string) (domain.Transaction, error) {
	return s.standalone().GetTransactionByReference(ctx, accountID, kind, referenceID)
}

func (q *querier) GetTransactionByReference(_ context.Context, accountID uuid.UUID, kind domain.TxKind, referenceID string) (domain.Transaction, error) {
	defer q.lock()()
	for _, t := range q.s.st.txns {
		if matchesReference(t, accountID, kind, referenceID) {
			return cloneTxn(t), nil
		}
	}
	return domain.Transaction{}, repository.ErrNoRows
}

func (s *Store) CountTransactionsByReference(ctx context.Context, accountID uuid.UUID, kind domain.TxKind, referenceID string) (int64, error) {
	return s.standalone().CountTransactionsByReference(ctx, accountID, kind, referenceID)
}

func (q *querier) CountTransactionsByReference(_ context.Context, accountID uuid.UUID, kind domain.TxKind, referenceID string) (int64, error) {
	defer q.lock()()
	var n int64
	for _, t := range q.s.st.txns {
		if matchesReference(t, accountID, kind, referenceID) {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	return s.standalone().ListTransactions(ctx, accountID, limit, offset)
}

func (q *querier) ListTransactions(_ context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	defer q.lock()()
	var out []domain.Transaction
	for i := len(q.s.st.txns) - 1; i >= 0; i-- {
		if t := q.s.st.txns[i]; t.AccountID == accountID {
			out = append(out, cloneTxn(t))
		}
	}
	return page(out, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (s *Store) SumDeltas(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return s.standalone().SumDeltas(ctx, accountID)
}

func (q *querier) SumDeltas(_ context.Context, accountID uuid.UUID) (int64, error) {
	defer q.lock()()
	var sum int64
	for _, t := range q.s.st.txns {
		if t.AccountID == accountID {
			sum += t.Delta
		}
	}
	return sum, nil
}

func (s *Store) SumCreditsAfter(ctx context.Context, accountID uuid.UUID, seq int64) (int64, error) {
	return s.standalone().SumCreditsAfter(ctx, accountID, seq)
}

func (q *querier) SumCreditsAfter(_ context.Context, accountID uuid.UUID, seq int64) (int64, error) {
	defer q.lock()()
	var sum int64
	for _, t := range q.s.st.txns {
		if t.AccountID == accountID && t.Seq > seq && t.Delta > 0 {
			sum += t.Delta
		}
	}
	return sum, nil
}

func (s *Store) ListExpiringEarned(ctx context.Context, before time.Time, limit int) ([]domain.Transaction, error) {
	return s.standalone().ListExpiringEarned(ctx, before, limit)
}

func (q *querier) ListExpiringEarned(_ context.Context, before time.Time, limit int) ([]domain.Transaction, error) {
	defer q.lock()()
	expired := make(map[string]bool)
	for _, t := range q.s.st.txns {
		if t.Kind == domain.TxKindExpired && t.ReferenceID != nil {
			expired[*t.ReferenceID] = true
		}
	}
	var out []domain.Transaction
	for _, t := range q.s.st.txns {
		if t.Kind != domain.TxKindEarned || t.ExpiresAt == nil || t.ExpiresAt.After(before) || expired[t.ID.String()] {
			continue
		}
		out = append(out, cloneTxn(t))
	}
	slices.SortStableFunc(out, func(a, b domain.Transaction) int {
		return cmp.Or(a.ExpiresAt.Compare(*b.ExpiresAt), cmp.Compare(a.Seq, b.Seq))
	})
	return page(out, limit, 0), nil
}

// Configuration

func (s *Store) GetSettingsOverride(ctx context.Context, tenantID string) (*domain.SettingsOverride, error) {
	return s.standalone().GetSettingsOverride(ctx, tenantID)
}

func (q *querier) GetSettingsOverride(_ context.Context, tenantID string) (*domain.SettingsOverride, error) {
	defer q.lock()()
	o, ok := q.s.st.settings[tenantID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func cloneTier(t domain.Tier) domain.Tier {
	t.Benefits = slices.Clone(t.Benefits)
	return t
}

func (s *Store) ListTiers(ctx context.Context, tenantID string) ([]domain.Tier, error) {
	return s.standalone().ListTiers(ctx, tenantID)
}

func (q *querier) ListTiers(_ context.Context, tenantID string) ([]domain.Tier, error) {
	defer q.lock()()
	var out []domain.Tier
	for _, t := range q.s.st.tiers {
		if t.TenantID == tenantID {
			out = append(out, cloneTier(t))
		}
	}
	slices.SortFunc(out, func(a, b domain.Tier) int { return cmp.Compare(a.Level, b.Level) })
	return out, nil
}

func clonePromotion(p domain.Promotion) domain.Promotion {
	p.EligibleTierLevels = slices.Clone(p.EligibleTierLevels)
	return p
}

func (s *Store) ListActivePromotions(ctx context.Context, tenantID string, now time.Time) ([]domain.Promotion, error) {
	return s.standalone().ListActivePromotions(ctx, tenantID, now)
}

func (q *querier) ListActivePromotions(_ context.Context, tenantID string, now time.Time) ([]domain.Promotion, error) {
	defer q.lock()()
	var out []domain.Promotion
	for _, p := range q.s.st.promotions {
		if p.TenantID == tenantID && p.ActiveAt(now) {
			out = append(out, clonePromotion(p))
		}
	}
	slices.SortFunc(out, func(a, b domain.Promotion) int {
		return cmp.Or(
			cmp.Compare(b.Priority, a.Priority),
			a.StartDate.Compare(b.StartDate),
			cmp.Compare(a.ID.String(), b.ID.String()),
		)
	})
	return out, nil
}

func cloneChallenge(c domain.Challenge) domain.Challenge {
	c.Milestones = slices.Clone(c.Milestones)
	return c
}

func (s *Store) ListActiveChallenges(ctx context.Context, tenantID string, now time.Time) ([]domain.Challenge, error) {
	return s.standalone().ListActiveChallenges(ctx, tenantID, now)
}

func (q *querier) ListActiveChallenges(_ context.Context, tenantID string, now time.Time) ([]domain.Challenge, error) {
	defer q.lock()()
	var out []domain.Challenge
	for _, c := range q.s.st.challenges {
		if c.TenantID == tenantID && c.ActiveAt(now) {
			out = append(out, cloneChallenge(c))
		}
	}
	slices.SortFunc(out, func(a, b domain.Challenge) int {
		return cmp.Or(a.StartDate.Compare(b.StartDate), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

func cloneReward(r domain.Reward) domain.Reward {
	r.EligibleTierLevels = slices.Clone(r.EligibleTierLevels)
	return r
}

func (s *Store) GetReward(ctx context.Context, id uuid.UUID) (domain.Reward, error) {
	return s.standalone().GetReward(ctx, id)
}

func (q *querier) GetReward(_ context.Context, id uuid.UUID) (domain.Reward, error) {
	defer q.lock()()
	r, ok := q.s.st.rewards[id]
	if !ok {
		return domain.Reward{}, repository.ErrNoRows
	}
	return cloneReward(r), nil
}

func (s *Store) GetRewardForUpdate(ctx context.Context, id uuid.UUID) (domain.Reward, error) {
	return s.standalone().GetRewardForUpdate(ctx, id)
}

func (q *querier) GetRewardForUpdate(ctx context.Context, id uuid.UUID) (domain.Reward, error) {
	return q.GetReward(ctx, id)
}

func (s *Store) ListRewards(ctx context.Context, tenantID string) ([]domain.Reward, error) {
	return s.standalone().ListRewards(ctx, tenantID)
}

func (q *querier) ListRewards(_ context.Context, tenantID string) ([]domain.Reward, error) {
	defer q.lock()()
	var out []domain.Reward
	for _, r := range q.s.st.rewards {
		if r.TenantID == tenantID {
			out = append(out, cloneReward(r))
		}
	}
	slices.SortFunc(out, func(a, b domain.Reward) int {
		return cmp.Or(cmp.Compare(a.PointsCost, b.PointsCost), cmp.Compare(a.Name, b.Name))
	})
	return out, nil
}

func (s *Store) IncrementRewardRedeemed(ctx context.Context, id uuid.UUID, delta int64) error {
	return s.standalone().IncrementRewardRedeemed(ctx, id, delta)
}

func (q *querier) IncrementRewardRedeemed(_ context.Context, id uuid.UUID, delta int64) error {
	defer q.lock()()
	r, ok := q.s.st.rewards[id]
	if !ok {
		return nil
	}
	r.RedeemedCount += delta
	q.s.st.rewards[id] = r
	return nil
}

// Redemptions

func (s *Store) RedemptionCodeExists(ctx context.Context, code string) (bool, error) {
	return s.standalone().RedemptionCodeExists(ctx, code)
}

func (q *querier) RedemptionCodeExists(_ context.Context, code string) (bool, error) {
	defer q.lock()()
	for _, r := range q.s.st.redemptions {
		if r.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) InsertRedemption(ctx context.Context, r domain.Redemption) error {
	return s.standalone().InsertRedemption(ctx, r)
}

func (q *querier) InsertRedemption(_ context.Context, r domain.Redemption) error {
	defer q.lock()()
	for _, existing := range q.s.st.redemptions {
		if existing.Code == r.Code {
			return repository.ErrRedemptionCodeTaken
		}
	}
	q.s.st.redemptions[r.ID] = r
	return nil
}

func (s *Store) GetRedemption(ctx context.Context, id uuid.UUID) (domain.Redemption, error) {
	return s.standalone().GetRedemption(ctx, id)
}

func (q *querier) GetRedemption(_ context.Context, id uuid.UUID) (domain.Redemption, error) {
	defer q.lock()()
	r, ok := q.s.st.redemptions[id]
	if !ok {
		return domain.Redemption{}, repository.ErrNoRows
	}
	return r, nil
}

func (s *Store) GetRedemptionForUpdate(ctx context.Context, id uuid.UUID) (domain.Redemption, error) {
	return s.standalone().GetRedemptionForUpdate(ctx, id)
}

func (q *querier) GetRedemptionForUpdate(ctx context.Context, id uuid.UUID) (domain.Redemption, error) {
	return q.GetRedemption(ctx, id)
}

func (s *Store) UpdateRedemption(ctx context.Context, r domain.Redemption) error {
	return s.standalone().UpdateRedemption(ctx, r)
}

func (q *querier) UpdateRedemption(_ context.Context, r domain.Redemption) error {
	defer q.lock()()
	existing, ok := q.s.st.redemptions[r.ID]
	if !ok {
		return repository.ErrNoRows
	}
	existing.Status = r.Status
	existing.Notes = r.Notes
	existing.ResolvedAt = r.ResolvedAt
	existing.UpdatedAt = r.UpdatedAt
	q.s.st.redemptions[r.ID] = existing
	return nil
}

func (s *Store) CountRedemptions(ctx context.Context, accountID, rewardID uuid.UUID, status domain.RedemptionStatus) (int64, error) {
	return s.standalone().CountRedemptions(ctx, accountID, rewardID, status)
}

func (q *querier) CountRedemptions(_ context.Context, accountID, rewardID uuid.UUID, status domain.RedemptionStatus) (int64, error) {
	defer q.lock()()
	var n int64
	for _, r := range q.s.st.redemptions {
		if r.AccountID == accountID && r.RewardID == rewardID && r.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListRedemptionsByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Redemption, error) {
	return s.standalone().ListRedemptionsByAccount(ctx, accountID)
}

func (q *querier) ListRedemptionsByAccount(_ context.Context, accountID uuid.UUID) ([]domain.Redemption, error) {
	defer q.lock()()
	var out []domain.Redemption
	for _, r := range q.s.st.redemptions {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.Redemption) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *Store) ListStaleRedemptions(ctx context.Context, now time.Time, limit int) ([]domain.Redemption, error) {
	return s.standalone().ListStaleRedemptions(ctx, now, limit)
}

func (q *querier) ListStaleRedemptions(_ context.Context, now time.Time, limit int) ([]domain.Redemption, error) {
	defer q.lock()()
	var out []domain.Redemption
	for _, r := range q.s.st.redemptions {
		if r.Status.Refundable() && !r.ExpiresAt.After(now) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.Redemption) int { return a.ExpiresAt.Compare(b.ExpiresAt) })
	return page(out, limit, 0), nil
}

// Challenge progress

func cloneProgress(p domain.ChallengeProgress) domain.ChallengeProgress {
	p.MilestonesReached = slices.Clone(p.MilestonesReached)
	return p
}

func (s *Store) GetChallengeProgress(ctx context.Context, accountID, challengeID uuid.UUID) (domain.ChallengeProgress, error) {
	return s.standalone().GetChallengeProgress(ctx, accountID, challengeID)
}

func (q *querier) GetChallengeProgress(_ context.Context, accountID, challengeID uuid.UUID) (domain.ChallengeProgress, error) {
	defer q.lock()()
	p, ok := q.s.st.progress[progressKey{accountID, challengeID}]
	if !ok {
		return domain.ChallengeProgress{}, repository.ErrNoRows
	}
	return cloneProgress(p), nil
}

func (s *Store) InsertChallengeProgress(ctx context.Context, p domain.ChallengeProgress) error {
	return s.standalone().InsertChallengeProgress(ctx, p)
}

func (q *querier) InsertChallengeProgress(_ context.Context, p domain.ChallengeProgress) error {
	defer q.lock()()
	key := progressKey{p.AccountID, p.ChallengeID}
	if _, ok := q.s.st.progress[key]; !ok {
		q.s.st.progress[key] = cloneProgress(p)
	}
	return nil
}

func (s *Store) UpdateChallengeProgress(ctx context.Context, p domain.ChallengeProgress) error {
	return s.standalone().UpdateChallengeProgress(ctx, p)
}

func (q *querier) UpdateChallengeProgress(_ context.Context, p domain.ChallengeProgress) error {
	defer q.lock()()
	key := progressKey{p.AccountID, p.ChallengeID}
	if _, ok := q.s.st.progress[key]; !ok {
		return repository.ErrNoRows
	}
	q.s.st.progress[key] = cloneProgress(p)
	return nil
}

func (s *Store) ListChallengeProgress(ctx context.Context, accountID uuid.UUID) ([]domain.ChallengeProgress, error) {
	return s.standalone().ListChallengeProgress(ctx, accountID)
}

func (q *querier) ListChallengeProgress(_ context.Context, accountID uuid.UUID) ([]domain.ChallengeProgress, error) {
	defer q.lock()()
	var out []domain.ChallengeProgress
	for key, p := range q.s.st.progress {
		if key.account == accountID {
			out = append(out, cloneProgress(p))
		}
	}
	slices.SortFunc(out, func(a, b domain.ChallengeProgress) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out, nil
}
