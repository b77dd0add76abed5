package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/finassist/finassist/internal/finance"
)

// Store is an in-memory data layer keyed by family.
type Store struct {
	mu           sync.RWMutex
	families     map[string]finance.Family
	accounts     map[string][]finance.Account
	history      map[string][]finance.MonthlyBalance
	categories   map[string][]finance.Category
	transactions map[string][]*finance.Transaction
	holdings     map[string][]finance.Holding
	loans        map[string][]finance.Loan
	rules        map[string][]finance.Rule
}

var (
	_ finance.Reader         = (*Store)(nil)
	_ finance.CategoryWriter = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		families:     make(map[string]finance.Family),
		accounts:     make(map[string][]finance.Account),
		history:      make(map[string][]finance.MonthlyBalance),
		categories:   make(map[string][]finance.Category),
		transactions: make(map[string][]*finance.Transaction),
		holdings:     make(map[string][]finance.Holding),
		loans:        make(map[string][]finance.Loan),
		rules:        make(map[string][]finance.Rule),
	}
}

// AddFamily registers fam, replacing any family with the same id.
func (s *Store) AddFamily(fam finance.Family) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.families[fam.ID] = fam
}

// AddAccount appends an account to its family.
func (s *Store) AddAccount(a finance.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.FamilyID] = append(s.accounts[a.FamilyID], a)
}

// AddMonthlyBalance appends a month-end snapshot for familyID.
func (s *Store) AddMonthlyBalance(familyID string, b finance.MonthlyBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := append(s.history[familyID], b)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Month.Before(items[j].Month) })
	s.history[familyID] = items
}

// AddCategory appends a category to its family.
func (s *Store) AddCategory(c finance.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.FamilyID] = append(s.categories[c.FamilyID], c)
}

// AddTransaction appends a transaction to its family.
func (s *Store) AddTransaction(t finance.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn := t
	s.transactions[t.FamilyID] = append(s.transactions[t.FamilyID], &txn)
}

// AddHolding appends a holding to its family.
func (s *Store) AddHolding(h finance.Holding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdings[h.FamilyID] = append(s.holdings[h.FamilyID], h)
}

// AddLoan appends a loan to its family.
func (s *Store) AddLoan(l finance.Loan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loans[l.FamilyID] = append(s.loans[l.FamilyID], l)
}

// Family returns the family by id.
func (s *Store) Family(_ context.Context, familyID string) (finance.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fam, ok := s.families[familyID]
	if !ok {
		return finance.Family{}, fmt.Errorf("%w: %s", finance.ErrFamilyNotFound, familyID)
	}
	return fam, nil
}

// Accounts returns a copy of the family accounts.
func (s *Store) Accounts(_ context.Context, familyID string) ([]finance.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]finance.Account(nil), s.accounts[familyID]...), nil
}

// BalanceHistory returns snapshots whose month overlaps [start, end].
func (s *Store) BalanceHistory(_ context.Context, familyID string, start, end time.Time) ([]finance.MonthlyBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []finance.MonthlyBalance
	for _, b := range s.history[familyID] {
		monthEnd := b.Month.AddDate(0, 1, -1)
		if monthEnd.Before(start) || b.Month.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Transactions filters the family transactions, newest first.
func (s *Store) Transactions(_ context.Context, familyID string, q finance.TransactionQuery) ([]finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids map[string]struct{}
	if len(q.IDs) > 0 {
		ids = make(map[string]struct{}, len(q.IDs))
		for _, id := range q.IDs {
			ids[id] = struct{}{}
		}
	}
	merchant := strings.ToLower(strings.TrimSpace(q.Merchant))
	search := strings.ToLower(strings.TrimSpace(q.Search))

	var out []finance.Transaction
	for _, t := range s.transactions[familyID] {
		if ids != nil {
			if _, ok := ids[t.ID]; !ok {
				continue
			}
		}
		if !q.Start.IsZero() && t.Date.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && t.Date.After(q.End) {
			continue
		}
		if q.CategoryID != "" && t.CategoryID != q.CategoryID {
			continue
		}
		if merchant != "" && !strings.Contains(strings.ToLower(t.Merchant), merchant) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Description), search) && !strings.Contains(strings.ToLower(t.Merchant), search) {
			continue
		}
		out = append(out, *t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// Holdings returns a copy of the family holdings.
func (s *Store) Holdings(_ context.Context, familyID string) ([]finance.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]finance.Holding(nil), s.holdings[familyID]...), nil
}

// Loans returns a copy of the family loans.
func (s *Store) Loans(_ context.Context, familyID string) ([]finance.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]finance.Loan(nil), s.loans[familyID]...), nil
}

// Categories returns a copy of the family categories.
func (s *Store) Categories(_ context.Context, familyID string) ([]finance.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]finance.Category(nil), s.categories[familyID]...), nil
}

// UncategorizedTransactions returns unlocked transactions with no category, in insertion order.
func (s *Store) UncategorizedTransactions(_ context.Context, familyID string, ids []string) ([]finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var wanted map[string]struct{}
	if len(ids) > 0 {
		wanted = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			wanted[id] = struct{}{}
		}
	}
	var out []finance.Transaction
	for _, t := range s.transactions[familyID] {
		if wanted != nil {
			if _, ok := wanted[t.ID]; !ok {
				continue
			}
		}
		if t.CategoryID != "" || t.CategoryLocked {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

// AssignCategory updates category, source and lock under one write lock.
func (s *Store) AssignCategory(_ context.Context, familyID, transactionID, categoryID, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCategory(familyID, categoryID) {
		return fmt.Errorf("category %s not found", categoryID)
	}
	for _, t := range s.transactions[familyID] {
		if t.ID != transactionID {
			continue
		}
		if t.CategoryLocked {
			return fmt.Errorf("transaction %s is locked", transactionID)
		}
		if t.CategoryID != "" {
			return fmt.Errorf("transaction %s is already categorized", transactionID)
		}
		t.CategoryID = categoryID
		t.CategorySource = source
		t.CategoryLocked = true
		return nil
	}
	return fmt.Errorf("transaction %s not found", transactionID)
}

// CreateRule stores rule unless an identical pattern already maps to a category.
func (s *Store) CreateRule(_ context.Context, rule finance.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rules[rule.FamilyID] {
		if existing.Pattern == rule.Pattern {
			return fmt.Errorf("rule for %q already exists", rule.Pattern)
		}
	}
	s.rules[rule.FamilyID] = append(s.rules[rule.FamilyID], rule)
	return nil
}

// Rules lists stored rules for a family.
func (s *Store) Rules(familyID string) []finance.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]finance.Rule(nil), s.rules[familyID]...)
}

func (s *Store) hasCategory(familyID, categoryID string) bool {
	for _, c := range s.categories[familyID] {
		if c.ID == categoryID {
			return true
		}
	}
	return false
}
