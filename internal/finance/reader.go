package finance

import (
	"context"
	"errors"
	"time"
)

// ErrFamilyNotFound is returned when a family id is unknown to the data layer.
var ErrFamilyNotFound = errors.New("family not found")

// Reader is the read-only data layer consumed by the tool functions.
// Every method is scoped to familyID; implementations must never return rows of another family.
type Reader interface {
	// Family returns the family identity and preferences.
	Family(ctx context.Context, familyID string) (Family, error)
	// Accounts lists all accounts of the family.
	Accounts(ctx context.Context, familyID string) ([]Account, error)
	// BalanceHistory returns month-end snapshots between start and end, oldest first.
	BalanceHistory(ctx context.Context, familyID string, start, end time.Time) ([]MonthlyBalance, error)
	// Transactions returns matching transactions ordered newest first.
	Transactions(ctx context.Context, familyID string, query TransactionQuery) ([]Transaction, error)
	// Holdings lists investment holdings.
	Holdings(ctx context.Context, familyID string) ([]Holding, error)
	// Loans lists loans with their EMI schedules.
	Loans(ctx context.Context, familyID string) ([]Loan, error)
	// Categories lists the family categories.
	Categories(ctx context.Context, familyID string) ([]Category, error)
}

// CategoryWriter applies automatic categorization results.
type CategoryWriter interface {
	// UncategorizedTransactions returns transactions among ids that have no category and are not locked.
	// An empty ids slice means all such transactions of the family.
	UncategorizedTransactions(ctx context.Context, familyID string, ids []string) ([]Transaction, error)
	// AssignCategory sets the category, its source and the lock flag as one atomic unit.
	// It fails for locked or already categorized transactions.
	AssignCategory(ctx context.Context, familyID, transactionID, categoryID, source string) error
	// CreateRule stores a categorization rule.
	CreateRule(ctx context.Context, rule Rule) error
}
