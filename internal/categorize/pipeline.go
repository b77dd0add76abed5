// Package categorize assigns categories to uncategorized transactions in
// fixed-size batches using the model gateway.
package categorize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/finassist/finassist/internal/finance"
	"github.com/finassist/finassist/internal/gateway"
	"github.com/finassist/finassist/internal/prompts"
)

// DefaultBatchSize is the number of transactions sent per gateway call.
const DefaultBatchSize = 25

var (
	// ErrNoGateway is returned when no model backend is configured.
	ErrNoGateway = errors.New("no llm gateway configured")
	// ErrNoCategories is returned when the family has no categories to choose from.
	ErrNoCategories = errors.New("family has no categories")
)

// Gateway is the part of the model backend the pipeline needs.
type Gateway interface {
	Chat(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

// Store reads categories and applies assignments.
type Store interface {
	Categories(ctx context.Context, familyID string) ([]finance.Category, error)
	finance.CategoryWriter
}

// Pipeline runs auto-categorization for one family at a time. It keeps no
// per-run state and may be shared across families.
type Pipeline struct {
	// Gateway classifies batches.
	Gateway Gateway
	// Store reads categories and writes assignments.
	Store Store
	// Prompts renders the classification prompt.
	Prompts prompts.Renderer
	// BatchSize overrides DefaultBatchSize.
	BatchSize int
	// Limiter paces gateway calls when set.
	Limiter *rate.Limiter
	// Notifier is told about every finished batch, best effort.
	Notifier Notifier
	// Logger is used for structured logging.
	Logger *slog.Logger
	// Now overrides the clock for rule timestamps.
	Now func() time.Time
}

// Categorize classifies the family's uncategorized, unlocked transactions
// among ids (all of them when ids is empty) and returns how many were
// modified. Failed batches are skipped; only configuration errors and
// cancellation are returned.
func (p *Pipeline) Categorize(ctx context.Context, fam finance.Family, ids []string) (int, error) {
	if p.Gateway == nil {
		return 0, ErrNoGateway
	}
	if p.Store == nil {
		return 0, errors.New("no category store configured")
	}
	categories, err := p.Store.Categories(ctx, fam.ID)
	if err != nil {
		return 0, fmt.Errorf("load categories: %w", err)
	}
	if len(categories) == 0 {
		return 0, ErrNoCategories
	}
	pending, err := p.Store.UncategorizedTransactions(ctx, fam.ID, ids)
	if err != nil {
		return 0, fmt.Errorf("load uncategorized transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	logger := p.logger().With("family_id", fam.ID)
	batches := Partition(pending, p.batchSize())
	byName := make(map[string]string, len(categories))
	for _, c := range categories {
		byName[c.Name] = c.ID
	}

	total := 0
	for i, batch := range batches {
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return total, err
			}
		}
		modified, err := p.runBatch(ctx, fam, categories, byName, batch)
		total += modified
		outcome := BatchOutcome{
			FamilyID:   fam.ID,
			Index:      i,
			Batches:    len(batches),
			Size:       len(batch),
			Modified:   modified,
			Cumulative: total,
			Err:        err,
		}
		if err != nil {
			logger.Warn("categorization batch failed", "batch", i, "size", len(batch), "error", err)
		} else {
			logger.Info("categorization batch applied", "batch", i, "size", len(batch), "modified", modified)
		}
		p.notify(ctx, logger, outcome)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return total, ctxErr
		}
	}
	return total, nil
}

// Partition splits items into consecutive chunks of at most size elements.
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

type promptTransaction struct {
	ID          string
	Date        string
	Amount      string
	Description string
	Merchant    string
}

type promptData struct {
	Categories   []string
	Transactions []promptTransaction
}

type classification struct {
	TransactionID string  `json:"transaction_id"`
	CategoryName  *string `json:"category_name"`
}

type classifications struct {
	Categorizations []classification `json:"categorizations"`
}

func (p *Pipeline) runBatch(ctx context.Context, fam finance.Family, categories []finance.Category, byName map[string]string, batch []finance.Transaction) (int, error) {
	data := promptData{}
	for _, c := range categories {
		data.Categories = append(data.Categories, c.Name)
	}
	inBatch := make(map[string]finance.Transaction, len(batch))
	for _, t := range batch {
		inBatch[t.ID] = t
		data.Transactions = append(data.Transactions, promptTransaction{
			ID:          t.ID,
			Date:        t.Date.Format("2006-01-02"),
			Amount:      t.Amount.String(),
			Description: t.Description,
			Merchant:    t.Merchant,
		})
	}
	instructions, message, err := p.render(data)
	if err != nil {
		return 0, err
	}

	resp, err := p.Gateway.Chat(ctx, gateway.Request{Message: message, Instructions: instructions})
	if err != nil {
		return 0, fmt.Errorf("classify batch: %w", err)
	}
	parsed, err := parseClassifications(resp.Text)
	if err != nil {
		return 0, err
	}

	logger := p.logger()
	modified := 0
	for _, item := range parsed.Categorizations {
		txn, ok := inBatch[item.TransactionID]
		if !ok || item.CategoryName == nil {
			continue
		}
		categoryID, ok := byName[*item.CategoryName]
		if !ok {
			logger.Debug("model returned unknown category", "transaction_id", txn.ID, "category", *item.CategoryName)
			continue
		}
		if err := p.Store.AssignCategory(ctx, fam.ID, txn.ID, categoryID, finance.SourceAI); err != nil {
			logger.Warn("assign category failed", "transaction_id", txn.ID, "error", err)
			continue
		}
		delete(inBatch, txn.ID)
		modified++
		p.learnRule(ctx, fam, txn, categoryID)
	}
	return modified, nil
}

func (p *Pipeline) render(data promptData) (string, string, error) {
	if p.Prompts == nil {
		return "", "", errors.New("no prompt templates configured")
	}
	instructions, err := p.Prompts.Render(prompts.CategorizeInstructions, data)
	if err != nil {
		return "", "", err
	}
	message, err := p.Prompts.Render(prompts.CategorizeMessage, data)
	if err != nil {
		return "", "", err
	}
	return instructions, message, nil
}

func parseClassifications(content string) (classifications, error) {
	payload := extractJSON(content)
	if payload == "" {
		return classifications{}, errors.New("no JSON object found in model output")
	}
	var out classifications
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return classifications{}, fmt.Errorf("failed to parse model output: %w", err)
	}
	return out, nil
}

func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}

func (p *Pipeline) batchSize() int {
	if p.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return p.BatchSize
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}
