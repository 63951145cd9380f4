package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
)

// Anomaly kinds reported by the reconciliation audit
const (
	AnomalyCashMismatch    = "CASH_MISMATCH"
	AnomalyNegativeCash    = "NEGATIVE_CASH"
	AnomalyNegativeHolding = "NEGATIVE_HOLDING"
)

// Anomaly is one account that failed the audit
type Anomaly struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Kind     string    `json:"kind"`
	Detail   string    `json:"detail"`
}

// ReconcileReport summarizes one audit run
type ReconcileReport struct {
	StartedAt    time.Time `json:"started_at"`
	Duration     string    `json:"duration"`
	UsersChecked int       `json:"users_checked"`
	Anomalies    []Anomaly `json:"anomalies"`
}

// Healthy reports whether the run found nothing wrong
func (r *ReconcileReport) Healthy() bool {
	return len(r.Anomalies) == 0
}

// ReconcileService replays every account's ledger and checks it against the
// stored cash balance
type ReconcileService struct {
	store domain.Store
}

// NewReconcileService creates a new ReconcileService
func NewReconcileService(store domain.Store) *ReconcileService {
	return &ReconcileService{store: store}
}

// Reconcile audits all accounts. Each account is read under its own lock so
// cash and ledger are compared at the same point in time.
func (s *ReconcileService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	start := time.Now()
	log.Println("[INFO] Reconcile: auditing accounts...")

	users, err := s.store.Users().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	report := &ReconcileReport{
		StartedAt: start.UTC(),
		Anomalies: []Anomaly{},
	}

	for _, user := range users {
		user := user
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var found []Anomaly
		err := s.store.WithinUserTx(ctx, user.ID, func(ctx context.Context, repos domain.TxRepositories) error {
			cash, err := repos.Users.GetCash(ctx, user.ID)
			if err != nil {
				return err
			}
			entries, err := repos.Trades.EntriesFor(ctx, user.ID)
			if err != nil {
				return err
			}
			found = auditAccount(user, cash, entries)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to audit user %s: %w", user.ID, err)
		}

		report.UsersChecked++
		report.Anomalies = append(report.Anomalies, found...)
	}

	report.Duration = time.Since(start).String()

	if report.Healthy() {
		log.Printf("[OK] Reconcile: %d accounts consistent (%s)", report.UsersChecked, report.Duration)
	} else {
		for _, a := range report.Anomalies {
			log.Printf("[ERROR] Reconcile: %s user=%s (%s): %s", a.Kind, a.Username, a.UserID, a.Detail)
		}
		log.Printf("[WARN] Reconcile: %d anomalies across %d accounts", len(report.Anomalies), report.UsersChecked)
	}

	return report, nil
}

// auditAccount checks cash = starting cash - buys + sells, cash >= 0, and
// that no symbol's net position is negative
func auditAccount(user *domain.User, cash decimal.Decimal, entries []*domain.LedgerEntry) []Anomaly {
	var anomalies []Anomaly
	add := func(kind, format string, args ...any) {
		anomalies = append(anomalies, Anomaly{
			UserID:   user.ID,
			Username: user.Username,
			Kind:     kind,
			Detail:   fmt.Sprintf(format, args...),
		})
	}

	expected := user.StartingCash
	nets := make(map[string]int64)
	for _, e := range entries {
		if e.ShareDelta > 0 {
			expected = expected.Sub(e.TotalValue)
		} else {
			expected = expected.Add(e.TotalValue)
		}
		nets[e.Symbol] += e.ShareDelta
	}

	if !cash.Equal(expected) {
		add(AnomalyCashMismatch, "stored cash %s, ledger implies %s", cash.StringFixed(domain.PriceScale), expected.StringFixed(domain.PriceScale))
	}
	if cash.IsNegative() {
		add(AnomalyNegativeCash, "cash is %s", cash.StringFixed(domain.PriceScale))
	}

	symbols := make([]string, 0, len(nets))
	for symbol, net := range nets {
		if net < 0 {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		add(AnomalyNegativeHolding, "%s net shares %d", symbol, nets[symbol])
	}

	return anomalies
}
