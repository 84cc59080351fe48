package transactions

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// ACCOUNTS & VENDORS
// =============================================================================

type AccountInput struct {
	Name           string
	OpeningBalance decimal.Decimal
	TransactionFee *decimal.Decimal
}

// CreateAccount opens an account whose balance starts at OpeningBalance.
// From then on only the ledger moves the balance.
func (s *Service) CreateAccount(ctx context.Context, orgID ledger.OrgID, in AccountInput) (*ledger.Account, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &ledger.FieldError{Field: "name", Reason: "must not be empty"}
	}
	if in.TransactionFee != nil && in.TransactionFee.IsNegative() {
		return nil, &ledger.FieldError{Field: "transaction_fee", Reason: "must not be negative"}
	}

	now := s.now().UTC()
	a := ledger.Account{
		ID:             ledger.AccountID(uuid.NewString()),
		OrgID:          orgID,
		Name:           name,
		OpeningBalance: in.OpeningBalance,
		Balance:        in.OpeningBalance,
		TransactionFee: in.TransactionFee,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.InsertAccount(ctx, a); err != nil {
		return nil, err
	}

	s.log.Info().Str("org_id", string(orgID)).Str("account_id", string(a.ID)).Msg("account created")
	return &a, nil
}

func (s *Service) GetAccount(ctx context.Context, orgID ledger.OrgID, id ledger.AccountID) (*ledger.Account, error) {
	return s.store.GetAccount(ctx, orgID, id)
}

func (s *Service) ListAccounts(ctx context.Context, orgID ledger.OrgID) ([]ledger.Account, error) {
	return s.store.ListAccounts(ctx, orgID)
}

// SetAccountActive activates or deactivates an account. Inactive accounts
// keep their history but accept no new or edited transactions.
func (s *Service) SetAccountActive(ctx context.Context, orgID ledger.OrgID, id ledger.AccountID, active bool) (*ledger.Account, error) {
	if err := s.store.SetAccountActive(ctx, orgID, id, active); err != nil {
		return nil, err
	}
	s.log.Info().Str("org_id", string(orgID)).Str("account_id", string(id)).Bool("active", active).Msg("account activity changed")
	return s.store.GetAccount(ctx, orgID, id)
}

func (s *Service) CreateVendor(ctx context.Context, orgID ledger.OrgID, name string) (*ledger.Vendor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ledger.FieldError{Field: "name", Reason: "must not be empty"}
	}

	v := ledger.Vendor{
		ID:        ledger.VendorID(uuid.NewString()),
		OrgID:     orgID,
		Name:      name,
		Active:    true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertVendor(ctx, v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Service) ListVendors(ctx context.Context, orgID ledger.OrgID) ([]ledger.Vendor, error) {
	return s.store.ListVendors(ctx, orgID)
}

// =============================================================================
// BALANCE VERIFICATION
// =============================================================================

// BalanceCheck compares the stored balance with a full recompute.
type BalanceCheck struct {
	AccountID    ledger.AccountID
	Stored       decimal.Decimal
	Expected     decimal.Decimal
	Drift        decimal.Decimal
	Transactions int
}

// Consistent reports whether the stored balance matches the recompute.
func (c BalanceCheck) Consistent() bool {
	return c.Drift.IsZero()
}

// VerifyBalance recomputes opening balance plus the impact of every live
// transaction touching the account, and reports the drift from the stored
// balance. It reads a consistent snapshot inside one store transaction.
func (s *Service) VerifyBalance(ctx context.Context, orgID ledger.OrgID, id ledger.AccountID) (*BalanceCheck, error) {
	var check *BalanceCheck
	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		account, err := st.GetAccount(ctx, orgID, id)
		if err != nil {
			return err
		}
		txs, err := st.ListTransactions(ctx, orgID, ledger.TransactionFilter{AccountID: &id})
		if err != nil {
			return err
		}

		expected := account.OpeningBalance.Add(ledger.SumImpact(txs, id))
		check = &BalanceCheck{
			AccountID:    id,
			Stored:       account.Balance,
			Expected:     expected,
			Drift:        account.Balance.Sub(expected),
			Transactions: len(txs),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !check.Consistent() {
		s.log.Warn().
			Str("org_id", string(orgID)).
			Str("account_id", string(id)).
			Str("drift", check.Drift.String()).
			Msg("account balance drift")
	}
	return check, nil
}
