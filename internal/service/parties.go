package service

import (
	"context"
	"fmt"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/ledger"
	"shopledger/backend/internal/money"
	"shopledger/backend/internal/store"
)

func (s *Service) ListParties(ctx context.Context, kind domain.PartyKind) ([]domain.Party, error) {
	var out []domain.Party
	err := s.view(ctx, func(tx store.Tx) error {
		parties, err := s.ledger.ListParties(tx, kind)
		out = parties
		return err
	})
	return out, err
}

func (s *Service) GetParty(ctx context.Context, kind domain.PartyKind, id string) (domain.Party, error) {
	var out domain.Party
	err := s.view(ctx, func(tx store.Tx) error {
		party, err := s.ledger.GetParty(tx, kind, id)
		out = party
		return err
	})
	return out, err
}

func (s *Service) CreateParty(ctx context.Context, kind domain.PartyKind, req domain.PartyCreateRequest) (domain.Party, error) {
	if err := s.check(req); err != nil {
		return domain.Party{}, err
	}
	var out domain.Party
	err := s.update(ctx, func(tx store.Tx) error {
		party, err := s.ledger.CreateParty(tx, kind, req)
		if err != nil {
			return err
		}
		out = party
		return s.logAudit(tx, string(kind)+"_create", string(kind), party.ID, fmt.Sprintf("name=%s", party.Name))
	})
	return out, err
}

func (s *Service) UpdateParty(ctx context.Context, kind domain.PartyKind, id string, req domain.PartyUpdateRequest) (domain.Party, error) {
	if err := s.check(req); err != nil {
		return domain.Party{}, err
	}
	var out domain.Party
	err := s.update(ctx, func(tx store.Tx) error {
		party, err := s.ledger.UpdateParty(tx, kind, id, req)
		if err != nil {
			return err
		}
		out = party
		return s.logAudit(tx, string(kind)+"_update", string(kind), party.ID, fmt.Sprintf("name=%s", party.Name))
	})
	return out, err
}

func (s *Service) DeleteParty(ctx context.Context, kind domain.PartyKind, id string) error {
	return s.update(ctx, func(tx store.Tx) error {
		if err := s.ledger.DeleteParty(tx, kind, id); err != nil {
			return err
		}
		return s.logAudit(tx, string(kind)+"_delete", string(kind), id, "deleted")
	})
}

// Statement returns a party with its transactions, oldest first. Results are
// cached until the next committed command.
func (s *Service) Statement(ctx context.Context, kind domain.PartyKind, id string) (domain.Statement, error) {
	key := fmt.Sprintf("statement:%s:%s", kind, id)
	var out domain.Statement
	gen, hit := s.cached(ctx, key, &out)
	if hit {
		return out, nil
	}
	err := s.view(ctx, func(tx store.Tx) error {
		st, err := s.ledger.Statement(tx, kind, id)
		out = st
		return err
	})
	if err != nil {
		return domain.Statement{}, err
	}
	s.remember(ctx, gen, key, out)
	return out, nil
}

// RecordTransaction appends a manual payment, advance or adjustment. The
// amount is converted to the base currency at the supplied rate.
func (s *Service) RecordTransaction(ctx context.Context, kind domain.PartyKind, id string, req domain.TransactionRequest) (domain.Transaction, error) {
	if err := s.check(req); err != nil {
		return domain.Transaction{}, err
	}
	amount, err := s.conv.Normalize(req.Amount, req.Currency, req.ExchangeRate)
	if err != nil {
		return domain.Transaction{}, err
	}

	entry := ledger.Entry{
		PartyKind:   kind,
		PartyID:     id,
		Kind:        req.Kind,
		Description: req.Description,
	}
	if req.Kind == domain.TxAdjustment {
		entry.Delta = amount
	} else {
		if amount <= 0 {
			return domain.Transaction{}, apperr.Validationf("amount must be positive").WithID("party_id", id)
		}
		entry.Amount = amount
	}

	var out domain.Transaction
	err = s.update(ctx, func(tx store.Tx) error {
		txn, err := s.ledger.Apply(tx, entry)
		if err != nil {
			return err
		}
		out = txn
		return s.logAudit(tx, "transaction_"+string(txn.Kind), string(kind), id, fmt.Sprintf("amount=%d,delta=%d,balance=%d", txn.Amount, txn.Delta, txn.BalanceAfter))
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	s.log.Info().
		Str("party_id", id).
		Str("kind", string(out.Kind)).
		Int64("delta", int64(out.Delta)).
		Int64("balance", int64(out.BalanceAfter)).
		Msg("ledger entry recorded")
	return out, nil
}

func (s *Service) Reconcile(ctx context.Context) (domain.ReconcileReport, error) {
	var out domain.ReconcileReport
	err := s.view(ctx, func(tx store.Tx) error {
		report, err := s.ledger.Reconcile(tx)
		out = report
		return err
	})
	if err != nil {
		return domain.ReconcileReport{}, err
	}
	for _, d := range out.Drift {
		s.log.Warn().
			Str("party_kind", string(d.PartyKind)).
			Str("party_id", d.PartyID).
			Int64("cached", int64(d.Cached)).
			Int64("computed", int64(d.Computed)).
			Msg("balance drift")
	}
	return out, nil
}

// RunPayroll settles every employee in one unit. When nobody is due the
// store is left untouched, activity log included.
func (s *Service) RunPayroll(ctx context.Context) (domain.PayrollResult, error) {
	var out domain.PayrollResult
	err := s.update(ctx, func(tx store.Tx) error {
		result, err := s.payroll.Run(tx)
		if err != nil {
			return err
		}
		out = result
		if result.NothingToProcess {
			return nil
		}
		return s.logAudit(tx, "payroll_run", "expense", result.ExpenseID, fmt.Sprintf("paid=%d,skipped=%d,total=%s", len(result.Paid), len(result.Skipped), s.conv.Format(result.TotalPaid)))
	})
	if err != nil {
		return domain.PayrollResult{}, err
	}
	s.log.Info().Int("paid", len(out.Paid)).Int("skipped", len(out.Skipped)).Int64("total", int64(out.TotalPaid)).Msg("payroll run")
	return out, nil
}

// Balance is a convenience for callers that only need the cached balance.
func (s *Service) Balance(ctx context.Context, kind domain.PartyKind, id string) (money.Amount, error) {
	party, err := s.GetParty(ctx, kind, id)
	if err != nil {
		return 0, err
	}
	return party.Balance, nil
}
