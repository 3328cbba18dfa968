package services_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/passbookhq/passbook/internal/apperrors"
	"github.com/passbookhq/passbook/internal/core/domain"
	portsrepo "github.com/passbookhq/passbook/internal/core/ports/repositories"
	portssvc "github.com/passbookhq/passbook/internal/core/ports/services"
	"github.com/passbookhq/passbook/internal/core/services"
	"github.com/passbookhq/passbook/internal/dto"
)

// --- In-Memory Store With Transaction Staging ---

// memStore is an in-memory store with real transaction boundaries: changes
// made through a memTx stay invisible until Commit, and Commit re-validates
// balances against whatever other transactions have committed in the
// meantime, rejecting the unit with a serialization failure the way a
// database under concurrent updates would. That gives these tests genuine
// commit/rollback and conflict-retry behavior without a database.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	entries  []domain.Transaction
	nextID   int64

	// failNextAppend makes the next AppendTransactionInTx fail once, to
	// prove a failed ledger write aborts the whole unit.
	failNextAppend error
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]domain.Account)}
}

var _ portsrepo.AccountRepositoryWithTx = (*memStore)(nil)
var _ portsrepo.TransactionRepositoryWithTx = (*memStore)(nil)

// memTx stages one atomic unit's changes until Commit applies them. The
// embedded pgx.Tx only supplies the interface; its methods are never called.
type memTx struct {
	pgx.Tx
	saved   []domain.Account
	deltas  map[string]decimal.Decimal
	staged  []domain.Transaction
	purged  map[string]bool
	deleted map[string]bool
	done    bool
}

func (s *memStore) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{
		deltas:  make(map[string]decimal.Decimal),
		purged:  make(map[string]bool),
		deleted: make(map[string]bool),
	}, nil
}

func (s *memStore) Commit(ctx context.Context, tx pgx.Tx) error {
	mt := tx.(*memTx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if mt.done {
		return nil
	}
	mt.done = true

	// Validate everything against committed state before touching it, so a
	// rejected commit leaves no partial changes behind.
	for _, account := range mt.saved {
		if _, exists := s.accounts[account.AccountNumber]; exists {
			return fmt.Errorf("%w: account number %s already exists", apperrors.ErrDuplicate, account.AccountNumber)
		}
	}
	for number, delta := range mt.deltas {
		current, ok := s.accounts[number]
		if !ok || current.Balance.Add(delta).IsNegative() {
			// Another transaction changed this account after the unit passed
			// its own checks. Report a serialization failure; the retried
			// unit then observes the definitive outcome.
			return &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
		}
	}

	for _, account := range mt.saved {
		s.accounts[account.AccountNumber] = account
	}
	for number, delta := range mt.deltas {
		account := s.accounts[number]
		account.Balance = account.Balance.Add(delta)
		s.accounts[number] = account
	}
	if len(mt.purged) > 0 {
		kept := s.entries[:0]
		for _, entry := range s.entries {
			if !mt.purged[entry.AccountNumber] {
				kept = append(kept, entry)
			}
		}
		s.entries = kept
	}
	s.entries = append(s.entries, mt.staged...)
	for number := range mt.deleted {
		delete(s.accounts, number)
	}
	return nil
}

func (s *memStore) Rollback(ctx context.Context, tx pgx.Tx) error {
	mt := tx.(*memTx)
	s.mu.Lock()
	defer s.mu.Unlock()
	// Rolling back an already finished unit is a no-op, matching pgx's
	// rollback-after-commit behavior. Staged state is simply dropped.
	mt.done = true
	return nil
}

func (s *memStore) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountNumber]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountNumber)
	}
	return &account, nil
}

func (s *memStore) ListAccounts(ctx context.Context, filter string, limit int, nextToken *string) ([]domain.Account, *string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var accounts []domain.Account
	for _, account := range s.accounts {
		if filter == "" ||
			strings.Contains(account.AccountNumber, filter) ||
			strings.Contains(strings.ToLower(account.DisplayName), strings.ToLower(filter)) {
			accounts = append(accounts, account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		if !accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
		}
		return accounts[i].AccountNumber > accounts[j].AccountNumber
	})
	if limit > 0 && len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil, nil
}

func (s *memStore) UpdateDisplayName(ctx context.Context, accountNumber string, displayName string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountNumber]
	if !ok {
		return fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountNumber)
	}
	account.DisplayName = displayName
	account.UpdatedAt = now
	s.accounts[accountNumber] = account
	return nil
}

func (s *memStore) SaveAccountInTx(ctx context.Context, tx pgx.Tx, account domain.Account) error {
	mt := tx.(*memTx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.AccountNumber]; exists {
		return fmt.Errorf("%w: account number %s already exists", apperrors.ErrDuplicate, account.AccountNumber)
	}
	mt.saved = append(mt.saved, account)
	return nil
}

func (s *memStore) FindAccountsForUpdate(ctx context.Context, tx pgx.Tx, accountNumbers []string) (map[string]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// No actual row locks here; the commit-time re-validation stands in for
	// them by turning lost races into serialization failures.
	found := make(map[string]domain.Account, len(accountNumbers))
	for _, number := range accountNumbers {
		account, ok := s.accounts[number]
		if !ok {
			return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, number)
		}
		found[number] = account
	}
	return found, nil
}

func (s *memStore) AdjustBalanceInTx(ctx context.Context, tx pgx.Tx, accountNumber string, delta decimal.Decimal, now time.Time) error {
	mt := tx.(*memTx)
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountNumber]
	if !ok {
		return fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountNumber)
	}
	projected := account.Balance.Add(mt.deltas[accountNumber]).Add(delta)
	if projected.IsNegative() {
		return fmt.Errorf("%w: balance cannot cover %s", apperrors.ErrInsufficientFunds, delta.Neg())
	}
	mt.deltas[accountNumber] = mt.deltas[accountNumber].Add(delta)
	return nil
}

func (s *memStore) DeleteAccountInTx(ctx context.Context, tx pgx.Tx, accountNumber string) error {
	mt := tx.(*memTx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountNumber]; !ok {
		return fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountNumber)
	}
	mt.deleted[accountNumber] = true
	return nil
}

func (s *memStore) ListTransactionsByAccount(ctx context.Context, accountNumber string, limit int) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []domain.Transaction
	for _, entry := range s.entries {
		if entry.AccountNumber == accountNumber {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].OccurredAt.Equal(entries[j].OccurredAt) {
			return entries[i].OccurredAt.After(entries[j].OccurredAt)
		}
		return entries[i].TxID > entries[j].TxID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *memStore) FindTransactionByID(ctx context.Context, txID int64) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		if entry.TxID == txID {
			found := entry
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: transaction %d", apperrors.ErrNotFound, txID)
}

func (s *memStore) SumAmountsByAccount(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, entry := range s.entries {
		if entry.AccountNumber == accountNumber {
			total = total.Add(entry.SignedAmount())
		}
	}
	return total, nil
}

func (s *memStore) AppendTransactionInTx(ctx context.Context, tx pgx.Tx, txn domain.Transaction) (int64, error) {
	mt := tx.(*memTx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextAppend != nil {
		err := s.failNextAppend
		s.failNextAppend = nil
		return 0, err
	}
	// IDs are handed out at insert time and not reclaimed on rollback, like
	// a database sequence.
	s.nextID++
	txn.TxID = s.nextID
	mt.staged = append(mt.staged, txn)
	return txn.TxID, nil
}

func (s *memStore) DeleteTransactionsByAccountInTx(ctx context.Context, tx pgx.Tx, accountNumber string) (int64, error) {
	mt := tx.(*memTx)
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, entry := range s.entries {
		if entry.AccountNumber == accountNumber {
			count++
		}
	}
	mt.purged[accountNumber] = true
	return count, nil
}

// --- Test Suite Setup ---

type LedgerConcurrencyTestSuite struct {
	suite.Suite
	store   *memStore
	service portssvc.LedgerSvcFacade
}

func (suite *LedgerConcurrencyTestSuite) SetupTest() {
	suite.store = newMemStore()
	// Zero retry delay keeps the contention scenarios fast.
	suite.service = services.NewLedgerService(suite.store, suite.store, services.WithConflictRetry(2, 0))
}

func (suite *LedgerConcurrencyTestSuite) openAccount(displayName string, deposit decimal.Decimal) string {
	account, err := suite.service.CreateAccount(context.Background(), dto.CreateAccountRequest{
		DisplayName:    displayName,
		PIN:            "1234",
		InitialDeposit: deposit,
	})
	suite.Require().NoError(err)
	return account.AccountNumber
}

func (suite *LedgerConcurrencyTestSuite) balance(accountNumber string) decimal.Decimal {
	account, err := suite.store.FindAccountByNumber(context.Background(), accountNumber)
	suite.Require().NoError(err)
	return account.Balance
}

// --- Scenarios ---

func (suite *LedgerConcurrencyTestSuite) TestConcurrentDeposits_AllLand() {
	ctx := context.Background()
	number := suite.openAccount("Race Depositor", decimal.Zero)

	const depositors = 100
	amount := decimal.RequireFromString("1.00")

	var wg sync.WaitGroup
	errs := make([]error, depositors)
	for i := 0; i < depositors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := suite.service.Deposit(ctx, number, amount, "")
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		suite.Require().NoError(err, "deposit %d", i)
	}
	suite.True(suite.balance(number).Equal(decimal.NewFromInt(depositors)),
		"expected every deposit to land exactly once, got balance %s", suite.balance(number))

	history, err := suite.service.GetHistory(ctx, number, 0)
	suite.Require().NoError(err)
	suite.Len(history, depositors)
	seen := make(map[int64]bool, len(history))
	for _, entry := range history {
		suite.Equal(domain.KindDeposit, entry.Kind)
		suite.True(entry.Amount.Equal(amount))
		suite.False(seen[entry.TxID], "tx_id %d recorded twice", entry.TxID)
		seen[entry.TxID] = true
	}
}

func (suite *LedgerConcurrencyTestSuite) TestOpposingTransfers_ConserveMoney() {
	ctx := context.Background()
	alice := suite.openAccount("Alice", decimal.NewFromInt(1000))
	bob := suite.openAccount("Bob", decimal.NewFromInt(1000))

	const rounds = 200
	one := decimal.NewFromInt(1)

	var wg sync.WaitGroup
	errs := make([]error, 2*rounds)
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := suite.service.Transfer(ctx, alice, bob, one, "")
			errs[2*i] = err
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := suite.service.Transfer(ctx, bob, alice, one, "")
			errs[2*i+1] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		suite.Require().NoError(err, "transfer %d", i)
	}

	balanceAlice := suite.balance(alice)
	balanceBob := suite.balance(bob)
	suite.False(balanceAlice.IsNegative())
	suite.False(balanceBob.IsNegative())
	suite.True(balanceAlice.Add(balanceBob).Equal(decimal.NewFromInt(2000)),
		"money appeared or vanished: %s + %s", balanceAlice, balanceBob)

	// Every movement is explained by a pair of entries naming each other's
	// account.
	history, err := suite.service.GetHistory(ctx, alice, 0)
	suite.Require().NoError(err)
	suite.Len(history, 1+2*rounds)
	var outs, ins, deposits int
	for _, entry := range history {
		switch entry.Kind {
		case domain.KindTransferOut:
			outs++
			suite.Equal(bob, entry.Counterparty)
		case domain.KindTransferIn:
			ins++
			suite.Equal(bob, entry.Counterparty)
		case domain.KindDeposit:
			deposits++
		}
	}
	suite.Equal(rounds, outs)
	suite.Equal(rounds, ins)
	suite.Equal(1, deposits)

	reporting := services.NewReportingService(suite.store, suite.store)
	for _, number := range []string{alice, bob} {
		resp, err := reporting.VerifyConsistency(ctx, number)
		suite.Require().NoError(err)
		suite.True(resp.Consistent, "account %s: balance %s vs ledger %s", number, resp.Balance, resp.LedgerTotal)
	}
}

func (suite *LedgerConcurrencyTestSuite) TestWithdrawDrain_NeverOverdraws() {
	ctx := context.Background()
	number := suite.openAccount("Drained", decimal.NewFromInt(500))

	const attempts = 80
	amount := decimal.NewFromInt(10)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := suite.service.Withdraw(ctx, number, amount, "")
			errs[i] = err
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for i, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperrors.ErrInsufficientFunds):
			rejected++
		default:
			suite.Failf("unexpected withdraw outcome", "withdraw %d: %v", i, err)
		}
	}

	// 500 covers exactly 50 withdrawals of 10; everyone else is turned away.
	suite.Equal(50, succeeded)
	suite.Equal(30, rejected)
	suite.True(suite.balance(number).IsZero(), "account overdrawn or underdrained: %s", suite.balance(number))

	history, err := suite.service.GetHistory(ctx, number, 0)
	suite.Require().NoError(err)
	suite.Len(history, 51) // opening deposit plus one entry per successful withdrawal

	total, err := suite.store.SumAmountsByAccount(ctx, number)
	suite.Require().NoError(err)
	suite.True(total.IsZero(), "ledger total %s does not explain the drained balance", total)
}

func (suite *LedgerConcurrencyTestSuite) TestFailedAppendRollsBackBalance() {
	ctx := context.Background()
	number := suite.openAccount("Fragile", decimal.NewFromInt(100))

	suite.store.failNextAppend = errors.New("ledger write failed")

	_, err := suite.service.Deposit(ctx, number, decimal.NewFromInt(40), "")
	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrStorage)

	// The balance adjustment staged before the failed append must not leak.
	suite.True(suite.balance(number).Equal(decimal.NewFromInt(100)))
	history, err := suite.service.GetHistory(ctx, number, 0)
	suite.Require().NoError(err)
	suite.Len(history, 1)

	// Once the fault clears the same unit goes through whole.
	_, err = suite.service.Deposit(ctx, number, decimal.NewFromInt(40), "")
	suite.Require().NoError(err)
	suite.True(suite.balance(number).Equal(decimal.NewFromInt(140)))
}

func (suite *LedgerConcurrencyTestSuite) TestDeleteAccount_PurgesLedgerAtomically() {
	ctx := context.Background()
	keeper := suite.openAccount("Keeper", decimal.NewFromInt(300))
	leaver := suite.openAccount("Leaver", decimal.NewFromInt(200))

	_, err := suite.service.Transfer(ctx, leaver, keeper, decimal.NewFromInt(50), "parting gift")
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.DeleteAccount(ctx, leaver))

	_, err = suite.store.FindAccountByNumber(ctx, leaver)
	suite.ErrorIs(err, apperrors.ErrNotFound)
	_, err = suite.service.GetHistory(ctx, leaver, 0)
	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.ErrorIs(suite.service.DeleteAccount(ctx, leaver), apperrors.ErrNotFound)

	// The survivor keeps its own side of the shared transfer.
	history, err := suite.service.GetHistory(ctx, keeper, 0)
	suite.Require().NoError(err)
	suite.Len(history, 2)
	suite.True(suite.balance(keeper).Equal(decimal.NewFromInt(350)))

	// No orphaned entries remain for the deleted account.
	total, err := suite.store.SumAmountsByAccount(ctx, leaver)
	suite.Require().NoError(err)
	suite.True(total.IsZero())
}

func (suite *LedgerConcurrencyTestSuite) TestStatementOrder_NewestFirst() {
	ctx := context.Background()
	number := suite.openAccount("Saver", decimal.NewFromInt(100))

	suite.True(suite.balance(number).Equal(decimal.NewFromInt(100)))

	opening, err := suite.service.GetHistory(ctx, number, 0)
	suite.Require().NoError(err)
	suite.Require().Len(opening, 1)
	suite.Equal(domain.KindDeposit, opening[0].Kind)
	suite.True(opening[0].Amount.Equal(decimal.NewFromInt(100)))
	suite.Equal("Initial deposit", opening[0].Note)

	_, err = suite.service.Deposit(ctx, number, decimal.NewFromInt(50), "payday")
	suite.Require().NoError(err)
	_, err = suite.service.Withdraw(ctx, number, decimal.NewFromInt(30), "groceries")
	suite.Require().NoError(err)

	suite.True(suite.balance(number).Equal(decimal.NewFromInt(120)))

	history, err := suite.service.GetHistory(ctx, number, 0)
	suite.Require().NoError(err)
	suite.Require().Len(history, 3)
	suite.Equal(domain.KindWithdraw, history[0].Kind)
	suite.True(history[0].Amount.Equal(decimal.NewFromInt(30)))
	suite.Equal(domain.KindDeposit, history[1].Kind)
	suite.True(history[1].Amount.Equal(decimal.NewFromInt(50)))
	suite.Equal(domain.KindDeposit, history[2].Kind)
	suite.True(history[2].Amount.Equal(decimal.NewFromInt(100)))

	// Reading again without intervening writes returns the same statement.
	again, err := suite.service.GetHistory(ctx, number, 0)
	suite.Require().NoError(err)
	suite.Equal(history, again)
	suite.True(suite.balance(number).Equal(decimal.NewFromInt(120)))
}

func (suite *LedgerConcurrencyTestSuite) TestTransfer_PairedEntriesShareTimestamp() {
	ctx := context.Background()
	source := suite.openAccount("Payer", decimal.NewFromInt(100))
	dest := suite.openAccount("Payee", decimal.NewFromInt(10))

	transfer, err := suite.service.Transfer(ctx, source, dest, decimal.NewFromInt(40), "rent")
	suite.Require().NoError(err)

	suite.True(suite.balance(source).Equal(decimal.NewFromInt(60)))
	suite.True(suite.balance(dest).Equal(decimal.NewFromInt(50)))

	suite.Equal(domain.KindTransferOut, transfer.Outgoing.Kind)
	suite.Equal(domain.KindTransferIn, transfer.Incoming.Kind)
	suite.Equal(dest, transfer.Outgoing.Counterparty)
	suite.Equal(source, transfer.Incoming.Counterparty)
	suite.True(transfer.Outgoing.Amount.Equal(transfer.Incoming.Amount))
	suite.True(transfer.Outgoing.OccurredAt.Equal(transfer.Incoming.OccurredAt),
		"both legs of a transfer must carry one timestamp")

	// Each side of the statement shows exactly its own leg.
	sourceHistory, err := suite.service.GetHistory(ctx, source, 0)
	suite.Require().NoError(err)
	suite.Require().Len(sourceHistory, 2)
	suite.Equal(domain.KindTransferOut, sourceHistory[0].Kind)

	destHistory, err := suite.service.GetHistory(ctx, dest, 0)
	suite.Require().NoError(err)
	suite.Require().Len(destHistory, 2)
	suite.Equal(domain.KindTransferIn, destHistory[0].Kind)
}

// --- Run Test Suite ---

func TestLedgerConcurrency(t *testing.T) {
	suite.Run(t, new(LedgerConcurrencyTestSuite))
}
