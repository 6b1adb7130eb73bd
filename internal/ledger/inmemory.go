package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"

	"github.com/polo-core/polo_core/internal/network"
)

const (
	nativeKey   = "native"
	baseReserve = 10_000_000 // 1 XLM in stroops
)

type memAccount struct {
	seq      int64
	balances map[string]int64
}

func (a *memAccount) clone() *memAccount {
	out := &memAccount{seq: a.seq, balances: make(map[string]int64, len(a.balances))}
	for k, v := range a.balances {
		out.balances[k] = v
	}
	return out
}

type inMemoryLedger struct {
	mu          sync.RWMutex
	net         network.Network
	accounts    map[string]*memAccount
	payments    map[string][]Payment
	ledgerSeq   int32
	opCounter   int64
	unavailable bool
	now         func() time.Time
}

// NewInMemory creates a concurrency-safe simulated network. It enforces
// sequence numbers, signatures and atomic application of operations, which
// makes it usable for local development and unit tests.
func NewInMemory(net network.Network) Client {
	return &inMemoryLedger{
		net:       net,
		accounts:  make(map[string]*memAccount),
		payments:  make(map[string][]Payment),
		ledgerSeq: 1,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (l *inMemoryLedger) LoadAccount(ctx context.Context, accountID string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.unavailable {
		return Account{}, fmt.Errorf("%w: load account: simulated outage", ErrUnavailable)
	}
	acc, ok := l.accounts[accountID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return Account{ID: accountID, Sequence: acc.seq, Balances: l.symbolBalances(acc)}, nil
}

func (l *inMemoryLedger) Balances(ctx context.Context, accountID string) (map[string]string, error) {
	acc, err := l.LoadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return acc.Balances, nil
}

func (l *inMemoryLedger) PaymentsHistory(ctx context.Context, accountID string, limit int) History {
	if ctx.Err() != nil {
		return History{Records: []Payment{}, Failed: true}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.unavailable {
		return History{Records: []Payment{}, Failed: true}
	}
	all := l.payments[accountID]
	n := ClampLimit(limit, MaxHistoryLimit)
	records := make([]Payment, 0, n)
	for i := len(all) - 1; i >= 0 && len(records) < n; i-- {
		records = append(records, all[i])
	}
	return History{Records: records}
}

func (l *inMemoryLedger) Submit(ctx context.Context, tx *txnbuild.Transaction) (Submission, error) {
	if err := ctx.Err(); err != nil {
		return Submission{}, err
	}
	hash, err := tx.Hash(l.net.Passphrase)
	if err != nil {
		return Submission{}, fmt.Errorf("hash transaction: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.unavailable {
		return Submission{}, fmt.Errorf("%w: submit: simulated outage", ErrUnavailable)
	}

	sourceID := tx.SourceAccount().AccountID
	source, ok := l.accounts[sourceID]
	if !ok {
		return Submission{}, &SubmitError{TransactionCode: "tx_no_source_account"}
	}
	if tx.SequenceNumber() != source.seq+1 {
		return Submission{}, &SubmitError{TransactionCode: "tx_bad_seq"}
	}

	ops := tx.Operations()
	if len(ops) == 0 {
		return Submission{}, &SubmitError{TransactionCode: "tx_missing_operation"}
	}
	signers := map[string]struct{}{sourceID: {}}
	for _, op := range ops {
		if src := op.GetSourceAccount(); src != "" {
			signers[src] = struct{}{}
		}
	}
	for signer := range signers {
		if !signedBy(hash, tx.Signatures(), signer) {
			return Submission{}, &SubmitError{TransactionCode: "tx_bad_auth"}
		}
	}

	fee := tx.BaseFee() * int64(len(ops))
	if source.balances[nativeKey] < fee {
		return Submission{}, &SubmitError{TransactionCode: "tx_insufficient_balance"}
	}

	// Sequence and fee are consumed even when an operation fails.
	source.seq++
	source.balances[nativeKey] -= fee
	l.ledgerSeq++
	txHash := hex.EncodeToString(hash[:])

	work := map[string]*memAccount{}
	get := func(id string) (*memAccount, bool) {
		if acc, ok := work[id]; ok {
			return acc, true
		}
		acc, ok := l.accounts[id]
		if !ok {
			return nil, false
		}
		work[id] = acc.clone()
		return work[id], true
	}

	var (
		codes   = make([]string, 0, len(ops))
		applied []Payment
		created = map[string]*memAccount{}
	)
	for _, op := range ops {
		opSource := op.GetSourceAccount()
		if opSource == "" {
			opSource = sourceID
		}
		code, rec := l.apply(op, opSource, get, created, txHash)
		codes = append(codes, code)
		if code != "op_success" {
			return Submission{}, &SubmitError{TransactionCode: "tx_failed", OperationCodes: codes}
		}
		if rec != nil {
			applied = append(applied, *rec)
		}
	}

	for id, acc := range work {
		l.accounts[id] = acc
	}
	for id, acc := range created {
		l.accounts[id] = acc
	}
	for _, rec := range applied {
		l.payments[rec.From] = append(l.payments[rec.From], rec)
		if rec.To != rec.From {
			l.payments[rec.To] = append(l.payments[rec.To], rec)
		}
	}
	return Submission{Hash: txHash, Ledger: l.ledgerSeq}, nil
}

func (l *inMemoryLedger) apply(op txnbuild.Operation, source string, get func(string) (*memAccount, bool), created map[string]*memAccount, txHash string) (string, *Payment) {
	switch o := op.(type) {
	case *txnbuild.CreateAccount:
		if _, exists := get(o.Destination); exists {
			return "op_already_exists", nil
		}
		if _, exists := created[o.Destination]; exists {
			return "op_already_exists", nil
		}
		stroops, err := amount.ParseInt64(o.Amount)
		if err != nil || stroops < baseReserve {
			return "op_low_reserve", nil
		}
		src, ok := get(source)
		if !ok {
			return "op_no_account", nil
		}
		if src.balances[nativeKey]-stroops < baseReserve {
			return "op_underfunded", nil
		}
		src.balances[nativeKey] -= stroops
		created[o.Destination] = &memAccount{
			seq:      int64(l.ledgerSeq) << 32,
			balances: map[string]int64{nativeKey: stroops},
		}
		return "op_success", l.record("create_account", source, o.Destination, o.Amount, nativeSymbol, txHash)

	case *txnbuild.ChangeTrust:
		acc, ok := created[source]
		if !ok {
			acc, ok = get(source)
		}
		if !ok {
			return "op_no_account", nil
		}
		key := o.Line.GetCode() + ":" + o.Line.GetIssuer()
		if _, exists := acc.balances[key]; !exists {
			acc.balances[key] = 0
		}
		return "op_success", nil

	case *txnbuild.Payment:
		stroops, err := amount.ParseInt64(o.Amount)
		if err != nil || stroops <= 0 {
			return "op_malformed", nil
		}
		src, ok := created[source]
		if !ok {
			src, ok = get(source)
		}
		if !ok {
			return "op_no_account", nil
		}
		dst, ok := created[o.Destination]
		if !ok {
			dst, ok = get(o.Destination)
		}
		if !ok {
			return "op_no_destination", nil
		}
		key := nativeKey
		symbol := nativeSymbol
		if !o.Asset.IsNative() {
			key = o.Asset.GetCode() + ":" + o.Asset.GetIssuer()
			symbol = o.Asset.GetCode()
			if _, ok := src.balances[key]; !ok {
				return "op_src_no_trust", nil
			}
			if _, ok := dst.balances[key]; !ok {
				return "op_no_trust", nil
			}
		}
		available := src.balances[key]
		if key == nativeKey {
			available -= baseReserve
		}
		if available < stroops {
			return "op_underfunded", nil
		}
		src.balances[key] -= stroops
		dst.balances[key] += stroops
		return "op_success", l.record("payment", source, o.Destination, o.Amount, symbol, txHash)

	default:
		return "op_not_supported", nil
	}
}

func (l *inMemoryLedger) record(kind, from, to, amt, symbol, txHash string) *Payment {
	l.opCounter++
	return &Payment{
		ID:              fmt.Sprintf("%d", int64(l.ledgerSeq)<<32+l.opCounter),
		Type:            kind,
		TransactionHash: txHash,
		From:            from,
		To:              to,
		Amount:          amt,
		Asset:           symbol,
		CreatedAt:       l.now(),
		Successful:      true,
	}
}

func (l *inMemoryLedger) symbolBalances(acc *memAccount) map[string]string {
	out := make(map[string]string, len(acc.balances))
	for key, v := range acc.balances {
		if key == nativeKey {
			out[nativeSymbol] = amount.StringFromInt64(v)
			continue
		}
		for i := 0; i < len(key); i++ {
			if key[i] == ':' {
				out[key[:i]] = amount.StringFromInt64(v)
				break
			}
		}
	}
	return out
}

func signedBy(hash [32]byte, sigs []xdr.DecoratedSignature, address string) bool {
	kp, err := keypair.ParseAddress(address)
	if err != nil {
		return false
	}
	for _, sig := range sigs {
		if kp.Verify(hash[:], sig.Signature) == nil {
			return true
		}
	}
	return false
}
